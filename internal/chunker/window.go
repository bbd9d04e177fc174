package chunker

// Window is a half-open token range [Start, End).
type Window struct {
	Start int
	End   int
}

// Len returns the number of tokens in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Windows covers n tokens with windows of at most size tokens. Each window
// after the first starts overlap tokens before the previous end, clamped to
// zero. The start always moves forward by at least one token, so the loop
// terminates even for overlap >= size. The last window ends at n.
func Windows(n, size, overlap int) []Window {
	if n <= 0 || size <= 0 {
		return nil
	}

	out := make([]Window, 0, n/size+1)
	start := 0
	for {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, Window{Start: start, End: end})
		if end == n {
			return out
		}

		next := end - overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}
}
