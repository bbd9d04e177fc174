package chunker

import (
	"strings"
)

// UntitledSection labels chunks from a section without an H2/H3 header.
const UntitledSection = "Untitled Section"

// Section is a header-delimited span of a document.
type Section struct {
	// Text is the section content with surrounding whitespace trimmed.
	// It starts with the header line unless Preamble is set.
	Text string
	// Title is the header text, or UntitledSection.
	Title string
	// Preamble marks content that appears before the first H2/H3 header.
	Preamble bool
}

// SplitSections splits a markdown document at every line that starts with
// an H2 or H3 marker. The header line belongs to the section it opens.
// Content before the first header becomes a leading preamble section.
// Sections that are empty after trimming are dropped; order is preserved.
//
// H1 and H4+ lines never open a section and stay inline.
func SplitSections(text string) []Section {
	var (
		sections []Section
		current  strings.Builder
		preamble = true
	)

	flush := func() {
		body := strings.TrimSpace(current.String())
		current.Reset()
		if body == "" {
			return
		}
		sections = append(sections, Section{
			Text:     body,
			Title:    SectionTitle(body),
			Preamble: preamble,
		})
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if _, ok := headerText(line); ok {
			flush()
			preamble = false
		}
		current.WriteString(line)
	}
	flush()

	return sections
}

// SectionTitle returns the trimmed text of the first H2/H3 header line in
// text, or UntitledSection when there is none or the header is blank.
func SectionTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if title, ok := headerText(line); ok {
			if title == "" {
				return UntitledSection
			}
			return title
		}
	}
	return UntitledSection
}

// headerText reports whether line is an H2 or H3 header and returns its
// trimmed text.
func headerText(line string) (string, bool) {
	level, rest := headingLevel(line)
	if level != 2 && level != 3 {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// headingLevel returns the ATX heading depth of line and the remainder
// after the marker. Level 0 means line is not a heading: the marker must
// start the line and be followed by whitespace or the end of the line.
func headingLevel(line string) (int, string) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 {
		return 0, ""
	}
	rest := line[n:]
	if rest != "" && !isSpace(rest[0]) {
		return 0, ""
	}
	return n, rest
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}

// documentTitle returns the H1 text when the preamble is a single H1 line.
func documentTitle(preamble string) (string, bool) {
	if strings.Contains(preamble, "\n") {
		return "", false
	}
	level, rest := headingLevel(preamble)
	if level != 1 {
		return "", false
	}
	title := strings.TrimSpace(rest)
	return title, title != ""
}
