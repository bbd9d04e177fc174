package loader

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// ParseIgnoreFile reads gitignore-style patterns. A missing file yields no
// patterns. Negations are not supported and are skipped.
func ParseIgnoreFile(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	var patterns []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		p := parseLine(scanner.Text())
		if p != "" && !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return patterns, nil
}

// parseLine returns "" for blanks, comments and negations.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return toGlobPattern(line)
}

// toGlobPattern converts a gitignore line to a slash glob where "**"
// spans any number of segments.
func toGlobPattern(p string) string {
	p = strings.TrimPrefix(p, "/")
	if strings.HasSuffix(p, "/") {
		return p + "**"
	}
	if !strings.Contains(p, "/") && !strings.HasPrefix(p, "*") {
		p = "**/" + p
	}
	// A bare name without an extension is treated as a directory.
	if !strings.HasSuffix(p, "/**") && !strings.HasSuffix(p, "/*") && !strings.Contains(path.Base(p), ".") {
		p += "/**"
	}
	return p
}

type matcher struct {
	patterns []string
}

func newMatcher(patterns []string) *matcher {
	return &matcher{patterns: patterns}
}

// match reports whether a slash-separated relative path is ignored.
// Directory paths end in "/". Patterns without a slash match the base name.
func (m *matcher) match(rel string) bool {
	for _, p := range m.patterns {
		if !strings.Contains(p, "/") {
			if ok, _ := path.Match(p, path.Base(rel)); ok {
				return true
			}
			continue
		}
		if matchSegments(strings.Split(p, "/"), strings.Split(rel, "/")) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(name); i++ {
			if matchSegments(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if ok, _ := path.Match(pattern[0], name[0]); !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}
