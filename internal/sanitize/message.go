package sanitize

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds chat messages and selected text, in characters.
const MaxMessageLength = 2000

// maxRun is the shortest run of one repeated character that is rejected.
const maxRun = 10

var (
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrMessageTooLong   = fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	ErrExcessiveRepeat  = errors.New("message contains excessive repetition")
	ErrSelectionTooLong = fmt.Errorf("selected text exceeds maximum length of %d characters", MaxMessageLength)
	ErrInvalidUserID    = errors.New("invalid user ID format")
	ErrInvalidSessionID = errors.New("invalid session ID format")
)

var (
	userIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,255}$`)
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,36}$`)

	scriptTag      = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	dangerousURIs  = regexp.MustCompile(`(?i)javascript:|data:`)
	dangerousCalls = regexp.MustCompile(`(?i)(eval|exec)\s*\(`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// ValidateMessage checks a chat message: non-blank, at most
// MaxMessageLength characters, and no run of maxRun identical characters.
func ValidateMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if longestRun(msg) >= maxRun {
		return ErrExcessiveRepeat
	}
	return nil
}

// ValidateSelectedText allows empty selections and bounds the rest.
func ValidateSelectedText(sel string) error {
	if utf8.RuneCountInString(sel) > MaxMessageLength {
		return ErrSelectionTooLong
	}
	return nil
}

// Input removes script blocks, javascript:/data: URIs and eval(/exec( calls,
// then HTML-escapes the remainder.
func Input(text string) string {
	if text == "" {
		return text
	}
	s := scriptTag.ReplaceAllString(text, "")
	s = dangerousURIs.ReplaceAllString(s, "")
	s = dangerousCalls.ReplaceAllString(s, "")
	return strings.TrimSpace(html.EscapeString(s))
}

// CleanMessage sanitizes msg and collapses whitespace runs to one space.
func CleanMessage(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(Input(msg), " "))
}

func ValidateUserID(id string) error {
	if !userIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be 1-255 letters, digits, '-' or '_'", ErrInvalidUserID)
	}
	return nil
}

func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be 1-36 letters, digits, '-' or '_'", ErrInvalidSessionID)
	}
	return nil
}

// longestRun returns the length of the longest run of one repeated rune.
// Newlines never form runs.
func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range s {
		switch {
		case r == '\n':
			prev, run = -1, 0
			continue
		case r == prev:
			run++
		default:
			prev, run = r, 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
