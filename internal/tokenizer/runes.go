package tokenizer

import (
	"fmt"
	"unicode/utf8"
)

// Runes tokenizes text into Unicode code points. Token ids are the code
// point values. It needs no vocabulary download.
type Runes struct{}

// Encode rejects invalid UTF-8 because it could not round-trip.
func (Runes) Encode(text string) ([]int, error) {
	if !utf8.ValidString(text) {
		return nil, encodingError("encode", RunesName, fmt.Errorf("invalid UTF-8"))
	}
	tokens := make([]int, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, int(r))
	}
	return tokens, nil
}

func (Runes) Decode(tokens []int) (string, error) {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		r := rune(tok)
		if tok < 0 || tok > utf8.MaxRune || !utf8.ValidRune(r) {
			return "", encodingError("decode", RunesName, fmt.Errorf("invalid code point %d", tok))
		}
		runes[i] = r
	}
	return string(runes), nil
}

func (Runes) Count(text string) (int, error) {
	if !utf8.ValidString(text) {
		return 0, encodingError("count", RunesName, fmt.Errorf("invalid UTF-8"))
	}
	return utf8.RuneCountInString(text), nil
}

func (Runes) Name() string {
	return RunesName
}
