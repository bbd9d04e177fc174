// Package tokenizer maps text to token sequences and back.
//
// Chunk budgets are enforced and reported with the same Tokenizer, so a
// chunk's token count always agrees with what the embedding model will see.
//
// Two implementations are provided:
//   - TikToken: BPE vocabularies from pkoukk/tiktoken-go (cl100k_base is the gpt-4 vocabulary)
//   - Runes: one token per Unicode code point, offline and deterministic
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEncoding indicates the tokenizer could not encode or decode a value.
var ErrEncoding = errors.New("tokenizer encoding failed")

// DefaultEncoding is the vocabulary used when none is configured.
const DefaultEncoding = "cl100k_base"

// RunesName selects the Runes tokenizer in New.
const RunesName = "runes"

// Tokenizer converts between text and token ids.
//
// Implementations must satisfy Decode(Encode(t)) == t for valid UTF-8 input
// and must be safe for concurrent use.
type Tokenizer interface {
	// Encode returns the token ids for text.
	Encode(text string) ([]int, error)
	// Decode returns the text for a token sequence. The result is always
	// valid UTF-8, even when the sequence cuts a character in two.
	Decode(tokens []int) (string, error)
	// Count returns the number of tokens text encodes to.
	Count(text string) (int, error)
	// Name identifies the vocabulary.
	Name() string
}

// New returns the tokenizer registered under name.
//
// Accepted names are "runes", a tiktoken encoding ("cl100k_base",
// "p50k_base", "r50k_base", "p50k_edit") or an OpenAI model name such as
// "gpt-4". An empty name selects DefaultEncoding.
func New(name string) (Tokenizer, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "":
		return NewTikToken(DefaultEncoding)
	case RunesName:
		return Runes{}, nil
	default:
		return NewTikToken(name)
	}
}

func encodingError(op, name string, err error) error {
	return fmt.Errorf("%w: %s with %s: %v", ErrEncoding, op, name, err)
}
