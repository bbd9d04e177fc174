package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Vocabularies are embedded in the binary; nothing is fetched at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// TikToken is a BPE tokenizer backed by a tiktoken vocabulary.
type TikToken struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTikToken loads the named encoding, falling back to a model lookup
// ("gpt-4" resolves to cl100k_base). Loaded vocabularies are cached per name.
//
// The cl100k_base, p50k_base and r50k_base vocabularies ship with the binary.
func NewTikToken(name string) (*TikToken, error) {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if enc, ok := encodings[name]; ok {
		return &TikToken{name: name, enc: enc}, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		var modelErr error
		enc, modelErr = tiktoken.EncodingForModel(name)
		if modelErr != nil {
			return nil, fmt.Errorf("%w: unknown encoding or model %q: %v", ErrEncoding, name, err)
		}
	}
	encodings[name] = enc

	return &TikToken{name: name, enc: enc}, nil
}

// Encode treats special-token text as ordinary text so any input round-trips.
func (t *TikToken) Encode(text string) (tokens []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = encodingError("encode", t.name, fmt.Errorf("%v", r))
		}
	}()
	return t.enc.Encode(text, nil, nil), nil
}

// Decode replaces byte sequences that are not valid UTF-8 with U+FFFD. A
// token range that starts or ends inside a multi-byte character decodes to
// a replacement character at that edge.
func (t *TikToken) Decode(tokens []int) (text string, err error) {
	for _, tok := range tokens {
		if tok < 0 {
			return "", encodingError("decode", t.name, fmt.Errorf("negative token id %d", tok))
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = encodingError("decode", t.name, fmt.Errorf("%v", r))
		}
	}()
	return strings.ToValidUTF8(t.enc.Decode(tokens), "\uFFFD"), nil
}

func (t *TikToken) Count(text string) (int, error) {
	tokens, err := t.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

func (t *TikToken) Name() string {
	return t.name
}
