package tokenizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundTripInputs = []string{
	"",
	"Hello world.",
	"## Intro\nHello world.\n\n```go\nfmt.Println(\"hi\")\n```",
	"héllo wörld 日本語 🚀",
	"<|endoftext|> is plain text here",
	"   leading and trailing   \n\n",
}

func TestNew(t *testing.T) {
	t.Run("runes by name", func(t *testing.T) {
		tok, err := New(RunesName)
		require.NoError(t, err)
		assert.Equal(t, RunesName, tok.Name())
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		tok, err := New("  runes ")
		require.NoError(t, err)
		assert.IsType(t, Runes{}, tok)
	})
}

func TestRunes_RoundTrip(t *testing.T) {
	tok := Runes{}
	for _, in := range roundTripInputs {
		tokens, err := tok.Encode(in)
		require.NoError(t, err)

		out, err := tok.Decode(tokens)
		require.NoError(t, err)
		assert.Equal(t, in, out)

		n, err := tok.Count(in)
		require.NoError(t, err)
		assert.Equal(t, len(tokens), n)
	}
}

func TestRunes_Errors(t *testing.T) {
	tok := Runes{}

	t.Run("invalid utf8 on encode", func(t *testing.T) {
		_, err := tok.Encode("bad \xff byte")
		assert.ErrorIs(t, err, ErrEncoding)
	})

	t.Run("invalid utf8 on count", func(t *testing.T) {
		_, err := tok.Count("\xc3")
		assert.ErrorIs(t, err, ErrEncoding)
	})

	t.Run("negative id on decode", func(t *testing.T) {
		_, err := tok.Decode([]int{72, -1})
		assert.ErrorIs(t, err, ErrEncoding)
	})

	t.Run("surrogate on decode", func(t *testing.T) {
		_, err := tok.Decode([]int{0xD800})
		assert.ErrorIs(t, err, ErrEncoding)
	})
}

func TestRunes_CountsCodePoints(t *testing.T) {
	n, err := Runes{}.Count("日本語")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func loadTikToken(t *testing.T, name string) *TikToken {
	t.Helper()
	tok, err := NewTikToken(name)
	require.NoError(t, err)
	return tok
}

func TestTikToken_RoundTrip(t *testing.T) {
	tok := loadTikToken(t, DefaultEncoding)

	for _, in := range roundTripInputs {
		tokens, err := tok.Encode(in)
		require.NoError(t, err)

		out, err := tok.Decode(tokens)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestTikToken_ModelAlias(t *testing.T) {
	tok := loadTikToken(t, "gpt-4")
	base := loadTikToken(t, DefaultEncoding)

	text := "Step one. Step two."
	a, err := tok.Encode(text)
	require.NoError(t, err)
	b, err := base.Encode(text)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestTikToken_NegativeIDRejected(t *testing.T) {
	tok := loadTikToken(t, DefaultEncoding)
	_, err := tok.Decode([]int{-5})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestTikToken_DecodeSplitCharacter(t *testing.T) {
	tok := loadTikToken(t, DefaultEncoding)

	tokens, err := tok.Encode("🤖")
	require.NoError(t, err)
	require.Greater(t, len(tokens), 1, "emoji spans several byte-level tokens")

	head, err := tok.Decode(tokens[:1])
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(head))
	assert.Contains(t, head, "\uFFFD")

	tail, err := tok.Decode(tokens[1:])
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(tail))
}

func TestTikToken_DecodeWindowsStayValid(t *testing.T) {
	tok := loadTikToken(t, DefaultEncoding)

	text := strings.Repeat("ロボット工学と人工知能の統合。🤖🦾 ", 20)
	tokens, err := tok.Encode(text)
	require.NoError(t, err)

	for start := 0; start < len(tokens); start += 7 {
		end := start + 11
		if end > len(tokens) {
			end = len(tokens)
		}
		out, err := tok.Decode(tokens[start:end])
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(out), "tokens %d:%d", start, end)
	}
}
