package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docrag/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTokenizer wraps Runes and counts calls.
type recordingTokenizer struct {
	tokenizer.Runes
	mu    sync.Mutex
	calls int
}

func (r *recordingTokenizer) Encode(text string) ([]int, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.Runes.Encode(text)
}

// failingTokenizer fails every operation.
type failingTokenizer struct {
	tokenizer.Runes
}

func (failingTokenizer) Encode(string) ([]int, error) {
	return nil, fmt.Errorf("%w: unsupported input", tokenizer.ErrEncoding)
}

func runesOf(t *testing.T, s string) []int {
	t.Helper()
	tokens, err := tokenizer.Runes{}.Encode(s)
	require.NoError(t, err)
	return tokens
}

func TestChunkDocument_TwoSectionsWithTitle(t *testing.T) {
	doc := "# Title\n\n## Intro\nHello world.\n\n## Usage\nStep one. Step two."

	chunks, err := ChunkDocument(tokenizer.Runes{}, doc, "03-ros2.md", "03-ros2", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, Chunk{
		Text:          "## Intro\nHello world.",
		SourceID:      "03-ros2.md",
		URL:           "03-ros2",
		Section:       "Intro",
		SequenceIndex: 0,
		TokenCount:    len([]rune("## Intro\nHello world.")),
		Title:         "Title",
	}, chunks[0])

	assert.Equal(t, "## Usage\nStep one. Step two.", chunks[1].Text)
	assert.Equal(t, "Usage", chunks[1].Section)
	assert.Equal(t, 1, chunks[1].SequenceIndex)
	assert.Equal(t, "Title", chunks[1].Title)
}

func TestChunkDocument_OversizedSection(t *testing.T) {
	header := "## Big\n"
	body := strings.Repeat("abcdefghij", 100)[:1000-len(header)]
	doc := header + body
	tokens := runesOf(t, doc)
	require.Len(t, tokens, 1000)

	chunks, err := ChunkDocument(tokenizer.Runes{}, doc, "big.md", "big", Config{ChunkSize: 800, Overlap: 100})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 800, chunks[0].TokenCount)
	assert.Equal(t, 300, chunks[1].TokenCount)
	assert.Equal(t, string([]rune(doc)[0:800]), chunks[0].Text)
	assert.Equal(t, string([]rune(doc)[700:1000]), chunks[1].Text)

	for i, c := range chunks {
		assert.Equal(t, "Big", c.Section, "every sub-chunk keeps the section label")
		assert.Equal(t, i, c.SequenceIndex)
	}
}

func TestChunkDocument_EmptyDocument(t *testing.T) {
	for _, doc := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := ChunkDocument(tokenizer.Runes{}, doc, "empty.md", "empty", DefaultConfig())
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunkDocument_HeaderOnlySection(t *testing.T) {
	chunks, err := ChunkDocument(tokenizer.Runes{}, "## Only\n", "only.md", "only", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "## Only", chunks[0].Text)
	assert.Equal(t, "Only", chunks[0].Section)
	assert.Equal(t, 7, chunks[0].TokenCount)
}

func TestChunkDocument_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero chunk size", Config{ChunkSize: 0, Overlap: 0}},
		{"negative chunk size", Config{ChunkSize: -1, Overlap: 0}},
		{"negative overlap", Config{ChunkSize: 10, Overlap: -1}},
		{"overlap equals chunk size", Config{ChunkSize: 10, Overlap: 10}},
		{"overlap exceeds chunk size", Config{ChunkSize: 10, Overlap: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &recordingTokenizer{}
			_, err := ChunkDocument(tok, "## A\nbody", "a.md", "a", tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Zero(t, tok.calls, "config must be rejected before any text is processed")
		})
	}

	t.Run("nil tokenizer", func(t *testing.T) {
		_, err := ChunkDocument(nil, "## A\nbody", "a.md", "a", DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestChunkDocument_EncodingErrorPropagates(t *testing.T) {
	_, err := ChunkDocument(failingTokenizer{}, "## A\nbody", "a.md", "a", DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, tokenizer.ErrEncoding)
	assert.Contains(t, err.Error(), "a.md")
}

func TestChunkDocument_InlineHeadings(t *testing.T) {
	doc := "## A\ntext\n# Not a split\n#### Deep\nmore"

	chunks, err := ChunkDocument(tokenizer.Runes{}, doc, "a.md", "a", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc, chunks[0].Text)
	assert.Equal(t, "A", chunks[0].Section)
}

func TestChunkDocument_Preamble(t *testing.T) {
	t.Run("body text forms an untitled section", func(t *testing.T) {
		doc := "Intro paragraph\n\n## A\nx"
		chunks, err := ChunkDocument(tokenizer.Runes{}, doc, "a.md", "a", DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Intro paragraph", chunks[0].Text)
		assert.Equal(t, UntitledSection, chunks[0].Section)
		assert.Equal(t, "A", chunks[1].Section)
	})

	t.Run("title with body is kept as content", func(t *testing.T) {
		doc := "# T\n\nSome words\n## A\nx"
		chunks, err := ChunkDocument(tokenizer.Runes{}, doc, "a.md", "a", DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "# T\n\nSome words", chunks[0].Text)
		assert.Equal(t, UntitledSection, chunks[0].Section)
		assert.Empty(t, chunks[0].Title)
	})

	t.Run("title only document is kept as content", func(t *testing.T) {
		chunks, err := ChunkDocument(tokenizer.Runes{}, "# Just a title\n", "a.md", "a", DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "# Just a title", chunks[0].Text)
		assert.Equal(t, UntitledSection, chunks[0].Section)
		assert.Empty(t, chunks[0].Title)
	})

	t.Run("several title lines stay content", func(t *testing.T) {
		chunks, err := ChunkDocument(tokenizer.Runes{}, "# A\n# B\n## C\nx", "a.md", "a", DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "# A\n# B", chunks[0].Text)
		assert.Empty(t, chunks[1].Title)
	})

	t.Run("blank preamble is dropped", func(t *testing.T) {
		chunks, err := ChunkDocument(tokenizer.Runes{}, "\n \n\t\n## A\nx", "a.md", "a", DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "## A\nx", chunks[0].Text)
	})
}

func TestChunkDocument_BlankHeader(t *testing.T) {
	chunks, err := ChunkDocument(tokenizer.Runes{}, "## A\nbody\n##   \n## B\nz", "a.md", "a", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "##", chunks[1].Text)
	assert.Equal(t, UntitledSection, chunks[1].Section)
}

func TestChunkDocument_IndexContiguityAndIdempotence(t *testing.T) {
	doc := strings.Join([]string{
		"Lead-in text that has no header at all and is fairly long.",
		"## First\n" + strings.Repeat("alpha beta gamma ", 12),
		"### Nested\nshort",
		"## Second\n" + strings.Repeat("delta epsilon ", 20),
	}, "\n\n")
	cfg := Config{ChunkSize: 40, Overlap: 7}

	first, err := ChunkDocument(tokenizer.Runes{}, doc, "multi.md", "multi", cfg)
	require.NoError(t, err)
	require.Greater(t, len(first), 4)

	for i, c := range first {
		assert.Equal(t, i, c.SequenceIndex)
		assert.LessOrEqual(t, c.TokenCount, cfg.ChunkSize)
		assert.NotEmpty(t, c.Text)

		n, err := tokenizer.Runes{}.Count(c.Text)
		require.NoError(t, err)
		assert.Equal(t, n, c.TokenCount)
	}

	second, err := ChunkDocument(tokenizer.Runes{}, doc, "multi.md", "multi", cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestChunkDocument_SplitProperties checks coverage, budget and overlap on
// random single-section documents.
func TestChunkDocument_SplitProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyz .,\nÄöü日本")

	for iter := 0; iter < 200; iter++ {
		size := 1 + rng.Intn(60)
		overlap := rng.Intn(size)
		cfg := Config{ChunkSize: size, Overlap: overlap}

		bodyLen := rng.Intn(400)
		body := make([]rune, bodyLen)
		for i := range body {
			body[i] = alphabet[rng.Intn(len(alphabet))]
		}
		section := strings.TrimSpace("## S\n" + string(body))
		want := runesOf(t, section)

		chunks, err := ChunkDocument(tokenizer.Runes{}, section, "p.md", "p", cfg)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		if len(want) <= size {
			require.Len(t, chunks, 1)
			assert.Equal(t, section, chunks[0].Text)
			continue
		}

		var rebuilt []int
		for i, c := range chunks {
			tokens := runesOf(t, c.Text)
			assert.Equal(t, len(tokens), c.TokenCount)

			if i < len(chunks)-1 {
				assert.Equal(t, size, c.TokenCount, "non-final chunk must fill the budget")
			} else {
				assert.LessOrEqual(t, c.TokenCount, size)
			}

			if i == 0 {
				rebuilt = append(rebuilt, tokens...)
				continue
			}
			prev := runesOf(t, chunks[i-1].Text)
			assert.Equal(t, prev[len(prev)-overlap:], tokens[:overlap], "consecutive chunks share the overlap")
			rebuilt = append(rebuilt, tokens[overlap:]...)
		}
		assert.Equal(t, want, rebuilt, "new spans reconstruct the section (size=%d overlap=%d)", size, overlap)
	}
}

func TestChunkDocument_TikToken(t *testing.T) {
	tok, err := tokenizer.NewTikToken(tokenizer.DefaultEncoding)
	require.NoError(t, err)

	doc := "# Title\n\n## Intro\nHello world.\n\n## Usage\nStep one. Step two."
	chunks, err := ChunkDocument(tok, doc, "03-ros2.md", "03-ros2", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for _, c := range chunks {
		n, err := tok.Count(c.Text)
		require.NoError(t, err)
		assert.Equal(t, n, c.TokenCount)
	}

	t.Run("long section windows", func(t *testing.T) {
		long := "## Long\n" + strings.Repeat("The robot arm moves to the target pose. ", 200)
		tokens, err := tok.Encode(strings.TrimSpace(long))
		require.NoError(t, err)

		chunks, err := ChunkDocument(tok, long, "long.md", "long", Config{ChunkSize: 100, Overlap: 10})
		require.NoError(t, err)

		windows := Windows(len(tokens), 100, 10)
		require.Len(t, chunks, len(windows))
		for i, w := range windows {
			assert.Equal(t, w.Len(), chunks[i].TokenCount)
			assert.Equal(t, "Long", chunks[i].Section)
		}
	})

	t.Run("multibyte text stays valid utf8", func(t *testing.T) {
		doc := "## 機械学習\n" + strings.Repeat("ロボット工学と人工知能の統合。🤖🦾 ", 200)
		cfg := Config{ChunkSize: 97, Overlap: 13}

		chunks, err := ChunkDocument(tok, doc, "jp.md", "jp", cfg)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		for i, c := range chunks {
			assert.True(t, utf8.ValidString(c.Text), "chunk %d", i)
			assert.Equal(t, "機械学習", c.Section)
			if i < len(chunks)-1 {
				assert.Equal(t, cfg.ChunkSize, c.TokenCount)
			}
		}
	})
}

func TestChunker(t *testing.T) {
	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := New(tokenizer.Runes{}, Config{ChunkSize: 5, Overlap: 5})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects nil tokenizer", func(t *testing.T) {
		_, err := New(nil, DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		c, err := New(tokenizer.Runes{}, Config{ChunkSize: 16, Overlap: 4})
		require.NoError(t, err)
		assert.Equal(t, 16, c.Config().ChunkSize)
		assert.Equal(t, tokenizer.RunesName, c.Tokenizer().Name())

		doc := "## A\n" + strings.Repeat("lorem ipsum ", 30)
		want, err := c.Chunk(doc, "a.md", "a")
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([][]Chunk, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = c.Chunk(doc, "a.md", "a")
			}(i)
		}
		wg.Wait()

		for _, got := range results {
			assert.Equal(t, want, got)
		}
	})
}
