// Package chunker splits markdown documents into token-bounded chunks for
// embedding and citation.
//
// A document is first segmented at H2/H3 headers. Each section that fits
// the token budget becomes one chunk verbatim; larger sections are cut into
// fixed-size token windows that overlap by a configured number of tokens.
// Every chunk carries its section label, so a hit on any sub-chunk cites the
// same section.
//
// Chunking is a pure function of its inputs: no I/O, no shared state. The
// same input and parameters always produce identical chunks.
package chunker

import (
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/tokenizer"
)

// Chunk is one embeddable span of a document.
type Chunk struct {
	// Text is the literal chunk content.
	Text string `json:"text"`
	// SourceID identifies the originating document, usually its file name.
	SourceID string `json:"source_id"`
	// URL is the citation path of the document.
	URL string `json:"url"`
	// Section is the nearest preceding H2/H3 header, or UntitledSection.
	Section string `json:"section"`
	// SequenceIndex is the zero-based position within the document output.
	SequenceIndex int `json:"sequence_index"`
	// TokenCount is the number of tokens in the chunk.
	TokenCount int `json:"token_count"`
	// Title is the document's H1 title when the document opens with one.
	Title string `json:"title,omitempty"`
}

// ChunkDocument splits text into ordered chunks.
//
// Sections that encode to at most cfg.ChunkSize tokens are emitted as a
// single chunk. Larger sections are split with Windows; every non-final
// window holds exactly cfg.ChunkSize tokens. SequenceIndex runs across the
// whole document.
//
// A preamble consisting of a single H1 line is recorded as the chunks' Title
// instead of forming its own section, provided another section follows. A
// document that is only a title yields one untitled chunk.
//
// An empty document yields no chunks. Invalid configuration is reported
// before any text is processed; tokenizer failures are returned wrapped.
func ChunkDocument(tok tokenizer.Tokenizer, text, sourceID, url string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrInvalidConfig)
	}

	sections := SplitSections(text)

	var title string
	if len(sections) > 1 && sections[0].Preamble {
		if t, ok := documentTitle(sections[0].Text); ok {
			title = t
			sections = sections[1:]
		}
	}

	chunks := make([]Chunk, 0, len(sections))
	emit := func(body string, section Section, tokens int) {
		chunks = append(chunks, Chunk{
			Text:          body,
			SourceID:      sourceID,
			URL:           url,
			Section:       section.Title,
			SequenceIndex: len(chunks),
			TokenCount:    tokens,
			Title:         title,
		})
	}

	for _, section := range sections {
		tokens, err := tok.Encode(section.Text)
		if err != nil {
			return nil, fmt.Errorf("encoding section %q of %s: %w", section.Title, sourceID, err)
		}

		if len(tokens) <= cfg.ChunkSize {
			emit(section.Text, section, len(tokens))
			continue
		}

		for _, w := range Windows(len(tokens), cfg.ChunkSize, cfg.Overlap) {
			body, err := tok.Decode(tokens[w.Start:w.End])
			if err != nil {
				return nil, fmt.Errorf("decoding tokens %d:%d of section %q of %s: %w",
					w.Start, w.End, section.Title, sourceID, err)
			}
			emit(body, section, w.Len())
		}
	}

	return chunks, nil
}

// Chunker binds a tokenizer and budget for repeated use. It holds no
// mutable state and is safe for concurrent use.
type Chunker struct {
	tok tokenizer.Tokenizer
	cfg Config
}

// New validates cfg and returns a Chunker.
func New(tok tokenizer.Tokenizer, cfg Config) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{tok: tok, cfg: cfg}, nil
}

// Chunk splits one document. See ChunkDocument.
func (c *Chunker) Chunk(text, sourceID, url string) ([]Chunk, error) {
	return ChunkDocument(c.tok, text, sourceID, url, c.cfg)
}

// Config returns the chunking budget.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Tokenizer returns the tokenizer used to enforce and report budgets.
func (c *Chunker) Tokenizer() tokenizer.Tokenizer {
	return c.tok
}
