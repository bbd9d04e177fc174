package vectorstore

import (
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID(t *testing.T) {
	tests := []struct {
		page  string
		index int
		want  string
	}{
		{"intro.md", 0, "d68ccf28-3ce0-5e28-933d-a54250f4c419"},
		{"intro.md", 1, "8ab29ca6-4a4b-5e14-bc5d-065bd37100f7"},
		{"module-1/nodes.md", 3, "38983853-f362-5886-9f0d-dbeb981f4c37"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, PointID(tt.page, tt.index))
			assert.Equal(t, PointID(tt.page, tt.index), PointID(tt.page, tt.index))
		})
	}
}

func TestNewRecord(t *testing.T) {
	c := chunker.Chunk{
		Text:          "## Topics\nNodes and topics.",
		SourceID:      "intro.md",
		URL:           "intro",
		Section:       "Topics",
		SequenceIndex: 1,
		TokenCount:    7,
		Title:         "Introduction",
	}
	r := NewRecord(c, []float32{1, 0})

	assert.Equal(t, PointID("intro.md", 1), r.ID)
	assert.Equal(t, Payload{
		Text:       c.Text,
		Page:       "intro.md",
		Section:    "Topics",
		URL:        "intro",
		ChunkIndex: 1,
		TokenCount: 7,
		Title:      "Introduction",
	}, r.Payload)
}

func TestPayloadMap(t *testing.T) {
	p := Payload{Text: "t", Page: "p.md", Section: "S", URL: "p", ChunkIndex: 2, TokenCount: 9}
	m := p.Map()

	assert.Equal(t, map[string]interface{}{
		"text":        "t",
		"page":        "p.md",
		"section":     "S",
		"url":         "p",
		"chunk_index": 2,
		"token_count": 9,
	}, m, "empty title is omitted")

	p.Title = "Guide"
	assert.Equal(t, "Guide", p.Map()["title"])
}

func TestPayloadFromMap(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]interface{}
	}{
		{"native ints", map[string]interface{}{"page": "a.md", "chunk_index": 4, "token_count": 120}},
		{"int64 from qdrant", map[string]interface{}{"page": "a.md", "chunk_index": int64(4), "token_count": int64(120)}},
		{"float64 from json", map[string]interface{}{"page": "a.md", "chunk_index": 4.0, "token_count": 120.0}},
		{"strings from chromem", map[string]interface{}{"page": "a.md", "chunk_index": "4", "token_count": "120"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PayloadFromMap(tt.in)
			assert.Equal(t, "a.md", p.Page)
			assert.Equal(t, 4, p.ChunkIndex)
			assert.Equal(t, 120, p.TokenCount)
			assert.Empty(t, p.Title)
		})
	}
}

func TestValidateRecords(t *testing.T) {
	ok := Record{ID: "a", Vector: []float32{1, 2}}
	require.NoError(t, validateRecords([]Record{ok}, 2))
	require.NoError(t, validateRecords([]Record{ok}, 0))

	assert.ErrorIs(t, validateRecords([]Record{{Vector: []float32{1}}}, 0), ErrInvalidRecord)
	assert.ErrorIs(t, validateRecords([]Record{{ID: "a"}}, 0), ErrInvalidRecord)
	assert.ErrorIs(t, validateRecords([]Record{ok}, 3), ErrDimensionMismatch)
}

func TestStringMap(t *testing.T) {
	assert.Nil(t, stringMap(nil))
	assert.Equal(t, map[string]string{"a": "x", "b": "3", "c": "true", "d": "7"},
		stringMap(map[string]interface{}{"a": "x", "b": 3, "c": true, "d": int64(7)}))
}
