package vectorstore

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/google/uuid"
)

// Payload field names.
const (
	FieldText       = "text"
	FieldPage       = "page"
	FieldSection    = "section"
	FieldURL        = "url"
	FieldChunkIndex = "chunk_index"
	FieldTokenCount = "token_count"
	FieldTitle      = "title"
)

// Payload is the citation data stored with every vector.
type Payload struct {
	Text       string `json:"text"`
	Page       string `json:"page"`
	Section    string `json:"section"`
	URL        string `json:"url"`
	ChunkIndex int    `json:"chunk_index"`
	TokenCount int    `json:"token_count"`
	Title      string `json:"title,omitempty"`
}

// PointID derives a stable UUIDv5 from a page and chunk index so re-runs
// overwrite rather than duplicate points.
func PointID(page string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(page+"#"+strconv.Itoa(chunkIndex))).String()
}

// NewRecord builds the record for an embedded chunk.
func NewRecord(c chunker.Chunk, vector []float32) Record {
	return Record{
		ID:     PointID(c.SourceID, c.SequenceIndex),
		Vector: vector,
		Payload: Payload{
			Text:       c.Text,
			Page:       c.SourceID,
			Section:    c.Section,
			URL:        c.URL,
			ChunkIndex: c.SequenceIndex,
			TokenCount: c.TokenCount,
			Title:      c.Title,
		},
	}
}

// Map returns the payload as stored. Title is omitted when empty.
func (p Payload) Map() map[string]interface{} {
	m := map[string]interface{}{
		FieldText:       p.Text,
		FieldPage:       p.Page,
		FieldSection:    p.Section,
		FieldURL:        p.URL,
		FieldChunkIndex: p.ChunkIndex,
		FieldTokenCount: p.TokenCount,
	}
	if p.Title != "" {
		m[FieldTitle] = p.Title
	}
	return m
}

// PayloadFromMap reads a stored payload. Numbers may arrive as any integer
// or float type, or as decimal strings from string-only backends.
func PayloadFromMap(m map[string]interface{}) Payload {
	return Payload{
		Text:       stringField(m, FieldText),
		Page:       stringField(m, FieldPage),
		Section:    stringField(m, FieldSection),
		URL:        stringField(m, FieldURL),
		ChunkIndex: intField(m, FieldChunkIndex),
		TokenCount: intField(m, FieldTokenCount),
		Title:      stringField(m, FieldTitle),
	}
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// stringMap flattens a payload or filter for backends that only store
// strings.
func stringMap(m map[string]interface{}) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// sortHits orders metadata hits by page then chunk index.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Payload.Page != hits[j].Payload.Page {
			return hits[i].Payload.Page < hits[j].Payload.Page
		}
		return hits[i].Payload.ChunkIndex < hits[j].Payload.ChunkIndex
	})
}

func errorsf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
