// Package retrieval answers a chat question with the most relevant stored
// passages and their citations.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultLimit is the number of passages returned when Query.Limit is 0.
	DefaultLimit = vectorstore.DefaultSearchLimit

	// MaxLimit caps Query.Limit.
	MaxLimit = 20

	// MaxContextWindow caps Query.ContextWindow.
	MaxContextWindow = 3
)

var (
	// ErrInvalidQuery wraps every validation failure of a Query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidConfig indicates a searcher built without its collaborators.
	ErrInvalidConfig = errors.New("invalid retrieval configuration")
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/retrieval")

// Query is a user question, optionally anchored to text the user selected
// on the page.
type Query struct {
	Message      string `json:"message"`
	SelectedText string `json:"selected_text,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	// ContextWindow adds this many neighbouring chunks on each side of a
	// hit to its passage text.
	ContextWindow int `json:"context_window,omitempty"`
	// Rerank fetches extra candidates and reorders them by query term
	// overlap before truncating to Limit.
	Rerank bool `json:"rerank,omitempty"`
	// UserID and SessionID are optional and only tag logs.
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Citation identifies the source of a passage.
type Citation struct {
	Page    string `json:"page"`
	Section string `json:"section"`
	URL     string `json:"url"`
	// RelevanceScore is the similarity clamped to [0, 1].
	RelevanceScore float64 `json:"relevance_score"`
}

// Passage is a retrieved chunk and its citation.
type Passage struct {
	Citation
	Title      string `json:"title,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Result is the outcome of Search.
type Result struct {
	// Query is the text that was embedded.
	Query    string     `json:"query"`
	Sources  []Citation `json:"sources"`
	Passages []Passage  `json:"passages"`
	// Context joins passage texts with blank lines, ready for a prompt.
	Context string `json:"context"`
}

// Searcher embeds questions and searches the vector store.
type Searcher struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	logger   *logging.Logger
}

// NewSearcher creates a Searcher. logger may be nil.
func NewSearcher(embedder embeddings.Embedder, store vectorstore.Store, logger *logging.Logger) (*Searcher, error) {
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("%w: embedder and store are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Searcher{embedder: embedder, store: store, logger: logger}, nil
}

// PromptText validates q and returns the cleaned message and the text to
// embed for it.
func PromptText(q Query) (message, text string, err error) {
	if err := sanitize.ValidateMessage(q.Message); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if err := sanitize.ValidateSelectedText(q.SelectedText); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if q.UserID != "" {
		if err := sanitize.ValidateUserID(q.UserID); err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}
	if q.SessionID != "" {
		if err := sanitize.ValidateSessionID(q.SessionID); err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}
	message = sanitize.CleanMessage(q.Message)
	if message == "" {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidQuery, sanitize.ErrEmptyMessage)
	}
	sel := strings.TrimSpace(q.SelectedText)
	if sel == "" {
		return message, message, nil
	}
	return message, "Context from selected text: " + sel + "\n\nQuestion: " + message, nil
}

// Search returns the passages nearest to q, best first.
func (s *Searcher) Search(ctx context.Context, q Query) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "retrieval.search")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	limit, window, err := bounds(q)
	if err != nil {
		return nil, err
	}
	_, text, err := PromptText(q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("retrieval.limit", limit),
		attribute.Bool("retrieval.selected_text", strings.TrimSpace(q.SelectedText) != ""),
		attribute.Bool("retrieval.rerank", q.Rerank),
	)

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	fetch := limit
	if q.Rerank {
		fetch = limit * rerankCandidates
	}
	hits, err := s.store.Search(ctx, vector, fetch)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	if q.Rerank {
		hits = rerank(text, hits, limit)
	}

	res = &Result{
		Query:    text,
		Sources:  make([]Citation, 0, len(hits)),
		Passages: make([]Passage, 0, len(hits)),
	}
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		c := Citation{
			Page:           h.Payload.Page,
			Section:        h.Payload.Section,
			URL:            h.Payload.URL,
			RelevanceScore: clampScore(h.Score),
		}
		passage := Passage{
			Citation:   c,
			Title:      h.Payload.Title,
			ChunkIndex: h.Payload.ChunkIndex,
			Text:       h.Payload.Text,
		}
		if window > 0 {
			passage.Text = s.expand(ctx, h, window)
		}
		res.Sources = append(res.Sources, c)
		res.Passages = append(res.Passages, passage)
		texts = append(texts, passage.Text)
	}
	res.Context = strings.Join(texts, "\n\n")

	span.SetAttributes(attribute.Int("retrieval.hits", len(hits)))
	s.logger.Debug(ctx, "retrieved passages",
		zap.Int("hits", len(hits)),
		zap.Int("limit", limit),
		zap.Int("context_window", window),
		zap.String("user_id", q.UserID),
		zap.String("session_id", q.SessionID),
	)
	return res, nil
}

// expand joins the texts of hit and its neighbours within window, in chunk
// order. Lookup failures fall back to the hit text alone.
func (s *Searcher) expand(ctx context.Context, hit vectorstore.Hit, window int) string {
	page := hit.Payload.Page
	idx := hit.Payload.ChunkIndex
	parts := map[int]string{idx: hit.Payload.Text}

	for j := max(0, idx-window); j <= idx+window; j++ {
		if j == idx {
			continue
		}
		neighbours, err := s.store.SearchByMetadata(ctx, map[string]interface{}{
			vectorstore.FieldPage:       page,
			vectorstore.FieldChunkIndex: j,
		}, 1)
		if err != nil {
			s.logger.Warn(ctx, "neighbour lookup failed",
				zap.String("page", page),
				zap.Int("chunk_index", j),
				zap.Error(err),
			)
			return hit.Payload.Text
		}
		if len(neighbours) > 0 {
			parts[j] = neighbours[0].Payload.Text
		}
	}

	order := make([]int, 0, len(parts))
	for j := range parts {
		order = append(order, j)
	}
	sort.Ints(order)
	out := make([]string, len(order))
	for i, j := range order {
		out[i] = parts[j]
	}
	return strings.Join(out, "\n")
}

func bounds(q Query) (limit, window int, err error) {
	switch {
	case q.Limit < 0:
		return 0, 0, fmt.Errorf("%w: limit must be >= 0, got %d", ErrInvalidQuery, q.Limit)
	case q.Limit == 0:
		limit = DefaultLimit
	default:
		limit = min(q.Limit, MaxLimit)
	}
	if q.ContextWindow < 0 || q.ContextWindow > MaxContextWindow {
		return 0, 0, fmt.Errorf("%w: context window must be between 0 and %d, got %d",
			ErrInvalidQuery, MaxContextWindow, q.ContextWindow)
	}
	return limit, q.ContextWindow, nil
}

func clampScore(score float32) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return float64(score)
	}
}
