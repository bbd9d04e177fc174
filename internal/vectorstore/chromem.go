package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const backendChromem = "chromem"

// errPrecomputed is returned if chromem ever asks us to embed text; every
// document and query carries its vector.
var errPrecomputed = errors.New("chromem: embeddings must be precomputed")

// ChromemConfig configures a ChromemStore.
type ChromemConfig struct {
	// Path persists the database as gob files. Empty keeps it in memory.
	Path       string
	Compress   bool
	Collection string
}

// ChromemStore implements Store on an embedded chromem-go database.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection string
	dim        int
	logger     *logging.Logger
}

// NewChromemStore opens (or creates) the database at cfg.Path.
func NewChromemStore(cfg ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
		cfg.Path = path
	}

	logger.Info(context.Background(), "chromem store opened",
		zap.String("path", cfg.Path),
		zap.Bool("persistent", cfg.Path != ""),
		zap.String("collection", cfg.Collection),
	)
	return &ChromemStore{db: db, collection: cfg.Collection, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errPrecomputed
}

// getCollection must always pass an embedding func: chromem substitutes its
// OpenAI default for nil on persisted collections.
func (s *ChromemStore) getCollection() *chromem.Collection {
	return s.db.GetCollection(s.collection, noEmbedding)
}

// EnsureCollection creates the collection, or probes an existing non-empty
// one with a vector of size dim to detect a dimension change.
func (s *ChromemStore) EnsureCollection(ctx context.Context, dim int) (err error) {
	ctx, done := observe(ctx, backendChromem, "ensure_collection",
		attribute.String("collection", s.collection),
		attribute.Int("dimension", dim),
	)
	defer func() { done(err) }()

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.db.GetOrCreateCollection(s.collection,
		map[string]string{"dimension": strconv.Itoa(dim)}, noEmbedding)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	if col.Count() > 0 {
		if _, err := col.QueryEmbedding(ctx, probeVector(dim), 1, nil, nil); err != nil {
			return errorsf(ErrDimensionMismatch, "collection %s rejects %d-dimension vectors: %v", s.collection, dim, err)
		}
	}
	s.dim = dim
	return nil
}

func (s *ChromemStore) DropCollection(ctx context.Context) (err error) {
	_, done := observe(ctx, backendChromem, "drop_collection", attribute.String("collection", s.collection))
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getCollection() == nil {
		return nil
	}
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.collection, err)
	}
	s.dim = 0
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, records []Record) (err error) {
	ctx, done := observe(ctx, backendChromem, "upsert", attribute.Int("points", len(records)))
	defer func() { done(err) }()

	if len(records) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validateRecords(records, s.dim); err != nil {
		return err
	}
	col := s.getCollection()
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Payload.Text,
			Metadata:  stringMap(r.Payload.Map()),
			Embedding: r.Vector,
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	PointsUpserted.WithLabelValues(backendChromem).Add(float64(len(records)))
	return nil
}

func (s *ChromemStore) Update(ctx context.Context, id, text string, vector []float32, payload Payload) error {
	payload.Text = text
	return s.Upsert(ctx, []Record{{ID: id, Vector: vector, Payload: payload}})
}

func (s *ChromemStore) Search(ctx context.Context, vector []float32, limit int) (hits []Hit, err error) {
	limit = searchLimit(limit, DefaultSearchLimit)
	ctx, done := observe(ctx, backendChromem, "search", attribute.Int("limit", limit))
	defer func() { done(err) }()

	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidRecord)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim > 0 && len(vector) != s.dim {
		return nil, errorsf(ErrDimensionMismatch, "query has %d dimensions, want %d", len(vector), s.dim)
	}
	return s.query(ctx, vector, limit, nil, true)
}

// SearchByMetadata ranks filtered documents against a fixed probe vector;
// chromem has no unranked listing. Hits are ordered by page and chunk index.
func (s *ChromemStore) SearchByMetadata(ctx context.Context, filters map[string]interface{}, limit int) (hits []Hit, err error) {
	limit = searchLimit(limit, DefaultMetadataLimit)
	ctx, done := observe(ctx, backendChromem, "search_by_metadata", attribute.Int("limit", limit))
	defer func() { done(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim == 0 {
		return nil, fmt.Errorf("%w: collection %s not initialized", ErrCollectionNotFound, s.collection)
	}
	hits, err = s.query(ctx, probeVector(s.dim), limit, stringMap(filters), false)
	if err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

func (s *ChromemStore) query(ctx context.Context, vector []float32, limit int, where map[string]string, scored bool) ([]Hit, error) {
	col := s.getCollection()
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}
	// chromem rejects nResults above the collection size.
	n := min(limit, col.Count())
	if n == 0 {
		return []Hit{}, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		meta := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		hits[i] = Hit{ID: r.ID, Payload: PayloadFromMap(meta)}
		hits[i].Payload.Text = r.Content
		if scored {
			hits[i].Score = r.Similarity
		}
	}
	return hits, nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids ...string) (err error) {
	ctx, done := observe(ctx, backendChromem, "delete", attribute.Int("points", len(ids)))
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.getCollection()
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, page string) (err error) {
	ctx, done := observe(ctx, backendChromem, "delete_by_source", attribute.String("page", page))
	defer func() { done(err) }()

	if strings.TrimSpace(page) == "" {
		return fmt.Errorf("%w: page is required", ErrInvalidRecord)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.getCollection()
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}
	if err := col.Delete(ctx, map[string]string{FieldPage: page}, nil); err != nil {
		return fmt.Errorf("deleting source %s: %w", page, err)
	}
	return nil
}

func (s *ChromemStore) Info(ctx context.Context) (info *CollectionInfo, err error) {
	_, done := observe(ctx, backendChromem, "info", attribute.String("collection", s.collection))
	defer func() { done(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.getCollection()
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}
	CollectionPoints.WithLabelValues(s.collection).Set(float64(col.Count()))
	return &CollectionInfo{
		Name:       s.collection,
		VectorSize: s.dim,
		Distance:   "Cosine",
		PointCount: col.Count(),
	}, nil
}

// Close is a no-op; chromem writes through on every change.
func (s *ChromemStore) Close() error {
	return nil
}

// probeVector is a unit vector along the first axis.
func probeVector(dim int) []float32 {
	v := make([]float32, dim)
	v[0] = 1
	return v
}

var _ Store = (*ChromemStore)(nil)
