package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const backendQdrant = "qdrant"

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	Collection string
	// VectorSize is checked against every upserted vector when > 0.
	VectorSize int
}

// QdrantStore implements Store on a Qdrant collection.
type QdrantStore struct {
	client     qdrant.Client
	collection string
	dim        int
	logger     *logging.Logger
}

// NewQdrantStore wraps client. The store owns client and closes it.
func NewQdrantStore(client qdrant.Client, cfg QdrantConfig, logger *logging.Logger) (*QdrantStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: qdrant client is required", ErrInvalidConfig)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.VectorSize < 0 {
		return nil, fmt.Errorf("%w: vector size must be >= 0", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dim:        cfg.VectorSize,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection with cosine distance and a
// keyword index on page, or verifies the size of an existing one.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dim int) (err error) {
	ctx, done := observe(ctx, backendQdrant, "ensure_collection",
		attribute.String("collection", s.collection),
		attribute.Int("dimension", dim),
	)
	defer func() { done(err) }()

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if exists {
		info, err := s.client.CollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("reading collection %s: %w", s.collection, err)
		}
		if int(info.VectorSize) != dim {
			return errorsf(ErrDimensionMismatch, "collection %s has size %d, embedder produces %d",
				s.collection, info.VectorSize, dim)
		}
		s.dim = dim
		s.logger.Debug(ctx, "collection already exists", zap.String("collection", s.collection))
		return nil
	}

	if err := s.client.CreateCollection(ctx, s.collection, uint64(dim)); err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	if err := s.client.CreateKeywordIndex(ctx, s.collection, FieldPage); err != nil {
		return fmt.Errorf("indexing %s.%s: %w", s.collection, FieldPage, err)
	}
	s.dim = dim
	s.logger.Info(ctx, "created collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", dim),
		zap.String("distance", "cosine"),
	)
	return nil
}

// DropCollection deletes the collection. A missing collection is not an
// error.
func (s *QdrantStore) DropCollection(ctx context.Context) (err error) {
	ctx, done := observe(ctx, backendQdrant, "drop_collection", attribute.String("collection", s.collection))
	defer func() { done(err) }()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.collection, err)
	}
	s.logger.Info(ctx, "deleted collection", zap.String("collection", s.collection))
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, records []Record) (err error) {
	ctx, done := observe(ctx, backendQdrant, "upsert", attribute.Int("points", len(records)))
	defer func() { done(err) }()

	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, s.dim); err != nil {
		return err
	}

	points := make([]*qdrant.Point, len(records))
	for i, r := range records {
		points[i] = &qdrant.Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload.Map()}
	}
	if err := s.client.Upsert(ctx, s.collection, points); err != nil {
		return s.wrap("upserting points", err)
	}
	PointsUpserted.WithLabelValues(backendQdrant).Add(float64(len(records)))
	return nil
}

func (s *QdrantStore) Update(ctx context.Context, id, text string, vector []float32, payload Payload) error {
	payload.Text = text
	return s.Upsert(ctx, []Record{{ID: id, Vector: vector, Payload: payload}})
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) (hits []Hit, err error) {
	limit = searchLimit(limit, DefaultSearchLimit)
	ctx, done := observe(ctx, backendQdrant, "search", attribute.Int("limit", limit))
	defer func() { done(err) }()

	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidRecord)
	}
	if s.dim > 0 && len(vector) != s.dim {
		return nil, errorsf(ErrDimensionMismatch, "query has %d dimensions, want %d", len(vector), s.dim)
	}

	points, err := s.client.Search(ctx, s.collection, vector, uint64(limit), nil)
	if err != nil {
		return nil, s.wrap("searching", err)
	}
	hits = make([]Hit, len(points))
	for i, p := range points {
		hits[i] = Hit{ID: p.ID, Payload: PayloadFromMap(p.Payload), Score: p.Score}
	}
	return hits, nil
}

func (s *QdrantStore) SearchByMetadata(ctx context.Context, filters map[string]interface{}, limit int) (hits []Hit, err error) {
	limit = searchLimit(limit, DefaultMetadataLimit)
	ctx, done := observe(ctx, backendQdrant, "search_by_metadata", attribute.Int("limit", limit))
	defer func() { done(err) }()

	points, err := s.client.Scroll(ctx, s.collection, qdrant.MatchAll(filters), uint32(limit))
	if err != nil {
		return nil, s.wrap("scrolling", err)
	}
	hits = make([]Hit, len(points))
	for i, p := range points {
		hits[i] = Hit{ID: p.ID, Payload: PayloadFromMap(p.Payload)}
	}
	sortHits(hits)
	return hits, nil
}

func (s *QdrantStore) Delete(ctx context.Context, ids ...string) (err error) {
	ctx, done := observe(ctx, backendQdrant, "delete", attribute.Int("points", len(ids)))
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	if err := s.client.Delete(ctx, s.collection, ids); err != nil {
		return s.wrap("deleting points", err)
	}
	return nil
}

func (s *QdrantStore) DeleteBySource(ctx context.Context, page string) (err error) {
	ctx, done := observe(ctx, backendQdrant, "delete_by_source", attribute.String("page", page))
	defer func() { done(err) }()

	if strings.TrimSpace(page) == "" {
		return fmt.Errorf("%w: page is required", ErrInvalidRecord)
	}
	filter := &qdrant.Filter{Must: []qdrant.Condition{{Field: FieldPage, Match: page}}}
	if err := s.client.DeleteByFilter(ctx, s.collection, filter); err != nil {
		return s.wrap("deleting source "+page, err)
	}
	return nil
}

func (s *QdrantStore) Info(ctx context.Context) (info *CollectionInfo, err error) {
	ctx, done := observe(ctx, backendQdrant, "info", attribute.String("collection", s.collection))
	defer func() { done(err) }()

	qi, err := s.client.CollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, s.wrap("reading collection info", err)
	}
	CollectionPoints.WithLabelValues(s.collection).Set(float64(qi.PointCount))
	return &CollectionInfo{
		Name:       s.collection,
		VectorSize: int(qi.VectorSize),
		Distance:   qi.Distance,
		PointCount: int(qi.PointCount),
	}, nil
}

// Close closes the underlying client.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) wrap(op string, err error) error {
	if qdrant.IsNotFound(err) {
		return fmt.Errorf("%s: %w: %s", op, ErrCollectionNotFound, s.collection)
	}
	return fmt.Errorf("%s in %s: %w", op, s.collection, err)
}

var _ Store = (*QdrantStore)(nil)
