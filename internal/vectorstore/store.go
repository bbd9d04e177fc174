// Package vectorstore persists chunk vectors and their citation payloads.
//
// Two backends implement Store: QdrantStore over the Qdrant gRPC API, and
// ChromemStore over an embedded chromem-go database that can run fully in
// memory or persist to disk. Both key points by PointID so re-ingesting a
// document overwrites its previous points.
package vectorstore

import (
	"context"
	"errors"
)

const (
	// DefaultCollection is the collection used when none is configured.
	DefaultCollection = "book_content"

	// DefaultSearchLimit applies when Search is called with limit <= 0.
	DefaultSearchLimit = 5

	// DefaultMetadataLimit applies when SearchByMetadata is called with
	// limit <= 0.
	DefaultMetadataLimit = 10
)

var (
	// ErrCollectionNotFound is returned when the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when a vector or an existing
	// collection does not match the expected dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidRecord is returned for records without an id or vector.
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is a point to store.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a stored point returned by a search. Score is the cosine
// similarity for vector searches and zero for metadata lookups.
type Hit struct {
	ID      string
	Payload Payload
	Score   float32
}

// CollectionInfo describes the backing collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	VectorSize int    `json:"vector_size"`
	Distance   string `json:"distance"`
	PointCount int    `json:"point_count"`
}

// Store is the vector storage used by ingestion and retrieval.
type Store interface {
	// EnsureCollection creates the collection when missing. An existing
	// collection with a different vector size yields ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, dim int) error

	// DropCollection deletes the collection and every point in it.
	DropCollection(ctx context.Context) error

	// Upsert writes records, replacing points with the same id.
	Upsert(ctx context.Context, records []Record) error

	// Update upserts a single point whose payload text is text.
	Update(ctx context.Context, id, text string, vector []float32, payload Payload) error

	// Search returns up to limit points nearest to vector, best first.
	Search(ctx context.Context, vector []float32, limit int) ([]Hit, error)

	// SearchByMetadata returns up to limit points whose payload matches
	// every filter exactly.
	SearchByMetadata(ctx context.Context, filters map[string]interface{}, limit int) ([]Hit, error)

	// Delete removes points by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error

	// DeleteBySource removes every point whose page equals page.
	DeleteBySource(ctx context.Context, page string) error

	Info(ctx context.Context) (*CollectionInfo, error)
	Close() error
}

func searchLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

func validateRecords(records []Record, dim int) error {
	for i, r := range records {
		if r.ID == "" {
			return errorsf(ErrInvalidRecord, "record %d has no id", i)
		}
		if len(r.Vector) == 0 {
			return errorsf(ErrInvalidRecord, "record %d has no vector", i)
		}
		if dim > 0 && len(r.Vector) != dim {
			return errorsf(ErrDimensionMismatch, "record %d has %d dimensions, want %d", i, len(r.Vector), dim)
		}
	}
	return nil
}
