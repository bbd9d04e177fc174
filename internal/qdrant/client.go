// Package qdrant wraps the official Qdrant gRPC client with retries,
// payload conversion and the small set of operations docrag needs.
package qdrant

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned when the named collection is missing.
var ErrCollectionNotFound = errors.New("collection not found")

// Client is the subset of Qdrant used by the vector store.
type Client interface {
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)
	CreateKeywordIndex(ctx context.Context, collection, field string) error

	Upsert(ctx context.Context, collection string, points []*Point) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64, filter *Filter) ([]*ScoredPoint, error)
	Scroll(ctx context.Context, collection string, filter *Filter, limit uint32) ([]*Point, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteByFilter(ctx context.Context, collection string, filter *Filter) error

	Health(ctx context.Context) error
	Close() error
}

// Point is a vector with its payload. ID must be a UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float32
}

// CollectionInfo describes a collection's vector configuration and size.
type CollectionInfo struct {
	Name       string
	VectorSize uint64
	Distance   string
	PointCount uint64
	Status     string
}

// Filter selects points whose payload matches every Must condition and no
// MustNot condition.
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

// Condition is an exact payload match. Match may be a string, an integer
// or a bool.
type Condition struct {
	Field string
	Match interface{}
}

// MatchAll builds a filter requiring every key in fields to equal its value.
func MatchAll(fields map[string]interface{}) *Filter {
	if len(fields) == 0 {
		return nil
	}
	f := &Filter{Must: make([]Condition, 0, len(fields))}
	for k, v := range fields {
		f.Must = append(f.Must, Condition{Field: k, Match: v})
	}
	return f
}
