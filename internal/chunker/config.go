package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates chunking parameters that cannot produce a
// terminating, overlapping split.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

const (
	// DefaultChunkSize is the token budget per chunk.
	DefaultChunkSize = 800
	// DefaultOverlap is the number of tokens shared by consecutive sub-chunks.
	DefaultOverlap = 100
)

// Config holds the token budget for chunking.
type Config struct {
	// ChunkSize is the maximum number of tokens per chunk.
	ChunkSize int `koanf:"chunk_size" json:"chunk_size"`
	// Overlap is the number of tokens repeated at the head of each
	// sub-chunk after the first. Must be smaller than ChunkSize.
	Overlap int `koanf:"overlap" json:"overlap"`
}

// DefaultConfig returns an 800 token budget with 100 tokens of overlap.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
	}
}

// Validate reports ErrInvalidConfig for a non-positive chunk size, a
// negative overlap, or an overlap that would stop the window advancing.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be >= 0, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap (%d) must be < chunk_size (%d)", ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	return nil
}
