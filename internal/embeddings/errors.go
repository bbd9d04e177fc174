package embeddings

import "errors"

var (
	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidConfig is returned for unusable provider settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed wraps provider failures after retries are exhausted.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch is returned when a vector does not have the
	// configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
