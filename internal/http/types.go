package http

import "github.com/fyrsmithlabs/docrag/internal/chunker"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ChunkRequest is the request body for POST /api/v1/chunk.
//
// ChunkSize and Overlap override the server's chunking budget for this
// request only; zero ChunkSize and nil Overlap keep it.
type ChunkRequest struct {
	Content   string `json:"content"`
	SourceID  string `json:"source_id,omitempty"`
	URL       string `json:"url,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
	Overlap   *int   `json:"overlap,omitempty"`
}

// ChunkResponse is the response body for POST /api/v1/chunk.
type ChunkResponse struct {
	Chunks      []chunker.Chunk `json:"chunks"`
	Count       int             `json:"count"`
	TotalTokens int             `json:"total_tokens"`
	ChunkSize   int             `json:"chunk_size"`
	Overlap     int             `json:"overlap"`
	Tokenizer   string          `json:"tokenizer"`
}
