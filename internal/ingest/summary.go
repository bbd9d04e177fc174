package ingest

import "time"

// CostPerToken is the text-embedding-3-small price in USD.
const CostPerToken = 0.00002

// Summary reports the outcome of an ingest run.
type Summary struct {
	RunID string `json:"run_id"`

	// Pages is the number of documents that produced at least one chunk.
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`

	// Tokens counts the tokens of successfully embedded chunks; Points the
	// points written by this run.
	Tokens int `json:"tokens"`
	Points int `json:"points"`

	// CollectionPoints is the collection size after the run, or -1 when it
	// could not be read.
	CollectionPoints int `json:"collection_points"`

	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Skipped       int           `json:"skipped"`
	BatchSize     int           `json:"batch_size"`
	EstimatedCost float64       `json:"estimated_cost"`
	Duration      time.Duration `json:"duration"`
}

// EstimateCost returns the embedding price of tokens.
func EstimateCost(tokens int) float64 {
	return float64(tokens) * CostPerToken
}

// Failed reports whether any batch failed.
func (s *Summary) Failed() bool {
	return s.FailedBatches > 0
}
