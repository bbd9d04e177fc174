package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeTEI(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(in))
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewTEIProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TEIConfig
		wantDim int
		wantErr bool
	}{
		{"known model", TEIConfig{BaseURL: "http://localhost:8080/v1", Model: "BAAI/bge-small-en-v1.5"}, 384, false},
		{"explicit dimension", TEIConfig{BaseURL: "http://localhost:8080/v1", Model: "custom", Dimension: 1024}, 1024, false},
		{"missing base URL", TEIConfig{Model: "BAAI/bge-small-en-v1.5"}, 0, true},
		{"missing model", TEIConfig{BaseURL: "http://localhost:8080/v1"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewTEIProvider(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, p.Dimension())
			assert.NoError(t, p.Close())
		})
	}
}

func TestTEIProvider_Embed(t *testing.T) {
	srv := newFakeTEI(t, 384)
	p, err := NewTEIProvider(TEIConfig{
		BaseURL:      srv.URL + "/v1",
		Model:        "BAAI/bge-small-en-v1.5",
		MaxBatchSize: 2,
	})
	require.NoError(t, err)

	texts := []string{"one", "three", "seven"}
	vecs, err := p.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, 384)
		assert.Equal(t, float32(len(texts[i])), v[0])
	}

	vec, err := p.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, vec, 384)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ServerDown(t *testing.T) {
	srv := newFakeTEI(t, 4)
	url := srv.URL
	srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: url, Model: "BAAI/bge-small-en-v1.5"})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "query")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
