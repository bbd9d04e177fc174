package embeddings

import "strings"

// DefaultOpenAIModel is the model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,

	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-large-en-v1.5":                 1024,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// DimensionForModel returns the vector size a model produces. Unknown
// models fall back on name patterns; ok is false when the result is a guess.
func DimensionForModel(model string) (dim int, ok bool) {
	if d, found := knownDimensions[model]; found {
		return d, true
	}
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "text-embedding-"):
		return 1536, false
	case strings.Contains(lower, "large"):
		return 1024, false
	case strings.Contains(lower, "base"):
		return 768, false
	default:
		return 384, false
	}
}
