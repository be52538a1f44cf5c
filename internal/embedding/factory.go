package embedding

import "fmt"

// Backend selects the embedding implementation.
type Backend string

const (
	// BackendMock uses deterministic hash-based embeddings. No external
	// dependencies; intended for tests and development.
	BackendMock Backend = "mock"
	// BackendONNX runs a local sentence-transformer model through ONNX Runtime.
	// Requires CGO_ENABLED=1 and the onnxruntime shared library.
	BackendONNX Backend = "onnx"
	// BackendOpenAI calls the OpenAI embeddings API. Requires OPENAI_API_KEY.
	BackendOpenAI Backend = "openai"
)

// Options carries backend-specific settings for NewEmbedder.
type Options struct {
	ModelPath  string // ONNX model file
	Model      string // OpenAI model name
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

// NewEmbedder creates an embedder for the given backend.
// Supported backends: "mock" (default), "onnx", "openai".
func NewEmbedder(backend string, opts Options) (Embedder, error) {
	switch Backend(backend) {
	case BackendMock, "":
		return NewMockEmbedder(opts.Dimensions), nil
	case BackendONNX:
		return NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
	case BackendOpenAI:
		return NewOpenAIEmbedder(opts.Model, opts.Dimensions, opts.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: mock, onnx, openai)", backend)
	}
}
