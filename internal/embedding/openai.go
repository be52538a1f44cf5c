package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/takebo/hondana/pkg/utils"
)

// openaiBatchSize caps the number of inputs per CreateEmbeddings call.
const openaiBatchSize = 64

// OpenAIEmbedder generates embeddings through the OpenAI API.
// Vectors are L2-normalized so inner product equals cosine similarity.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      *Cache
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
// The API key is read from OPENAI_API_KEY.
func NewOpenAIEmbedder(model string, dimensions, cacheSize int) (*OpenAIEmbedder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(key),
		model:      model,
		dimensions: dimensions,
		cache:      NewCache(cacheSize),
	}, nil
}

// Embed returns the embedding for text. Empty or whitespace-only text
// yields the zero vector without an API call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dimensions), nil
	}
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	vecs, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vecs[0])
	return vecs[0], nil
}

// EmbedBatch embeds texts in API-sized batches, preserving alignment with
// the input slice. Empty texts get zero vectors and are excluded from the
// API requests.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	// Collect texts that actually need an API call.
	var pending []string
	var pendingIdx []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			embeddings[i] = make([]float32, e.dimensions)
			continue
		}
		if cached, ok := e.cache.Get(text); ok {
			embeddings[i] = cached
			continue
		}
		pending = append(pending, text)
		pendingIdx = append(pendingIdx, i)
	}

	for start := 0; start < len(pending); start += openaiBatchSize {
		end := start + openaiBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		vecs, err := e.request(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			idx := pendingIdx[start+j]
			embeddings[idx] = vec
			e.cache.Set(texts[idx], vec)
		}
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("OpenAI API returned %d embeddings for %d inputs", len(resp.Data), len(inputs))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		if len(vec) != e.dimensions {
			return nil, fmt.Errorf("OpenAI returned dimension %d, expected %d", len(vec), e.dimensions)
		}
		utils.NormalizeL2(vec)
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases nothing; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
