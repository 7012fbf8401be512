package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
)

/*
Responsibilities

- Turn a batch of chunk texts into fixed-width vectors for the search
  index, via github.com/sashabaranov/go-openai's embeddings endpoint
- Never assume a vector count or dimension at compile time: both come
  from the configured model, per SPEC_FULL's "dimension is a property of
  the chosen model, never a compile-time constant"

Client is the port internal/indexer depends on, so the real OpenAI-backed
implementation and a deterministic fake (internal/embedding/fakeclient.go)
are interchangeable in tests.
*/

// Client embeds a batch of texts into equal-length float32 vectors, one
// per input text, in the same order.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, failure.ClassifiedError)
	Dimension() int
}

// OpenAIClient is the production Client, backed by go-openai.
type OpenAIClient struct {
	inner     *openai.Client
	model     openai.EmbeddingModel
	dimension int
	batchSize int
}

// NewOpenAIClient builds a Client against the public OpenAI API.
func NewOpenAIClient(apiKey string, model string, dimension int, batchSize int) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), model, dimension, batchSize)
}

// NewOpenAIClientWithConfig builds a Client over a caller-supplied
// openai.ClientConfig, so tests and self-hosted-compatible endpoints can
// point it at something other than api.openai.com.
func NewOpenAIClientWithConfig(cfg openai.ClientConfig, model string, dimension int, batchSize int) *OpenAIClient {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &OpenAIClient{
		inner:     openai.NewClientWithConfig(cfg),
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
		batchSize: batchSize,
	}
}

func (c *OpenAIClient) Dimension() int {
	return c.dimension
}

// Embed batches texts per the configured batchSize (CreateEmbeddings has
// its own per-request input limit) and concatenates the results in
// input order. Any batch whose response doesn't carry exactly one vector
// per input text is a permanent failure - see Open Question #3.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, failure.ClassifiedError) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := c.inner.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: c.model,
		})
		if err != nil {
			return nil, &EmbeddingError{
				Message:   err.Error(),
				Retryable: true,
				Cause:     ErrCauseRequestFailure,
			}
		}

		if len(resp.Data) != len(batch) {
			return nil, &EmbeddingError{
				Message:   fmt.Sprintf("requested %d embeddings, got %d", len(batch), len(resp.Data)),
				Retryable: false,
				Cause:     ErrCauseVectorMismatch,
			}
		}

		for _, d := range resp.Data {
			if c.dimension > 0 && len(d.Embedding) != c.dimension {
				return nil, &EmbeddingError{
					Message:   fmt.Sprintf("expected dimension %d, got %d", c.dimension, len(d.Embedding)),
					Retryable: false,
					Cause:     ErrCauseDimensionDrift,
				}
			}
			out = append(out, d.Embedding)
		}
	}

	return out, nil
}
