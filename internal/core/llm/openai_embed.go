package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/docsage/docsage/internal/core"
)

// embedBatchLimit bounds the number of inputs per embeddings request to
// amortize call overhead without tripping request-size limits.
const embedBatchLimit = 100

type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ core.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &OpenAIEmbedder{client: &client, model: openai.EmbeddingModel(model)}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts, splitting into embedBatchLimit-sized requests.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchLimit {
		end := start + embedBatchLimit
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts[start:end],
			},
			Model: e.model,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embed: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), end-start)
		}

		for _, data := range resp.Data {
			vec := make([]float32, len(data.Embedding))
			for i, v := range data.Embedding {
				vec[i] = float32(v)
			}
			out = append(out, vec)
		}
	}
	return out, nil
}
