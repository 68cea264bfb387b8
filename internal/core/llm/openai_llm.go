package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/docsage/docsage/internal/core"
)

type OpenAIChat struct {
	client *openai.Client
	model  string
}

var _ core.ChatModel = (*OpenAIChat)(nil)

func NewOpenAIChat(apiKey, model string) *OpenAIChat {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIChat{client: &client, model: model}
}

func (c *OpenAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("openai complete: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai complete: empty response")
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream forwards completion deltas token-by-token. Cancelling ctx aborts
// the underlying request, so a disconnected caller stops the model call.
func (c *OpenAIChat) Stream(ctx context.Context, prompt string, emit func(token string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if token := chunk.Choices[0].Delta.Content; token != "" {
			if err := emit(token); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}
