package llm

import (
	"context"
	"fmt"

	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/core"
)

// NewEmbedder builds the embedding client selected by AI_PROVIDER.
func NewEmbedder(ctx context.Context, cfg *config.Config) (core.Embedder, error) {
	switch cfg.AIProvider {
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}

// NewChatModel builds the chat-completion client selected by AI_PROVIDER.
func NewChatModel(ctx context.Context, cfg *config.Config) (core.ChatModel, error) {
	switch cfg.AIProvider {
	case "openai":
		return NewOpenAIChat(cfg.OpenAIAPIKey, cfg.GenModel), nil
	case "gemini":
		return NewGeminiChat(ctx, cfg.GeminiAPIKey, cfg.GenModel)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
