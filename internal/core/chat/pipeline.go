// Package chat implements the conversational retrieval pipeline: condense
// the follow-up question into a standalone one, retrieve matching sections
// of one document, and stream a grounded answer.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/docsage/docsage/internal/core"
)

// HistoryTurn is one completed user/assistant exchange from earlier in the
// conversation. The caller resends the full history each request; nothing
// is persisted here.
type HistoryTurn struct {
	Human     string
	Assistant string
}

// Request is the input of one pipeline run.
type Request struct {
	DocumentID int64
	Question   string
	History    []HistoryTurn
}

// Pipeline composes the three stages for one chat turn. Each request is
// independent; concurrent requests share only the read-only section store.
type Pipeline struct {
	db       core.DbClient
	embedder core.Embedder
	model    core.ChatModel
	topK     int
}

func NewPipeline(db core.DbClient, embedder core.Embedder, model core.ChatModel, topK int) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{db: db, embedder: embedder, model: model, topK: topK}
}

// Answer runs condense -> retrieve -> generate strictly in order (each
// stage's output is a hard input to the next) and streams the answer
// through emit token-by-token. Cancelling ctx cancels the model call.
func (p *Pipeline) Answer(ctx context.Context, req Request, emit func(token string) error) error {
	standalone, err := p.Condense(ctx, req.Question, req.History)
	if err != nil {
		return fmt.Errorf("condense question: %w", err)
	}

	contextText, err := p.Retrieve(ctx, standalone, req.DocumentID)
	if err != nil {
		return fmt.Errorf("retrieve context: %w", err)
	}

	return p.model.Stream(ctx, renderAnswerPrompt(contextText, standalone), emit)
}

// Condense rewrites the question plus prior turns into a standalone,
// context-free question. It runs even with empty history, in which case the
// prompt renders an empty history block and the model is expected to return
// the question essentially unchanged.
func (p *Pipeline) Condense(ctx context.Context, question string, history []HistoryTurn) (string, error) {
	out, err := p.model.Complete(ctx, renderCondensePrompt(history, question))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}

// Retrieve embeds the standalone question, runs the similarity search
// scoped to documentID, and joins the returned section contents. An empty
// result set yields an empty context string, not an error.
func (p *Pipeline) Retrieve(ctx context.Context, question string, documentID int64) (string, error) {
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	sections, err := p.db.SimilaritySearch(ctx, vec, documentID, p.topK)
	if err != nil {
		return "", fmt.Errorf("similarity search: %w", err)
	}

	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.Content
	}
	return strings.Join(parts, "\n\n"), nil
}
