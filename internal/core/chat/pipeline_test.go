package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/models"
)

// fakeModel returns a canned completion and streams a canned answer in
// fixed tokens, recording every prompt it sees.
type fakeModel struct {
	completion string
	tokens     []string

	completePrompts []string
	streamPrompts   []string
	streamErr       error
}

func (m *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.completePrompts = append(m.completePrompts, prompt)
	return m.completion, nil
}

func (m *fakeModel) Stream(ctx context.Context, prompt string, emit func(token string) error) error {
	m.streamPrompts = append(m.streamPrompts, prompt)
	if m.streamErr != nil {
		return m.streamErr
	}
	for _, tok := range m.tokens {
		if err := emit(tok); err != nil {
			return err
		}
	}
	return nil
}

type fakeEmbedder struct {
	texts []string
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.texts = append(e.texts, text)
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, _ := e.Embed(ctx, t)
		out[i] = vec
	}
	return out, nil
}

// fakeSearchDB serves SimilaritySearch from a canned result set; the
// embedded interface panics on anything else the pipeline should not touch.
type fakeSearchDB struct {
	core.DbClient

	results    []models.RetrievedSection
	err        error
	documentID int64
	k          int
}

func (f *fakeSearchDB) SimilaritySearch(ctx context.Context, vec []float32, documentID int64, k int) ([]models.RetrievedSection, error) {
	f.documentID = documentID
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func sectionsOf(contents ...string) []models.RetrievedSection {
	out := make([]models.RetrievedSection, len(contents))
	for i, c := range contents {
		out[i] = models.RetrievedSection{
			DocumentSection: models.DocumentSection{DocumentID: 1, Position: i, Content: c},
			Score:           1 - float64(i)*0.1,
		}
	}
	return out
}

func TestCondenseRendersHistory(t *testing.T) {
	model := &fakeModel{completion: "What is the population of Paris?"}
	p := NewPipeline(&fakeSearchDB{}, &fakeEmbedder{}, model, 5)

	history := []HistoryTurn{
		{Human: "What is the capital of France?", Assistant: "Paris."},
	}
	out, err := p.Condense(context.Background(), "What is its population?", history)
	require.NoError(t, err)
	assert.Equal(t, "What is the population of Paris?", out)

	require.Len(t, model.completePrompts, 1)
	prompt := model.completePrompts[0]
	assert.Contains(t, prompt, "rephrase the follow up question to be a standalone question")
	assert.Contains(t, prompt, "Human: What is the capital of France?\nAssistant: Paris.")
	assert.Contains(t, prompt, "Follow Up Input: What is its population?")
	assert.True(t, strings.HasSuffix(prompt, "Standalone question:"))
}

func TestCondenseEmptyHistory(t *testing.T) {
	model := &fakeModel{completion: "What is a vector index?"}
	p := NewPipeline(&fakeSearchDB{}, &fakeEmbedder{}, model, 5)

	out, err := p.Condense(context.Background(), "What is a vector index?", nil)
	require.NoError(t, err)
	assert.Equal(t, "What is a vector index?", out)

	require.Len(t, model.completePrompts, 1)
	assert.Contains(t, model.completePrompts[0], "Chat History:\n\nFollow Up Input: What is a vector index?")
}

func TestCondenseFallsBackOnBlankCompletion(t *testing.T) {
	model := &fakeModel{completion: "  \n"}
	p := NewPipeline(&fakeSearchDB{}, &fakeEmbedder{}, model, 5)

	out, err := p.Condense(context.Background(), "original question", nil)
	require.NoError(t, err)
	assert.Equal(t, "original question", out)
}

func TestRetrieveScopesToDocument(t *testing.T) {
	db := &fakeSearchDB{results: sectionsOf("First section.", "Second section.")}
	emb := &fakeEmbedder{}
	p := NewPipeline(db, emb, &fakeModel{}, 5)

	text, err := p.Retrieve(context.Background(), "standalone question", 42)
	require.NoError(t, err)

	assert.Equal(t, "First section.\n\nSecond section.", text)
	assert.Equal(t, int64(42), db.documentID)
	assert.Equal(t, 5, db.k)
	assert.Equal(t, []string{"standalone question"}, emb.texts)
}

func TestRetrieveEmptyResult(t *testing.T) {
	p := NewPipeline(&fakeSearchDB{}, &fakeEmbedder{}, &fakeModel{}, 5)

	text, err := p.Retrieve(context.Background(), "anything", 1)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAnswerChainsStages(t *testing.T) {
	db := &fakeSearchDB{results: sectionsOf("Paris has about 2.1 million inhabitants.")}
	emb := &fakeEmbedder{}
	model := &fakeModel{
		completion: "What is the population of Paris?",
		tokens:     []string{"About ", "2.1 ", "million."},
	}
	p := NewPipeline(db, emb, model, 5)

	var got strings.Builder
	req := Request{
		DocumentID: 7,
		Question:   "What is its population?",
		History:    []HistoryTurn{{Human: "What is the capital of France?", Assistant: "Paris."}},
	}
	err := p.Answer(context.Background(), req, func(token string) error {
		got.WriteString(token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "About 2.1 million.", got.String())

	// Retrieval ran on the condensed question, not the raw follow-up.
	assert.Equal(t, []string{"What is the population of Paris?"}, emb.texts)
	assert.Equal(t, int64(7), db.documentID)

	require.Len(t, model.streamPrompts, 1)
	prompt := model.streamPrompts[0]
	assert.Contains(t, prompt, "Answer the question based only on the following context:")
	assert.Contains(t, prompt, "Paris has about 2.1 million inhabitants.")
	assert.Contains(t, prompt, "Question: What is the population of Paris?")
}

func TestAnswerPropagatesSearchError(t *testing.T) {
	db := &fakeSearchDB{err: errors.New("connection reset")}
	p := NewPipeline(db, &fakeEmbedder{}, &fakeModel{completion: "q"}, 5)

	err := p.Answer(context.Background(), Request{DocumentID: 1, Question: "q"}, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve context")
}

func TestAnswerPropagatesEmitError(t *testing.T) {
	model := &fakeModel{completion: "q", tokens: []string{"a", "b"}}
	p := NewPipeline(&fakeSearchDB{}, &fakeEmbedder{}, model, 5)

	wantErr := errors.New("client went away")
	err := p.Answer(context.Background(), Request{DocumentID: 1, Question: "q"}, func(string) error { return wantErr })
	require.ErrorIs(t, err, wantErr)
}
