package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/core/chat"
	"github.com/docsage/docsage/internal/models"
)

type ChatHandler struct {
	dbclient core.DbClient
	pipeline *chat.Pipeline
}

func NewChatHandler(dbclient core.DbClient, pipeline *chat.Pipeline) *ChatHandler {
	return &ChatHandler{dbclient: dbclient, pipeline: pipeline}
}

type chatRequest struct {
	DocumentID int64                `json:"documentId"`
	Messages   []models.ChatMessage `json:"messages"`
}

// Query runs the conversational retrieval pipeline for one chat turn and
// streams the answer as a plain text body, token by token. The last message
// is the active question; all prior messages form the condenser history.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value("user_id").(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	// Row-level scoping: a caller only ever chats with their own documents.
	doc, err := h.dbclient.GetDocumentWithStoragePath(ctx, req.DocumentID)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc.CreatedBy != userID {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	question := req.Messages[len(req.Messages)-1].Content
	history := pairHistory(req.Messages[:len(req.Messages)-1])

	flusher, _ := w.(http.Flusher)
	started := false
	emit := func(token string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			started = true
		}
		if _, err := io.WriteString(w, token); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err = h.pipeline.Answer(ctx, chat.Request{
		DocumentID: req.DocumentID,
		Question:   question,
		History:    history,
	}, emit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if started {
			// Mid-stream failure: the connection terminates rather than
			// silently truncating without signal.
			log.Printf("chat: stream aborted for document %d: %v", req.DocumentID, err)
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// pairHistory folds the prior messages into (user, assistant) turns in
// chronological order. An unmatched trailing user message is dropped; it
// carries no answer for the condenser to reference.
func pairHistory(messages []models.ChatMessage) []chat.HistoryTurn {
	var turns []chat.HistoryTurn
	var pending *string
	for _, m := range messages {
		switch m.Role {
		case "user":
			content := m.Content
			pending = &content
		case "assistant":
			if pending != nil {
				turns = append(turns, chat.HistoryTurn{Human: *pending, Assistant: m.Content})
				pending = nil
			}
		}
	}
	return turns
}
