package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/core/ingest"
	"github.com/docsage/docsage/internal/models"
)

type DocumentHandler struct {
	dbclient  core.DbClient
	objects   core.ObjectClient
	processor *ingest.Processor
}

func NewDocumentHandler(dbclient core.DbClient, objects core.ObjectClient, processor *ingest.Processor) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, objects: objects, processor: processor}
}

// Upload stores the raw file bytes and creates the document row in status
// `initial`; the polling scheduler picks it up from there.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	// Sanitize the filename so the storage key carries no path components.
	key := fmt.Sprintf("%s/%s/%s", userID, uuid.NewString(), filepath.Base(header.Filename))

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := h.objects.Upload(uploadCtx, key, data, contentType); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("upload failed: %v", err))
		return
	}

	doc := &models.Document{
		Name:              header.Filename,
		CreatedBy:         userID,
		StorageObjectPath: key,
		Status:            models.StatusInitial,
	}
	if err := h.dbclient.CreateDocument(uploadCtx, doc); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store document metadata: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	documents, err := h.dbclient.ListDocumentsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, documents)
}

// Process triggers ingestion of one document over HTTP, converging on the
// same processor contract the polling scheduler uses.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.dbclient.GetDocumentWithStoragePath(r.Context(), id)
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

	if err := h.processor.Process(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrAlreadyProcessing) {
			writeError(w, http.StatusConflict, "document is already being processed")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
