package core

import (
	"context"

	"github.com/docsage/docsage/internal/models"
)

// DbClient defines all persistence operations the pipelines need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	// GetDocumentWithStoragePath resolves a document together with its
	// storage object path and owner; returns ErrNotFound if absent.
	GetDocumentWithStoragePath(ctx context.Context, id int64) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	// ListDocumentIDsByStatus returns the ids of all documents currently
	// in the given status, fresh per call.
	ListDocumentIDsByStatus(ctx context.Context, status string) ([]int64, error)
	// ListRetryableDocumentIDs returns failed documents that have been
	// attempted fewer than maxAttempts times.
	ListRetryableDocumentIDs(ctx context.Context, maxAttempts int) ([]int64, error)
	// ClaimDocument moves a document into `processing` only if no other
	// worker holds it; returns ErrAlreadyProcessing on a lost race and
	// ErrNotFound if the document does not exist.
	ClaimDocument(ctx context.Context, id int64) error
	SetDocumentStatus(ctx context.Context, id int64, status string) error
	// MarkDocumentFailed records a terminal failure for the current run,
	// persisting the error detail and incrementing the attempt counter.
	MarkDocumentFailed(ctx context.Context, id int64, detail string) error

	// ReplaceSections atomically deletes a document's existing sections and
	// inserts the new set, returning the inserted ids in input order.
	ReplaceSections(ctx context.Context, documentID int64, sections []models.DocumentSection) ([]int64, error)
	// UpdateSectionEmbeddings writes embedding vectors for the given
	// section ids; ids and vectors correspond by index.
	UpdateSectionEmbeddings(ctx context.Context, ids []int64, embeddings [][]float32) error
	// SimilaritySearch returns the k sections of one document most similar
	// to the query embedding, ordered by descending similarity. Sections of
	// other documents are excluded unconditionally.
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, documentID int64, k int) ([]models.RetrievedSection, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Embedder computes vector embeddings for text. Batch size and request
// splitting are the implementation's concern, not the caller's.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel wraps a chat-completion model. Complete blocks for the full
// response; Stream invokes emit for each token as it arrives and returns
// when the model signals completion, the context is cancelled, or emit
// returns an error.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string, emit func(token string) error) error
}

// Extractor pulls plain text out of raw document bytes.
type Extractor interface {
	Text(ctx context.Context, data []byte, contentType string) (string, error)
}
