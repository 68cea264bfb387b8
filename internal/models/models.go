package models

import (
	"time"
)

// Document statuses. A document moves monotonically along
// initial -> processing -> finished; a processing failure exits to failed,
// which the scheduler may retry while Attempts stays under the configured cap.
const (
	StatusInitial    = "initial"
	StatusProcessing = "processing"
	StatusFinished   = "finished"
	StatusFailed     = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents one user-uploaded file tracked through ingestion.
type Document struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	CreatedBy         string    `db:"created_by" json:"created_by"`
	StorageObjectPath string    `db:"storage_object_path" json:"storage_object_path"`
	Status            string    `db:"status" json:"status"`
	ProcessingError   string    `db:"processing_error" json:"processing_error,omitempty"`
	Attempts          int       `db:"attempts" json:"attempts"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentSection is one text chunk of a document, the unit of embedding
// and retrieval. Metadata is stamped identically on every section of a
// document ({document_id, user_id}); the set for a document is replaced
// wholesale by each processing run.
type DocumentSection struct {
	ID         int64          `db:"id" json:"id"`
	DocumentID int64          `db:"document_id" json:"document_id"`
	Position   int            `db:"position" json:"position"`
	Content    string         `db:"content" json:"content"`
	Metadata   map[string]any `db:"metadata" json:"metadata"`
	Embedding  []float32      `db:"embedding" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// RetrievedSection is a section returned by similarity search together
// with its similarity score (descending order, 1 = identical direction).
type RetrievedSection struct {
	DocumentSection
	Score float64 `json:"score"`
}

// ChatMessage is one turn of a conversation as sent by the client.
// History is resent in full on every request; nothing is persisted here.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}
