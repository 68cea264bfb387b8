package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.FirstName, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents (name, created_by, storage_object_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`
	status := doc.Status
	if status == "" {
		status = models.StatusInitial
	}
	return c.db.QueryRowContext(ctx, q, doc.Name, doc.CreatedBy, doc.StorageObjectPath, status).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (c *DatabaseClient) GetDocumentWithStoragePath(ctx context.Context, id int64) (*models.Document, error) {
	const q = `
		SELECT id, name, created_by, storage_object_path, status, processing_error, attempts, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Name, &d.CreatedBy, &d.StorageObjectPath, &d.Status,
		&d.ProcessingError, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	const q = `
		SELECT id, name, created_by, storage_object_path, status, processing_error, attempts, created_at, updated_at
		FROM documents
		WHERE created_by = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.Name, &d.CreatedBy, &d.StorageObjectPath, &d.Status,
			&d.ProcessingError, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListDocumentIDsByStatus(ctx context.Context, status string) ([]int64, error) {
	const q = `SELECT id FROM documents WHERE status = $1 ORDER BY id`
	return c.listIDs(ctx, q, status)
}

func (c *DatabaseClient) ListRetryableDocumentIDs(ctx context.Context, maxAttempts int) ([]int64, error) {
	const q = `SELECT id FROM documents WHERE status = 'failed' AND attempts < $1 ORDER BY id`
	return c.listIDs(ctx, q, maxAttempts)
}

func (c *DatabaseClient) listIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimDocument is a compare-and-set claim: the status only moves to
// `processing` from a non-processing state, so two workers racing on the
// same document id cannot both win.
func (c *DatabaseClient) ClaimDocument(ctx context.Context, id int64) error {
	const q = `
		UPDATE documents
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status <> 'processing'
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}

	var exists bool
	if err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("document %d: %w", id, core.ErrNotFound)
	}
	return fmt.Errorf("document %d: %w", id, core.ErrAlreadyProcessing)
}

func (c *DatabaseClient) SetDocumentStatus(ctx context.Context, id int64, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (c *DatabaseClient) MarkDocumentFailed(ctx context.Context, id int64, detail string) error {
	const q = `
		UPDATE documents
		SET status = 'failed', processing_error = $2, attempts = attempts + 1, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, detail)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ReplaceSections swaps a document's section set in a single transaction so
// a processing run never leaves a partial mix of old and new chunks behind.
func (c *DatabaseClient) ReplaceSections(ctx context.Context, documentID int64, sections []models.DocumentSection) ([]int64, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_sections WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	const q = `
		INSERT INTO document_sections (document_id, position, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(sections))
	for i := range sections {
		s := &sections[i]
		meta, err := json.Marshal(s.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("marshal section metadata: %w", err)
		}
		var id int64
		if err := stmt.QueryRowContext(ctx, documentID, s.Position, s.Content, meta).Scan(&id); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *DatabaseClient) UpdateSectionEmbeddings(ctx context.Context, ids []int64, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("ids/embeddings length mismatch: %d vs %d", len(ids), len(embeddings))
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `UPDATE document_sections SET embedding = $2 WHERE id = $1`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, pgvector.NewVector(embeddings[i])); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SimilaritySearch finds the top-k sections of one document for a query
// embedding using cosine distance. The document_id filter is part of the
// query itself, so sections of other documents can never be returned.
func (c *DatabaseClient) SimilaritySearch(ctx context.Context, queryEmbedding []float32, documentID int64, k int) ([]models.RetrievedSection, error) {
	const q = `
		SELECT id, document_id, position, content, metadata, 1 - (embedding <=> $2) AS score
		FROM document_sections
		WHERE document_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryEmbedding)
	rows, err := c.db.QueryContext(ctx, q, documentID, vec, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetrievedSection
	for rows.Next() {
		var (
			s    models.RetrievedSection
			meta []byte
		)
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Position, &s.Content, &meta, &s.Score); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &s.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal section metadata: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
