package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/core/splitter"
	"github.com/docsage/docsage/internal/models"
)

// Processor drives one document through the ingestion pipeline:
// download -> extract -> chunk -> persist sections -> embed -> finished.
// Every run replaces the document's section set wholesale, so reprocessing
// the same bytes yields the same sections.
type Processor struct {
	db        core.DbClient
	store     core.ObjectClient
	embedder  core.Embedder
	extractor core.Extractor
	splitter  *splitter.Splitter

	// callTimeout bounds each external call so one hung dependency cannot
	// stall a whole poll cycle.
	callTimeout time.Duration
}

func NewProcessor(db core.DbClient, store core.ObjectClient, emb core.Embedder, ext core.Extractor, sp *splitter.Splitter, callTimeout time.Duration) *Processor {
	if callTimeout <= 0 {
		callTimeout = time.Minute
	}
	return &Processor{
		db:          db,
		store:       store,
		embedder:    emb,
		extractor:   ext,
		splitter:    sp,
		callTimeout: callTimeout,
	}
}

// Process runs the full pipeline for documentID. The claim write happens
// before any slow I/O and is conditional on the document not already being
// in `processing`, so a duplicate dispatch loses the claim instead of
// running the pipeline twice. On failure the document is marked failed
// with the error detail; it never stays stuck in `processing`.
func (p *Processor) Process(ctx context.Context, documentID int64) error {
	if err := p.db.ClaimDocument(ctx, documentID); err != nil {
		return fmt.Errorf("claim document %d: %w", documentID, err)
	}

	if err := p.run(ctx, documentID); err != nil {
		p.markFailed(ctx, documentID, err)
		return fmt.Errorf("process document %d: %w", documentID, err)
	}

	// A failed finish write also exits to `failed`: the document must never
	// stay in `processing`, where no cycle can pick it up again.
	if err := p.db.SetDocumentStatus(ctx, documentID, models.StatusFinished); err != nil {
		p.markFailed(ctx, documentID, err)
		return fmt.Errorf("finish document %d: %w", documentID, err)
	}
	return nil
}

func (p *Processor) markFailed(ctx context.Context, documentID int64, cause error) {
	if err := p.db.MarkDocumentFailed(ctx, documentID, cause.Error()); err != nil {
		log.Printf("ingest: mark document %d failed: %v", documentID, err)
	}
}

func (p *Processor) run(ctx context.Context, documentID int64) error {
	doc, err := p.db.GetDocumentWithStoragePath(ctx, documentID)
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}
	if doc.StorageObjectPath == "" {
		return core.ErrNoStoragePath
	}

	dlCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	data, err := p.store.Download(dlCtx, doc.StorageObjectPath)
	cancel()
	if err != nil {
		return fmt.Errorf("download %s: %w", doc.StorageObjectPath, err)
	}

	exCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	text, err := p.extractor.Text(exCtx, data, "application/pdf")
	cancel()
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return core.ErrEmptyDocument
	}

	// Metadata is stamped identically on every section of the document.
	sections := make([]models.DocumentSection, len(chunks))
	for i, content := range chunks {
		sections[i] = models.DocumentSection{
			DocumentID: doc.ID,
			Position:   i,
			Content:    content,
			Metadata: map[string]any{
				"document_id": doc.ID,
				"user_id":     doc.CreatedBy,
			},
		}
	}

	ids, err := p.db.ReplaceSections(ctx, doc.ID, sections)
	if err != nil {
		return fmt.Errorf("persist sections: %w", err)
	}

	embCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	vectors, err := p.embedder.EmbedBatch(embCtx, chunks)
	cancel()
	if err != nil {
		return fmt.Errorf("embed sections: %w", err)
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("embed sections: got %d vectors for %d sections", len(vectors), len(ids))
	}

	if err := p.db.UpdateSectionEmbeddings(ctx, ids, vectors); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}
	return nil
}
