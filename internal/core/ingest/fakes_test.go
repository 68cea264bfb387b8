package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/models"
)

// fakeDB is an in-memory core.DbClient covering the operations the
// ingestion side touches.
type fakeDB struct {
	core.DbClient

	mu        sync.Mutex
	docs      map[int64]*models.Document
	sections  map[int64][]models.DocumentSection
	statusLog map[int64][]string
	nextID    int64

	// finishErr fails the next write to `finished`, then clears.
	finishErr error
}

func newFakeDB(docs ...*models.Document) *fakeDB {
	f := &fakeDB{
		docs:      make(map[int64]*models.Document),
		sections:  make(map[int64][]models.DocumentSection),
		statusLog: make(map[int64][]string),
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDB) GetDocumentWithStoragePath(ctx context.Context, id int64) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDB) ListDocumentIDsByStatus(ctx context.Context, status string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, d := range f.docs {
		if d.Status == status {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeDB) ListRetryableDocumentIDs(ctx context.Context, maxAttempts int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, d := range f.docs {
		if d.Status == models.StatusFailed && d.Attempts < maxAttempts {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeDB) ClaimDocument(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	if d.Status == models.StatusProcessing {
		return core.ErrAlreadyProcessing
	}
	d.Status = models.StatusProcessing
	f.statusLog[id] = append(f.statusLog[id], models.StatusProcessing)
	return nil
}

func (f *fakeDB) SetDocumentStatus(ctx context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == models.StatusFinished && f.finishErr != nil {
		err := f.finishErr
		f.finishErr = nil
		return err
	}
	d, ok := f.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	d.Status = status
	f.statusLog[id] = append(f.statusLog[id], status)
	return nil
}

func (f *fakeDB) MarkDocumentFailed(ctx context.Context, id int64, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	d.Status = models.StatusFailed
	d.ProcessingError = detail
	d.Attempts++
	f.statusLog[id] = append(f.statusLog[id], models.StatusFailed)
	return nil
}

func (f *fakeDB) ReplaceSections(ctx context.Context, documentID int64, sections []models.DocumentSection) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make([]models.DocumentSection, len(sections))
	ids := make([]int64, len(sections))
	for i, s := range sections {
		f.nextID++
		s.ID = f.nextID
		stored[i] = s
		ids[i] = s.ID
	}
	f.sections[documentID] = stored
	return ids, nil
}

func (f *fakeDB) UpdateSectionEmbeddings(ctx context.Context, ids []int64, embeddings [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) != len(embeddings) {
		return fmt.Errorf("length mismatch")
	}
	byID := make(map[int64][]float32, len(ids))
	for i, id := range ids {
		byID[id] = embeddings[i]
	}
	for docID, sections := range f.sections {
		for i := range sections {
			if vec, ok := byID[sections[i].ID]; ok {
				sections[i].Embedding = vec
			}
		}
		f.sections[docID] = sections
	}
	return nil
}

func (f *fakeDB) statuses(id int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statusLog[id]...)
}

func (f *fakeDB) document(id int64) models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.docs[id]
}

func (f *fakeDB) sectionsFor(id int64) []models.DocumentSection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DocumentSection(nil), f.sections[id]...)
}

type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, core.ErrNotFound)
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

// fakeExtractor treats the downloaded bytes as the extracted text.
type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Text(ctx context.Context, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(data), nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}
