package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docsage/docsage/internal/models"
)

// brokenExtractor fails only for bytes matching bad.
type brokenExtractor struct {
	bad string
}

func (b *brokenExtractor) Text(ctx context.Context, data []byte, contentType string) (string, error) {
	if string(data) == b.bad {
		return "", errors.New("unreadable scan")
	}
	return string(data), nil
}

func seedBatch(store *fakeObjectStore, n int) []*models.Document {
	docs := make([]*models.Document, n)
	for i := range docs {
		key := fmt.Sprintf("u1/doc-%d.pdf", i+1)
		store.objects[key] = []byte(fmt.Sprintf("content of document %d", i+1))
		docs[i] = &models.Document{
			ID:                int64(i + 1),
			CreatedBy:         "u1",
			StorageObjectPath: key,
			Status:            models.StatusInitial,
		}
	}
	return docs
}

func TestCycleProcessesAllInitialDocuments(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	db := newFakeDB(seedBatch(store, 5)...)
	p := newTestProcessor(db, store, &fakeEmbedder{}, &fakeExtractor{})
	s := NewScheduler(db, p, time.Second, 3, 4)

	s.Cycle(context.Background())

	for id := int64(1); id <= 5; id++ {
		assert.Equal(t, models.StatusFinished, db.document(id).Status, "document %d", id)
	}
}

func TestCycleIsolatesFailures(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	db := newFakeDB(seedBatch(store, 4)...)
	ext := &brokenExtractor{bad: "content of document 2"}
	p := newTestProcessor(db, store, &fakeEmbedder{}, ext)
	s := NewScheduler(db, p, time.Second, 3, 4)

	s.Cycle(context.Background())

	assert.Equal(t, models.StatusFinished, db.document(1).Status)
	assert.Equal(t, models.StatusFinished, db.document(3).Status)
	assert.Equal(t, models.StatusFinished, db.document(4).Status)

	failed := db.document(2)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Contains(t, failed.ProcessingError, "unreadable scan")
	assert.Equal(t, 1, failed.Attempts)
}

func TestCycleRetriesFailedBelowCap(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	store.objects["u1/retry.pdf"] = []byte("now readable")
	db := newFakeDB(&models.Document{
		ID:                7,
		CreatedBy:         "u1",
		StorageObjectPath: "u1/retry.pdf",
		Status:            models.StatusFailed,
		ProcessingError:   "unreadable scan",
		Attempts:          1,
	})
	p := newTestProcessor(db, store, &fakeEmbedder{}, &fakeExtractor{})
	s := NewScheduler(db, p, time.Second, 3, 4)

	s.Cycle(context.Background())

	assert.Equal(t, models.StatusFinished, db.document(7).Status)
}

func TestCycleSkipsFailedAtCap(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	store.objects["u1/dead.pdf"] = []byte("whatever")
	db := newFakeDB(&models.Document{
		ID:                8,
		CreatedBy:         "u1",
		StorageObjectPath: "u1/dead.pdf",
		Status:            models.StatusFailed,
		ProcessingError:   "unreadable scan",
		Attempts:          3,
	})
	p := newTestProcessor(db, store, &fakeEmbedder{}, &fakeExtractor{})
	s := NewScheduler(db, p, time.Second, 3, 4)

	s.Cycle(context.Background())

	doc := db.document(8)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Equal(t, 3, doc.Attempts)
	assert.Empty(t, db.statuses(8), "document at the retry cap must not be touched")
}

func TestCycleSkipsProcessingDocuments(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	store.objects["u1/busy.pdf"] = []byte("claimed elsewhere")
	db := newFakeDB(&models.Document{
		ID:                9,
		CreatedBy:         "u1",
		StorageObjectPath: "u1/busy.pdf",
		Status:            models.StatusProcessing,
	})
	p := newTestProcessor(db, store, &fakeEmbedder{}, &fakeExtractor{})
	s := NewScheduler(db, p, time.Second, 3, 4)

	s.Cycle(context.Background())

	assert.Equal(t, models.StatusProcessing, db.document(9).Status)
	assert.Empty(t, db.statuses(9))
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	db := newFakeDB()
	p := newTestProcessor(db, store, &fakeEmbedder{}, &fakeExtractor{})
	s := NewScheduler(db, p, 10*time.Millisecond, 3, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
