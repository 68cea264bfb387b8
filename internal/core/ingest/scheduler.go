package ingest

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docsage/docsage/internal/core"
	"github.com/docsage/docsage/internal/models"
)

// Scheduler discovers unprocessed documents on a fixed interval and fans
// them out to the Processor. A cycle waits for every dispatched document to
// settle before the next discovery query runs, so a slow processor cannot
// pile up duplicate work behind an always-on ticker.
type Scheduler struct {
	db        core.DbClient
	processor *Processor

	interval    time.Duration
	maxAttempts int
	concurrency int
}

func NewScheduler(db core.DbClient, processor *Processor, interval time.Duration, maxAttempts, concurrency int) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Scheduler{
		db:          db,
		processor:   processor,
		interval:    interval,
		maxAttempts: maxAttempts,
		concurrency: concurrency,
	}
}

// Run polls until ctx is cancelled. This method blocks; run it in its own
// goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: polling every %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one discovery pass: query pending documents fresh, dispatch
// each to the processor with bounded concurrency, and wait for all of them.
// One document's failure never aborts its siblings; failures are recorded
// on the document row by the processor and logged here.
func (s *Scheduler) Cycle(ctx context.Context) {
	ids, err := s.pending(ctx)
	if err != nil {
		log.Printf("scheduler: discovery failed: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.processor.Process(ctx, id); err != nil {
				log.Printf("scheduler: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// pending returns the documents eligible for this cycle: everything still
// in `initial`, plus failed documents under the retry cap. The fresh
// re-query is what keeps a document claimed by a previous cycle (now in
// `processing`) out of the candidate set.
func (s *Scheduler) pending(ctx context.Context) ([]int64, error) {
	ids, err := s.db.ListDocumentIDsByStatus(ctx, models.StatusInitial)
	if err != nil {
		return nil, err
	}
	retry, err := s.db.ListRetryableDocumentIDs(ctx, s.maxAttempts)
	if err != nil {
		return nil, err
	}
	return append(ids, retry...), nil
}
