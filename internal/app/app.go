package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/core/chat"
	db "github.com/docsage/docsage/internal/core/database"
	"github.com/docsage/docsage/internal/core/extract"
	"github.com/docsage/docsage/internal/core/ingest"
	"github.com/docsage/docsage/internal/core/llm"
	"github.com/docsage/docsage/internal/core/objectstore"
	"github.com/docsage/docsage/internal/core/splitter"
)

// App owns every long-lived component. Clients are constructed once at
// process start and passed by reference into the scheduler and the query
// pipeline.
type App struct {
	DBClient  *db.DatabaseClient
	Scheduler *ingest.Scheduler
	Server    *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	embedder, err := llm.NewEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	chatModel, err := llm.NewChatModel(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the chat model: %w", err)
	}

	split := splitter.New(
		splitter.WithChunkSize(cfg.ChunkSize),
		splitter.WithOverlap(cfg.ChunkOverlap),
	)

	processor := ingest.NewProcessor(dbClient, objClient, embedder, extract.NewDocconvExtractor(), split, cfg.CallTimeout)
	scheduler := ingest.NewScheduler(dbClient, processor, cfg.PollInterval, cfg.MaxProcessAttempts, cfg.ProcessConcurrency)
	pipeline := chat.NewPipeline(dbClient, embedder, chatModel, cfg.TopK)

	server := NewServer(cfg, dbClient, objClient, processor, pipeline)

	return &App{DBClient: dbClient, Scheduler: scheduler, Server: server}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
