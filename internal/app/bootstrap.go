package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	weaviateclient "github.com/weaviate/weaviate-go-client/v5/weaviate"

	cstore "dochat/internal/adapter/chromem"
	"dochat/internal/adapter/gemini"
	wstore "dochat/internal/adapter/weaviate"
	"dochat/internal/config"
	"dochat/internal/pipeline"
	"dochat/internal/worker"
)

type Dependencies struct {
	DB          *sql.DB
	VectorStore pipeline.VectorStore
	Embedder    *gemini.Embedder
	Generator   *gemini.Generator
	NSQProducer *nsq.Producer
}

// Bootstrap opens the external connections: Postgres (with
// migrations), the vector store backend, the Gemini clients and the
// NSQ producer.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
	for i := 0; i < 10; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", 10)
		time.Sleep(2 * time.Second)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")

	// Vector store backend
	var store pipeline.VectorStore
	switch cfg.VectorBackend {
	case "chromem":
		cs, err := cstore.NewStore(cfg.ChromemPath)
		if err != nil {
			return nil, fmt.Errorf("chromem store error: %w", err)
		}
		store = cs
	default:
		wCfg := weaviateclient.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
		wClient, err := weaviateclient.NewClient(wCfg)
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		store = wstore.NewStore(wClient)
	}
	slog.Info("vector store ready", "backend", cfg.VectorBackend)

	// Gemini
	llmTimeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, llmTimeout)
	if err != nil {
		return nil, fmt.Errorf("embedding client error: %w", err)
	}
	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GenerationModel, llmTimeout)
	if err != nil {
		return nil, fmt.Errorf("generation client error: %w", err)
	}

	// NSQ Producer
	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}

	// NSQ creates topics lazily on publish, but consumers querying
	// lookupd fail 404 until then, so pre-create them over the http api.
	createTopics(cfg.NSQDHost)

	return &Dependencies{
		DB:          db,
		VectorStore: store,
		Embedder:    embedder,
		Generator:   generator,
		NSQProducer: producer,
	}, nil
}

func createTopics(nsqdHost string) {
	host := nsqdHost
	if h, _, err := net.SplitHostPort(nsqdHost); err == nil && h != "" {
		host = h
	}

	create := func(topic string) {
		url := fmt.Sprintf("http://%s:4151/topic/create?topic=%s", host, topic)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			slog.Warn("failed to pre-create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		// Wait for nsqd to be ready
		time.Sleep(2 * time.Second)
		create(worker.TopicIngestTask)
		create(worker.TopicChatTitle)
	}()
}
