package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"dochat/features/chat"
	"dochat/features/document"
	"dochat/internal/config"
	"dochat/internal/ingest"
	"dochat/internal/middleware"
	"dochat/internal/pipeline"
	"dochat/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	ChatService     *chat.Service
	DocumentService *document.Service
	IngestConsumer  *worker.IngestConsumer
	TitleConsumer   *worker.TitleConsumer

	port int
}

// New wires the feature services onto shared infrastructure. The
// vector store, embedder and generator arrive as interfaces so tests
// can swap the providers out.
func New(
	cfg *config.Config,
	db *sql.DB,
	store pipeline.VectorStore,
	embedder pipeline.Embedder,
	generator pipeline.Generator,
	taskPub TaskPublisher,
) (*App, error) {

	// Question-answering pipeline
	retriever := pipeline.NewRetriever(embedder, store, generator, pipeline.RetrieverOptions{
		Variants:        cfg.QueryVariants,
		TopK:            cfg.TopKPerVariant,
		IncludeOriginal: cfg.IncludeOriginal,
	})

	chatRepo := chat.NewPostgresRepo(db)
	pipe := pipeline.New(
		retriever,
		pipeline.NewRouter(generator, cfg.RouterBudget),
		pipeline.NewRewriter(generator),
		pipeline.NewSynthesizer(generator),
		chatRepo,
		pipeline.Options{HistoryWindow: cfg.HistoryWindow, Scope: cfg.UserProfile().Scope()},
	)

	// Feature: Chat
	chatService := chat.NewService(chatRepo, pipe, taskPub)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, taskPub)
	docHandler := document.NewHandler(docService, cfg.UploadDir, cfg.MaxUploadSizeMB<<20)

	// Worker: Ingest Consumer
	ingestor, err := ingest.NewIngestor(ingest.FileLoader{}, embedder, store, docRepo, cfg.UserProfile())
	if err != nil {
		return nil, fmt.Errorf("build ingestor: %w", err)
	}
	ingestConsumer := worker.NewIngestConsumer(ingestor)
	titleConsumer := worker.NewTitleConsumer(generator, chatRepo)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Owner-ID, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /sessions", middleware.CorrelationID(enableCORS(chatHandler.CreateSession)))
	mux.Handle("GET /sessions", middleware.CorrelationID(enableCORS(chatHandler.ListSessions)))
	mux.Handle("GET /sessions/{id}", middleware.CorrelationID(enableCORS(chatHandler.GetSession)))
	mux.Handle("POST /sessions/{id}/messages", middleware.CorrelationID(enableCORS(chatHandler.SendMessage)))

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("POST /documents/{id}/reingest", middleware.CorrelationID(enableCORS(docHandler.Reingest)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:         mux,
		ChatService:     chatService,
		DocumentService: docService,
		IngestConsumer:  ingestConsumer,
		TitleConsumer:   titleConsumer,
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
