package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"dochat/internal/app"
	"dochat/internal/config"
	"dochat/internal/logger"
	"dochat/internal/worker"
)

func main() {
	// Structured logger with correlation id stamping
	base := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(base)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.Embedder.Close()
	defer deps.Generator.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.Embedder, deps.Generator, deps.NSQProducer)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	// Ingest consumer
	consumer, err := nsq.NewConsumer(worker.TopicIngestTask, "backend", nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ consumer", "error", err)
		os.Exit(1)
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.IngestConsumer.HandleMessage(m)
	}))
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect to NSQLookupd", "error", err)
	} else {
		slog.Info("NSQ ingest consumer connected", "topic", worker.TopicIngestTask)
	}
	defer consumer.Stop()

	// Title consumer
	titleConsumer, err := nsq.NewConsumer(worker.TopicChatTitle, "backend", nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ title consumer", "error", err)
		os.Exit(1)
	}
	titleConsumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.TitleConsumer.HandleMessage(m)
	}))
	if err := titleConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect to NSQLookupd", "error", err)
	} else {
		slog.Info("NSQ title consumer connected", "topic", worker.TopicChatTitle)
	}
	defer titleConsumer.Stop()

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
