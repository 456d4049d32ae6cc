package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	finzaproot "github.com/finzap/finzap"
	"github.com/finzap/finzap/internal/config"
	"github.com/finzap/finzap/internal/gemini"
	"github.com/finzap/finzap/internal/httpapi"
	"github.com/finzap/finzap/internal/repository"
	"github.com/finzap/finzap/internal/service"
	"github.com/finzap/finzap/internal/whatsapp"
	"github.com/finzap/finzap/internal/worker"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(finzaproot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	users := repository.NewUsers(pool)
	conversations := repository.NewConversations(pool)
	messages := repository.NewMessages(pool)
	aiLogs := repository.NewAILogs(pool)
	ledger := repository.NewLedger(pool)
	summaries := repository.NewSummaries(pool)

	// Initialize model and messaging clients
	model, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	sender := whatsapp.NewClient(cfg.MetaAccessToken, cfg.MetaPhoneNumberID, cfg.MetaAPIVersion)

	// Initialize services
	promptsFS, err := fs.Sub(finzaproot.PromptsFS, "prompts")
	if err != nil {
		slog.Error("failed to load embedded prompts", "error", err)
		os.Exit(1)
	}
	classifier, err := service.NewClassifier(model, aiLogs, ledger, promptsFS)
	if err != nil {
		slog.Error("failed to create classifier", "error", err)
		os.Exit(1)
	}
	composer, err := service.NewComposer(model, aiLogs, promptsFS)
	if err != nil {
		slog.Error("failed to create composer", "error", err)
		os.Exit(1)
	}
	dispatcher := service.NewDispatcher(
		service.NewUserService(users, ledger),
		service.NewConversationService(conversations, messages),
		messages,
		service.NewLedgerService(ledger),
		service.NewSummaryService(summaries, composer),
		classifier,
		composer,
		sender,
	)

	// Start worker pool
	workers := worker.NewPool(dispatcher, cfg.WorkerCount, cfg.QueueSize)
	workers.Start(ctx)

	// Setup HTTP server
	mux := http.NewServeMux()
	httpapi.NewWebhookHandler(cfg.MetaVerifyToken, workers).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.Recover(httpapi.Logging(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	workers.Stop()
	slog.Info("shutdown complete")
}
