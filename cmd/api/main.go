package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/skovert/feedwall/internal/app/migrate"
	"github.com/skovert/feedwall/internal/broadcast"
	"github.com/skovert/feedwall/internal/graph"
	httpx "github.com/skovert/feedwall/internal/http"
	"github.com/skovert/feedwall/internal/imagestore"
	"github.com/skovert/feedwall/internal/repository/postgres"
	authsvc "github.com/skovert/feedwall/internal/service/auth"
	"github.com/skovert/feedwall/internal/service/feed"
	"github.com/skovert/feedwall/internal/ws"
	"github.com/skovert/feedwall/pkg/config"
	"github.com/skovert/feedwall/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	images, err := imagestore.New(cfg.ImageDir, log)
	if err != nil {
		log.Error("failed to prepare image store", "error", err)
		os.Exit(1)
	}

	// The broadcast channel must exist before any mutation handler runs.
	feedHub := ws.NewHub()
	events, err := broadcast.NewPublisher(feedHub, log)
	if err != nil {
		log.Error("failed to initialize broadcast channel", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	authService := authsvc.New(repo, log, cfg)
	feedService, err := feed.New(repo, repo, images, events, log, cfg.FeedPageSize)
	if err != nil {
		log.Error("failed to initialize feed service", "error", err)
		os.Exit(1)
	}

	graphqlHandler := graph.NewHandler(&graph.Resolver{Auth: authService, Feed: feedService})
	uploads := httpx.NewUploadHandler(images, log)
	router := httpx.NewRouter(log, authService, feedService, uploads, events, graphqlHandler, cfg.ImageDir, pool.Ping)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
