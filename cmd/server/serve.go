package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/entityhistory/internal/config"
	"github.com/rpattn/entityhistory/internal/db"
	"github.com/rpattn/entityhistory/internal/history"
	"github.com/rpattn/entityhistory/internal/httpapi"
	"github.com/rpattn/entityhistory/internal/middleware"
	"github.com/rpattn/entityhistory/internal/repository"

	"github.com/goto/salt/log"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

type serveCommand struct {
	configPath string
}

func newServeCommand(serve *serveCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Starts the version history HTTP server",
		Example: "entityhistory serve --config ./deploy",
		RunE:    serve.RunE,
	}
}

func (s *serveCommand) RunE(cmd *cobra.Command, _ []string) error {
	cfg, loaded, err := config.Load(s.configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	if !loaded {
		logger.Info("no config.yaml found, using defaults and environment", "path", s.configPath)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	service := history.NewService(repo, logger, history.WithBreakingFields(cfg.BreakingFields))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(middleware.LoggingMiddleware(logger)(
		middleware.DataLoaderMiddleware(repo)(httpapi.NewHandler(service, repo, logger)),
	))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func openRepository(ctx context.Context, cfg config.Config, logger log.Logger) (repository.VersionRepository, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, versions are lost on restart")
		return repository.NewMemoryVersionRepository(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return nil, nil, err
		}
	}

	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repository.NewVersionRepository(conn.Pool, conn), conn.Close, nil
}

func newLogger(level string) log.Logger {
	return log.NewLogrus(
		log.LogrusWithLevel(level),
		log.LogrusWithWriter(os.Stdout),
	)
}
