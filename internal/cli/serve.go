package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vaskular/vaskular-backend/internal/advisor"
	"github.com/vaskular/vaskular-backend/internal/config"
	"github.com/vaskular/vaskular-backend/internal/database"
	"github.com/vaskular/vaskular-backend/internal/handler"
	"github.com/vaskular/vaskular-backend/internal/middleware"
	"github.com/vaskular/vaskular-backend/internal/repository"
	"github.com/vaskular/vaskular-backend/internal/router"
	"github.com/vaskular/vaskular-backend/internal/service"
)

// NewServeCommand creates the serve command.
func NewServeCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Initialize the schema and start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

// openStore opens the configured database and makes sure the schema exists.
func openStore(ctx context.Context, cfg config.Config) (*sql.DB, *repository.ScoreRepo, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewScoreRepo(db, cfg.DBDriver)
	if err := repo.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "initialize schema")
	}
	return db, repo, nil
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAdvisor(); err != nil {
		return err
	}

	db, repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	h := handler.NewScoreHandler(repo, advisor.NewOpenAI(cfg))

	// Redis is optional; without it caching and rate limiting are off.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Printf("redis unavailable, cache and rate limit disabled: %v", err)
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	h.Cache = cache
	if cfg.QueueEnabled {
		h.Events = service.NewPublisher(cfg.AMQPURL)
	}

	e := router.New()
	router.RegisterRoutes(e, repo)
	router.RegisterScores(e, h, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb), cache.Middleware())

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
