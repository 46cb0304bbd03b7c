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

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-board/backend/internal/config"
	"github.com/zhouzirui/z-board/backend/internal/handler"
	"github.com/zhouzirui/z-board/backend/internal/handler/admin"
	"github.com/zhouzirui/z-board/backend/internal/logging"
	"github.com/zhouzirui/z-board/backend/internal/metrics"
	"github.com/zhouzirui/z-board/backend/internal/middleware"
	"github.com/zhouzirui/z-board/backend/internal/service/feed"
	"github.com/zhouzirui/z-board/backend/internal/service/message"
	snapshotService "github.com/zhouzirui/z-board/backend/internal/service/snapshot"
	"github.com/zhouzirui/z-board/backend/internal/storage/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		logger.Debug("dotenv_skipped", "error", envErr)
	}

	m := metrics.New()
	hub := feed.NewHub(cfg.Board.FeedBuffer, m)
	svc := message.NewService(message.WithPublisher(hub), message.WithRecorder(m))
	m.TrackStored(svc.Len)

	store, err := snapshot.Open(ctx, snapshot.Options{
		Backend: cfg.Snapshot.Backend,
		Path:    cfg.Snapshot.Path,
		DSN:     cfg.Snapshot.DSN,
		Schema:  cfg.Snapshot.Schema,
	})
	if err != nil {
		logger.Error("snapshot_store_open_failed", "backend", cfg.Snapshot.Backend, "error", err)
		os.Exit(1)
	}

	var (
		scheduler   *snapshotService.Scheduler
		snapshotter admin.Snapshotter
		runDone     = make(chan struct{})
	)
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("snapshot_store_close_failed", "error", err)
			}
		}()

		scheduler, err = snapshotService.NewScheduler(snapshotService.Config{
			Cron:   cfg.Snapshot.Cron,
			Retain: cfg.Snapshot.Retain,
		}, svc, store, m, logger)
		if err != nil {
			logger.Error("snapshot_scheduler_init_failed", "error", err)
			os.Exit(1)
		}
		snapshotter = scheduler

		info, found, err := scheduler.RestoreLatest(ctx)
		switch {
		case err != nil:
			logger.Error("snapshot_restore_failed", "error", err)
			os.Exit(1)
		case found:
			logger.Info("snapshot_restored", "id", info.ID, "messages", info.Messages, "taken_at", info.TakenAt)
		default:
			logger.Info("snapshot_none_found", "backend", cfg.Snapshot.Backend)
		}

		go func() {
			defer close(runDone)
			scheduler.Run(ctx)
		}()
	} else {
		close(runDone)
		logger.Info("snapshot_persistence_disabled")
	}

	router := handler.NewRouter(handler.Options{
		Service:         svc,
		Feed:            hub,
		Snapshots:       snapshotter,
		Limiter:         middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Metrics:         m.Handler(),
		Logger:          logger,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		PrincipalHeader: cfg.Board.PrincipalHeader,
		DefaultPageSize: cfg.Board.DefaultPageSize,
		MaxPageSize:     cfg.Board.MaxPageSize,
	})

	if err := startServer(ctx, cfg.Server, router, logger); err != nil {
		logger.Error("server_error", "error", err)
	}
	stop()

	if err := finalSnapshot(runDone, scheduler, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("snapshot_final_save_failed", "error", err)
	}
}

// finalSnapshot 等待定时快照循环退出后再保存最后一次快照，避免与进行中的保存冲突
func finalSnapshot(runDone <-chan struct{}, scheduler *snapshotService.Scheduler, timeout time.Duration) error {
	<-runDone
	if scheduler == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := scheduler.SaveNow(ctx)
	return err
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *slog.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("server_listening", "addr", addr)
	return runServer(ctx, srv, serverCfg.ShutdownTimeout)
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
