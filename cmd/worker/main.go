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

	"rollbook/internal/cloudinary"
	"rollbook/internal/config"
	"rollbook/internal/logging"
	"rollbook/internal/metrics"
	"rollbook/internal/photo"
	"rollbook/internal/queue"
	"rollbook/internal/store"
)

// Worker drains photo cleanup jobs from the Redis queue.
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.SlogLevel(), cfg.Production()).With("component", "photo-worker")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, log *slog.Logger) error {
	if cfg.QueueBackend == "memory" {
		return errors.New("QUEUE_BACKEND=memory runs photo cleanup inside the api process")
	}
	client, err := newCloudinary(cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New("cloudinary not configured; cannot delete photos")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet, consuming anyway", "addr", cfg.RedisAddr)
	}

	m := metrics.New()
	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(ctx, log, m, cfg.WorkerMetricsAddr)
	}

	w := &photo.Worker{
		Queue:     queue.NewRedisQueue(redisClient.Client, queue.DefaultKey),
		Destroyer: photo.NewHost(client),
		Log:       log,
		Timeout:   30 * time.Second,
		Observe:   m.ObservePhotoCleanup,
	}
	return w.Run(ctx)
}

// newCloudinary returns a nil client when no credentials are configured.
func newCloudinary(cfg config.App) (*cloudinary.Client, error) {
	if cfg.CloudinaryURL != "" {
		return cloudinary.NewFromURL(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	}
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, nil
	}
	return cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
}

func serveMetrics(ctx context.Context, log *slog.Logger, m *metrics.Metrics, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("serving worker metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics server stopped", "error", err)
	}
}
