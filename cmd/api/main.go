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

	"github.com/gin-gonic/gin"

	"rollbook/internal/admin"
	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/calendar"
	"rollbook/internal/cloudinary"
	"rollbook/internal/config"
	"rollbook/internal/httpapi"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/logging"
	"rollbook/internal/metrics"
	"rollbook/internal/photo"
	"rollbook/internal/queue"
	"rollbook/internal/store"
	"rollbook/internal/student"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.SlogLevel(), cfg.Production())
	slog.SetDefault(log)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	m := metrics.New()
	host := photo.NewHost(newCloudinary(cfg, log))

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(64)
		q = mem
		w := &photo.Worker{Queue: mem, Destroyer: host, Log: log.With("component", "photo-worker"), Observe: m.ObservePhotoCleanup}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("photo worker stopped", "error", err)
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	clock := calendar.NewClock(cfg.Location())
	admins := admin.NewService(admin.NewRepository(db.Client), log)
	students := student.NewService(student.NewRepository(db.Client), host, photo.NewJanitor(q, log), clock, log)
	att := attendance.NewService(attendance.NewRepository(db.Client), clock, log)

	seeded, err := admins.EnsureSeed(ctx, cfg.Admin)
	if err != nil {
		return err
	}
	if seeded {
		log.Info("admin account created", "user_id", cfg.Admin.UserID)
	}
	if cfg.TasksAPIKey == "" {
		log.Warn("MARK_ABSENT_API_KEY not set; maintenance routes will reject every call")
	}

	limiter := httpmiddleware.NewAttemptLimiter(redisClient.Client, "rollbook:attempts", cfg.LoginAttemptsPerMin, time.Minute)

	r := httpapi.NewRouter(httpapi.Deps{
		Log:             log,
		Metrics:         m,
		Tokens:          auth.NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL),
		Admins:          admins,
		Students:        students,
		Attendance:      att,
		TasksAPIKey:     cfg.TasksAPIKey,
		AllowOrigins:    cfg.AllowOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Attempts:        limiter.GinMiddleware(),
		Health:          map[string]httpapi.Checker{"db": db, "redis": redisClient},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", "error", err)
	}
	log.Info("server exited")
	return nil
}

// newCloudinary returns nil when no credentials are configured.
func newCloudinary(cfg config.App, log *slog.Logger) *cloudinary.Client {
	if cfg.CloudinaryURL != "" {
		c, err := cloudinary.NewFromURL(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			log.Warn("invalid CLOUDINARY_URL, photo storage disabled", "error", err)
			return nil
		}
		return c
	}
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		log.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
		return cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	}
	log.Warn("cloudinary not configured, photo uploads disabled")
	return nil
}
