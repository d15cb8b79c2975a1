package photo

import (
	"context"
	"log/slog"
	"time"

	"rollbook/internal/queue"
)

// Destroyer deletes an image by its public id.
type Destroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

// Worker drains photo cleanup jobs. Each job is attempted once.
type Worker struct {
	Queue     queue.Queue
	Destroyer Destroyer
	Log       *slog.Logger
	Timeout   time.Duration

	// Observe, when set, receives "deleted" or "failed" per job.
	Observe func(outcome string)
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}
	msgs, err := w.Queue.Consume(ctx)
	if err != nil {
		return err
	}
	log.Info("photo cleanup worker started")
	for msg := range msgs {
		if msg.Type != queue.TypePhotoDelete {
			log.Warn("unknown job type", "type", msg.Type)
			continue
		}
		w.handle(ctx, log, msg)
	}
	log.Info("photo cleanup worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, log *slog.Logger, msg queue.Message) {
	publicID := string(msg.Body)
	if !msg.EnqueuedAt.IsZero() {
		log = log.With("queued_for", time.Since(msg.EnqueuedAt).Round(time.Millisecond).String())
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := "deleted"
	if err := w.Destroyer.Destroy(ctx, publicID); err != nil {
		outcome = "failed"
		log.Error("photo delete failed", "public_id", publicID, "error", err)
	} else {
		log.Info("photo deleted", "public_id", publicID)
	}
	if w.Observe != nil {
		w.Observe(outcome)
	}
}
