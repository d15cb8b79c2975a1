// Package photo stores student photos on the external image host and
// cleans them up asynchronously.
package photo

import (
	"context"
	"io"
	"log/slog"

	"rollbook/internal/apperr"
	"rollbook/internal/cloudinary"
	"rollbook/internal/queue"
)

// Image is a stored photo: its public URL and the host's deletion handle.
type Image struct {
	URL      string
	PublicID string
}

// Host uploads and destroys images through Cloudinary.
type Host struct {
	client *cloudinary.Client
}

// NewHost wraps a Cloudinary client. A nil client yields a host that
// refuses uploads.
func NewHost(client *cloudinary.Client) *Host {
	return &Host{client: client}
}

// Upload stores the image and returns its URL and public id.
func (h *Host) Upload(ctx context.Context, body io.Reader, filename string) (Image, error) {
	if h.client == nil {
		return Image{}, apperr.Unavailable("photo storage is not configured")
	}
	res, err := h.client.Upload(ctx, body, filename)
	if err != nil {
		return Image{}, apperr.Upstream("photo upload failed", err)
	}
	return Image{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

// Destroy removes an image from the host.
func (h *Host) Destroy(ctx context.Context, publicID string) error {
	if h.client == nil {
		return apperr.Unavailable("photo storage is not configured")
	}
	return h.client.Destroy(ctx, publicID)
}

// Janitor schedules best-effort deletion of images that are no longer referenced.
type Janitor struct {
	q   queue.Queue
	log *slog.Logger
}

// NewJanitor publishes cleanup jobs to q.
func NewJanitor(q queue.Queue, log *slog.Logger) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{q: q, log: log}
}

// Discard enqueues deletion of publicID. Failures are logged, never returned.
func (j *Janitor) Discard(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	err := j.q.Publish(ctx, queue.Message{Type: queue.TypePhotoDelete, Body: []byte(publicID)})
	if err != nil {
		j.log.WarnContext(ctx, "photo cleanup not scheduled", "public_id", publicID, "error", err)
	}
}
