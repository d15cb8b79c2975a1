package httpmiddleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// AttemptLimiter caps credential attempts per client IP and roll in fixed
// Redis windows. It guards the public student login and PIN recovery routes.
type AttemptLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewAttemptLimiter allows limit attempts per window for each key.
func NewAttemptLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *AttemptLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &AttemptLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one attempt for key and reports whether it is within the limit.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + ":" + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, 0, err
		}
	}
	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return true, 0, err
	}
	return n <= int64(l.limit), ttl, nil
}

// GinMiddleware limits by client IP plus the "roll" field of a JSON body.
// Redis failures let the request through.
func (l *AttemptLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.client == nil || l.limit <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP() + "|" + rollFromBody(c)
		ok, retry, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "attempt limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			if retry <= 0 {
				retry = l.window
			}
			tooMany(c, retry)
			return
		}
		c.Next()
	}
}

// rollFromBody peeks at the JSON body and restores it for the handler.
func rollFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var body struct {
		Roll string `json:"roll"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(body.Roll))
}

func formatSeconds(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
