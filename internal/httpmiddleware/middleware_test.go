package httpmiddleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenBucketLimitsAndRefills(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	allowed := func(key string) bool {
		ok, _ := l.take(key)
		return ok
	}
	if !allowed("ip") || !allowed("ip") {
		t.Fatalf("expected first two requests to pass")
	}
	ok, wait := l.take("ip")
	if ok || wait != time.Second {
		t.Fatalf("expected third request to be limited for 1s, got ok=%v wait=%v", ok, wait)
	}
	if !allowed("other") {
		t.Fatalf("limits must be per key")
	}
	now = now.Add(time.Second)
	if !allowed("ip") {
		t.Fatalf("expected a token after one second at 60/min")
	}
}

func TestTokenBucketEvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"a", "b", "c"} {
		l.take(ip)
	}
	l.take("b")
	now = now.Add(time.Minute)
	l.take("c")
	if len(l.state) != 1 {
		t.Fatalf("expected only the active client to remain, got %d buckets", len(l.state))
	}
	if ok, wait := l.take("c"); !ok || wait != 0 {
		t.Fatalf("active client must keep its burst, got ok=%v wait=%v", ok, wait)
	}
}

func TestTokenBucketMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(NewSimpleTokenBucket(1, 1).GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestAttemptLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewAttemptLimiter(client, "test", 2, time.Minute)
	var seen []string
	r := gin.New()
	r.POST("/login", l.GinMiddleware(), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		seen = append(seen, string(body))
		c.Status(http.StatusOK)
	})

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := post(`{"roll":"cs101","pin":"0000"}`); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, w.Code)
		}
	}
	w := post(`{"roll":"CS101","pin":"0000"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if w := post(`{"roll":"CS102","pin":"0000"}`); w.Code != http.StatusOK {
		t.Fatalf("other roll must not be limited, got %d", w.Code)
	}
	if len(seen) != 3 || !strings.Contains(seen[0], `"pin":"0000"`) {
		t.Fatalf("handler must receive the original body, got %v", seen)
	}

	mr.FastForward(time.Minute + time.Second)
	if w := post(`{"roll":"CS101","pin":"0000"}`); w.Code != http.StatusOK {
		t.Fatalf("window should have reset, got %d", w.Code)
	}
}

func TestAttemptLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l := NewAttemptLimiter(client, "test", 1, time.Minute)
	mr.Close()

	ok, _, err := l.Allow(context.Background(), "k")
	if err == nil || !ok {
		t.Fatalf("expected fail-open with error, got ok=%v err=%v", ok, err)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	r := gin.New()
	r.Use(RequestID(), Logger(log, "/healthz"), SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id not echoed")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
	if !strings.Contains(buf.String(), `"request_id":"abc-123"`) || !strings.Contains(buf.String(), `"status":418`) {
		t.Fatalf("unexpected log line %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
	if buf.Len() != 0 {
		t.Fatalf("skipped path must not be logged: %s", buf.String())
	}
}
