package httpmiddleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SimpleTokenBucket is an in-memory per-IP rate limiter for the whole API.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time
	mu       sync.Mutex
	state    map[string]*bucket
	swept    time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewSimpleTokenBucket allows bursts of capacity requests per client IP,
// refilled continuously at perMinute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware enforces the limit per client IP. A non-positive rate
// disables limiting.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if ok, wait := l.take(ip); !ok {
			tooMany(c, wait)
			return
		}
		c.Next()
	}
}

// take spends one token for key. When none is left it reports how long
// until the next token accrues.
func (l *SimpleTokenBucket) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	perSecond := float64(l.rate) / 60
	if now.Sub(l.swept) >= time.Minute {
		l.evictFull(now, perSecond)
		l.swept = now
	}
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), last: now}
		l.state[key] = b
	}
	b.tokens = math.Min(float64(l.capacity), b.tokens+now.Sub(b.last).Seconds()*perSecond)
	b.last = now
	if b.tokens < 1 {
		return false, time.Duration((1 - b.tokens) / perSecond * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

// evictFull drops buckets that have refilled to capacity; a fresh bucket
// starts in the same state.
func (l *SimpleTokenBucket) evictFull(now time.Time, perSecond float64) {
	for key, b := range l.state {
		if b.tokens+now.Sub(b.last).Seconds()*perSecond >= float64(l.capacity) {
			delete(l.state, key)
		}
	}
}

func tooMany(c *gin.Context, retry time.Duration) {
	c.Header("Retry-After", formatSeconds(retry))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "kind": "rate_limited"})
}
