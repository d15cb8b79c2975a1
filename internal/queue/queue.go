// Package queue carries background jobs between the API and the cleanup worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding background jobs.
const DefaultKey = "rollbook:jobs"

// TypePhotoDelete asks a janitor to remove an image from external storage.
// Body is the image's public id.
const TypePhotoDelete = "photo.delete"

// Message is one job. EnqueuedAt is stamped on publish when zero.
type Message struct {
	Type       string    `json:"type"`
	Body       []byte    `json:"body"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is implemented by the in-process and Redis backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

func stamp(msg Message) Message {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	return msg
}

// InMemory is a bounded channel queue for single-process deployments.
type InMemory struct {
	jobs chan Message
}

// NewInMemory creates a queue holding up to size pending jobs.
func NewInMemory(size int) *InMemory {
	return &InMemory{jobs: make(chan Message, size)}
}

// Publish blocks while the queue is full, until ctx is done.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.jobs <- stamp(msg):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume forwards jobs until ctx is cancelled, then closes the channel.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			var msg Message
			select {
			case msg = <-q.jobs:
			case <-ctx.Done():
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue stores JSON-encoded jobs in a Redis list (LPUSH in, BRPOP out).
type RedisQueue struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	backoff time.Duration
}

// NewRedisQueue uses DefaultKey when key is empty.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, timeout: 5 * time.Second, backoff: 500 * time.Millisecond}
}

// Publish appends the job to the list.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(stamp(msg))
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume polls with BRPOP. Connection errors are retried after a short
// backoff; undecodable entries are delivered with an empty Type.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			res, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				select {
				case <-time.After(q.backoff):
				case <-ctx.Done():
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			select {
			case out <- decode(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decode(s string) Message {
	var msg Message
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return Message{Body: []byte(s)}
	}
	return msg
}
