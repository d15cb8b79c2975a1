package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before message arrived")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: TypePhotoDelete, Body: []byte("students/abc")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ch, _ := q.Consume(ctx)
	msg := receive(t, ch)
	if msg.Type != TypePhotoDelete || string(msg.Body) != "students/abc" {
		t.Fatalf("unexpected message %+v", msg)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("consumer did not stop")
	}
}

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewRedisQueue(client, "")
	q.timeout = 100 * time.Millisecond
	if err := q.Publish(ctx, Message{Type: TypePhotoDelete, Body: []byte("students/a|b")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n, _ := client.LLen(ctx, DefaultKey).Result(); n != 1 {
		t.Fatalf("expected 1 queued item, got %d", n)
	}

	ch, _ := q.Consume(ctx)
	msg := receive(t, ch)
	if msg.Type != TypePhotoDelete || string(msg.Body) != "students/a|b" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.EnqueuedAt.IsZero() {
		t.Fatalf("expected publish to stamp the enqueue time")
	}
}

func TestDecodeNonJSONEntry(t *testing.T) {
	msg := decode("raw")
	if msg.Type != "" || string(msg.Body) != "raw" {
		t.Fatalf("unexpected message %+v", msg)
	}
}
