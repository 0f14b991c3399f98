package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"backend-steersafe/internal/drive"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, client *Client, timeout time.Duration) []byte {
	t.Helper()
	select {
	case msg := <-client.Send:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for message")
	}
	return nil
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("user-1")
	defer hub.Unregister(client)

	hub.Broadcast("user-1", []byte("hello"))
	if msg := receive(t, client, 100*time.Millisecond); string(msg) != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHubBroadcastOnlyToUser(t *testing.T) {
	hub := NewHub(nil, nil)
	mine := hub.Register("user-1")
	other := hub.Register("user-2")
	defer hub.Unregister(mine)
	defer hub.Unregister(other)

	hub.Broadcast("user-1", []byte("hello"))
	receive(t, mine, 100*time.Millisecond)
	select {
	case <-other.Send:
		t.Fatalf("message leaked to another user")
	default:
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "drive:abc:events" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if userIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected user id")
	}
	if userIDFromChannel("bad") != "" {
		t.Fatalf("expected empty user id")
	}
	if userIDFromChannel("tracking:abc:broadcast") != "" {
		t.Fatalf("expected foreign channel to be rejected")
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("user-2")
	hub.Unregister(client)
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubNotifyEncodesEvent(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("user-3")
	defer hub.Unregister(client)

	hub.Notify(drive.Event{Type: drive.EventPickupWarning, UserID: "user-3", State: drive.State{UserID: "user-3", WarningVisible: true}})

	var event drive.Event
	if err := json.Unmarshal(receive(t, client, 100*time.Millisecond), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != drive.EventPickupWarning || !event.State.WarningVisible {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestHubRedisBroadcastAndSubscribe(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	ws := hub.Register("user-redis")
	defer hub.Unregister(ws)

	hub.Broadcast("user-redis", []byte("ping"))
	if msg := receive(t, ws, time.Second); string(msg) != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}

	// events published by another instance reach local clients
	if err := rdb.Publish(context.Background(), redisChannel("user-redis"), "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if msg := receive(t, ws, time.Second); string(msg) != "pong" {
		t.Fatalf("unexpected message from redis %q", msg)
	}
}

func TestHubRedisUnavailableFallsBackToLocal(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	s.Close()
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	client := hub.Register("user-bad")
	defer hub.Unregister(client)

	hub.Broadcast("user-bad", []byte("ping"))
	if msg := receive(t, client, 100*time.Millisecond); string(msg) != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHubCloseFlushesQueuedEvents(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	other := rdb.Subscribe(ctx, redisChannel("user-1"))
	defer other.Close()
	if _, err := other.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	messages := other.Channel()

	hub := NewHub(rdb, nil)
	const n = 50
	for i := 0; i < n; i++ {
		hub.Broadcast("user-1", []byte("event"))
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	for i := 0; i < n; i++ {
		select {
		case <-messages:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d queued events published", i, n)
		}
	}
}
