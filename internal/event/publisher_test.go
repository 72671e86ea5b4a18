package event

import (
	"context"
	"testing"
	"time"

	"presence-auth/internal/domain"
)

func TestMemoryPublisher_FanOut(t *testing.T) {
	pub := NewMemoryPublisher()

	var first, second []domain.Event
	pub.Subscribe(func(ev domain.Event) { first = append(first, ev) })
	pub.Subscribe(func(ev domain.Event) { second = append(second, ev) })

	ev := domain.Event{
		Type:       domain.EventUserConnected,
		UserID:     "u1",
		OccurredAt: time.Now().UTC(),
	}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both subscribers to receive the event, got %d and %d", len(first), len(second))
	}
	if first[0].Type != domain.EventUserConnected || first[0].UserID != "u1" {
		t.Fatalf("unexpected event: %+v", first[0])
	}
}

func TestMemoryPublisher_NoSubscribers(t *testing.T) {
	pub := NewMemoryPublisher()

	err := pub.Publish(context.Background(), domain.Event{Type: domain.EventClientConnected})
	if err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}

func TestMemoryPublisher_CancelledContext(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pub.Publish(ctx, domain.Event{Type: domain.EventClientConnected}); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
