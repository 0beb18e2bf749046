package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/okian/xpboard/internal/domain/model"
)

func messageEvent(id, author string) model.GatewayEvent {
	return model.GatewayEvent{
		ID:      id,
		Kind:    model.KindMessage,
		Message: &model.MessageEvent{AuthorID: author, Content: "hello"},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, messageEvent("event1", "u1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	event := <-q.Dequeue(ctx)
	if event.ID != "event1" {
		t.Errorf("expected event1, got %v", event.ID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, messageEvent("event1", "u1")) || !q.Enqueue(ctx, messageEvent("event2", "u1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, messageEvent("event3", "u1")) {
		t.Error("expected enqueue to fail when full")
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !q.Enqueue(ctx, messageEvent(fmt.Sprintf("event%d", i), "u1")) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	i := 0
	for e := range q.Dequeue(ctx) {
		if want := fmt.Sprintf("event%d", i); e.ID != want {
			t.Fatalf("position %d: got %s, want %s", i, e.ID, want)
		}
		i++
	}
	if i != 100 {
		t.Errorf("expected to drain 100 events, got %d", i)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("new queue reports closed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, messageEvent("late", "u1")) {
		t.Error("expected enqueue after close to fail")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, messageEvent("event1", "u1")) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}
