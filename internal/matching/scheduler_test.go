package matching

import (
	"context"
	"testing"
	"time"

	"stockexchange/internal/models"

	"go.uber.org/zap"
)

func TestScheduler_RunsSweepsUntilCancelled(t *testing.T) {
	store := newFakeStore()
	store.add(order(1, models.Sell, "10", 10, baseTime))
	store.add(order(2, models.Buy, "10", 10, baseTime.Add(time.Second)))
	engine := newTestEngine(store, baseTime)

	scheduler := NewScheduler(engine, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}

	if len(store.executions) != 1 {
		t.Fatalf("expected the crossing pair to trade exactly once, got %d executions", len(store.executions))
	}
	if store.queries == 0 {
		t.Error("expected the scheduler to have driven at least one sweep")
	}
	checkInvariants(t, store)
}
