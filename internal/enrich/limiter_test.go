package enrich

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter_SpacesCalls(t *testing.T) {
	interval := 50 * time.Millisecond
	l := NewLimiter(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// first permit is immediate, the next two each wait one interval
	if elapsed < 2*interval-5*time.Millisecond {
		t.Errorf("expected at least %v between three calls, got %v", 2*interval, elapsed)
	}
}

func TestNewLimiter_DefaultInterval(t *testing.T) {
	l := NewLimiter(0)
	if got := l.Limit(); got != 1 {
		t.Errorf("expected 1 permit per second, got %v", got)
	}
	if l.Burst() != 1 {
		t.Errorf("expected burst of 1, got %d", l.Burst())
	}
}
