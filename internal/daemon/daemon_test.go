package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/rs/zerolog"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (r *fakeRunner) Run(ctx context.Context, user string) (ingest.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, user)
	summary := ingest.RunSummary{User: user, RunID: "run-" + user, Inserted: len(r.calls)}
	return summary, r.fail[user]
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Interval: time.Hour}, &fakeRunner{}, zerolog.Nop()); err == nil {
		t.Error("expected error without users")
	}
	if _, err := New(Config{Users: []string{"rj"}}, &fakeRunner{}, zerolog.Nop()); err == nil {
		t.Error("expected error without interval")
	}
}

func TestRunOnce_SequentialAndContinuesPastFailures(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"bob": errors.New("lastfm: error 6: User not found")}}
	d, err := New(Config{
		Users:     []string{"alice", "bob", "carol"},
		Interval:  time.Hour,
		StateFile: filepath.Join(t.TempDir(), "state.json"),
	}, runner, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d.RunOnce(context.Background())

	want := []string{"alice", "bob", "carol"}
	if len(runner.calls) != 3 {
		t.Fatalf("calls = %v, want %v", runner.calls, want)
	}
	for i := range want {
		if runner.calls[i] != want[i] {
			t.Errorf("calls = %v, want %v", runner.calls, want)
		}
	}

	bob, ok := d.State().Get("bob")
	if !ok || bob.Error == "" {
		t.Errorf("expected bob's failure to be recorded, got %+v", bob)
	}
	carol, ok := d.State().Get("carol")
	if !ok || carol.Error != "" || carol.RunID != "run-carol" {
		t.Errorf("unexpected record for carol %+v", carol)
	}
}

func TestLoop_StopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	d, err := New(Config{Users: []string{"rj"}, Interval: 10 * time.Millisecond}, runner, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Loop(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runner.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	if runner.callCount() < 2 {
		t.Errorf("expected an immediate round plus at least one tick, got %d", runner.callCount())
	}
}
