package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/rs/zerolog"
)

type fakeRunner struct {
	err     error
	delay   time.Duration
	calls   int32
	active  int32
	overlap int32
}

func (r *fakeRunner) Run(ctx context.Context, user string) (ingest.RunSummary, error) {
	atomic.AddInt32(&r.calls, 1)
	if atomic.AddInt32(&r.active, 1) > 1 {
		atomic.StoreInt32(&r.overlap, 1)
	}
	defer atomic.AddInt32(&r.active, -1)

	time.Sleep(r.delay)
	return ingest.RunSummary{RunID: "run-1", User: user, Batches: 2, Inserted: 7, Duplicates: 1}, r.err
}

func doRequest(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, SyncResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body SyncResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestSync(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		runErr     error
		wantStatus int
		wantCalls  int32
		wantError  string
	}{
		{
			name:       "success",
			target:     "/sync?user=rj",
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "missing user",
			target:     "/sync",
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
			wantError:  "user is required",
		},
		{
			name:       "run failure",
			target:     "/sync?user=rj",
			runErr:     errors.New("artist enrichment: malformed"),
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
			wantError:  "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.runErr}
			s := New(":0", runner, zerolog.Nop())

			rec, body := doRequest(t, s.Router(), http.MethodPost, tt.target)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if runner.calls != tt.wantCalls {
				t.Errorf("runner calls = %d, want %d", runner.calls, tt.wantCalls)
			}
			if !strings.Contains(body.Error, tt.wantError) {
				t.Errorf("error = %q, want it to contain %q", body.Error, tt.wantError)
			}
			if tt.wantStatus == http.StatusOK && (body.Persisted != 7 || body.RunID != "run-1" || body.User != "rj") {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestSync_WrongMethod(t *testing.T) {
	s := New(":0", &fakeRunner{}, zerolog.Nop())

	rec, _ := doRequest(t, s.Router(), http.MethodGet, "/sync?user=rj")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestSync_Serialized(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	h := New(":0", runner, zerolog.Nop()).Router()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/sync?user=rj", nil)
			h.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	if runner.calls != 4 {
		t.Errorf("expected 4 runs, got %d", runner.calls)
	}
	if runner.overlap != 0 {
		t.Error("runs overlapped")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := New(":0", &fakeRunner{}, zerolog.Nop()).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics endpoint did not serve the default registry")
	}
}
