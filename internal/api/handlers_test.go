package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"FeedCurator/internal/domain"
	"FeedCurator/internal/infrastructure/ledger"
	"FeedCurator/internal/status"
	"FeedCurator/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	lastOpts usecase.Options
	result   domain.RunResult
	err      error
	tracker  *status.Tracker
	rules    []domain.FeedRule
}

func (f *fakeRunner) Run(ctx context.Context, opts usecase.Options) (domain.RunResult, error) {
	f.lastOpts = opts
	return f.result, f.err
}

func (f *fakeRunner) Status() *status.Tracker {
	return f.tracker
}

func (f *fakeRunner) Rules() []domain.FeedRule {
	return f.rules
}

type fakeStats struct {
	stats ledger.Stats
	err   error
}

func (f *fakeStats) Stats(ctx context.Context) (ledger.Stats, error) {
	return f.stats, f.err
}

func newTestServer(runner *fakeRunner, stats *fakeStats) *httptest.Server {
	if runner.tracker == nil {
		runner.tracker = status.NewTracker()
	}
	if stats == nil {
		stats = &fakeStats{}
	}
	handler := NewHandler(runner, stats, slog.Default())
	return httptest.NewServer(NewRouter(handler))
}

func TestRunDefaultsToDryRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: domain.RunResult{RunID: "run-1", DryRun: true}}
	server := newTestServer(runner, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/run", "", nil)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !runner.lastOpts.DryRun {
		t.Fatal("dry_run must default to true")
	}

	var result domain.RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.RunID != "run-1" {
		t.Fatalf("unexpected run ID: %q", result.RunID)
	}
}

func TestRunParsesOptions(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	server := newTestServer(runner, nil)
	defer server.Close()

	url := server.URL + "/api/run?dry_run=false&limit=7" +
		"&feeds=https://a.example/feed.xml&feeds=https://b.example/feed.xml"
	resp, err := http.Post(url, "", nil)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	resp.Body.Close()

	if runner.lastOpts.DryRun {
		t.Fatal("dry_run=false must disable dry run")
	}
	if runner.lastOpts.Limit != 7 {
		t.Fatalf("expected limit 7, got %d", runner.lastOpts.Limit)
	}
	if len(runner.lastOpts.Feeds) != 2 {
		t.Fatalf("expected 2 feed URLs, got %v", runner.lastOpts.Feeds)
	}
}

func TestRunRejectsBadLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	defer server.Close()

	for _, limit := range []string{"abc", "-1"} {
		resp, err := http.Post(server.URL+"/api/run?limit="+limit, "", nil)
		if err != nil {
			t.Fatalf("POST /api/run: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("limit %q: expected 400, got %d", limit, resp.StatusCode)
		}
	}
}

func TestRunConflictWhenActive(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{err: usecase.ErrRunActive}, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/run", "", nil)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestRunNoActiveFeedsIsBadRequest(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{err: usecase.ErrNoActiveFeeds}, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/run", "", nil)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRunInternalError(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{err: fmt.Errorf("pipeline exploded")}, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/run", "", nil)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestStatusWithoutActiveRun(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if running, ok := body["running"].(bool); !ok || running {
		t.Fatalf("expected running=false, got %v", body)
	}
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	tracker := status.NewTracker()
	runID := tracker.Start(2, true, 0)

	server := newTestServer(&fakeRunner{tracker: tracker}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var snap status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.RunID != runID || !snap.Running {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestFeedsListsRules(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{rules: []domain.FeedRule{
		{FeedURL: "https://example.org/feed.xml", Label: "example", Enabled: true},
	}}
	server := newTestServer(runner, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/feeds")
	if err != nil {
		t.Fatalf("GET /api/feeds: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Feeds []domain.FeedRule `json:"feeds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Feeds) != 1 || body.Feeds[0].Label != "example" {
		t.Fatalf("unexpected feeds: %+v", body.Feeds)
	}
}

func TestLedgerStats(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{stats: ledger.Stats{TotalProcessed: 42, Last24h: 5}}
	server := newTestServer(&fakeRunner{}, stats)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/ledger/stats")
	if err != nil {
		t.Fatalf("GET /api/ledger/stats: %v", err)
	}
	defer resp.Body.Close()

	var got ledger.Stats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if got.TotalProcessed != 42 || got.Last24h != 5 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestLedgerStatsError(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, &fakeStats{err: fmt.Errorf("db locked")})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/ledger/stats")
	if err != nil {
		t.Fatalf("GET /api/ledger/stats: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body["status"], "healthy") {
		t.Fatalf("unexpected health body: %v", body)
	}
}
