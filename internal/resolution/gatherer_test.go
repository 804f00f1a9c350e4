package resolution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"sybil/internal/config"
	"sybil/internal/models"
)

func TestBuildQueriesOutcomeKeywords(t *testing.T) {
	event := &models.Event{Title: "Candidate X won the 2026 senate race"}
	queries := BuildQueries(event, 10)
	if len(queries) == 0 {
		t.Fatalf("no queries built")
	}
	joined := strings.Join(queries, "\n")
	if !strings.Contains(joined, "who won Candidate X won the 2026 senate race") {
		t.Fatalf("missing winner query in %q", joined)
	}
	if !strings.Contains(joined, "official result") {
		t.Fatalf("missing official result query in %q", joined)
	}
}

func TestBuildQueriesIncludesExpectedDate(t *testing.T) {
	date := time.Date(2026, 11, 3, 12, 0, 0, 0, time.UTC)
	event := &models.Event{Title: "Turnout exceeds 60 percent", ExpectedResolution: &date}
	queries := BuildQueries(event, 10)
	joined := strings.Join(queries, "\n")
	if !strings.Contains(joined, "2026-11-03") {
		t.Fatalf("expected date in queries, got %q", joined)
	}
}

func TestBuildQueriesDedupesAndLimits(t *testing.T) {
	event := &models.Event{Title: "Candidate won"}
	queries := BuildQueries(event, 3)
	if len(queries) != 3 {
		t.Fatalf("len = %d, want limit 3", len(queries))
	}
	seen := map[string]struct{}{}
	for _, q := range queries {
		if _, ok := seen[q]; ok {
			t.Fatalf("duplicate query %q", q)
		}
		seen[q] = struct{}{}
	}
}

func TestBuildQueriesEmptyTitle(t *testing.T) {
	if queries := BuildQueries(&models.Event{}, 10); queries != nil {
		t.Fatalf("expected nil for empty title, got %v", queries)
	}
	if queries := BuildQueries(nil, 10); queries != nil {
		t.Fatalf("expected nil for nil event, got %v", queries)
	}
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   int
	failAll bool
	failOdd bool
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]Evidence, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("search backend down")
	}
	if f.failOdd && n%2 == 1 {
		return nil, errors.New("transient search error")
	}
	return []Evidence{ev("reuters.com", 0.9, true)}, nil
}

func testGatherer(searcher Searcher) *FanoutGatherer {
	return &FanoutGatherer{
		Searcher: searcher,
		Config: config.ResolutionConfig{
			MaxQueries:   4,
			QueryTimeout: 5 * time.Second,
			Workers:      2,
			QueryRate:    1000,
		},
		Logger: zap.NewNop(),
	}
}

func TestGatherCollectsEvidence(t *testing.T) {
	gatherer := testGatherer(&fakeSearcher{})
	event := &models.Event{ID: "ev-1", Title: "Candidate won the race"}
	evidence, err := gatherer.Gather(context.Background(), event)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(evidence) == 0 {
		t.Fatalf("no evidence collected")
	}
}

func TestGatherTotalFailure(t *testing.T) {
	gatherer := testGatherer(&fakeSearcher{failAll: true})
	event := &models.Event{ID: "ev-2", Title: "Candidate won the race"}
	evidence, err := gatherer.Gather(context.Background(), event)
	if err == nil {
		t.Fatalf("expected error when every sub-query fails")
	}
	if len(evidence) != 0 {
		t.Fatalf("unexpected evidence %v", evidence)
	}
}

func TestGatherToleratesPartialFailure(t *testing.T) {
	// Odd-numbered calls fail; the backoff retry absorbs them, and even
	// when some sub-queries exhaust their retries the pass still
	// returns what the rest collected.
	gatherer := testGatherer(&fakeSearcher{failOdd: true})
	event := &models.Event{ID: "ev-3", Title: "Candidate won the race"}
	evidence, err := gatherer.Gather(context.Background(), event)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(evidence) == 0 {
		t.Fatalf("expected evidence despite partial failures")
	}
}
