package resolution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sybil/internal/config"
	"sybil/internal/models"
)

// Searcher executes one evidence sub-query against an external research
// capability (web search plus fact extraction). Implementations live
// outside the core; tests use in-memory fakes.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Evidence, error)
}

// FanoutGatherer fans event resolution queries out over a bounded worker
// pool. Sub-query failures are logged and dropped; the gatherer returns
// whatever evidence it collected. Only a total failure (every sub-query
// errored) is reported as an error.
type FanoutGatherer struct {
	Searcher Searcher
	Config   config.ResolutionConfig
	Logger   *zap.Logger
}

func (g *FanoutGatherer) Gather(ctx context.Context, event *models.Event) ([]Evidence, error) {
	if g == nil || g.Searcher == nil || event == nil {
		return nil, nil
	}
	queries := BuildQueries(event, g.Config.MaxQueries)
	if len(queries) == 0 {
		return nil, nil
	}

	timeout := g.Config.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workers := g.Config.Workers
	if workers <= 0 {
		workers = 4
	}
	qps := g.Config.QueryRate
	if qps <= 0 {
		qps = 2.0
	}
	limiter := rate.NewLimiter(rate.Limit(qps), 1)
	pool := pond.NewPool(workers, pond.WithContext(ctx))

	var mu sync.Mutex
	var collected []Evidence
	var failed int

	for _, query := range queries {
		// Pace dispatch to keep the external search within rate limits.
		// Once the budget context expires, no new sub-queries start.
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		query := query
		pool.Submit(func() {
			evidence, err := g.searchWithRetry(ctx, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if g.Logger != nil {
					g.Logger.Warn("evidence sub-query failed",
						zap.String("query", query), zap.Error(err))
				}
				return
			}
			collected = append(collected, evidence...)
		})
	}
	pool.StopAndWait()

	if len(collected) == 0 && failed > 0 {
		return nil, fmt.Errorf("all %d evidence sub-queries failed", failed)
	}
	return collected, nil
}

func (g *FanoutGatherer) searchWithRetry(ctx context.Context, query string) ([]Evidence, error) {
	var out []Evidence
	op := func() error {
		evidence, err := g.Searcher.Search(ctx, query)
		if err != nil {
			return err
		}
		out = evidence
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildQueries derives targeted search queries from the event wording,
// biased toward outcome and fact-check phrasing.
func BuildQueries(event *models.Event, limit int) []string {
	if event == nil {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	title := strings.TrimSpace(event.Title)
	if title == "" {
		return nil
	}
	lower := strings.ToLower(title)

	var queries []string
	if containsAny(lower, "elected", "won", "defeated", "beat") {
		queries = append(queries,
			title+" result outcome",
			"who won "+title,
			title+" winner",
		)
	}
	if event.ExpectedResolution != nil {
		date := event.ExpectedResolution.UTC().Format("2006-01-02")
		queries = append(queries,
			title+" "+date+" result",
			title+" outcome "+date,
		)
	}
	queries = append(queries,
		"did "+title+" happen",
		title+" confirmed verified",
		title+" official result",
	)
	if containsAny(lower, "was", "were", "did", "happened") {
		queries = append(queries,
			title+" fact check",
			title+" true false",
		)
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
