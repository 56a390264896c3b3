package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/brojonat/mcphub/service/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxCandidates caps how many filtered items are sent for scoring.
	DefaultMaxCandidates = 25
	defaultConcurrency   = 5
)

// Response is the outcome of a search.
type Response struct {
	Query   string   `json:"query"`
	Mode    Mode     `json:"mode"`
	Results []Result `json:"results"`
	// Degraded is true when pro mode was requested but basic results were returned.
	Degraded bool `json:"degraded,omitempty"`
	// Error is set when the items to search could not be loaded. Results
	// is empty in that case.
	Error string `json:"error,omitempty"`
}

// RankerConfig configures a Ranker.
type RankerConfig struct {
	Scorer        Scorer
	MaxCandidates int
	Concurrency   int
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Ranker runs basic and pro searches.
type Ranker struct {
	scorer        Scorer
	maxCandidates int
	concurrency   int
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewRanker creates a Ranker. A nil scorer makes every pro search degrade to basic.
func NewRanker(cfg RankerConfig) *Ranker {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ranker{
		scorer:        cfg.Scorer,
		maxCandidates: cfg.MaxCandidates,
		concurrency:   cfg.Concurrency,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// Search filters items by query and, in pro mode, re-ranks the first
// MaxCandidates matches by relevance. If any candidate cannot be scored the
// basic result is returned unchanged.
func (r *Ranker) Search(ctx context.Context, items []Item, query string, pro bool) Response {
	start := time.Now()
	basic := Filter(items, query)

	resp := Response{Query: query, Mode: ModeBasic, Results: basic}
	if !pro || len(basic) == 0 {
		r.metrics.RecordSearch(string(resp.Mode), time.Since(start).Seconds())
		return resp
	}

	ranked, err := r.rank(ctx, query, basic)
	if err != nil {
		reason := "scorer_error"
		if errors.Is(err, ErrInferenceUnavailable) {
			reason = "unavailable"
		}
		r.logger.WarnContext(ctx, "pro search fell back to basic results",
			"query", query,
			"reason", reason,
			"error", err,
		)
		r.metrics.RecordSearchFallback(reason)
		resp.Degraded = true
		r.metrics.RecordSearch(string(ModePro), time.Since(start).Seconds())
		return resp
	}

	resp.Mode = ModePro
	resp.Results = ranked
	r.metrics.RecordSearch(string(resp.Mode), time.Since(start).Seconds())
	return resp
}

func (r *Ranker) rank(ctx context.Context, query string, basic []Result) ([]Result, error) {
	if r.scorer == nil {
		return nil, ErrInferenceUnavailable
	}

	n := len(basic)
	if n > r.maxCandidates {
		n = r.maxCandidates
	}
	scores := make([]float64, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			s, err := r.scorer.Score(gctx, query, basic[i].Item)
			if err != nil {
				return err
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := make([]Result, n)
	for i := 0; i < n; i++ {
		score := scores[i]
		scored[i] = Result{Item: basic[i].Item, Score: &score}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return *scored[a].Score > *scored[b].Score
	})

	out := make([]Result, 0, len(basic))
	out = append(out, scored...)
	out = append(out, basic[n:]...)
	return out, nil
}
