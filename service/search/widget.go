package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Default delays between the last input and the search it triggers.
const (
	DefaultQueryDelay = 300 * time.Millisecond
	DefaultModeDelay  = 100 * time.Millisecond
)

// Source returns the items a widget searches over.
type Source func(ctx context.Context) ([]Item, error)

// WidgetConfig configures a Widget.
type WidgetConfig struct {
	Ranker     *Ranker
	Source     Source
	OnResults  func(Response)
	QueryDelay time.Duration
	ModeDelay  time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Widget turns a stream of query edits and mode toggles into searches.
// Bursts of edits collapse into one search, and results of a superseded
// search are discarded.
type Widget struct {
	ranker     *Ranker
	source     Source
	onResults  func(Response)
	queryDelay time.Duration
	modeDelay  time.Duration
	timeout    time.Duration
	logger     *slog.Logger

	debouncer Debouncer

	// deliverMu orders OnResults callbacks; delivered is the last generation handed out.
	deliverMu sync.Mutex
	delivered uint64

	mu         sync.Mutex
	query      string
	pro        bool
	generation uint64
	cancel     context.CancelFunc
	latest     Response
	closed     bool
}

// NewWidget creates a Widget.
func NewWidget(cfg WidgetConfig) *Widget {
	if cfg.Ranker == nil {
		cfg.Ranker = NewRanker(RankerConfig{Logger: cfg.Logger})
	}
	if cfg.QueryDelay <= 0 {
		cfg.QueryDelay = DefaultQueryDelay
	}
	if cfg.ModeDelay <= 0 {
		cfg.ModeDelay = DefaultModeDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnResults == nil {
		cfg.OnResults = func(Response) {}
	}
	return &Widget{
		ranker:     cfg.Ranker,
		source:     cfg.Source,
		onResults:  cfg.OnResults,
		queryDelay: cfg.QueryDelay,
		modeDelay:  cfg.ModeDelay,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		latest:     Response{Mode: ModeBasic, Results: []Result{}},
	}
}

// OnQueryChange records a new query. A blank query clears the results at
// once; anything else is searched after the query delay.
func (w *Widget) OnQueryChange(text string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.query = text
	gen := w.bumpLocked()

	if strings.TrimSpace(text) == "" {
		w.debouncer.Cancel()
		w.latest = Response{Query: text, Mode: modeFor(w.pro), Results: []Result{}}
		resp := w.latest
		w.mu.Unlock()
		w.deliver(gen, resp)
		return
	}

	w.debouncer.Trigger(w.queryDelay, func() { w.run(gen) })
	w.mu.Unlock()
}

// SetProMode toggles re-ranking and re-runs the current query after the mode delay.
func (w *Widget) SetProMode(pro bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pro = pro
	gen := w.bumpLocked()
	w.debouncer.Trigger(w.modeDelay, func() { w.run(gen) })
}

// Results returns the last applied response.
func (w *Widget) Results() Response {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// Close cancels pending and in-flight searches.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.bumpLocked()
	w.debouncer.Cancel()
}

// bumpLocked starts a new generation and cancels the in-flight search.
func (w *Widget) bumpLocked() uint64 {
	w.generation++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return w.generation
}

func (w *Widget) run(gen uint64) {
	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return
	}
	query, pro := w.query, w.pro
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	var resp Response
	if strings.TrimSpace(query) == "" {
		resp = Response{Query: query, Mode: modeFor(pro), Results: []Result{}}
	} else {
		items, err := w.source(ctx)
		if err != nil {
			w.logger.WarnContext(ctx, "search source failed", "query", query, "error", err)
			resp = Response{Query: query, Mode: modeFor(pro), Results: []Result{}, Error: err.Error()}
		} else {
			resp = w.ranker.Search(ctx, items, query, pro)
		}
	}

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		w.logger.DebugContext(ctx, "dropping stale search results", "query", query)
		return
	}
	w.latest = resp
	w.cancel = nil
	w.mu.Unlock()

	w.deliver(gen, resp)
}

func (w *Widget) deliver(gen uint64, resp Response) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	if gen <= w.delivered {
		return
	}
	w.delivered = gen
	w.onResults(resp)
}

func modeFor(pro bool) Mode {
	if pro {
		return ModePro
	}
	return ModeBasic
}
