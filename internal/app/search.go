package service

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/globepins/internal/domain/dedupe"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/pkg/logger"
	"github.com/okian/globepins/pkg/metrics"
)

// State is the search interaction state.
type State int

// Search states.
const (
	StateIdle State = iota
	StateDebounced
	StateQuerying
	StateResults
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebounced:
		return "debounced"
	case StateQuerying:
		return "querying"
	case StateResults:
		return "results"
	}
	return "unknown"
}

// State returns the current search state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Type records a keystroke. Each call restarts the debounce timer; when it
// fires the query runs and the results callback is invoked. An empty query
// returns to Idle at once.
func (c *Controller) Type(ctx context.Context, query string) {
	c.mu.Lock()
	c.cancelLocked()
	c.seq++
	seq := c.seq
	if strings.TrimSpace(query) == "" {
		c.state = StateIdle
		c.mu.Unlock()
		c.deliver(query, nil)
		return
	}
	c.state = StateDebounced
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(ctx, seq, query) })
	c.mu.Unlock()
}

// cancelLocked stops a pending debounce. Caller holds mu.
func (c *Controller) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fire(ctx context.Context, seq uint64, query string) {
	if !c.advance(seq, StateDebounced, StateQuerying) {
		return
	}
	results := c.Search(ctx, query)
	if !c.advance(seq, StateQuerying, StateResults) {
		return
	}
	c.deliver(query, results)
}

// advance moves from one state to the next if no newer keystroke arrived.
func (c *Controller) advance(seq uint64, from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq || c.state != from {
		return false
	}
	c.state = to
	return true
}

func (c *Controller) deliver(query string, results []types.Point) {
	if c.onResults != nil {
		c.onResults(query, results)
	}
}

// Search returns at most limit cities whose label contains query, ignoring
// case. Pinned cities come first and each identity appears once. The first
// search hydrates the full catalog.
func (c *Controller) Search(ctx context.Context, query string) []types.Point {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	start := time.Now()
	if err := c.hydrate(ctx); err != nil {
		c.log.Warn(ctx, "catalog hydration failed; searching the merged view", logger.Error(err))
	}

	v := c.views.View()
	key := strconv.FormatUint(v.Version, 10) + "|" + q
	if hit, ok := c.results.Get(key); ok {
		metrics.RecordSearchCache(true)
		return hit.([]types.Point)
	}
	metrics.RecordSearchCache(false)

	out := match(q, c.limit, v.Points, v.Catalog)
	c.results.SetDefault(key, out)
	metrics.RecordSearch(float64(time.Since(start).Microseconds()) / 1000)
	return out
}

// hydrate requests the full catalog and waits until it is in the view.
func (c *Controller) hydrate(ctx context.Context) error {
	if err := c.views.EnsureAllCities(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.catalogWait)
	defer cancel()
	return c.views.WaitCatalog(ctx)
}

// match scans the sources in order, keeps the first point per key and then
// moves pinned points ahead of the rest.
func match(q string, limit int, sources ...[]types.Point) []types.Point {
	seen := dedupe.New()
	var hits []types.Point
	for _, pts := range sources {
		for _, p := range pts {
			if !strings.Contains(strings.ToLower(p.Label), q) {
				continue
			}
			if seen.SeenAndRecord(p.Key) {
				continue
			}
			hits = append(hits, p)
		}
	}
	slices.SortStableFunc(hits, func(a, b types.Point) int {
		switch {
		case a.Pinned == b.Pinned:
			return 0
		case a.Pinned:
			return -1
		default:
			return 1
		}
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
