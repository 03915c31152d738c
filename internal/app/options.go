package service

import (
	"time"

	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/render"
	"github.com/okian/globepins/pkg/logger"
)

// Search defaults.
const (
	DefaultDebounce       = 250 * time.Millisecond
	DefaultSearchLimit    = 10
	DefaultSearchCacheTTL = 30 * time.Second
	DefaultCatalogWait    = 5 * time.Second
)

// Option configures a Controller.
type Option func(*settings)

type settings struct {
	sink        render.Sink
	debounce    time.Duration
	limit       int
	cacheTTL    time.Duration
	catalogWait time.Duration
	onResults   func(string, []types.Point)
	logger      logger.Logger
}

// WithSink sets where camera focus requests go.
func WithSink(s render.Sink) Option {
	return func(c *settings) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithDebounce sets the pause after the last keystroke.
func WithDebounce(d time.Duration) Option {
	return func(c *settings) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithSearchLimit caps the number of results.
func WithSearchLimit(n int) Option {
	return func(c *settings) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithSearchCacheTTL sets how long results for a query and view version are
// reused.
func WithSearchCacheTTL(d time.Duration) Option {
	return func(c *settings) {
		if d > 0 {
			c.cacheTTL = d
		}
	}
}

// WithCatalogWait bounds how long the first search waits for the full
// catalog before falling back to the merged view.
func WithCatalogWait(d time.Duration) Option {
	return func(c *settings) {
		if d > 0 {
			c.catalogWait = d
		}
	}
}

// WithResults registers the callback debounced searches report to.
func WithResults(fn func(query string, results []types.Point)) Option {
	return func(c *settings) {
		c.onResults = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *settings) {
		if l != nil {
			c.logger = l
		}
	}
}
