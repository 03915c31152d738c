package reconcile

import (
	"github.com/okian/globepins/internal/render"
	"github.com/okian/globepins/pkg/logger"
)

// Option configures a Store.
type Option func(*config)

type config struct {
	sink        render.Sink
	showOverlay bool
	capacity    int
	logger      logger.Logger
}

// WithSink sets where merged views are rendered. Defaults to render.Nop.
func WithSink(s render.Sink) Option {
	return func(c *config) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithOverlayVisible sets the initial overlay visibility.
func WithOverlayVisible(v bool) Option {
	return func(c *config) {
		c.showOverlay = v
	}
}

// WithMailboxCapacity bounds the number of pending messages.
func WithMailboxCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
