package gateway

import (
	"time"

	"github.com/okian/globepins/pkg/logger"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithClock sets the clock used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}
