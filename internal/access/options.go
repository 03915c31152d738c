package access

import "github.com/okian/globepins/pkg/logger"

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithResolver sets the resolver used by Authenticate.
func WithResolver(r ClaimResolver) Option {
	return func(g *Gate) {
		g.resolver = r
	}
}

// WithLogger sets the gate logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}
