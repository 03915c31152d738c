package dedupe

type config struct {
	capacity int
}

// Option configures a Deduper.
type Option func(*config)

// WithCapacity pre-sizes the set for n keys.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}
