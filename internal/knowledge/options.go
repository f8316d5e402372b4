package knowledge

// SearchOption configures a Search call.
type SearchOption func(*SearchConfig)

// SearchConfig is the resolved form of a Search call's options. Exported so
// fakes implementing the search contract can apply options the same way the
// store does.
type SearchConfig struct {
	TopK   int
	Filter map[string]string
}

// NewSearchConfig applies opts over the defaults.
func NewSearchConfig(opts ...SearchOption) SearchConfig {
	cfg := SearchConfig{TopK: 10}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTopK sets the maximum number of results. Default 10.
func WithTopK(k int) SearchOption {
	return func(c *SearchConfig) {
		if k > 0 {
			c.TopK = k
		}
	}
}

// WithFilter adds an exact-match metadata condition. Multiple calls merge;
// all pairs must match.
func WithFilter(key, value string) SearchOption {
	return func(c *SearchConfig) {
		if c.Filter == nil {
			c.Filter = make(map[string]string)
		}
		c.Filter[key] = value
	}
}
