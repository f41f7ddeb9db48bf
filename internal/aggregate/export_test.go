package aggregate

// WithMarshal replaces the response encoder.
func WithMarshal(fn func(v any) ([]byte, error)) Option {
	return func(a *Aggregator) { a.marshal = fn }
}
