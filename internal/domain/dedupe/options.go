package dedupe

// Option configures the in-memory deduper.
type Option func(*window)

// WithMaxSize bounds how many ids are remembered. Once full the oldest id is
// forgotten first. A non-positive value disables the bound.
func WithMaxSize(maxSize int) Option {
	return func(d *window) {
		d.maxSize = maxSize
	}
}
