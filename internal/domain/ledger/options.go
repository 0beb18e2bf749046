package ledger

import (
	"math/rand"
	"time"

	"github.com/okian/xpboard/pkg/logger"
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithCooldown sets the minimum time between two message awards for one user.
func WithCooldown(d time.Duration) Option {
	return func(l *Ledger) {
		if d >= 0 {
			l.cooldown = d
		}
	}
}

// WithGainPolicy sets the per-character rate and the clamp applied to message gains.
func WithGainPolicy(perChar float64, minGain, maxGain int64) Option {
	return func(l *Ledger) {
		if perChar >= 0 && minGain >= 0 && maxGain >= minGain {
			l.perChar = perChar
			l.minGain = minGain
			l.maxGain = maxGain
		}
	}
}

// WithJitter replaces the random bonus added to every message gain.
// The function must return a value in [0, 3].
func WithJitter(fn func() int64) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.jitter = fn
		}
	}
}

// WithSeed makes the default jitter deterministic.
func WithSeed(seed int64) Option {
	return func(l *Ledger) {
		l.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}
