package supervisor

import (
	"math/rand"
	"time"
)

// DelayStrategy decides how long to wait between iterations. The default
// policy is a fixed delay with no backoff: a crashing child is restarted
// on the same cadence as a healthy one. Backoff is strictly opt-in.
type DelayStrategy interface {
	// Next returns the delay before the following iteration, given
	// whether the child just exited successfully.
	Next(success bool) time.Duration
}

// FixedDelay waits the same interval after every exit.
type FixedDelay time.Duration

func (d FixedDelay) Next(success bool) time.Duration {
	return time.Duration(d)
}

// ExponentialBackoff grows the delay after consecutive failures and
// resets to the base interval after any success.
type ExponentialBackoff struct {
	Initial    time.Duration // Base delay, also used after success
	Max        time.Duration // Delay cap
	Multiplier float64       // Growth factor per consecutive failure
	Jitter     bool          // Add up to 10% random jitter

	current time.Duration
}

// NewExponentialBackoff returns a backoff strategy with the given base
// and cap, using the conventional doubling multiplier.
func NewExponentialBackoff(initial, max time.Duration, jitter bool) *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial:    initial,
		Max:        max,
		Multiplier: 2.0,
		Jitter:     jitter,
	}
}

func (b *ExponentialBackoff) Next(success bool) time.Duration {
	if success || b.current == 0 {
		b.current = b.Initial
	} else {
		b.current = time.Duration(float64(b.current) * b.Multiplier)
		if b.current > b.Max {
			b.current = b.Max
		}
	}

	d := b.current
	if b.Jitter {
		d += time.Duration(rand.Int63n(int64(d)/10 + 1))
	}
	return d
}
