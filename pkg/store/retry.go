package store

import "time"

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Retryer re-runs a failed operation with a linearly increasing delay between
// attempts (base, 2×base, ...). Every failure is retried the same way; when
// the attempt budget is exhausted the last error is returned.
//
// Callers must only hand it operations that are safe to repeat: reads,
// absolute updates, upserts, and deletes keyed on immutable values. Plain
// inserts without a caller-supplied key belong outside the retry path.
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Sleep is swapped out in tests. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// NewRetryer returns a Retryer with the default bound of three attempts and a
// one-second base delay.
func NewRetryer() Retryer {
	return Retryer{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

// Do runs op until it succeeds or the attempt budget runs out.
func (r Retryer) Do(op func() error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			sleep(time.Duration(attempt) * r.BaseDelay)
		}
	}
	return lastErr
}
