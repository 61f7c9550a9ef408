package coordinator

import "time"

// Retry policy defaults. Backoff is exponential from the base delay, capped
// so a long outage never pushes retries past a minute apart.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 60 * time.Second
)

// backoff returns the delay before the next attempt. attempt is the number
// of attempts already made, starting at 1.
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}

	if delay > maxDelay {
		return maxDelay
	}

	return delay
}
