package stream

import (
	"time"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 30 * time.Second
)

// Backoff returns the reconnect delay for a given retry count:
// baseDelay * 2^retry, capped at maxDelay. Negative counts get baseDelay.
func Backoff(retry int) time.Duration {
	if retry < 0 {
		return baseDelay
	}

	// 2^30s already exceeds any cap we would set.
	if retry > 30 {
		return maxDelay
	}

	d := baseDelay * time.Duration(1<<retry)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
