package yellow

import "time"

// CalculateBackoffDelay returns the reconnect delay for the given attempt
// (1-based): initialDelay × 2^(attempt-1). Attempt numbers below 1 are
// treated as attempt 1.
func CalculateBackoffDelay(initialDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
