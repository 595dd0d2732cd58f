package alerts

import "time"

// maxBackoffExponent caps the retry delay at 2^12 minutes (about 2.8 days).
const maxBackoffExponent = 12

// RetryDelay is the wait before the next attempt after a failed send when
// attempts sends have already been made: 2, 4, 8, ... minutes.
func RetryDelay(attempts int) time.Duration {
	exp := attempts + 1
	if exp < 1 {
		exp = 1
	}
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	return time.Duration(1<<exp) * time.Minute
}
