package service

import "time"

// Clock abstracts time for deterministic testing of expiry and revocation
// behavior. Production code uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
