package utils

import "time"

// TimeProvider stamps sealed blocks
type TimeProvider interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now implements TimeProvider
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns At. Chains sealing blocks on a FixedClock still
// advance one second per block.
type FixedClock struct {
	At time.Time
}

// Now implements TimeProvider
func (c FixedClock) Now() time.Time {
	return c.At
}
