// Package platform implements the small host services the accessory stack needs besides BLE: a
// monotonic clock and a cryptographically strong random source.
package platform

import (
	"crypto/rand"
	"time"

	"github.com/hapble/peripheral/internal/log"
)

// Clock reports monotonic time elapsed since it was created.
type Clock struct {
	origin time.Time
}

func NewClock() *Clock {
	return &Clock{origin: time.Now()}
}

// Now returns the time elapsed since c was created. The value never decreases.
func (c *Clock) Now() time.Duration {
	return time.Since(c.origin)
}

// Random fills buffers from the operating system's CSPRNG.
type Random struct{}

// Fill overwrites b with random bytes. An empty buffer is left untouched.
func (Random) Fill(b []byte) {
	if len(b) == 0 {
		return
	}
	if _, err := rand.Read(b); err != nil {
		log.Error("crypto/rand failed: %s", err)
	}
}
