// Package startup provides the shared clock handed to every coordinator
// service at construction time.
package startup

import (
	"time"
)

// Nower is a function that can return the current time.
type Nower func() time.Time

// Clock is the time source behind every document timestamp and timeout
// decision. Using a single injected clock keeps timing deterministic in
// tests.
type Clock struct {
	now Nower
}

// Now provides a value for the current time.
func (c *Clock) Now() time.Time {
	return c.now()
}

// Millis returns the current server timestamp in milliseconds, the unit all
// document timestamps are recorded in.
func (c *Clock) Millis() int64 {
	return c.now().UnixMilli()
}

// ClockOpt is a functional option to change the behavior of a clock value
// provided by the NewClock constructor.
type ClockOpt func(*Clock)

// WithNower allows tests to control the value returned by Now.
func WithNower(n Nower) ClockOpt {
	return func(c *Clock) {
		c.now = n
	}
}

// NewClock constructs a Clock using time.Now unless overridden by WithNower.
func NewClock(opts ...ClockOpt) *Clock {
	c := &Clock{}
	for _, o := range opts {
		o(c)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}
