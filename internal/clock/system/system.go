// Package system stamps runs and artifacts with wall-clock time.
package system

import "time"

// Clock implements crawler.Clock. Times are UTC so run summaries and
// artifact timestamps compare across hosts.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
