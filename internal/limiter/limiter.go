// Package limiter provides per-client request rate limiting.
package limiter

import "time"

// Bracket selects how aggressively an endpoint is limited.
type Bracket int

const (
	// Weak covers cheap reads (structure, static files).
	Weak Bracket = iota
	// Medium covers authentication and listing endpoints.
	Medium
	// Strong covers expensive operations such as archive builds.
	Strong
	// Extreme covers archive builds above the configured size cutoff.
	Extreme
)

// Limits is the window configuration of one bracket.
type Limits struct {
	Window time.Duration
	Max    int
}

// Limiter answers whether a client may proceed under a bracket.
type Limiter interface {
	// Allow reports whether the request is allowed and, when it is not,
	// how long until the window resets.
	Allow(addr string, b Bracket) (bool, time.Duration)
}
