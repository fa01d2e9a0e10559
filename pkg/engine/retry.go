package engine

import (
	"errors"
	"fmt"
)

// ErrConflict marks a contention failure: conflicting concurrent access that
// is safe to retry from scratch. Backends wrap or return it directly.
var ErrConflict = errors.New("transaction conflict")

// IsContention reports whether err is a retryable contention failure.
func IsContention(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Retries bounds re-attempts after contention. The zero value is unbounded.
type Retries struct {
	limited bool
	max     int
}

// Unbounded retries contention failures forever.
var Unbounded = Retries{}

// Limit allows at most n re-attempts after the first invocation, so a body
// runs at most n+1 times.
func Limit(n int) Retries {
	if n < 0 {
		n = 0
	}
	return Retries{limited: true, max: n}
}

// Allows reports whether another re-attempt fits the budget given how many
// have already happened.
func (r Retries) Allows(used int) bool {
	return !r.limited || used < r.max
}

func (r Retries) String() string {
	if !r.limited {
		return "unbounded"
	}
	return fmt.Sprintf("%d", r.max)
}
