// Package clock is the time source port. Idempotency records are stamped and expired with it.
package clock

import "time"

// Clock returns the current time. Implementations return UTC.
type Clock interface {
	Now() time.Time
}
