package clock

import (
	"time"

	clockport "github.com/aid-distribution/ticket-api/internal/ports/out/clock"
)

var _ clockport.Clock = SystemClock{}

// SystemClock reads the wall clock, in UTC so stored timestamps compare across hosts.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
