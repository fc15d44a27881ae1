// Package clock supplies the reference date for scoring and decisions.
// Production uses the wall clock; demo and test runs pin a fixed date
// so results are reproducible against historical data.
package clock

import (
	"fmt"
	"time"

	"github.com/credapprove/credit-service/internal/dates"
)

// Clock yields the current calendar date.
type Clock interface {
	Today() time.Time
}

type systemClock struct{}

func (systemClock) Today() time.Time {
	return dates.Midnight(time.Now().UTC())
}

// System returns a clock backed by real wall-clock time.
func System() Clock {
	return systemClock{}
}

type fixedClock struct {
	date time.Time
}

func (f fixedClock) Today() time.Time {
	return f.date
}

// Fixed returns a clock pinned to the given date.
func Fixed(date time.Time) Clock {
	return fixedClock{date: dates.Midnight(date)}
}

// FromReference builds a clock from the REFERENCE_DATE setting: empty
// means the system clock, otherwise a YYYY-MM-DD date to pin.
func FromReference(ref string) (Clock, error) {
	if ref == "" {
		return System(), nil
	}
	date, err := time.Parse("2006-01-02", ref)
	if err != nil {
		return nil, fmt.Errorf("invalid reference date %q: %w", ref, err)
	}
	return Fixed(date), nil
}

// IsFixed reports whether the clock is pinned to a reference date.
func IsFixed(c Clock) bool {
	_, ok := c.(fixedClock)
	return ok
}
