package timeseries

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownResolution = errors.New("timeseries: unknown resolution")

// Span is one resolution step. Minute spans are fixed-length; day, month and
// year spans follow the calendar, so a single step can be 28 to 366 days long.
type Span struct {
	Minutes int
	Days    int
	Months  int
	Years   int
}

// AddTo returns start advanced by n spans, using calendar arithmetic for
// day/month/year spans.
func (s Span) AddTo(start time.Time, n int) time.Time {
	if s.Minutes != 0 {
		return start.Add(time.Duration(n*s.Minutes) * time.Minute)
	}
	return start.AddDate(n*s.Years, n*s.Months, n*s.Days)
}

var resolutions = map[string]Span{
	"PT1M":  {Minutes: 1},
	"PT15M": {Minutes: 15},
	"PT30M": {Minutes: 30},
	"PT60M": {Minutes: 60},
	"P1D":   {Days: 1},
	"P7D":   {Days: 7},
	"P1M":   {Months: 1},
	"P1Y":   {Years: 1},
}

// LookupResolution maps a duration code such as "PT60M" or "P1D" to its span.
func LookupResolution(code string) (Span, error) {
	span, ok := resolutions[code]
	if !ok {
		return Span{}, fmt.Errorf("%w: %q", ErrUnknownResolution, code)
	}
	return span, nil
}
