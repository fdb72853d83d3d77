package timeseries

import (
	"sort"
	"strings"
	"time"
)

// Rows maps "{resolution}_timestamp" and "{resolution}_value" keys to columns
// in document order. Timestamp cells hold time.Time, value cells float64, and
// for every resolution present the two columns have equal length.
type Rows map[string][]any

func TimestampKey(resolution string) string { return resolution + "_timestamp" }

func ValueKey(resolution string) string { return resolution + "_value" }

func (r Rows) appendPoint(resolution string, ts time.Time, value float64) {
	r[TimestampKey(resolution)] = append(r[TimestampKey(resolution)], ts)
	r[ValueKey(resolution)] = append(r[ValueKey(resolution)], value)
}

// Resolutions lists the distinct resolution codes present, sorted.
func (r Rows) Resolutions() []string {
	codes := make([]string, 0, len(r)/2)
	for key := range r {
		if strings.HasSuffix(key, "_timestamp") {
			codes = append(codes, strings.TrimSuffix(key, "_timestamp"))
		}
	}
	sort.Strings(codes)
	return codes
}

// Timestamps returns the timestamp column for a resolution in document order.
func (r Rows) Timestamps(resolution string) []time.Time {
	cells := r[TimestampKey(resolution)]
	if len(cells) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(cells))
	for _, cell := range cells {
		if ts, ok := cell.(time.Time); ok {
			out = append(out, ts)
		}
	}
	return out
}

// Values returns the value column for a resolution in document order.
func (r Rows) Values(resolution string) []float64 {
	cells := r[ValueKey(resolution)]
	if len(cells) == 0 {
		return nil
	}
	out := make([]float64, 0, len(cells))
	for _, cell := range cells {
		if value, ok := cell.(float64); ok {
			out = append(out, value)
		}
	}
	return out
}
