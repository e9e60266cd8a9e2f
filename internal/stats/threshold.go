// Package stats contains the request statistics report.
package stats

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// AdaptiveLimit is the raw limit value that selects the adaptive threshold.
const AdaptiveLimit int64 = -1

// adaptiveMargin lifts the adaptive threshold above the mean.
const adaptiveMargin = 0.2

// ErrInvalidThreshold is returned for negative limits other than AdaptiveLimit.
var ErrInvalidThreshold = errors.New("threshold must be >= 0 or -1 (adaptive)")

// Threshold is either a fixed minimum counter value or adaptive.
// The zero value is Fixed(0), which reports every counter.
type Threshold struct {
	adaptive bool
	value    int64
}

// Fixed returns a threshold that keeps counters with value >= v.
func Fixed(v int64) Threshold {
	return Threshold{value: v}
}

// Adaptive returns a threshold derived from the store aggregates on each report.
func Adaptive() Threshold {
	return Threshold{adaptive: true}
}

// ThresholdFromLimit maps the raw console form: -1 is adaptive, n >= 0 is fixed.
func ThresholdFromLimit(limit int64) (Threshold, error) {
	switch {
	case limit == AdaptiveLimit:
		return Adaptive(), nil
	case limit < 0:
		return Threshold{}, fmt.Errorf("%w: %d", ErrInvalidThreshold, limit)
	default:
		return Fixed(limit), nil
	}
}

// IsAdaptive reports whether the threshold must be derived before use.
func (t Threshold) IsAdaptive() bool {
	return t.adaptive
}

// Value returns the fixed value. It is 0 for an adaptive threshold.
func (t Threshold) Value() int64 {
	return t.value
}

// Limit returns the raw console form of the threshold.
func (t Threshold) Limit() int64 {
	if t.adaptive {
		return AdaptiveLimit
	}
	return t.value
}

func (t Threshold) String() string {
	if t.adaptive {
		return "adaptive"
	}
	return fmt.Sprintf("%d", t.value)
}

// Resolve returns the fixed threshold to filter with. Fixed thresholds are
// returned as is; adaptive ones are derived from count and sum.
func (t Threshold) Resolve(count, sum int64) Threshold {
	if !t.adaptive {
		return t
	}
	return Fixed(DeriveThreshold(count, sum))
}

// DeriveThreshold returns the mean counter value plus a 20% margin, rounded
// half-up to the nearest integer. With no counters there is no mean and the
// threshold is 0.
func DeriveThreshold(count, sum int64) int64 {
	if count <= 0 {
		return 0
	}
	avg := float64(sum) / float64(count)
	// Inputs are non-negative, so math.Round (half away from zero) is half-up.
	return int64(math.Round(avg + adaptiveMargin*avg))
}

// MeetsThreshold reports whether value passes the inclusive minimum.
func MeetsThreshold(value, threshold int64) bool {
	return value >= threshold
}

// MatchesPattern reports whether name contains pattern. Matching is
// case-sensitive and unanchored; the empty pattern matches every name.
func MatchesPattern(name, pattern string) bool {
	return strings.Contains(name, pattern)
}
