package model

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// Horizon lists forecast steps relative to the cutoff: 1 is the first step after the last
// observation, 0 and negative steps are in-sample.
type Horizon []int

// HorizonRange returns the steps 1..n.
func HorizonRange(n int) Horizon {
	h := make(Horizon, n)
	for i := range h {
		h[i] = i + 1
	}
	return h
}

// Validate checks that h is non-empty and free of duplicates.
func (h Horizon) Validate() error {
	if len(h) == 0 {
		return errors.NewValidationError("fh", "forecasting horizon must not be empty", h)
	}
	seen := make(map[int]struct{}, len(h))
	for _, s := range h {
		if _, dup := seen[s]; dup {
			return errors.NewValidationError("fh", fmt.Sprintf("duplicate step %d", s), h)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Sorted returns the steps in ascending order.
func (h Horizon) Sorted() Horizon {
	out := slices.Clone(h)
	slices.Sort(out)
	return out
}

// IsInsample reports whether any step is at or before the cutoff.
func (h Horizon) IsInsample() bool {
	return slices.ContainsFunc(h, func(s int) bool { return s <= 0 })
}

// Absolute converts the steps to time points after cutoff.
func (h Horizon) Absolute(cutoff int64) []int64 {
	out := make([]int64, len(h))
	for i, s := range h {
		out[i] = cutoff + int64(s)
	}
	return out
}

// Resolve returns fh when set, otherwise the horizon remembered from fit. It fails when neither
// is available.
func Resolve(fh, fitted Horizon) (Horizon, error) {
	if fh == nil {
		fh = fitted
	}
	if fh == nil {
		return nil, errors.NewValidationError("fh", "no forecasting horizon passed to predict and none was given to fit", nil)
	}
	return fh, fh.Validate()
}
