package model

import (
	"strconv"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// Interval bounds used in PredictInterval column names.
const (
	BoundLower = "lower"
	BoundUpper = "upper"
)

// IntervalColumn names the column holding one bound of a coverage interval, e.g. "sales|0.9|lower".
func IntervalColumn(variable string, coverage float64, bound string) string {
	return variable + "|" + strconv.FormatFloat(coverage, 'f', -1, 64) + "|" + bound
}

// CovColumn names the covariance column of variable against horizon step, e.g. "sales|3".
func CovColumn(variable string, step int) string {
	return variable + "|" + strconv.Itoa(step)
}

// ValidateCoverage checks that every coverage lies strictly between 0 and 1.
func ValidateCoverage(coverage []float64) error {
	if len(coverage) == 0 {
		return errors.NewValidationError("coverage", "at least one coverage is required", coverage)
	}
	for _, c := range coverage {
		if !(c > 0 && c < 1) {
			return errors.NewValidationError("coverage", "must lie in (0, 1)", c)
		}
	}
	return nil
}
