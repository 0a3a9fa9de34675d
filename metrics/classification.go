package metrics

import (
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// Accuracy returns the fraction of positions where yPred equals yTrue.
func Accuracy[T comparable](yTrue, yPred []T) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("Accuracy", "empty input")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("Accuracy", len(yTrue), len(yPred), 0)
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue)), nil
}

// HarmonicMean combines accuracy and earliness into one score for early classification:
// 2·acc·(1-earliness) / (acc + 1-earliness). Both inputs lie in [0, 1].
func HarmonicMean(accuracy, earliness float64) float64 {
	timeliness := 1 - earliness
	return errors.SafeDivide(2*accuracy*timeliness, accuracy+timeliness)
}
