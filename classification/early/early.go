// Package early implements early time series classification: classifiers that label a series from
// a prefix and decide, call by call as the series grows, whether the label is safe to act on.
//
// The decision process is carried in an explicit DecisionState. Predict starts from a fresh
// state, UpdatePredict continues from the state returned by the previous call, so every call is a
// pure transition from (prefix, state) to (labels, decisions, state).
package early

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// NoLabel marks an instance that has not been labelled yet.
const NoLabel = -1

// DecisionState is the per-instance memory of the decision process, indexed like the rows of X.
type DecisionState struct {
	// SafeCounts is the number of consecutive safe predictions of the same label.
	SafeCounts []int
	// LastTimestamps is the prefix length used at the last decision, 0 before the first.
	LastTimestamps []int
	// LastLabels is the label predicted at the last decision, NoLabel before the first.
	LastLabels []int
}

// NewDecisionState returns the state of n instances before any decision.
func NewDecisionState(n int) DecisionState {
	s := DecisionState{
		SafeCounts:     make([]int, n),
		LastTimestamps: make([]int, n),
		LastLabels:     make([]int, n),
	}
	for i := range s.LastLabels {
		s.LastLabels[i] = NoLabel
	}
	return s
}

// Len returns the number of instances.
func (s DecisionState) Len() int { return len(s.SafeCounts) }

// Clone returns a deep copy.
func (s DecisionState) Clone() DecisionState {
	return DecisionState{
		SafeCounts:     slices.Clone(s.SafeCounts),
		LastTimestamps: slices.Clone(s.LastTimestamps),
		LastLabels:     slices.Clone(s.LastLabels),
	}
}

func (s DecisionState) check(op string, n int) error {
	if len(s.LastTimestamps) != len(s.SafeCounts) || len(s.LastLabels) != len(s.SafeCounts) {
		return errors.NewValueError(op, fmt.Sprintf("inconsistent decision state: %d safe counts, %d timestamps, %d labels",
			len(s.SafeCounts), len(s.LastTimestamps), len(s.LastLabels)))
	}
	if s.Len() != n {
		return errors.NewDimensionError(op, s.Len(), n, 0)
	}
	return nil
}

// Prediction is the output of Predict and UpdatePredict.
type Prediction struct {
	Labels []int
	// Decisions is true for instances whose label is final.
	Decisions []bool
	State     DecisionState
}

// ProbaPrediction is the output of PredictProba and UpdatePredictProba. Proba columns follow
// Classes.
type ProbaPrediction struct {
	Proba     *mat.Dense
	Classes   []int
	Decisions []bool
	State     DecisionState
}

// Scores summarises a full early classification run.
type Scores struct {
	Accuracy float64
	// Earliness is the mean fraction of the series consumed before the decision.
	Earliness    float64
	HarmonicMean float64
}

// Classifier is an early time series classifier. X holds one equal-length univariate series per
// row; incremental calls pass longer prefixes of the same series in the same row order.
type Classifier interface {
	model.Estimator
	Fit(X mat.Matrix, y []int) error
	Predict(X mat.Matrix) (*Prediction, error)
	UpdatePredict(X mat.Matrix, state DecisionState) (*Prediction, error)
	PredictProba(X mat.Matrix) (*ProbaPrediction, error)
	UpdatePredictProba(X mat.Matrix, state DecisionState) (*ProbaPrediction, error)
	Score(X mat.Matrix, y []int) (Scores, error)
}
