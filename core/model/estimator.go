// Package model defines the contracts shared by sciforecast estimators: matrix-level learners
// used as building blocks, series-level forecasters, category transformers and clusterers, plus
// the capability tags and fitted-state bookkeeping they all rely on.
package model

import "gonum.org/v1/gonum/mat"

// Estimator is implemented by every sciforecast estimator.
type Estimator interface {
	// Name returns the estimator's type name, used in errors and logs.
	Name() string
	// Tags returns the estimator's capability tags.
	Tags() Tags
	// IsFitted reports whether Fit has completed.
	IsFitted() bool
}

// Fitter is a matrix-level supervised learner.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor is a matrix-level predictor.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer learns and applies a matrix-to-matrix transformation.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParamsGetter exposes hyperparameters. Clones must report identical params.
type ParamsGetter interface {
	GetParams() map[string]interface{}
}
