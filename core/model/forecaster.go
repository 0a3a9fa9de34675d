package model

import (
	"github.com/YuminosukeSato/sciforecast/distribution"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// Forecaster fits on a (possibly hierarchical) target frame and forecasts it.
//
// X is an optional exogenous frame indexed like y. fh lists the relative steps to forecast; a
// nil fh passed to Predict falls back to the horizon given to Fit.
type Forecaster interface {
	Estimator

	Fit(y, X *timeseries.Frame, fh Horizon) error
	Predict(fh Horizon, X *timeseries.Frame) (*timeseries.Frame, error)
	// Update feeds new observations. With updateParams false only the cutoff moves.
	Update(y, X *timeseries.Frame, updateParams bool) error
	// Clone returns an unfitted copy with identical hyperparameters.
	Clone() Forecaster
}

// ProbabilisticForecaster adds interval, variance and distribution forecasts. Callers check the
// TagPredInt capability before use: composites implement these methods unconditionally and return
// a CapabilityError when a member lacks support.
type ProbabilisticForecaster interface {
	Forecaster

	// PredictInterval returns "<var>|<coverage>|lower" and "<var>|<coverage>|upper" columns.
	PredictInterval(fh Horizon, X *timeseries.Frame, coverage []float64) (*timeseries.Frame, error)
	// PredictVar returns the forecast variance per variable, or with cov the covariance across
	// steps in "<var>|<step>" columns.
	PredictVar(fh Horizon, X *timeseries.Frame, cov bool) (*timeseries.Frame, error)
	// PredictProba returns the predictive distribution. Only marginal distributions are
	// produced; marginal=false is accepted and yields the same marginals.
	PredictProba(fh Horizon, X *timeseries.Frame, marginal bool) (*distribution.Normal, error)
}

// ForecastScorer scores in-sample forecasts against y; lower is better.
type ForecastScorer interface {
	Score(y, X *timeseries.Frame) (float64, error)
}

// CategoryTransformer assigns a category label to every instance of a frame.
type CategoryTransformer interface {
	Estimator

	FitTransform(y, X *timeseries.Frame) (*timeseries.Labels, error)
	Transform(y, X *timeseries.Frame) (*timeseries.Labels, error)
	Clone() CategoryTransformer
}

// Clusterer groups the instances of a panel. Only clusterers tagged TagCapabilityPredict can
// assign clusters to data after fitting.
type Clusterer interface {
	Estimator

	Fit(X *timeseries.Frame) error
	// Predict returns one cluster per instance, in X.Instances() order.
	Predict(X *timeseries.Frame) ([]int, error)
	Clone() Clusterer
}
