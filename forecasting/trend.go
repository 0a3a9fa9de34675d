package forecasting

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/sklearn/linear_model"
)

// PolynomialTrendForecaster regresses each series on powers of its (centred) time index and
// extrapolates the fitted polynomial. Prediction variances are those of a new observation under
// the least-squares fit.
type PolynomialTrendForecaster struct {
	*seriesForecaster

	degree        int
	withIntercept bool
}

// TrendOption configures a PolynomialTrendForecaster.
type TrendOption func(*PolynomialTrendForecaster)

// WithDegree sets the polynomial degree, 1 by default.
func WithDegree(degree int) TrendOption {
	return func(f *PolynomialTrendForecaster) { f.degree = degree }
}

// WithTrendIntercept sets whether an intercept is fitted, true by default.
func WithTrendIntercept(intercept bool) TrendOption {
	return func(f *PolynomialTrendForecaster) { f.withIntercept = intercept }
}

// NewPolynomialTrendForecaster creates a linear trend forecaster unless configured otherwise.
func NewPolynomialTrendForecaster(opts ...TrendOption) (*PolynomialTrendForecaster, error) {
	f := &PolynomialTrendForecaster{degree: 1, withIntercept: true}
	for _, opt := range opts {
		opt(f)
	}
	if f.degree < 1 {
		return nil, errors.NewValidationError("degree", "must be at least 1", f.degree)
	}
	f.seriesForecaster = newSeriesForecaster("PolynomialTrendForecaster", true, true, f.fit)
	return f, nil
}

func (f *PolynomialTrendForecaster) Tags() model.Tags {
	return model.Tags{
		model.TagIgnoresExogenousX:      true,
		model.TagMissingValues:          true,
		model.TagInsample:               true,
		model.TagPredInt:                true,
		model.TagPredIntInsample:        true,
		model.TagCapabilityMultivariate: true,
	}
}

// GetParams returns the hyperparameters.
func (f *PolynomialTrendForecaster) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"degree":         f.degree,
		"with_intercept": f.withIntercept,
	}
}

// Clone returns an unfitted copy.
func (f *PolynomialTrendForecaster) Clone() model.Forecaster {
	c, _ := NewPolynomialTrendForecaster(WithDegree(f.degree), WithTrendIntercept(f.withIntercept))
	return c
}

func (f *PolynomialTrendForecaster) fit(_ []string, times []int64, values []float64) (seriesModel, error) {
	ts, vs := observed(times, values)
	if len(ts) == 0 {
		return nil, errors.NewValueError("PolynomialTrendForecaster.Fit", "series has no observed values")
	}
	tf := make([]float64, len(ts))
	for i, t := range ts {
		tf[i] = float64(t)
	}
	m := &trendModel{degree: f.degree, center: stat.Mean(tf, nil)}

	m.lr = linear_model.NewLinearRegression(linear_model.WithLRFitIntercept(f.withIntercept))
	if err := m.lr.Fit(m.design(ts), mat.NewDense(len(vs), 1, vs)); err != nil {
		return nil, err
	}
	return m, nil
}

type trendModel struct {
	degree int
	center float64
	lr     *linear_model.LinearRegression
}

func (m *trendModel) design(times []int64) *mat.Dense {
	X := mat.NewDense(len(times), m.degree, nil)
	for i, t := range times {
		x := float64(t) - m.center
		for k := 0; k < m.degree; k++ {
			X.Set(i, k, math.Pow(x, float64(k+1)))
		}
	}
	return X
}

func (m *trendModel) forecast(t int64) (float64, float64) {
	X := m.design([]int64{t})
	pred, err := m.lr.Predict(X)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	variance, err := m.lr.PredictionVariance(X)
	if err != nil {
		return pred.At(0, 0), math.NaN()
	}
	return pred.At(0, 0), variance[0]
}
