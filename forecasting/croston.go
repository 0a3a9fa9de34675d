package forecasting

import (
	"math"
	"slices"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// DefaultCrostonSmoothing is the smoothing constant used for both demand size and interval.
const DefaultCrostonSmoothing = 0.1

// Croston forecasts intermittent demand by smoothing non-zero demand sizes and the intervals
// between them separately; the forecast is their ratio. It has no error model, so interval,
// variance and distribution forecasts return a CapabilityError.
type Croston struct {
	*seriesForecaster

	smoothing float64
}

// CrostonOption configures a Croston forecaster.
type CrostonOption func(*Croston)

// WithSmoothing sets the smoothing constant in (0, 1].
func WithSmoothing(alpha float64) CrostonOption {
	return func(c *Croston) { c.smoothing = alpha }
}

// NewCroston creates a Croston forecaster.
func NewCroston(opts ...CrostonOption) (*Croston, error) {
	c := &Croston{smoothing: DefaultCrostonSmoothing}
	for _, opt := range opts {
		opt(c)
	}
	if !(c.smoothing > 0 && c.smoothing <= 1) {
		return nil, errors.NewValidationError("smoothing", "must lie in (0, 1]", c.smoothing)
	}
	c.seriesForecaster = newSeriesForecaster("Croston", false, false, c.fit)
	return c, nil
}

func (c *Croston) Tags() model.Tags {
	return model.Tags{
		model.TagIgnoresExogenousX:      true,
		model.TagInsample:               true,
		model.TagCapabilityMultivariate: true,
	}
}

// GetParams returns the hyperparameters.
func (c *Croston) GetParams() map[string]interface{} {
	return map[string]interface{}{"smoothing": c.smoothing}
}

// Clone returns an unfitted copy.
func (c *Croston) Clone() model.Forecaster {
	clone, _ := NewCroston(WithSmoothing(c.smoothing))
	return clone
}

func (c *Croston) fit(key []string, times []int64, values []float64) (seriesModel, error) {
	first := slices.IndexFunc(values, func(v float64) bool { return v != 0 })
	if first < 0 {
		degenerate(c.name, key, "no non-zero demand, forecasting zero")
		return &crostonModel{times: times, fitted: make([]float64, len(values)+1)}, nil
	}

	alpha := c.smoothing
	demand, interval := values[first], float64(first+1)
	fitted := make([]float64, len(values)+1)
	fitted[0] = demand / interval
	q := 1.0
	for i, v := range values {
		if v != 0 {
			demand = alpha*v + (1-alpha)*demand
			interval = alpha*q + (1-alpha)*interval
			q = 1
		} else {
			q++
		}
		fitted[i+1] = demand / interval
	}
	return &crostonModel{times: times, fitted: fitted}, nil
}

// crostonModel keeps the one-step-ahead forecasts: fitted[i] is the forecast for times[i] and
// the last entry is the out-of-sample forecast.
type crostonModel struct {
	times  []int64
	fitted []float64
}

func (m *crostonModel) forecast(t int64) (float64, float64) {
	if t > m.times[len(m.times)-1] {
		return m.fitted[len(m.fitted)-1], math.NaN()
	}
	i, found := slices.BinarySearch(m.times, t)
	if !found {
		return math.NaN(), math.NaN()
	}
	return m.fitted[i], math.NaN()
}
