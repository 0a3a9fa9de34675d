package forecasting

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// Naive forecasting strategies.
const (
	StrategyLast  = "last"
	StrategyMean  = "mean"
	StrategyDrift = "drift"
)

// NaiveForecaster forecasts with the last observation, the mean or the straight line through the
// first and last observation. Prediction intervals are Gaussian with the variance of the
// strategy's one-step residuals, growing with the step for "last" and "drift".
type NaiveForecaster struct {
	*seriesForecaster

	strategy     string
	windowLength int
}

// NaiveOption configures a NaiveForecaster.
type NaiveOption func(*NaiveForecaster)

// WithStrategy selects StrategyLast, StrategyMean or StrategyDrift.
func WithStrategy(strategy string) NaiveOption {
	return func(f *NaiveForecaster) { f.strategy = strategy }
}

// WithWindowLength restricts fitting to the last n observations. 0 uses the whole series.
func WithWindowLength(n int) NaiveOption {
	return func(f *NaiveForecaster) { f.windowLength = n }
}

// NewNaiveForecaster creates a NaiveForecaster, "last" by default.
func NewNaiveForecaster(opts ...NaiveOption) (*NaiveForecaster, error) {
	f := &NaiveForecaster{strategy: StrategyLast}
	for _, opt := range opts {
		opt(f)
	}
	switch f.strategy {
	case StrategyLast, StrategyMean, StrategyDrift:
	default:
		return nil, errors.NewValidationError("strategy", `must be one of "last", "mean", "drift"`, f.strategy)
	}
	if f.windowLength < 0 || (f.strategy == StrategyDrift && f.windowLength == 1) {
		return nil, errors.NewValidationError("window_length", "must be 0 or a positive length (at least 2 for drift)", f.windowLength)
	}
	f.seriesForecaster = newSeriesForecaster("NaiveForecaster", true, true, f.fit)
	return f, nil
}

func (f *NaiveForecaster) Tags() model.Tags {
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
func (f *NaiveForecaster) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":      f.strategy,
		"window_length": f.windowLength,
	}
}

// Clone returns an unfitted copy.
func (f *NaiveForecaster) Clone() model.Forecaster {
	c, _ := NewNaiveForecaster(WithStrategy(f.strategy), WithWindowLength(f.windowLength))
	return c
}

func (f *NaiveForecaster) fit(key []string, times []int64, values []float64) (seriesModel, error) {
	ts, vs := observed(times, values)
	if f.windowLength > 0 && len(vs) > f.windowLength {
		ts, vs = ts[len(ts)-f.windowLength:], vs[len(vs)-f.windowLength:]
	}
	if len(vs) == 0 {
		return nil, errors.NewValueError("NaiveForecaster.Fit", "series has no observed values")
	}
	if len(vs) < 2 {
		if f.strategy == StrategyDrift {
			return nil, errors.NewValueError("NaiveForecaster.Fit",
				fmt.Sprintf("drift needs at least 2 observations, got %d", len(vs)))
		}
		degenerate(f.name, key, "single observation, forecast variance set to 0")
	}

	switch f.strategy {
	case StrategyMean:
		m := &meanModel{mean: vs[0]}
		if len(vs) > 1 {
			var variance float64
			m.mean, variance = stat.MeanVariance(vs, nil)
			m.variance = variance * (1 + 1/float64(len(vs)))
		}
		return m, nil
	case StrategyDrift:
		n := len(vs)
		m := &driftModel{
			t0:    ts[0],
			y0:    vs[0],
			lastT: ts[n-1],
			last:  vs[n-1],
			slope: (vs[n-1] - vs[0]) / float64(ts[n-1]-ts[0]),
			n:     n,
		}
		if n > 2 {
			ss := 0.0
			for i := 1; i < n; i++ {
				r := vs[i] - vs[i-1] - m.slope*float64(ts[i]-ts[i-1])
				ss += r * r
			}
			m.sigma2 = ss / float64(n-2)
		}
		return m, nil
	default:
		m := &lastModel{times: ts, values: vs}
		if len(vs) > 1 {
			ss := 0.0
			for i := 1; i < len(vs); i++ {
				d := vs[i] - vs[i-1]
				ss += d * d
			}
			m.sigma2 = ss / float64(len(vs)-1)
		}
		return m, nil
	}
}

// lastModel is a random walk: the last observation with variance growing linearly in the step.
type lastModel struct {
	times  []int64
	values []float64
	sigma2 float64
}

func (m *lastModel) lastT() int64 { return m.times[len(m.times)-1] }

func (m *lastModel) forecast(t int64) (float64, float64) {
	if h := t - m.lastT(); h > 0 {
		return m.values[len(m.values)-1], m.sigma2 * float64(h)
	}
	// in-sample: the observation preceding t
	i := sort.Search(len(m.times), func(i int) bool { return m.times[i] >= t })
	if i == 0 {
		return math.NaN(), math.NaN()
	}
	return m.values[i-1], m.sigma2
}

func (m *lastModel) covariance(t1, t2 int64) float64 {
	h1, h2 := t1-m.lastT(), t2-m.lastT()
	if h1 > 0 && h2 > 0 {
		return m.sigma2 * float64(min(h1, h2))
	}
	if t1 == t2 {
		return m.sigma2
	}
	return 0
}

type meanModel struct {
	mean     float64
	variance float64
}

func (m *meanModel) forecast(int64) (float64, float64) { return m.mean, m.variance }

// driftModel extrapolates the line through the first and last observation.
type driftModel struct {
	t0, lastT int64
	y0, last  float64
	slope     float64
	sigma2    float64
	n         int
}

func (m *driftModel) forecast(t int64) (float64, float64) {
	h := t - m.lastT
	if h <= 0 {
		return m.y0 + m.slope*float64(t-m.t0), m.sigma2
	}
	hf := float64(h)
	return m.last + m.slope*hf, m.sigma2 * hf * (1 + hf/float64(m.n-1))
}
