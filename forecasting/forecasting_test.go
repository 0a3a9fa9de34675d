package forecasting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

var (
	_ model.ProbabilisticForecaster = (*NaiveForecaster)(nil)
	_ model.ProbabilisticForecaster = (*Croston)(nil)
	_ model.ProbabilisticForecaster = (*PolynomialTrendForecaster)(nil)
	_ model.ForecastScorer          = (*NaiveForecaster)(nil)
)

func times(f *timeseries.Frame) []int64 {
	out := make([]int64, f.Len())
	for i := range out {
		out[i] = f.IndexAt(i).Time
	}
	return out
}

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return &warnings
}

func TestNaiveForecaster_Strategies(t *testing.T) {
	y := timeseries.NewSeries("y", []float64{1, 2, 3})
	tests := []struct {
		strategy string
		want     []float64
		variance []float64
	}{
		{strategy: StrategyLast, want: []float64{3, 3}, variance: []float64{1, 2}},
		{strategy: StrategyMean, want: []float64{2, 2}, variance: []float64{4.0 / 3, 4.0 / 3}},
		{strategy: StrategyDrift, want: []float64{4, 5}, variance: []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			f, err := NewNaiveForecaster(WithStrategy(tt.strategy))
			require.NoError(t, err)
			require.NoError(t, f.Fit(y, nil, model.Horizon{1, 2}))

			pred, err := f.Predict(nil, nil)
			require.NoError(t, err)
			assert.Equal(t, []int64{3, 4}, times(pred))
			assert.Equal(t, []string{"y"}, pred.Columns())
			assert.InDeltaSlice(t, tt.want, pred.ColumnAt(0), 1e-12)

			variance, err := f.PredictVar(nil, nil, false)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.variance, variance.ColumnAt(0), 1e-12)
		})
	}
}

func TestNaiveForecaster_Insample(t *testing.T) {
	y := timeseries.NewSeries("y", []float64{1, 2, 3})

	last, err := NewNaiveForecaster()
	require.NoError(t, err)
	require.NoError(t, last.Fit(y, nil, nil))
	pred, err := last.Predict(model.Horizon{0, -2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2}, times(pred))
	assert.True(t, math.IsNaN(pred.At(0, 0)), "nothing precedes the first observation")
	assert.Equal(t, 2.0, pred.At(1, 0))

	drift, err := NewNaiveForecaster(WithStrategy(StrategyDrift))
	require.NoError(t, err)
	require.NoError(t, drift.Fit(y, nil, nil))
	pred, err = drift.Predict(model.Horizon{-1, 0}, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3}, pred.ColumnAt(0), 1e-12)
}

func TestNaiveForecaster_Probabilistic(t *testing.T) {
	f, err := NewNaiveForecaster()
	require.NoError(t, err)
	require.NoError(t, f.Fit(timeseries.NewSeries("y", []float64{1, 2, 3}), nil, nil))
	fh := model.Horizon{2, 1}

	interval, err := f.PredictInterval(fh, nil, []float64{0.9})
	require.NoError(t, err)
	assert.Equal(t, []string{"y|0.9|lower", "y|0.9|upper"}, interval.Columns())
	assert.InDelta(t, 3-1.6448536269514722, interval.At(0, 0), 1e-9)
	assert.InDelta(t, 3+1.6448536269514722*math.Sqrt2, interval.At(1, 1), 1e-9)

	cov, err := f.PredictVar(fh, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"y|1", "y|2"}, cov.Columns())
	assert.Equal(t, []float64{1, 1}, cov.Row(0))
	assert.Equal(t, []float64{1, 2}, cov.Row(1))

	dist, err := f.PredictProba(fh, nil, true)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, dist.Std().At(1, 0), 1e-12)
	assert.Equal(t, 3.0, dist.Mean().At(0, 0))

	_, err = f.PredictInterval(fh, nil, []float64{1.5})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestNaiveForecaster_PanelAndMissing(t *testing.T) {
	y, err := timeseries.NewPanel("y", []string{"a", "b"}, [][]float64{{1, 2, 3}, {5, 5}})
	require.NoError(t, err)

	f, err := NewNaiveForecaster()
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.HorizonRange(1)))
	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, pred.Len())
	assert.Equal(t, timeseries.Index{Levels: []string{"a"}, Time: 3}, pred.IndexAt(0))
	assert.Equal(t, timeseries.Index{Levels: []string{"b"}, Time: 2}, pred.IndexAt(1))
	assert.Equal(t, []float64{3, 5}, pred.ColumnAt(0))

	warnings := captureWarnings(t)
	require.NoError(t, f.Fit(timeseries.NewSeries("y", []float64{4, math.NaN()}), nil, nil))
	assert.Len(t, *warnings, 1)
	pred, err = f.Predict(model.Horizon{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pred.IndexAt(0).Time)
	assert.Equal(t, 4.0, pred.At(0, 0))
}

func TestNaiveForecaster_Update(t *testing.T) {
	y := timeseries.NewSeries("y", []float64{1, 2, 3})
	next := timeseries.NewSeriesAt("y", 3, []float64{10})

	refit, err := NewNaiveForecaster()
	require.NoError(t, err)
	require.NoError(t, refit.Fit(y, nil, model.Horizon{1}))
	require.NoError(t, refit.Update(next, nil, true))
	pred, err := refit.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pred.IndexAt(0).Time)
	assert.Equal(t, 10.0, pred.At(0, 0))

	frozen, err := NewNaiveForecaster()
	require.NoError(t, err)
	require.NoError(t, frozen.Fit(y, nil, model.Horizon{1}))
	require.NoError(t, frozen.Update(next, nil, false))
	cutoff, ok := frozen.Cutoff(nil)
	require.True(t, ok)
	assert.Equal(t, int64(3), cutoff)
	pred, err = frozen.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pred.IndexAt(0).Time)
	assert.Equal(t, 3.0, pred.At(0, 0), "parameters are kept, only the cutoff moves")

	assert.Error(t, frozen.Update(timeseries.NewSeriesAt("y", 3, []float64{1}), nil, false), "duplicate time point")
}

func TestNaiveForecaster_Score(t *testing.T) {
	f, err := NewNaiveForecaster(WithStrategy(StrategyDrift))
	require.NoError(t, err)
	require.NoError(t, f.Fit(timeseries.NewSeries("y", []float64{1, 2, 3, 4}), nil, nil))

	score, err := f.Score(timeseries.NewSeriesAt("y", 4, []float64{5, 6}), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-12)

	score, err = f.Score(timeseries.NewSeriesAt("y", 4, []float64{10, 6}), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, score, 1e-12)
}

func TestNaiveForecaster_Errors(t *testing.T) {
	_, err := NewNaiveForecaster(WithStrategy("seasonal"))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	f, err := NewNaiveForecaster()
	require.NoError(t, err)
	_, err = f.Predict(model.Horizon{1}, nil)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, f.Fit(timeseries.NewSeries("y", []float64{1, 2}), nil, nil))
	_, err = f.Predict(nil, nil)
	assert.True(t, errors.As(err, &ve), "no horizon anywhere")

	assert.Error(t, f.Fit(timeseries.NewSeries("y", []float64{1, 2}), nil, model.Horizon{1, 1}))
}

func TestCroston(t *testing.T) {
	c, err := NewCroston()
	require.NoError(t, err)
	assert.False(t, c.Tags().Get(model.TagPredInt))

	require.NoError(t, c.Fit(timeseries.NewSeries("d", []float64{0, 0, 3, 0, 0, 3}), nil, model.Horizon{1, 2}))
	pred, err := c.Predict(nil, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, pred.ColumnAt(0), 1e-12)

	_, err = c.PredictInterval(nil, nil, []float64{0.9})
	var ce *errors.CapabilityError
	assert.True(t, errors.As(err, &ce))
	_, err = c.PredictProba(nil, nil, true)
	assert.True(t, errors.As(err, &ce))

	assert.Error(t, c.Fit(timeseries.NewSeries("d", []float64{0, math.NaN()}), nil, nil))

	_, err = NewCroston(WithSmoothing(0))
	assert.Error(t, err)
}

func TestCroston_AllZero(t *testing.T) {
	warnings := captureWarnings(t)
	c, err := NewCroston()
	require.NoError(t, err)
	require.NoError(t, c.Fit(timeseries.NewSeries("d", []float64{0, 0, 0}), nil, nil))

	pred, err := c.Predict(model.Horizon{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	require.Len(t, *warnings, 1)
	var dw *errors.DegenerateSeriesWarning
	assert.True(t, errors.As((*warnings)[0], &dw))
}

func TestPolynomialTrendForecaster(t *testing.T) {
	f, err := NewPolynomialTrendForecaster()
	require.NoError(t, err)
	require.NoError(t, f.Fit(timeseries.NewSeries("y", []float64{1, 3, 5, 7, 9}), nil, nil))

	pred, err := f.Predict(model.Horizon{1, 2, -4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 5, 6}, times(pred))
	assert.InDeltaSlice(t, []float64{1, 11, 13}, pred.ColumnAt(0), 1e-9)

	noisy, err := NewPolynomialTrendForecaster(WithDegree(2))
	require.NoError(t, err)
	require.NoError(t, noisy.Fit(timeseries.NewSeries("y", []float64{1, 3, 2, 5, 4, 7}), nil, nil))
	variance, err := noisy.PredictVar(model.Horizon{1, 5}, nil, false)
	require.NoError(t, err)
	v := variance.ColumnAt(0)
	assert.Greater(t, v[0], 0.0)
	assert.Greater(t, v[1], v[0], "uncertainty grows away from the data")

	_, err = NewPolynomialTrendForecaster(WithDegree(0))
	assert.Error(t, err)
	assert.Error(t, noisy.Fit(timeseries.NewSeries("y", []float64{1, 2}), nil, nil), "too few points for degree 2")
}

func TestClone(t *testing.T) {
	naive, err := NewNaiveForecaster(WithStrategy(StrategyMean), WithWindowLength(3))
	require.NoError(t, err)
	croston, err := NewCroston(WithSmoothing(0.3))
	require.NoError(t, err)
	trend, err := NewPolynomialTrendForecaster(WithDegree(2))
	require.NoError(t, err)

	tests := []struct {
		name string
		f    interface {
			model.Forecaster
			GetParams() map[string]interface{}
		}
	}{
		{"naive", naive},
		{"croston", croston},
		{"trend", trend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.f.Fit(timeseries.NewSeries("y", []float64{1, 2, 3, 4}), nil, nil))
			c := tt.f.Clone()
			assert.False(t, c.IsFitted())
			assert.True(t, tt.f.IsFitted())
			assert.Equal(t, tt.f.GetParams(), c.(interface{ GetParams() map[string]interface{} }).GetParams())
			assert.Equal(t, tt.f.Name(), c.Name())
		})
	}
}
