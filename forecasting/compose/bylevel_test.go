package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/forecasting"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

var (
	_ model.ProbabilisticForecaster = (*ForecastByLevel)(nil)
	_ model.ProbabilisticForecaster = (*GroupbyCategoryForecaster)(nil)
)

func TestNewForecastByLevel(t *testing.T) {
	t.Run("defaults to local", func(t *testing.T) {
		f, err := NewForecastByLevel(naive(t, forecasting.StrategyLast))
		require.NoError(t, err)
		assert.Equal(t, GroupByLocal, f.GroupBy())
		assert.False(t, f.IsFitted())
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := NewForecastByLevel(naive(t, forecasting.StrategyLast), WithGroupBy("regional"))
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "groupby", ve.ParamName)
	})

	t.Run("nil forecaster", func(t *testing.T) {
		_, err := NewForecastByLevel(nil)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})
}

func TestForecastByLevel_Groups(t *testing.T) {
	y := hierarchy(t)
	tests := []struct {
		groupBy string
		keys    [][]string
	}{
		{GroupByLocal, [][]string{{"east", "s1"}, {"east", "s2"}, {"west", "s1"}, {"west", "s2"}}},
		{GroupByPanel, [][]string{{"east"}, {"west"}}},
		{GroupByGlobal, [][]string{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.groupBy, func(t *testing.T) {
			blueprint := naive(t, forecasting.StrategyLast)
			f, err := NewForecastByLevel(blueprint, WithGroupBy(tt.groupBy))
			require.NoError(t, err)
			require.NoError(t, f.Fit(y, nil, model.Horizon{1}))

			fitted := f.Forecasters()
			require.Len(t, fitted, len(tt.keys))
			for i, ff := range fitted {
				assert.Equal(t, len(tt.keys[i]), len(ff.Key))
				if len(tt.keys[i]) > 0 {
					assert.Equal(t, tt.keys[i], ff.Key)
				}
				assert.True(t, ff.Forecaster.IsFitted())
				assert.NotSame(t, blueprint, ff.Forecaster)
			}
			assert.False(t, blueprint.IsFitted())

			_, single := f.Forecaster()
			assert.Equal(t, len(tt.keys) == 1, single)

			pred, err := f.Predict(nil, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"east/s1@4", "east/s2@4", "west/s1@4", "west/s2@4"}, indexTimes(pred))
			assert.Equal(t, []float64{19, 29, 39, 49}, pred.ColumnAt(0))
		})
	}
}

func TestForecastByLevel_FlatSeries(t *testing.T) {
	y := timeseries.NewSeries("y", []float64{3, 1, 4, 1, 5})
	for _, mode := range []string{GroupByLocal, GroupByPanel, GroupByGlobal} {
		t.Run(mode, func(t *testing.T) {
			f, err := NewForecastByLevel(naive(t, forecasting.StrategyMean), WithGroupBy(mode))
			require.NoError(t, err)
			require.NoError(t, f.Fit(y, nil, model.HorizonRange(2)))

			inner, ok := f.Forecaster()
			require.True(t, ok)
			assert.Equal(t, "NaiveForecaster", inner.Name())

			pred, err := f.Predict(nil, nil)
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{2.8, 2.8}, pred.ColumnAt(0), 1e-12)
		})
	}
}

func TestForecastByLevel_PanelWithOneLevel(t *testing.T) {
	y := demandPanel(t)
	for _, mode := range []string{GroupByPanel, GroupByGlobal} {
		f, err := NewForecastByLevel(naive(t, forecasting.StrategyLast), WithGroupBy(mode))
		require.NoError(t, err)
		require.NoError(t, f.Fit(y, nil, model.Horizon{1}))
		_, ok := f.Forecaster()
		assert.True(t, ok, mode)
	}
}

func TestForecastByLevel_InsampleRoundTrip(t *testing.T) {
	y := hierarchy(t)
	for _, mode := range []string{GroupByLocal, GroupByPanel, GroupByGlobal} {
		t.Run(mode, func(t *testing.T) {
			f, err := NewForecastByLevel(naive(t, forecasting.StrategyMean), WithGroupBy(mode))
			require.NoError(t, err)
			require.NoError(t, f.Fit(y, nil, nil))

			pred, err := f.Predict(model.Horizon{-3, -2, -1, 0}, nil)
			require.NoError(t, err)
			assert.True(t, pred.IndexEqual(y.SortIndex()))
			assert.Equal(t, y.Columns(), pred.Columns())
		})
	}
}

func TestForecastByLevel_Probabilistic(t *testing.T) {
	y := hierarchy(t)

	f, err := NewForecastByLevel(naive(t, forecasting.StrategyLast), WithGroupBy(GroupByPanel))
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.Horizon{1, 2}))

	interval, err := f.PredictInterval(nil, nil, []float64{0.9})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales|0.9|lower", "sales|0.9|upper"}, interval.Columns())
	assert.Equal(t, 8, interval.Len())

	variance, err := f.PredictVar(nil, nil, false)
	require.NoError(t, err)
	assert.True(t, variance.IndexEqual(interval))

	dist, err := f.PredictProba(nil, nil, true)
	require.NoError(t, err)
	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, pred.ColumnAt(0), dist.Mean().ColumnAt(0))

	t.Run("blueprint without intervals", func(t *testing.T) {
		f, err := NewForecastByLevel(croston(t))
		require.NoError(t, err)
		require.NoError(t, f.Fit(y, nil, model.Horizon{1}))
		_, err = f.PredictInterval(nil, nil, []float64{0.9})
		var ce *errors.CapabilityError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "PredictInterval", ce.Method)
	})
}

func TestForecastByLevel_Update(t *testing.T) {
	y := hierarchy(t)
	f, err := NewForecastByLevel(naive(t, forecasting.StrategyLast))
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.Horizon{1}))

	newRows, err := timeseries.New(
		[]timeseries.Index{{Levels: []string{"west", "s2"}, Time: 4}},
		[]string{"sales"}, [][]float64{{100}},
	)
	require.NoError(t, err)
	require.NoError(t, f.Update(newRows, nil, true))

	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"east/s1@4", "east/s2@4", "west/s1@4", "west/s2@5"}, indexTimes(pred))
	assert.Equal(t, []float64{19, 29, 39, 100}, pred.ColumnAt(0))

	unseen, err := timeseries.New(
		[]timeseries.Index{{Levels: []string{"north", "s1"}, Time: 4}},
		[]string{"sales"}, [][]float64{{1}},
	)
	require.NoError(t, err)
	err = f.Update(unseen, nil, true)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestForecastByLevel_Logging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	f, err := NewForecastByLevel(naive(t, forecasting.StrategyLast), WithByLevelLogger(logger))
	require.NoError(t, err)
	require.NoError(t, f.Fit(hierarchy(t), nil, model.Horizon{1}))

	assert.Equal(t, 4, logger.CountMessage("fitting group"))
	assert.True(t, logger.ContainsMessage("fit completed"))
	assert.True(t, logger.ContainsField(log.GroupKey, "west/s2"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "ForecastByLevel"))
}

func TestForecastByLevel_TagsAndClone(t *testing.T) {
	f, err := NewForecastByLevel(croston(t), WithGroupBy(GroupByGlobal))
	require.NoError(t, err)
	tags := f.Tags()
	assert.False(t, tags.Get(model.TagPredInt))
	assert.True(t, tags.Get(model.TagIgnoresExogenousX))
	assert.False(t, tags.Get(model.TagFitIsEmpty))

	require.NoError(t, f.Fit(demandPanel(t), nil, model.Horizon{1}))
	c := f.Clone().(*ForecastByLevel)
	assert.False(t, c.IsFitted())
	assert.Equal(t, f.GetParams(), c.GetParams())

	_, err = c.Predict(model.Horizon{1}, nil)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
