package compose

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/forecasting"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/preprocessing"
	"github.com/YuminosukeSato/sciforecast/sklearn/cluster"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

func demandRegistry(t *testing.T) map[string]model.Forecaster {
	t.Helper()
	return map[string]model.Forecaster{
		preprocessing.ClassSmooth:       naive(t, forecasting.StrategyLast),
		preprocessing.ClassErratic:      naive(t, forecasting.StrategyMean),
		preprocessing.ClassIntermittent: croston(t),
		preprocessing.ClassLumpy:        trend(t),
	}
}

func probabilisticRegistry(t *testing.T) map[string]model.Forecaster {
	t.Helper()
	return map[string]model.Forecaster{
		preprocessing.ClassSmooth:       naive(t, forecasting.StrategyLast),
		preprocessing.ClassErratic:      naive(t, forecasting.StrategyMean),
		preprocessing.ClassIntermittent: naive(t, forecasting.StrategyDrift),
		preprocessing.ClassLumpy:        trend(t),
	}
}

func TestNewGroupbyCategoryForecaster_Validation(t *testing.T) {
	tests := []struct {
		name        string
		forecasters map[string]model.Forecaster
		opts        []CategoryOption
		param       string
	}{
		{
			name:  "empty registry without fallback",
			param: "forecasters",
		},
		{
			name:        "nil member",
			forecasters: map[string]model.Forecaster{"smooth": nil},
			param:       "forecasters",
		},
		{
			name:        "zero jobs",
			forecasters: map[string]model.Forecaster{"smooth": naive(t, forecasting.StrategyLast)},
			opts:        []CategoryOption{WithNJobs(0)},
			param:       "n_jobs",
		},
		{
			name:        "clusterer without cluster assignment",
			forecasters: map[string]model.Forecaster{"0": naive(t, forecasting.StrategyLast)},
			opts:        []CategoryOption{WithTransformer(assignOnlyClusterer{})},
			param:       "transformer",
		},
		{
			name:        "forecaster as transformer",
			forecasters: map[string]model.Forecaster{"0": naive(t, forecasting.StrategyLast)},
			opts:        []CategoryOption{WithTransformer(naive(t, forecasting.StrategyMean))},
			param:       "transformer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGroupbyCategoryForecaster(tt.forecasters, tt.opts...)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	t.Run("fallback only", func(t *testing.T) {
		f, err := NewGroupbyCategoryForecaster(nil, WithFallback(naive(t, forecasting.StrategyLast)))
		require.NoError(t, err)
		assert.Equal(t, "ADICVTransformer", f.Transformer().Name())
	})
}

func TestGroupbyCategoryForecaster_Tags(t *testing.T) {
	capable := model.Tags{
		model.TagIgnoresExogenousX: true,
		model.TagEnforceIndexType:  true,
		model.TagMissingValues:     true,
		model.TagInsample:          true,
		model.TagPredInt:           true,
		model.TagPredIntInsample:   true,
	}
	stub := func(tags model.Tags) model.Forecaster { return &stubForecaster{name: "stub", tags: tags} }

	tests := []struct {
		name     string
		x, y     model.Tags
		fallback model.Tags
		want     model.Tags
	}{
		{
			name: "all members capable",
			x:    capable, y: capable,
			want: capable.With(model.Tags{
				model.TagRequiresFHInFit: false,
				model.TagXYSameIndex:     false,
				model.TagFitIsEmpty:      false,
			}),
		},
		{
			name: "fallback without intervals",
			x:    capable, y: capable,
			fallback: capable.With(model.Tags{model.TagPredInt: false}),
			want:     model.Tags{model.TagPredInt: false, model.TagInsample: true},
		},
		{
			name: "one member lacks missing values",
			x:    capable.With(model.Tags{model.TagMissingValues: false}), y: capable,
			want: model.Tags{model.TagMissingValues: false, model.TagIgnoresExogenousX: true},
		},
		{
			name: "one member requires fh in fit",
			x:    capable, y: capable.With(model.Tags{model.TagRequiresFHInFit: true}),
			want: model.Tags{model.TagRequiresFHInFit: true, model.TagXYSameIndex: false},
		},
		{
			name: "fallback requires aligned X",
			x:    capable, y: capable,
			fallback: capable.With(model.Tags{model.TagXYSameIndex: true}),
			want:     model.Tags{model.TagXYSameIndex: true, model.TagRequiresFHInFit: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []CategoryOption{}
			if tt.fallback != nil {
				opts = append(opts, WithFallback(stub(tt.fallback)))
			}
			f, err := NewGroupbyCategoryForecaster(map[string]model.Forecaster{
				"x": stub(tt.x),
				"y": stub(tt.y),
			}, opts...)
			require.NoError(t, err)

			tags := f.Tags()
			for name, want := range tt.want {
				assert.Equal(t, want, tags.Get(name), name)
			}
			assert.Equal(t, tags.Get(model.TagPredInt), f.SupportsProbabilistic())
		})
	}
}

func TestGroupbyCategoryForecaster_Fit(t *testing.T) {
	y := demandPanel(t)
	registry := demandRegistry(t)
	f, err := NewGroupbyCategoryForecaster(registry)
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.Horizon{1, 2}))

	categories := f.Category()
	want := &timeseries.Labels{
		Keys:   [][]string{{"a"}, {"b"}, {"c"}, {"d"}},
		Values: []string{"smooth", "erratic", "intermittent", "lumpy"},
	}
	if diff := cmp.Diff(want, categories); diff != "" {
		t.Errorf("Category() mismatch (-want +got):\n%s", diff)
	}

	fitted := f.Forecasters()
	require.Len(t, fitted, 4)
	for category, fc := range fitted {
		assert.True(t, fc.IsFitted(), category)
		assert.Equal(t, registry[category].Name(), fc.Name())
		assert.NotSame(t, registry[category], fc)
		assert.False(t, registry[category].IsFitted())
	}

	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@8", "a@9", "b@8", "b@9", "c@8", "c@9", "d@8", "d@9"}, indexTimes(pred))
	assert.Equal(t, []float64{9, 9, 13, 13}, pred.ColumnAt(0)[:4])

	t.Run("intervals need every member", func(t *testing.T) {
		assert.False(t, f.SupportsProbabilistic())
		var ce *errors.CapabilityError

		_, err := f.PredictInterval(nil, nil, []float64{0.9})
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "GroupbyCategoryForecaster", ce.Estimator)

		_, err = f.PredictVar(nil, nil, false)
		assert.True(t, errors.As(err, &ce))
		_, err = f.PredictProba(nil, nil, true)
		assert.True(t, errors.As(err, &ce))
	})
}

func TestGroupbyCategoryForecaster_MissingCategory(t *testing.T) {
	y := demandPanel(t)
	registry := map[string]model.Forecaster{
		preprocessing.ClassSmooth:  naive(t, forecasting.StrategyLast),
		preprocessing.ClassErratic: naive(t, forecasting.StrategyMean),
	}

	t.Run("without fallback", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelDebug)
		f, err := NewGroupbyCategoryForecaster(registry, WithLogger(logger))
		require.NoError(t, err)

		err = f.Fit(y, nil, model.Horizon{1})
		var mc *errors.MissingCategoryError
		require.True(t, errors.As(err, &mc))
		assert.Equal(t, "intermittent", mc.Category)
		assert.Equal(t, []string{"erratic", "smooth"}, mc.Known)
		assert.False(t, f.IsFitted())
		assert.Zero(t, logger.CountMessage("fitting category"))
		assert.True(t, logger.ContainsField(log.ErrorCodeKey, log.ErrorMissingCategory))
	})

	t.Run("with fallback", func(t *testing.T) {
		fallback := naive(t, forecasting.StrategyDrift)
		f, err := NewGroupbyCategoryForecaster(registry, WithFallback(fallback))
		require.NoError(t, err)
		require.NoError(t, f.Fit(y, nil, model.Horizon{1}))

		fitted := f.Forecasters()
		require.Len(t, fitted, 4)
		for _, category := range []string{"intermittent", "lumpy"} {
			fc := fitted[category]
			require.NotNil(t, fc)
			assert.NotSame(t, fallback, fc)
			assert.Equal(t, fallback.GetParams(), fc.(*forecasting.NaiveForecaster).GetParams())
		}
		assert.NotSame(t, fitted["intermittent"], fitted["lumpy"])
		assert.False(t, fallback.IsFitted())
		assert.True(t, f.SupportsProbabilistic())
	})
}

func TestGroupbyCategoryForecaster_Probabilistic(t *testing.T) {
	y := demandPanel(t)
	f, err := NewGroupbyCategoryForecaster(probabilisticRegistry(t))
	require.NoError(t, err)
	require.True(t, f.SupportsProbabilistic())
	require.NoError(t, f.Fit(y, nil, model.Horizon{1, 2}))

	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)

	interval, err := f.PredictInterval(nil, nil, []float64{0.8, 0.95})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"demand|0.8|lower", "demand|0.8|upper", "demand|0.95|lower", "demand|0.95|upper",
	}, interval.Columns())
	assert.True(t, interval.IndexEqual(pred))
	for i := 0; i < interval.Len(); i++ {
		row := interval.Row(i)
		assert.LessOrEqual(t, row[2], row[0])
		assert.LessOrEqual(t, row[0], pred.At(i, 0))
		assert.LessOrEqual(t, pred.At(i, 0), row[1])
		assert.LessOrEqual(t, row[1], row[3])
	}

	variance, err := f.PredictVar(nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"demand|1", "demand|2"}, variance.Columns())
	assert.True(t, variance.IndexEqual(pred))

	dist, err := f.PredictProba(nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, pred.ColumnAt(0), dist.Mean().ColumnAt(0))

	marginalFalse, err := f.PredictProba(nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, dist.Std().ColumnAt(0), marginalFalse.Std().ColumnAt(0))

	_, err = f.PredictInterval(nil, nil, []float64{1.5})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestGroupbyCategoryForecaster_InsampleRoundTrip(t *testing.T) {
	y := demandPanel(t)
	f, err := NewGroupbyCategoryForecaster(nil, WithFallback(naive(t, forecasting.StrategyMean)))
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, nil))

	pred, err := f.Predict(model.Horizon{-7, -6, -5, -4, -3, -2, -1, 0}, nil)
	require.NoError(t, err)
	assert.True(t, pred.IndexEqual(y.SortIndex()))
}

func TestGroupbyCategoryForecaster_Update(t *testing.T) {
	y := demandPanel(t)
	f, err := NewGroupbyCategoryForecaster(probabilisticRegistry(t))
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.Horizon{1}))
	before := f.Category()

	// zeros would make a look intermittent; its category stays smooth
	newRows, err := timeseries.New(
		[]timeseries.Index{{Levels: []string{"a"}, Time: 8}, {Levels: []string{"a"}, Time: 9}},
		[]string{"demand"}, [][]float64{{0}, {0}},
	)
	require.NoError(t, err)
	require.NoError(t, f.Update(newRows, nil, true))
	assert.Equal(t, before, f.Category())

	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@10", "b@8", "c@8", "d@8"}, indexTimes(pred))
	assert.Equal(t, 0.0, pred.At(0, 0))

	unseen, err := timeseries.New(
		[]timeseries.Index{{Levels: []string{"z"}, Time: 8}},
		[]string{"demand"}, [][]float64{{1}},
	)
	require.NoError(t, err)
	err = f.Update(unseen, nil, true)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestGroupbyCategoryForecaster_NJobs(t *testing.T) {
	y := demandPanel(t)

	sequential, err := NewGroupbyCategoryForecaster(probabilisticRegistry(t))
	require.NoError(t, err)
	require.NoError(t, sequential.Fit(y, nil, model.HorizonRange(3)))
	want, err := sequential.PredictInterval(nil, nil, []float64{0.9})
	require.NoError(t, err)

	for _, n := range []int{2, 4, -1} {
		concurrent, err := NewGroupbyCategoryForecaster(probabilisticRegistry(t), WithNJobs(n))
		require.NoError(t, err)
		require.NoError(t, concurrent.Fit(y, nil, model.HorizonRange(3)))
		got, err := concurrent.PredictInterval(nil, nil, []float64{0.9})
		require.NoError(t, err)
		assert.True(t, got.IndexEqual(want), "n_jobs=%d", n)
		assert.Equal(t, want.Data().RawMatrix().Data, got.Data().RawMatrix().Data, "n_jobs=%d", n)
	}
}

func TestGroupbyCategoryForecaster_ClusterTransformer(t *testing.T) {
	y := demandPanel(t)
	kmeans, err := cluster.NewSeriesKMeans(cluster.WithSeriesNClusters(2))
	require.NoError(t, err)

	f, err := NewGroupbyCategoryForecaster(map[string]model.Forecaster{
		"0": naive(t, forecasting.StrategyLast),
		"1": naive(t, forecasting.StrategyMean),
	}, WithTransformer(kmeans))
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.Horizon{1}))

	assert.False(t, kmeans.IsFitted())
	assert.Equal(t, "SeriesKMeans", f.Transformer().Name())
	for _, label := range f.Category().Values {
		assert.Contains(t, []string{"0", "1"}, label)
	}

	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, pred.Len())
}

func TestGroupbyCategoryForecaster_FlatSeries(t *testing.T) {
	y := timeseries.NewSeries("demand", []float64{10, 11, 9, 10, 12, 10, 11, 9})
	f, err := NewGroupbyCategoryForecaster(demandRegistry(t))
	require.NoError(t, err)
	require.NoError(t, f.Fit(y, nil, model.Horizon{1}))

	assert.Equal(t, []string{"smooth"}, f.Category().Values)
	assert.Len(t, f.Forecasters(), 1)

	pred, err := f.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{9}, pred.ColumnAt(0))
}

func TestGroupbyCategoryForecaster_MemberFailures(t *testing.T) {
	y := demandPanel(t)
	categories := &fixedCategories{labels: map[string]string{"a": "ok", "b": "ok", "c": "bad", "d": "ok"}}

	t.Run("panic", func(t *testing.T) {
		f, err := NewGroupbyCategoryForecaster(map[string]model.Forecaster{
			"ok":  naive(t, forecasting.StrategyLast),
			"bad": &stubForecaster{name: "exploding", panicOnFit: true},
		}, WithTransformer(categories), WithNJobs(2))
		require.NoError(t, err)

		err = f.Fit(y, nil, model.Horizon{1})
		var pe *errors.PanicError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "stub exploded", pe.PanicValue)
		assert.False(t, f.IsFitted())
	})

	t.Run("error names the category", func(t *testing.T) {
		f, err := NewGroupbyCategoryForecaster(map[string]model.Forecaster{
			"ok":  naive(t, forecasting.StrategyLast),
			"bad": &stubForecaster{name: "stub"},
		}, WithTransformer(categories))
		require.NoError(t, err)
		require.NoError(t, f.Fit(y, nil, model.Horizon{1}))

		_, err = f.Predict(nil, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotImplemented))
		assert.Contains(t, err.Error(), "GroupbyCategoryForecaster.Predict[bad]")
	})
}

func TestGroupbyCategoryForecaster_Logging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	f, err := NewGroupbyCategoryForecaster(demandRegistry(t), WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, f.Fit(demandPanel(t), nil, model.Horizon{1}))

	assert.Equal(t, 4, logger.CountMessage("fitting category"))
	assert.Equal(t, 1, logger.CountMessage("fit completed"))
	assert.True(t, logger.ContainsField(log.CategoryKey, "smooth"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "GroupbyCategoryForecaster"))
	assert.True(t, logger.ContainsField(log.FallbackKey, false))
}

func TestGroupbyCategoryForecaster_StepsAndClone(t *testing.T) {
	fallback := naive(t, forecasting.StrategyMean)
	f, err := NewGroupbyCategoryForecaster(demandRegistry(t), WithFallback(fallback), WithNJobs(2))
	require.NoError(t, err)

	var names []string
	for _, s := range f.Steps() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"erratic", "intermittent", "lumpy", "smooth", "transformer", "fallback_forecaster"}, names)

	require.NoError(t, f.Fit(demandPanel(t), nil, model.Horizon{1}))
	c := f.Clone().(*GroupbyCategoryForecaster)
	assert.False(t, c.IsFitted())
	assert.Nil(t, c.Category())
	assert.Equal(t, f.GetParams(), c.GetParams())
	assert.Equal(t, f.Tags(), c.Tags())

	_, err = c.Predict(model.Horizon{1}, nil)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestGroupbyCategoryForecaster_Nested(t *testing.T) {
	byLevel, err := NewForecastByLevel(naive(t, forecasting.StrategyLast), WithGroupBy(GroupByGlobal))
	require.NoError(t, err)
	f, err := NewGroupbyCategoryForecaster(nil, WithFallback(byLevel))
	require.NoError(t, err)
	require.True(t, f.SupportsProbabilistic())
	require.NoError(t, f.Fit(demandPanel(t), nil, model.Horizon{1}))

	interval, err := f.PredictInterval(nil, nil, []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, 4, interval.Len())
}
