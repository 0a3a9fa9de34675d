package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/forecasting"
	"github.com/YuminosukeSato/sciforecast/forecasting/compose"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

const categorySpec = `
name: GroupbyCategoryForecaster
params:
  n_jobs: 2
forecasters:
  smooth:
    name: NaiveForecaster
    params: {strategy: mean}
  intermittent:
    name: Croston
    params: {smoothing: 0.2}
fallback:
  name: ForecastByLevel
  params: {groupby: global}
  forecaster:
    name: PolynomialTrendForecaster
    params: {degree: 1, with_intercept: true}
transformer:
  name: ADICVTransformer
  params:
    features: [class]
    adi_threshold: 1.32
    cv_threshold: 0.49
`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelWarn)
	return New(WithLogger(logger))
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(categorySpec))
	require.NoError(t, err)

	want := &Spec{
		Name:   "GroupbyCategoryForecaster",
		Params: map[string]interface{}{"n_jobs": 2},
		Forecasters: map[string]*Spec{
			"smooth":       {Name: "NaiveForecaster", Params: map[string]interface{}{"strategy": "mean"}},
			"intermittent": {Name: "Croston", Params: map[string]interface{}{"smoothing": 0.2}},
		},
		Fallback: &Spec{
			Name:   "ForecastByLevel",
			Params: map[string]interface{}{"groupby": "global"},
			Forecaster: &Spec{
				Name:   "PolynomialTrendForecaster",
				Params: map[string]interface{}{"degree": 1, "with_intercept": true},
			},
		},
		Transformer: &Spec{
			Name: "ADICVTransformer",
			Params: map[string]interface{}{
				"features":      []interface{}{"class"},
				"adi_threshold": 1.32,
				"cv_threshold":  0.49,
			},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}

	t.Run("round trip", func(t *testing.T) {
		data, err := s.Marshal()
		require.NoError(t, err)
		again, err := Parse(data)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(s, again))
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse([]byte("name: Croston\nparameters: {smoothing: 0.1}\n"))
		assert.Error(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := Parse([]byte("params: {strategy: last}\n"))
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(categorySpec), 0o600))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "GroupbyCategoryForecaster", s.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildForecaster_Composite(t *testing.T) {
	r := testRegistry(t)
	s, err := Parse([]byte(categorySpec))
	require.NoError(t, err)

	f, err := r.BuildForecaster(s)
	require.NoError(t, err)
	gc, ok := f.(*compose.GroupbyCategoryForecaster)
	require.True(t, ok)

	params := gc.GetParams()
	assert.Equal(t, []string{"intermittent", "smooth"}, params["forecasters"])
	assert.Equal(t, "ForecastByLevel", params["fallback_forecaster"])
	assert.Equal(t, "ADICVTransformer", params["transformer"])
	assert.Equal(t, 2, params["n_jobs"])
	assert.False(t, gc.SupportsProbabilistic())

	steps := gc.Steps()
	require.Len(t, steps, 4)
	smooth := steps[1].Estimator.(*forecasting.NaiveForecaster)
	assert.Equal(t, forecasting.StrategyMean, smooth.GetParams()["strategy"])
	croston := steps[0].Estimator.(*forecasting.Croston)
	assert.Equal(t, 0.2, croston.GetParams()["smoothing"])

	y, err := timeseries.NewPanel("demand", []string{"a", "b", "c"}, [][]float64{
		{10, 11, 9, 10, 12, 10},
		{0, 0, 5, 0, 0, 5},
		{1, 20, 2, 30, 1, 25},
	})
	require.NoError(t, err)
	require.NoError(t, gc.Fit(y, nil, model.Horizon{1}))
	assert.Equal(t, []string{"smooth", "intermittent", "erratic"}, gc.Category().Values)
	pred, err := gc.Predict(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, pred.Len())
}

func TestBuildForecaster_Leaves(t *testing.T) {
	r := testRegistry(t)
	tests := []struct {
		spec   string
		name   string
		params map[string]interface{}
	}{
		{
			spec:   "name: NaiveForecaster\nparams: {strategy: drift}\n",
			name:   "NaiveForecaster",
			params: map[string]interface{}{"strategy": "drift", "window_length": 0},
		},
		{
			spec:   "name: Croston\n",
			name:   "Croston",
			params: map[string]interface{}{"smoothing": forecasting.DefaultCrostonSmoothing},
		},
		{
			spec:   "name: ForecastByLevel\nparams: {groupby: panel}\nforecaster: {name: NaiveForecaster}\n",
			name:   "ForecastByLevel",
			params: map[string]interface{}{"forecaster": "NaiveForecaster", "groupby": "panel"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.spec))
			require.NoError(t, err)
			f, err := r.BuildForecaster(s)
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.Name())
			assert.Equal(t, tt.params, f.(model.ParamsGetter).GetParams())
		})
	}
}

func TestBuildForecaster_Errors(t *testing.T) {
	r := testRegistry(t)
	tests := []struct {
		name  string
		spec  string
		param string
	}{
		{"unknown estimator", "name: Prophet\n", "name"},
		{"unknown parameter", "name: NaiveForecaster\nparams: {strategi: last}\n", "strategi"},
		{"wrong type", "name: Croston\nparams: {smoothing: high}\n", "smoothing"},
		{"fractional integer", "name: PolynomialTrendForecaster\nparams: {degree: 1.5}\n", "degree"},
		{"leaf with members", "name: Croston\nfallback: {name: NaiveForecaster}\n", "spec"},
		{"by-level without forecaster", "name: ForecastByLevel\n", "forecaster"},
		{"invalid groupby", "name: ForecastByLevel\nparams: {groupby: regional}\nforecaster: {name: Croston}\n", "groupby"},
		{"bad member", "name: GroupbyCategoryForecaster\nforecasters:\n  smooth: {name: Nope}\n", "name"},
		{"clusterer without assignment", "name: GroupbyCategoryForecaster\nforecasters:\n  smooth: {name: Croston}\ntransformer: {name: NaiveForecaster}\n", "name"},
		{"empty registry", "name: GroupbyCategoryForecaster\n", "forecasters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.spec))
			require.NoError(t, err)
			_, err = r.BuildForecaster(s)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	_, err := r.BuildForecaster(nil)
	assert.Error(t, err)
}

func TestBuildTransformer(t *testing.T) {
	r := testRegistry(t)
	s, err := Parse([]byte("name: SeriesKMeans\nparams: {n_clusters: 3, scaler: minmax, random_state: 7}\n"))
	require.NoError(t, err)
	est, err := r.BuildTransformer(s)
	require.NoError(t, err)
	assert.Equal(t, "SeriesKMeans", est.Name())
	assert.Equal(t, 3, est.(model.ParamsGetter).GetParams()["n_clusters"])

	_, err = compose.AsCategoryTransformer(est)
	assert.NoError(t, err)
}

func TestRegister(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, []string{
		"Croston", "ForecastByLevel", "GroupbyCategoryForecaster", "NaiveForecaster", "PolynomialTrendForecaster",
	}, r.Forecasters())
	assert.Equal(t, []string{"ADICVTransformer", "SeriesKMeans"}, r.Transformers())

	var ve *errors.ValidationError
	assert.True(t, errors.As(r.RegisterForecaster("Croston", buildCroston), &ve))
	assert.True(t, errors.As(r.RegisterTransformer("SeriesKMeans", buildSeriesKMeans), &ve))
	require.NoError(t, r.RegisterTransformer("Shapes", buildSeriesKMeans))
	assert.Contains(t, r.Transformers(), "Shapes")

	require.NoError(t, r.RegisterForecaster("SeasonalNaive", func(r *Registry, s *Spec) (model.Forecaster, error) {
		return forecasting.NewNaiveForecaster(forecasting.WithStrategy(forecasting.StrategyLast))
	}))
	f, err := r.BuildForecaster(&Spec{Name: "SeasonalNaive"})
	require.NoError(t, err)
	assert.Equal(t, "NaiveForecaster", f.Name())
}
