package registry

import (
	"maps"
	"slices"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/forecasting"
	"github.com/YuminosukeSato/sciforecast/forecasting/compose"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/preprocessing"
	"github.com/YuminosukeSato/sciforecast/sklearn/cluster"
)

func registerBuiltins(r *Registry) {
	r.forecasters["NaiveForecaster"] = buildNaive
	r.forecasters["Croston"] = buildCroston
	r.forecasters["PolynomialTrendForecaster"] = buildTrend
	r.forecasters["ForecastByLevel"] = buildByLevel
	r.forecasters["GroupbyCategoryForecaster"] = buildGroupbyCategory

	r.transformers["ADICVTransformer"] = buildADICV
	r.transformers["SeriesKMeans"] = buildSeriesKMeans
}

// leaf rejects nested members on specs of estimators that have none.
func leaf(s *Spec) error {
	if s.Forecaster != nil || s.Forecasters != nil || s.Fallback != nil || s.Transformer != nil {
		return errors.NewValidationError("spec", s.Name+" takes no member estimators", s.Name)
	}
	return nil
}

func buildNaive(_ *Registry, s *Spec) (model.Forecaster, error) {
	if err := leaf(s); err != nil {
		return nil, err
	}
	p := newParams(s)
	var opts []forecasting.NaiveOption
	if v, ok := p.String("strategy"); ok {
		opts = append(opts, forecasting.WithStrategy(v))
	}
	if v, ok := p.Int("window_length"); ok {
		opts = append(opts, forecasting.WithWindowLength(v))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return forecasting.NewNaiveForecaster(opts...)
}

func buildCroston(_ *Registry, s *Spec) (model.Forecaster, error) {
	if err := leaf(s); err != nil {
		return nil, err
	}
	p := newParams(s)
	var opts []forecasting.CrostonOption
	if v, ok := p.Float("smoothing"); ok {
		opts = append(opts, forecasting.WithSmoothing(v))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return forecasting.NewCroston(opts...)
}

func buildTrend(_ *Registry, s *Spec) (model.Forecaster, error) {
	if err := leaf(s); err != nil {
		return nil, err
	}
	p := newParams(s)
	var opts []forecasting.TrendOption
	if v, ok := p.Int("degree"); ok {
		opts = append(opts, forecasting.WithDegree(v))
	}
	if v, ok := p.Bool("with_intercept"); ok {
		opts = append(opts, forecasting.WithTrendIntercept(v))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return forecasting.NewPolynomialTrendForecaster(opts...)
}

func buildByLevel(r *Registry, s *Spec) (model.Forecaster, error) {
	if s.Forecasters != nil || s.Fallback != nil || s.Transformer != nil {
		return nil, errors.NewValidationError("spec", "ForecastByLevel takes a single forecaster", s.Name)
	}
	p := newParams(s)
	opts := []compose.ByLevelOption{compose.WithByLevelLogger(r.logger)}
	if v, ok := p.String("groupby"); ok {
		opts = append(opts, compose.WithGroupBy(v))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	if s.Forecaster == nil {
		return nil, errors.NewValidationError("forecaster", "ForecastByLevel needs a forecaster", nil)
	}
	inner, err := r.BuildForecaster(s.Forecaster)
	if err != nil {
		return nil, err
	}
	return compose.NewForecastByLevel(inner, opts...)
}

func buildGroupbyCategory(r *Registry, s *Spec) (model.Forecaster, error) {
	if s.Forecaster != nil {
		return nil, errors.NewValidationError("spec", "GroupbyCategoryForecaster takes forecasters by category", s.Name)
	}
	p := newParams(s)
	opts := []compose.CategoryOption{compose.WithLogger(r.logger)}
	if v, ok := p.Int("n_jobs"); ok {
		opts = append(opts, compose.WithNJobs(v))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	members := make(map[string]model.Forecaster, len(s.Forecasters))
	for _, category := range slices.Sorted(maps.Keys(s.Forecasters)) {
		f, err := r.BuildForecaster(s.Forecasters[category])
		if err != nil {
			return nil, errors.Wrapf(err, "category %s", category)
		}
		members[category] = f
	}
	if s.Fallback != nil {
		fallback, err := r.BuildForecaster(s.Fallback)
		if err != nil {
			return nil, errors.Wrap(err, "fallback")
		}
		opts = append(opts, compose.WithFallback(fallback))
	}
	if s.Transformer != nil {
		t, err := r.BuildTransformer(s.Transformer)
		if err != nil {
			return nil, errors.Wrap(err, "transformer")
		}
		opts = append(opts, compose.WithTransformer(t))
	}
	return compose.NewGroupbyCategoryForecaster(members, opts...)
}

func buildADICV(_ *Registry, s *Spec) (model.Estimator, error) {
	if err := leaf(s); err != nil {
		return nil, err
	}
	p := newParams(s)
	var opts []preprocessing.ADICVOption
	if v, ok := p.Strings("features"); ok {
		opts = append(opts, preprocessing.WithFeatures(v...))
	} else {
		opts = append(opts, preprocessing.WithFeatures(preprocessing.FeatureClass))
	}
	if v, ok := p.Float("adi_threshold"); ok {
		opts = append(opts, preprocessing.WithADIThreshold(v))
	}
	if v, ok := p.Float("cv_threshold"); ok {
		opts = append(opts, preprocessing.WithCVThreshold(v))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return preprocessing.NewADICVTransformer(opts...)
}

func buildSeriesKMeans(_ *Registry, s *Spec) (model.Estimator, error) {
	if err := leaf(s); err != nil {
		return nil, err
	}
	p := newParams(s)
	var opts []cluster.SeriesKMeansOption
	if v, ok := p.Int("n_clusters"); ok {
		opts = append(opts, cluster.WithSeriesNClusters(v))
	}
	if v, ok := p.String("scaler"); ok {
		opts = append(opts, cluster.WithSeriesScaler(v))
	}
	if v, ok := p.Int("random_state"); ok {
		opts = append(opts, cluster.WithSeriesRandomState(int64(v)))
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return cluster.NewSeriesKMeans(opts...)
}
