package compose

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/distribution"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/preprocessing"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// Capabilities that hold for the composite only when every member has them.
var andTags = []string{
	model.TagIgnoresExogenousX,
	model.TagEnforceIndexType,
	model.TagMissingValues,
	model.TagInsample,
	model.TagPredInt,
	model.TagPredIntInsample,
}

// Requirements that hold for the composite as soon as one member has them.
var orTags = []string{
	model.TagRequiresFHInFit,
	model.TagXYSameIndex,
}

// Step is a named member of a composite, as listed by Steps.
type Step struct {
	Name      string
	Estimator model.Estimator
}

// GroupbyCategoryForecaster assigns every series a category with a transformer (ADI/CV demand
// classes by default), then fits the forecaster registered for that category on all series of the
// category at once. Categories without a registered forecaster go to the fallback forecaster.
//
// Categories are fixed at fit: Update routes new observations by the fit-time assignment.
type GroupbyCategoryForecaster struct {
	state *model.StateManager

	forecasters map[string]model.Forecaster
	transformer model.CategoryTransformer
	fallback    model.Forecaster
	nJobs       int
	baseLogger  log.Logger
	logger      log.Logger
	tags        model.Tags

	transformerErr error

	labels *timeseries.Labels
	fitted map[string]model.Forecaster
	router *router
}

// CategoryOption configures a GroupbyCategoryForecaster.
type CategoryOption func(*GroupbyCategoryForecaster)

// WithTransformer sets the category transformer: a model.CategoryTransformer, or a
// model.Clusterer tagged capability:predict.
func WithTransformer(t model.Estimator) CategoryOption {
	return func(f *GroupbyCategoryForecaster) {
		f.transformer, f.transformerErr = nil, nil
		if t != nil {
			f.transformer, f.transformerErr = AsCategoryTransformer(t)
		}
	}
}

// WithFallback sets the forecaster used for categories without a registered forecaster.
func WithFallback(fallback model.Forecaster) CategoryOption {
	return func(f *GroupbyCategoryForecaster) { f.fallback = fallback }
}

// WithNJobs fans categories out over n goroutines. 1 (the default) runs them in order; a negative
// n uses one goroutine per CPU.
func WithNJobs(n int) CategoryOption {
	return func(f *GroupbyCategoryForecaster) { f.nJobs = n }
}

// WithLogger sets the logger, log.GetLogger() by default.
func WithLogger(logger log.Logger) CategoryOption {
	return func(f *GroupbyCategoryForecaster) { f.baseLogger = logger }
}

// NewGroupbyCategoryForecaster validates the registry and the transformer. The registry map is
// copied; forecasters are cloned when fitted.
func NewGroupbyCategoryForecaster(forecasters map[string]model.Forecaster, opts ...CategoryOption) (*GroupbyCategoryForecaster, error) {
	f := &GroupbyCategoryForecaster{
		state:       model.NewStateManager(),
		forecasters: maps.Clone(forecasters),
		nJobs:       1,
	}
	if f.forecasters == nil {
		f.forecasters = map[string]model.Forecaster{}
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, category := range f.categories() {
		if f.forecasters[category] == nil {
			return nil, errors.NewValidationError("forecasters",
				fmt.Sprintf("forecaster for category %q is nil", category), nil)
		}
	}
	if len(f.forecasters) == 0 && f.fallback == nil {
		return nil, errors.NewValidationError("forecasters",
			"at least one forecaster or a fallback forecaster is required", nil)
	}
	if f.nJobs == 0 {
		return nil, errors.NewValidationError("n_jobs", "must be positive or negative, not 0", f.nJobs)
	}

	if f.transformerErr != nil {
		return nil, f.transformerErr
	}
	if f.transformer == nil {
		adicv, err := preprocessing.NewADICVTransformer(preprocessing.WithFeatures(preprocessing.FeatureClass))
		if err != nil {
			return nil, err
		}
		f.transformer = adicv
	} else {
		f.transformer = f.transformer.Clone()
	}

	if f.baseLogger == nil {
		f.baseLogger = log.GetLogger()
	}
	f.logger = f.baseLogger.With(
		log.ModelNameKey, f.Name(),
		log.EstimatorIDKey, uuid.NewString(),
	)
	f.tags = f.aggregateTags()
	return f, nil
}

func (f *GroupbyCategoryForecaster) Name() string { return "GroupbyCategoryForecaster" }

func (f *GroupbyCategoryForecaster) IsFitted() bool { return f.state.IsFitted() }

// categories returns the registered categories in sorted order.
func (f *GroupbyCategoryForecaster) categories() []string {
	return slices.Sorted(maps.Keys(f.forecasters))
}

func (f *GroupbyCategoryForecaster) members() []model.Tags {
	var sets []model.Tags
	for _, c := range f.categories() {
		sets = append(sets, f.forecasters[c].Tags())
	}
	if f.fallback != nil {
		sets = append(sets, f.fallback.Tags())
	}
	return sets
}

func (f *GroupbyCategoryForecaster) aggregateTags() model.Tags {
	sets := f.members()
	tags := model.Tags{model.TagFitIsEmpty: false}
	for _, tag := range andTags {
		tags[tag] = model.AllTrue(tag, sets...)
	}
	for _, tag := range orTags {
		tags[tag] = model.AnyTrue(tag, sets...)
	}
	return tags
}

// Tags returns the capabilities aggregated over the registered forecasters and the fallback.
func (f *GroupbyCategoryForecaster) Tags() model.Tags { return f.tags.Clone() }

// SupportsProbabilistic reports whether every member, fallback included, supports interval,
// variance and distribution forecasts.
func (f *GroupbyCategoryForecaster) SupportsProbabilistic() bool {
	return f.tags.Get(model.TagPredInt)
}

// GetParams returns the hyperparameters.
func (f *GroupbyCategoryForecaster) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"forecasters": f.categories(),
		"transformer": f.transformer.Name(),
		"n_jobs":      f.nJobs,
	}
	if f.fallback != nil {
		params["fallback_forecaster"] = f.fallback.Name()
	}
	return params
}

// Steps lists the registered forecasters in category order, then the transformer and the
// fallback when set.
func (f *GroupbyCategoryForecaster) Steps() []Step {
	var steps []Step
	for _, c := range f.categories() {
		steps = append(steps, Step{Name: c, Estimator: f.forecasters[c]})
	}
	steps = append(steps, Step{Name: "transformer", Estimator: f.transformer})
	if f.fallback != nil {
		steps = append(steps, Step{Name: "fallback_forecaster", Estimator: f.fallback})
	}
	return steps
}

// Clone returns an unfitted copy. Member forecasters are cloned.
func (f *GroupbyCategoryForecaster) Clone() model.Forecaster {
	registry := make(map[string]model.Forecaster, len(f.forecasters))
	for c, fc := range f.forecasters {
		registry[c] = fc.Clone()
	}
	c := &GroupbyCategoryForecaster{
		state:       model.NewStateManager(),
		forecasters: registry,
		transformer: f.transformer.Clone(),
		nJobs:       f.nJobs,
		baseLogger:  f.baseLogger,
		logger: f.baseLogger.With(
			log.ModelNameKey, f.Name(),
			log.EstimatorIDKey, uuid.NewString(),
		),
		tags: f.tags.Clone(),
	}
	if f.fallback != nil {
		c.fallback = f.fallback.Clone()
	}
	return c
}

// Fit categorises the series of y, then clones and fits one forecaster per category on all
// series of that category. X is sliced like y. It fails with a MissingCategoryError, before
// fitting anything, when a category has no forecaster and no fallback is set.
func (f *GroupbyCategoryForecaster) Fit(y, X *timeseries.Frame, fh model.Horizon) error {
	if y == nil || y.Len() == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if fh != nil {
		if err := fh.Validate(); err != nil {
			return err
		}
	}
	start := time.Now()
	f.state.Reset()
	f.labels, f.fitted, f.router = nil, nil, nil

	labels, err := f.transformer.FitTransform(y, X)
	if err != nil {
		return errors.Wrapf(err, "%s.Fit: categorising series", f.Name())
	}

	type assignment struct {
		route
		blueprint model.Forecaster
		fallback  bool
	}
	var plan []assignment
	for _, g := range labels.Groups() {
		a := assignment{route: route{name: g.Label, keys: g.Keys}, blueprint: f.forecasters[g.Label]}
		if a.blueprint == nil {
			if f.fallback == nil {
				f.logger.Error("no forecaster for category",
					log.CategoryKey, g.Label,
					log.ErrorCodeKey, log.ErrorMissingCategory,
				)
				return errors.NewMissingCategoryError(f.Name(), g.Label, f.categories())
			}
			a.blueprint, a.fallback = f.fallback, true
		}
		plan = append(plan, a)
	}

	routes := make([]route, len(plan))
	for i, a := range plan {
		routes[i] = a.route
	}
	fitted, err := dispatch(routes, f.nJobs, f.Name()+".Fit", func(i int, r route) (model.Forecaster, error) {
		a := plan[i]
		f.logger.Debug("fitting category",
			log.OperationKey, log.OperationFit,
			log.CategoryKey, r.name,
			log.InstancesKey, len(r.keys),
			log.FallbackKey, a.fallback,
		)
		clone := a.blueprint.Clone()
		if err := clone.Fit(r.slice(y), r.slice(X), fh); err != nil {
			return nil, err
		}
		return clone, nil
	})
	if err != nil {
		return err
	}

	f.fitted = make(map[string]model.Forecaster, len(routes))
	for i := range routes {
		routes[i].forecaster = fitted[i]
		f.fitted[routes[i].name] = fitted[i]
	}
	f.labels = labels
	f.router = &router{name: f.Name(), nJobs: f.nJobs, routes: routes}
	f.state.SetHorizon(fh)
	f.state.SetDimensions(labels.Len(), len(y.Columns()))
	f.state.SetFitted()
	f.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.InstancesKey, labels.Len(),
		"categories", len(routes),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Category returns the category assigned to every instance at fit.
func (f *GroupbyCategoryForecaster) Category() *timeseries.Labels {
	if f.labels == nil {
		return nil
	}
	return &timeseries.Labels{
		Keys:   slices.Clone(f.labels.Keys),
		Values: slices.Clone(f.labels.Values),
	}
}

// Forecasters returns the fitted forecaster of every category seen at fit.
func (f *GroupbyCategoryForecaster) Forecasters() map[string]model.Forecaster {
	return maps.Clone(f.fitted)
}

// Transformer returns the composite's own copy of the category transformer.
func (f *GroupbyCategoryForecaster) Transformer() model.CategoryTransformer { return f.transformer }

// Predict forecasts every category on its own series and returns the forecasts sorted by index.
func (f *GroupbyCategoryForecaster) Predict(fh model.Horizon, X *timeseries.Frame) (*timeseries.Frame, error) {
	if err := f.state.RequireFitted(f.Name(), "Predict"); err != nil {
		return nil, err
	}
	f.logger.Debug("predicting", log.OperationKey, log.OperationPredict, log.HorizonKey, len(fh))
	return f.router.predict(fh, X)
}

func (f *GroupbyCategoryForecaster) requireProbabilistic(method string) error {
	if err := f.state.RequireFitted(f.Name(), method); err != nil {
		return err
	}
	if !f.SupportsProbabilistic() {
		return errors.NewCapabilityError(f.Name(), method, model.TagPredInt)
	}
	return nil
}

// PredictInterval returns prediction intervals of every category. It fails with a
// CapabilityError unless SupportsProbabilistic.
func (f *GroupbyCategoryForecaster) PredictInterval(fh model.Horizon, X *timeseries.Frame, coverage []float64) (*timeseries.Frame, error) {
	if err := f.requireProbabilistic("PredictInterval"); err != nil {
		return nil, err
	}
	f.logger.Debug("predicting", log.OperationKey, log.OperationPredictInterval, "coverage", coverage)
	return f.router.predictInterval(fh, X, coverage)
}

// PredictVar returns forecast variances of every category. It fails with a CapabilityError
// unless SupportsProbabilistic.
func (f *GroupbyCategoryForecaster) PredictVar(fh model.Horizon, X *timeseries.Frame, cov bool) (*timeseries.Frame, error) {
	if err := f.requireProbabilistic("PredictVar"); err != nil {
		return nil, err
	}
	return f.router.predictVar(fh, X, cov)
}

// PredictProba returns the predictive distributions of every category. It fails with a
// CapabilityError unless SupportsProbabilistic.
func (f *GroupbyCategoryForecaster) PredictProba(fh model.Horizon, X *timeseries.Frame, marginal bool) (*distribution.Normal, error) {
	if err := f.requireProbabilistic("PredictProba"); err != nil {
		return nil, err
	}
	return f.router.predictProba(fh, X, marginal)
}

// Update passes new observations to the forecaster of each instance's fit-time category. The
// transformer is not rerun. Instances not seen at fit are rejected.
func (f *GroupbyCategoryForecaster) Update(y, X *timeseries.Frame, updateParams bool) error {
	if err := f.state.RequireFitted(f.Name(), "Update"); err != nil {
		return err
	}
	if y == nil || y.Len() == 0 {
		return nil
	}
	for _, key := range y.Instances() {
		if _, ok := f.labels.Get(key); !ok {
			return errors.NewValueError(f.Name()+".Update",
				fmt.Sprintf("instance %s was not seen in fit; categories are fixed at fit", timeseries.FormatKey(key)))
		}
	}
	f.logger.Debug("updating",
		log.OperationKey, log.OperationUpdate,
		log.InstancesKey, len(y.Instances()),
		"update_params", updateParams,
	)
	return f.router.update(y, X, updateParams)
}
