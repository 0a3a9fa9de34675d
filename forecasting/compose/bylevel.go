// Package compose provides forecasters built from other forecasters: ForecastByLevel fits one
// clone of a blueprint per hierarchy group, GroupbyCategoryForecaster routes every series to the
// forecaster registered for its category.
//
// Composites never fit the forecasters they are given. They clone them at fit time and own the
// clones exclusively, so the caller's blueprints stay unfitted.
package compose

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/distribution"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// Grouping modes of ForecastByLevel.
const (
	// GroupByLocal fits one clone per instance (all hierarchy levels).
	GroupByLocal = "local"
	// GroupByGlobal fits a single clone on the pooled data.
	GroupByGlobal = "global"
	// GroupByPanel fits one clone per panel: all hierarchy levels except the innermost.
	GroupByPanel = "panel"
)

// FittedForecaster is a clone fitted on the group identified by Key.
type FittedForecaster struct {
	Key        []string
	Forecaster model.Forecaster
}

// ForecastByLevel applies copies of a blueprint forecaster per instance, per panel or globally.
//
// With at most one hierarchy level "global" and "panel" coincide; on a flat series all three
// modes fit a single clone on the whole series.
type ForecastByLevel struct {
	state *model.StateManager

	forecaster model.Forecaster
	groupBy    string
	baseLogger log.Logger
	logger     log.Logger

	depth  int
	router *router
}

// ByLevelOption configures a ForecastByLevel.
type ByLevelOption func(*ForecastByLevel)

// WithGroupBy selects GroupByLocal, GroupByGlobal or GroupByPanel.
func WithGroupBy(groupBy string) ByLevelOption {
	return func(f *ForecastByLevel) { f.groupBy = groupBy }
}

// WithByLevelLogger sets the logger, log.GetLogger() by default.
func WithByLevelLogger(logger log.Logger) ByLevelOption {
	return func(f *ForecastByLevel) { f.baseLogger = logger }
}

// NewForecastByLevel wraps a clone of forecaster. The grouping mode is validated here, not at fit.
func NewForecastByLevel(forecaster model.Forecaster, opts ...ByLevelOption) (*ForecastByLevel, error) {
	if forecaster == nil {
		return nil, errors.NewValidationError("forecaster", "a forecaster is required", nil)
	}
	f := &ForecastByLevel{
		state:      model.NewStateManager(),
		forecaster: forecaster.Clone(),
		groupBy:    GroupByLocal,
	}
	for _, opt := range opts {
		opt(f)
	}
	switch f.groupBy {
	case GroupByLocal, GroupByGlobal, GroupByPanel:
	default:
		return nil, errors.NewValidationError("groupby",
			`groupby in ForecastByLevel must be one of "local", "global", "panel"`, f.groupBy)
	}
	if f.baseLogger == nil {
		f.baseLogger = log.GetLogger()
	}
	f.logger = f.baseLogger.With(
		log.ModelNameKey, f.Name(),
		log.EstimatorIDKey, uuid.NewString(),
	)
	return f, nil
}

func (f *ForecastByLevel) Name() string { return "ForecastByLevel" }

// Tags are the blueprint's tags with fit_is_empty forced to false.
func (f *ForecastByLevel) Tags() model.Tags {
	return f.forecaster.Tags().With(model.Tags{model.TagFitIsEmpty: false})
}

func (f *ForecastByLevel) IsFitted() bool { return f.state.IsFitted() }

// GroupBy returns the grouping mode.
func (f *ForecastByLevel) GroupBy() string { return f.groupBy }

// GetParams returns the hyperparameters.
func (f *ForecastByLevel) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"forecaster": f.forecaster.Name(),
		"groupby":    f.groupBy,
	}
}

// Clone returns an unfitted copy.
func (f *ForecastByLevel) Clone() model.Forecaster {
	c, _ := NewForecastByLevel(f.forecaster, WithGroupBy(f.groupBy), WithByLevelLogger(f.baseLogger))
	return c
}

// depthFor returns how many leading hierarchy levels identify a group of y.
func (f *ForecastByLevel) depthFor(y *timeseries.Frame) int {
	levels := y.InstanceLevels()
	switch f.groupBy {
	case GroupByLocal:
		return levels
	case GroupByPanel:
		return max(levels-1, 0)
	default:
		return 0
	}
}

// Fit fits one clone of the blueprint per group of y.
func (f *ForecastByLevel) Fit(y, X *timeseries.Frame, fh model.Horizon) error {
	if y == nil || y.Len() == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	start := time.Now()
	f.state.Reset()
	f.router = nil

	depth := f.depthFor(y)
	groups, err := y.GroupBy(depth)
	if err != nil {
		return err
	}
	routes := make([]route, len(groups))
	for i, g := range groups {
		routes[i] = route{
			name: timeseries.FormatKey(g.Key),
			keys: [][]string{g.Key},
		}
	}
	fitted, err := dispatch(routes, 1, f.Name()+".Fit", func(_ int, r route) (model.Forecaster, error) {
		clone := f.forecaster.Clone()
		f.logger.Debug("fitting group",
			log.OperationKey, log.OperationFit,
			log.GroupKey, r.name,
		)
		if err := clone.Fit(r.slice(y), r.slice(X), fh); err != nil {
			return nil, err
		}
		return clone, nil
	})
	if err != nil {
		return err
	}
	for i := range routes {
		routes[i].forecaster = fitted[i]
	}

	f.depth = depth
	f.router = &router{name: f.Name(), nJobs: 1, routes: routes}
	f.state.SetHorizon(fh)
	f.state.SetDimensions(len(y.Instances()), len(y.Columns()))
	f.state.SetFitted()
	f.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		"groupby", f.groupBy,
		"groups", len(routes),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Forecasters returns every fitted clone with its group key, ordered by key.
func (f *ForecastByLevel) Forecasters() []FittedForecaster {
	if f.router == nil {
		return nil
	}
	out := make([]FittedForecaster, len(f.router.routes))
	for i, r := range f.router.routes {
		out[i] = FittedForecaster{Key: slices.Clone(r.keys[0]), Forecaster: r.forecaster}
	}
	return out
}

// Forecaster returns the fitted clone when exactly one was fitted.
func (f *ForecastByLevel) Forecaster() (model.Forecaster, bool) {
	if f.router == nil || len(f.router.routes) != 1 {
		return nil, false
	}
	return f.router.routes[0].forecaster, true
}

// Predict forecasts every group and returns the forecasts sorted by index.
func (f *ForecastByLevel) Predict(fh model.Horizon, X *timeseries.Frame) (*timeseries.Frame, error) {
	if err := f.state.RequireFitted(f.Name(), "Predict"); err != nil {
		return nil, err
	}
	return f.router.predict(fh, X)
}

func (f *ForecastByLevel) requireProbabilistic(method string) error {
	if err := f.state.RequireFitted(f.Name(), method); err != nil {
		return err
	}
	if !f.Tags().Get(model.TagPredInt) {
		return errors.NewCapabilityError(f.Name(), method, model.TagPredInt)
	}
	return nil
}

// PredictInterval returns prediction intervals of every group.
func (f *ForecastByLevel) PredictInterval(fh model.Horizon, X *timeseries.Frame, coverage []float64) (*timeseries.Frame, error) {
	if err := f.requireProbabilistic("PredictInterval"); err != nil {
		return nil, err
	}
	return f.router.predictInterval(fh, X, coverage)
}

// PredictVar returns forecast variances of every group.
func (f *ForecastByLevel) PredictVar(fh model.Horizon, X *timeseries.Frame, cov bool) (*timeseries.Frame, error) {
	if err := f.requireProbabilistic("PredictVar"); err != nil {
		return nil, err
	}
	return f.router.predictVar(fh, X, cov)
}

// PredictProba returns the predictive distributions of every group.
func (f *ForecastByLevel) PredictProba(fh model.Horizon, X *timeseries.Frame, marginal bool) (*distribution.Normal, error) {
	if err := f.requireProbabilistic("PredictProba"); err != nil {
		return nil, err
	}
	return f.router.predictProba(fh, X, marginal)
}

// Update passes new observations to the clone of their group. Groups not seen in fit are
// rejected.
func (f *ForecastByLevel) Update(y, X *timeseries.Frame, updateParams bool) error {
	if err := f.state.RequireFitted(f.Name(), "Update"); err != nil {
		return err
	}
	if y == nil || y.Len() == 0 {
		return nil
	}
	if y.InstanceLevels() < f.depth {
		return errors.NewValueError(f.Name()+".Update",
			fmt.Sprintf("expected at least %d hierarchy levels, got %d", f.depth, y.InstanceLevels()))
	}
	known := make(map[string]bool, len(f.router.routes))
	for _, r := range f.router.routes {
		known[timeseries.JoinKey(r.keys[0])] = true
	}
	for _, key := range y.Instances() {
		if !known[timeseries.JoinKey(key[:f.depth])] {
			return errors.NewValueError(f.Name()+".Update",
				fmt.Sprintf("group %s was not seen in fit", timeseries.FormatKey(key[:f.depth])))
		}
	}
	f.logger.Debug("updating", log.OperationKey, log.OperationUpdate, log.InstancesKey, len(y.Instances()))
	return f.router.update(y, X, updateParams)
}
