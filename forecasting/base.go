// Package forecasting provides the base forecasters that composites route series to: naive
// strategies, Croston's method for intermittent demand and a polynomial trend.
//
// Every base forecaster fits each (instance, column) pair of its target frame independently,
// so flat series, panels and hierarchies are all accepted. Forecasts are laid out per instance
// at cutoff+step, where the cutoff is the last time point of that instance.
package forecasting

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/distribution"
	"github.com/YuminosukeSato/sciforecast/metrics"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// seriesModel is the fitted state of one column of one instance.
type seriesModel interface {
	// forecast returns the point forecast at time t and its variance. The variance is NaN when
	// the model has no error model.
	forecast(t int64) (mean, variance float64)
}

// covarianceModel is implemented by models whose forecast errors are correlated across steps.
// Other models are treated as independent across steps.
type covarianceModel interface {
	covariance(t1, t2 int64) float64
}

// fitSeriesFunc fits one column of one instance. times are strictly increasing.
type fitSeriesFunc func(key []string, times []int64, values []float64) (seriesModel, error)

type fittedInstance struct {
	key     []string
	cutoff  int64
	history *timeseries.Frame
	models  []seriesModel
}

// seriesForecaster holds the frame plumbing shared by the base forecasters.
type seriesForecaster struct {
	state *model.StateManager

	name          string
	probabilistic bool
	missingValues bool
	fitSeries     fitSeriesFunc

	columns   []string
	instances []*fittedInstance
	byKey     map[string]*fittedInstance
}

func newSeriesForecaster(name string, probabilistic, missingValues bool, fit fitSeriesFunc) *seriesForecaster {
	return &seriesForecaster{
		state:         model.NewStateManager(),
		name:          name,
		probabilistic: probabilistic,
		missingValues: missingValues,
		fitSeries:     fit,
	}
}

func (b *seriesForecaster) Name() string { return b.name }

func (b *seriesForecaster) IsFitted() bool { return b.state.IsFitted() }

// Cutoff returns the last fitted or updated time point of the instance key.
func (b *seriesForecaster) Cutoff(key []string) (int64, bool) {
	inst, ok := b.byKey[timeseries.JoinKey(key)]
	if !ok {
		return 0, false
	}
	return inst.cutoff, true
}

// Fit fits every (instance, column) of y. X is ignored.
func (b *seriesForecaster) Fit(y, _ *timeseries.Frame, fh model.Horizon) error {
	if err := b.checkTarget(y); err != nil {
		return err
	}
	if fh != nil {
		if err := fh.Validate(); err != nil {
			return err
		}
	}

	b.state.Reset()
	b.columns = y.Columns()
	b.instances = nil
	b.byKey = make(map[string]*fittedInstance)
	for _, key := range y.Instances() {
		inst, err := b.fitInstance(key, y.LocInstances([][]string{key}))
		if err != nil {
			return err
		}
		b.instances = append(b.instances, inst)
		b.byKey[timeseries.JoinKey(key)] = inst
	}

	b.state.SetHorizon(fh)
	b.state.SetDimensions(len(b.instances), len(b.columns))
	b.state.SetFitted()
	return nil
}

func (b *seriesForecaster) checkTarget(y *timeseries.Frame) error {
	if y == nil || y.Len() == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if !b.missingValues && y.HasMissing() {
		return errors.NewValueError(b.name+".Fit", "target contains missing values, which this forecaster does not support")
	}
	return nil
}

func (b *seriesForecaster) fitInstance(key []string, history *timeseries.Frame) (*fittedInstance, error) {
	history = history.SortIndex()
	times := make([]int64, history.Len())
	for i := range times {
		times[i] = history.IndexAt(i).Time
	}
	inst := &fittedInstance{
		key:     slices.Clone(key),
		cutoff:  times[len(times)-1],
		history: history,
		models:  make([]seriesModel, len(b.columns)),
	}
	for j, col := range b.columns {
		m, err := b.fitSeries(key, times, history.ColumnAt(j))
		if err != nil {
			return nil, errors.Wrapf(err, "%s: instance %s, column %s", b.name, timeseries.FormatKey(key), col)
		}
		inst.models[j] = m
	}
	return inst, nil
}

// horizon resolves fh against the fit-time horizon after checking the fitted state.
func (b *seriesForecaster) horizon(method string, fh model.Horizon) (model.Horizon, error) {
	if err := b.state.RequireFitted(b.name, method); err != nil {
		return nil, err
	}
	fh, err := model.Resolve(fh, b.state.Horizon())
	if err != nil {
		return nil, err
	}
	return fh.Sorted(), nil
}

// layout builds one row per instance and step, instances in fit order and steps ascending.
func (b *seriesForecaster) layout(steps model.Horizon, columns []string, row func(inst *fittedInstance, step int, t int64) []float64) (*timeseries.Frame, error) {
	index := make([]timeseries.Index, 0, len(b.instances)*len(steps))
	rows := make([][]float64, 0, cap(index))
	for _, inst := range b.instances {
		for _, s := range steps {
			t := inst.cutoff + int64(s)
			index = append(index, timeseries.Index{Levels: slices.Clone(inst.key), Time: t})
			rows = append(rows, row(inst, s, t))
		}
	}
	return timeseries.New(index, columns, rows)
}

// Predict returns point forecasts at cutoff+step for every instance. X is ignored.
func (b *seriesForecaster) Predict(fh model.Horizon, _ *timeseries.Frame) (*timeseries.Frame, error) {
	steps, err := b.horizon("Predict", fh)
	if err != nil {
		return nil, err
	}
	return b.layout(steps, b.columns, func(inst *fittedInstance, _ int, t int64) []float64 {
		row := make([]float64, len(inst.models))
		for j, m := range inst.models {
			row[j], _ = m.forecast(t)
		}
		return row
	})
}

func (b *seriesForecaster) requireProbabilistic(method string) error {
	if !b.probabilistic {
		return errors.NewCapabilityError(b.name, method, model.TagPredInt)
	}
	return nil
}

// PredictInterval returns symmetric Gaussian intervals for every coverage.
func (b *seriesForecaster) PredictInterval(fh model.Horizon, _ *timeseries.Frame, coverage []float64) (*timeseries.Frame, error) {
	if err := b.requireProbabilistic("PredictInterval"); err != nil {
		return nil, err
	}
	if err := model.ValidateCoverage(coverage); err != nil {
		return nil, err
	}
	steps, err := b.horizon("PredictInterval", fh)
	if err != nil {
		return nil, err
	}

	var columns []string
	for _, col := range b.columns {
		for _, c := range coverage {
			columns = append(columns,
				model.IntervalColumn(col, c, model.BoundLower),
				model.IntervalColumn(col, c, model.BoundUpper))
		}
	}
	z := make([]float64, len(coverage))
	for i, c := range coverage {
		z[i] = distuv.UnitNormal.Quantile(0.5 + c/2)
	}
	return b.layout(steps, columns, func(inst *fittedInstance, _ int, t int64) []float64 {
		row := make([]float64, 0, len(columns))
		for _, m := range inst.models {
			mean, variance := m.forecast(t)
			sd := math.Sqrt(variance)
			for _, zi := range z {
				row = append(row, mean-zi*sd, mean+zi*sd)
			}
		}
		return row
	})
}

// PredictVar returns forecast variances, or with cov the covariance of each step against every
// step of the horizon in "<var>|<step>" columns.
func (b *seriesForecaster) PredictVar(fh model.Horizon, _ *timeseries.Frame, cov bool) (*timeseries.Frame, error) {
	if err := b.requireProbabilistic("PredictVar"); err != nil {
		return nil, err
	}
	steps, err := b.horizon("PredictVar", fh)
	if err != nil {
		return nil, err
	}
	if !cov {
		return b.layout(steps, b.columns, func(inst *fittedInstance, _ int, t int64) []float64 {
			row := make([]float64, len(inst.models))
			for j, m := range inst.models {
				_, row[j] = m.forecast(t)
			}
			return row
		})
	}

	var columns []string
	for _, col := range b.columns {
		for _, s := range steps {
			columns = append(columns, model.CovColumn(col, s))
		}
	}
	return b.layout(steps, columns, func(inst *fittedInstance, step int, t int64) []float64 {
		row := make([]float64, 0, len(columns))
		for _, m := range inst.models {
			for _, s := range steps {
				u := inst.cutoff + int64(s)
				switch cm, ok := m.(covarianceModel); {
				case ok:
					row = append(row, cm.covariance(t, u))
				case s == step:
					_, v := m.forecast(t)
					row = append(row, v)
				default:
					row = append(row, 0)
				}
			}
		}
		return row
	})
}

// PredictProba returns independent Normal marginals. Joint distributions are not produced, so
// marginal=false yields the same result.
func (b *seriesForecaster) PredictProba(fh model.Horizon, X *timeseries.Frame, _ bool) (*distribution.Normal, error) {
	if err := b.requireProbabilistic("PredictProba"); err != nil {
		return nil, err
	}
	mean, err := b.Predict(fh, X)
	if err != nil {
		return nil, err
	}
	variance, err := b.PredictVar(fh, X, false)
	if err != nil {
		return nil, err
	}
	sd := variance.Data()
	sd.Apply(func(_, _ int, v float64) float64 { return math.Sqrt(v) }, sd)
	return distribution.NewNormal(mean, variance)
}

// Update appends y to the fitted history. With updateParams the affected instances are refitted,
// otherwise only their cutoff moves. Instances not seen before are fitted from y alone.
func (b *seriesForecaster) Update(y, _ *timeseries.Frame, updateParams bool) error {
	if err := b.state.RequireFitted(b.name, "Update"); err != nil {
		return err
	}
	if y == nil || y.Len() == 0 {
		return nil
	}
	if !slices.Equal(y.Columns(), b.columns) {
		return errors.NewValueError(b.name+".Update",
			fmt.Sprintf("columns %v do not match fitted columns %v", y.Columns(), b.columns))
	}
	if err := b.checkTarget(y); err != nil {
		return err
	}

	for _, key := range y.Instances() {
		rows := y.LocInstances([][]string{key})
		inst, ok := b.byKey[timeseries.JoinKey(key)]
		if !ok {
			fresh, err := b.fitInstance(key, rows)
			if err != nil {
				return err
			}
			b.instances = append(b.instances, fresh)
			b.byKey[timeseries.JoinKey(key)] = fresh
			continue
		}
		history, err := timeseries.Concat(inst.history, rows)
		if err != nil {
			return errors.Wrapf(err, "%s.Update: instance %s", b.name, timeseries.FormatKey(key))
		}
		if updateParams {
			refit, err := b.fitInstance(key, history)
			if err != nil {
				return err
			}
			*inst = *refit
			continue
		}
		inst.history = history.SortIndex()
		inst.cutoff = max(inst.cutoff, inst.history.IndexAt(inst.history.Len()-1).Time)
	}
	b.state.SetDimensions(len(b.instances), len(b.columns))
	return nil
}

// Score returns the mean absolute percentage error of the forecasts at the time points of y.
func (b *seriesForecaster) Score(y, _ *timeseries.Frame) (float64, error) {
	if err := b.state.RequireFitted(b.name, "Score"); err != nil {
		return 0, err
	}
	if y == nil || y.Len() == 0 {
		return 0, errors.WithStack(errors.ErrEmptyData)
	}
	rows := make([][]float64, y.Len())
	for i, idx := range y.Index() {
		inst, ok := b.byKey[idx.Instance()]
		if !ok {
			return 0, errors.NewValueError(b.name+".Score",
				fmt.Sprintf("instance %s was not seen in fit", timeseries.FormatKey(idx.Levels)))
		}
		rows[i] = make([]float64, len(inst.models))
		for j, m := range inst.models {
			rows[i][j], _ = m.forecast(idx.Time)
		}
	}
	pred, err := timeseries.New(y.Index(), b.columns, rows)
	if err != nil {
		return 0, err
	}
	return metrics.FrameMAPE(y, pred)
}

// observed drops NaN values together with their time points.
func observed(times []int64, values []float64) ([]int64, []float64) {
	var ts []int64
	var vs []float64
	for i, v := range values {
		if !math.IsNaN(v) {
			ts = append(ts, times[i])
			vs = append(vs, v)
		}
	}
	return ts, vs
}

func degenerate(estimator string, key []string, reason string) {
	errors.Warn(errors.NewDegenerateSeriesWarning(estimator, timeseries.FormatKey(key), reason))
}
