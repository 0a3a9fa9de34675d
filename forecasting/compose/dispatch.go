package compose

import (
	"context"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/core/parallel"
	"github.com/YuminosukeSato/sciforecast/distribution"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// route is one unit of dispatch: a fitted member and the instances it owns.
type route struct {
	name       string
	keys       [][]string
	forecaster model.Forecaster
}

// slice restricts a (possibly nil) frame to the instances of the route. The empty key selects
// every row, so flat series and the global group pass through whole.
func (r route) slice(f *timeseries.Frame) *timeseries.Frame {
	if f == nil {
		return nil
	}
	return f.LocInstances(r.keys)
}

func (r route) probabilistic(estimator, method string) (model.ProbabilisticForecaster, error) {
	pf, ok := r.forecaster.(model.ProbabilisticForecaster)
	if !ok || !pf.Tags().Get(model.TagPredInt) {
		return nil, errors.NewCapabilityError(estimator, method, model.TagPredInt)
	}
	return pf, nil
}

// collectFrames concatenates per-route outputs and sorts them by index.
func collectFrames(parts []*timeseries.Frame) (*timeseries.Frame, error) {
	out, err := timeseries.Concat(parts...)
	if err != nil {
		return nil, err
	}
	return out.SortIndex(), nil
}

func collectNormals(parts []*distribution.Normal) (*distribution.Normal, error) {
	out, err := distribution.Concat(parts...)
	if err != nil {
		return nil, err
	}
	return out.SortIndex(), nil
}

// dispatch calls fn for every route with at most nJobs routes in flight. Results keep route
// order. The first failure aborts the operation and is returned wrapped with the route name.
func dispatch[T any](routes []route, nJobs int, op string, fn func(i int, r route) (T, error)) ([]T, error) {
	out := make([]T, len(routes))
	err := parallel.ForEach(context.Background(), len(routes), nJobs, op, func(_ context.Context, i int) error {
		v, err := fn(i, routes[i])
		if err != nil {
			return errors.Wrapf(err, "%s[%s]", op, routes[i].name)
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// router fans forecasting calls out over fitted routes and recombines the outputs.
type router struct {
	name   string
	nJobs  int
	routes []route
}

func (rt *router) predict(fh model.Horizon, X *timeseries.Frame) (*timeseries.Frame, error) {
	parts, err := dispatch(rt.routes, rt.nJobs, rt.name+".Predict", func(_ int, r route) (*timeseries.Frame, error) {
		return r.forecaster.Predict(fh, r.slice(X))
	})
	if err != nil {
		return nil, err
	}
	return collectFrames(parts)
}

func (rt *router) predictInterval(fh model.Horizon, X *timeseries.Frame, coverage []float64) (*timeseries.Frame, error) {
	if err := model.ValidateCoverage(coverage); err != nil {
		return nil, err
	}
	parts, err := dispatch(rt.routes, rt.nJobs, rt.name+".PredictInterval", func(_ int, r route) (*timeseries.Frame, error) {
		pf, err := r.probabilistic(rt.name, "PredictInterval")
		if err != nil {
			return nil, err
		}
		return pf.PredictInterval(fh, r.slice(X), coverage)
	})
	if err != nil {
		return nil, err
	}
	return collectFrames(parts)
}

func (rt *router) predictVar(fh model.Horizon, X *timeseries.Frame, cov bool) (*timeseries.Frame, error) {
	parts, err := dispatch(rt.routes, rt.nJobs, rt.name+".PredictVar", func(_ int, r route) (*timeseries.Frame, error) {
		pf, err := r.probabilistic(rt.name, "PredictVar")
		if err != nil {
			return nil, err
		}
		return pf.PredictVar(fh, r.slice(X), cov)
	})
	if err != nil {
		return nil, err
	}
	return collectFrames(parts)
}

func (rt *router) predictProba(fh model.Horizon, X *timeseries.Frame, marginal bool) (*distribution.Normal, error) {
	parts, err := dispatch(rt.routes, rt.nJobs, rt.name+".PredictProba", func(_ int, r route) (*distribution.Normal, error) {
		pf, err := r.probabilistic(rt.name, "PredictProba")
		if err != nil {
			return nil, err
		}
		return pf.PredictProba(fh, r.slice(X), marginal)
	})
	if err != nil {
		return nil, err
	}
	return collectNormals(parts)
}

// update sends each route the rows of y belonging to its instances. Routes without rows are
// skipped.
func (rt *router) update(y, X *timeseries.Frame, updateParams bool) error {
	_, err := dispatch(rt.routes, rt.nJobs, rt.name+".Update", func(_ int, r route) (struct{}, error) {
		ys := r.slice(y)
		if ys.Len() == 0 {
			return struct{}{}, nil
		}
		return struct{}{}, r.forecaster.Update(ys, r.slice(X), updateParams)
	})
	return err
}
