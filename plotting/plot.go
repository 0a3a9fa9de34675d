// Package plotting renders forecasts next to the history they were fitted on.
//
// Each series of the panel gets one colour. History is drawn as a solid line, point forecasts as a
// dashed line and interval bounds, when given, as dotted lines:
//
//	p, err := plotting.Forecast(y, pred, plotting.WithInterval(interval, 0.9))
//	if err != nil {
//		return err
//	}
//	err = p.Save(8*vg.Inch, 4*vg.Inch, "forecast.png")
package plotting

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// MaxSeries caps the number of series drawn; the legend is unreadable beyond it.
const MaxSeries = 20

type config struct {
	title    string
	variable string
	interval *timeseries.Frame
	coverage float64
}

// Option configures Forecast.
type Option func(*config)

// WithTitle sets the plot title.
func WithTitle(title string) Option {
	return func(c *config) { c.title = title }
}

// WithVariable selects the variable to draw. The first column of the history by default.
func WithVariable(name string) Option {
	return func(c *config) { c.variable = name }
}

// WithInterval draws the bounds of the given coverage from a PredictInterval result.
func WithInterval(interval *timeseries.Frame, coverage float64) Option {
	return func(c *config) {
		c.interval = interval
		c.coverage = coverage
	}
}

// Forecast builds a plot of history and pred for one variable. Missing values leave gaps in the
// lines.
func Forecast(history, pred *timeseries.Frame, opts ...Option) (*plot.Plot, error) {
	if history == nil || pred == nil {
		return nil, errors.NewValueError("plotting.Forecast", "history and pred are required")
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.variable == "" {
		cols := history.Columns()
		if len(cols) == 0 {
			return nil, errors.NewValueError("plotting.Forecast", "history has no columns")
		}
		cfg.variable = cols[0]
	}
	for _, f := range []*timeseries.Frame{history, pred} {
		if !slices.Contains(f.Columns(), cfg.variable) {
			return nil, errors.NewValueError("plotting.Forecast", fmt.Sprintf("unknown variable %q", cfg.variable))
		}
	}
	lower := model.IntervalColumn(cfg.variable, cfg.coverage, model.BoundLower)
	upper := model.IntervalColumn(cfg.variable, cfg.coverage, model.BoundUpper)
	if cfg.interval != nil {
		cols := cfg.interval.Columns()
		if !slices.Contains(cols, lower) || !slices.Contains(cols, upper) {
			return nil, errors.NewValueError("plotting.Forecast",
				fmt.Sprintf("interval has no columns %q and %q", lower, upper))
		}
	}

	instances := history.Instances()
	if len(instances) > MaxSeries {
		return nil, errors.NewValueError("plotting.Forecast",
			fmt.Sprintf("%d series exceed the limit of %d", len(instances), MaxSeries))
	}

	p := plot.New()
	p.Title.Text = cfg.title
	p.X.Label.Text = "time"
	p.Y.Label.Text = cfg.variable
	p.Add(plotter.NewGrid())

	for i, key := range instances {
		name := timeseries.FormatKey(key)
		if name == "" {
			name = cfg.variable
		}
		color := plotutil.Color(i)

		hist, err := line(history, key, cfg.variable)
		if err != nil {
			return nil, err
		}
		if hist != nil {
			hist.Color = color
			p.Add(hist)
			p.Legend.Add(name, hist)
		}

		fc, err := line(pred, key, cfg.variable)
		if err != nil {
			return nil, err
		}
		if fc != nil {
			fc.Color = color
			fc.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(fc)
		}

		if cfg.interval == nil {
			continue
		}
		for _, col := range []string{lower, upper} {
			bound, err := line(cfg.interval, key, col)
			if err != nil {
				return nil, err
			}
			if bound != nil {
				bound.Color = color
				bound.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
				p.Add(bound)
			}
		}
	}
	return p, nil
}

// line draws one column of one instance, skipping missing values. It returns nil when nothing is
// left to draw.
func line(f *timeseries.Frame, key []string, column string) (*plotter.Line, error) {
	rows := f.LocInstances([][]string{key})
	values, ok := rows.Column(column)
	if !ok {
		return nil, errors.NewValueError("plotting.Forecast", fmt.Sprintf("unknown column %q", column))
	}
	xys := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(rows.IndexAt(i).Time), Y: v})
	}
	if len(xys) == 0 {
		return nil, nil
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, errors.Wrapf(err, "plotting %s", column)
	}
	return l, nil
}
