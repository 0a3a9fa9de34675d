package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/forecasting/compose"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/plotting"
	"github.com/YuminosukeSato/sciforecast/registry"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

type predictOptions struct {
	*rootOptions

	data       string
	config     string
	levels     []string
	timeColumn string
	values     []string
	fh         []int
	coverage   []float64
	output     string
	plot       string
	categories bool
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	opts := &predictOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Fit a forecaster spec on a CSV file and write forecasts",
		Example: `  sciforecast predict --data sales.csv --levels store,sku --config model.yaml --fh 1,2,3
  sciforecast predict --data y.csv --config model.yaml --fh 1 --coverage 0.8,0.95`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd.OutOrStdout(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.data, "data", "", "long-format CSV with the series to fit")
	flags.StringVar(&opts.config, "config", "", "YAML spec of the forecaster")
	flags.StringSliceVar(&opts.levels, "levels", nil, "hierarchy columns of the CSV, outermost first")
	flags.StringVar(&opts.timeColumn, "time-column", "time", "time column of the CSV")
	flags.StringSliceVar(&opts.values, "values", nil, "value columns to forecast (default: all remaining columns)")
	flags.IntSliceVar(&opts.fh, "fh", []int{1}, "forecast horizon steps relative to the last observation")
	flags.Float64SliceVar(&opts.coverage, "coverage", nil, "add prediction intervals with these coverages")
	flags.StringVar(&opts.output, "output", "", "write forecasts to this file instead of stdout")
	flags.StringVar(&opts.plot, "plot", "", "also draw history and forecasts to this image (png, svg or pdf)")
	flags.BoolVar(&opts.categories, "categories", false, "write the category of every series instead of forecasts")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runPredict(stdout io.Writer, opts *predictOptions) error {
	y, err := timeseries.LoadCSV(opts.data, &timeseries.CSVOptions{
		LevelColumns: opts.levels,
		TimeColumn:   opts.timeColumn,
		ValueColumns: opts.values,
	})
	if err != nil {
		return err
	}
	spec, err := registry.Load(opts.config)
	if err != nil {
		return err
	}
	forecaster, err := registry.New(registry.WithLogger(opts.logger)).BuildForecaster(spec)
	if err != nil {
		return err
	}
	fh := model.Horizon(opts.fh)
	if err := forecaster.Fit(y, nil, fh); err != nil {
		return err
	}

	out := stdout
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return errors.Wrapf(err, "create %s", opts.output)
		}
		defer file.Close()
		out = file
	}

	if opts.categories {
		return writeCategories(out, forecaster)
	}

	pred, err := forecaster.Predict(fh, nil)
	if err != nil {
		return err
	}
	var interval *timeseries.Frame
	if len(opts.coverage) > 0 {
		pf, ok := forecaster.(model.ProbabilisticForecaster)
		if !ok {
			return errors.NewCapabilityError(forecaster.Name(), "PredictInterval", model.TagPredInt)
		}
		if interval, err = pf.PredictInterval(fh, nil, opts.coverage); err != nil {
			return err
		}
	}
	if opts.plot != "" {
		if err := savePlot(opts, y, pred, interval); err != nil {
			return err
		}
	}
	if interval != nil {
		if pred, err = joinColumns(pred, interval); err != nil {
			return err
		}
	}
	return timeseries.WriteCSV(out, pred, levelNames(opts.levels, pred))
}

// savePlot draws the first variable with the widest requested interval.
func savePlot(opts *predictOptions, y, pred, interval *timeseries.Frame) error {
	plotOpts := []plotting.Option{plotting.WithTitle(filepath.Base(opts.data))}
	if interval != nil {
		plotOpts = append(plotOpts, plotting.WithInterval(interval, slices.Max(opts.coverage)))
	}
	p, err := plotting.Forecast(y, pred, plotOpts...)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, opts.plot); err != nil {
		return errors.Wrapf(err, "save plot %s", opts.plot)
	}
	return nil
}

// levelNames reuses the input hierarchy column names when they match the output.
func levelNames(levels []string, f *timeseries.Frame) []string {
	if len(levels) == f.InstanceLevels() {
		return levels
	}
	return nil
}

// joinColumns places the columns of b beside those of a. Both must share an index.
func joinColumns(a, b *timeseries.Frame) (*timeseries.Frame, error) {
	if !a.IndexEqual(b) {
		return nil, errors.NewValueError("joinColumns", "frames have different indexes")
	}
	_, ca := a.Data().Dims()
	_, cb := b.Data().Dims()
	data := mat.NewDense(a.Len(), ca+cb, nil)
	data.Slice(0, a.Len(), 0, ca).(*mat.Dense).Copy(a.Data())
	data.Slice(0, a.Len(), ca, ca+cb).(*mat.Dense).Copy(b.Data())
	return timeseries.NewFromDense(a.Index(), append(a.Columns(), b.Columns()...), data)
}

func writeCategories(w io.Writer, f interface{}) error {
	gc, ok := f.(*compose.GroupbyCategoryForecaster)
	if !ok {
		return errors.NewValueError("predict", "--categories needs a GroupbyCategoryForecaster spec")
	}
	labels := gc.Category()
	for i, key := range labels.Keys {
		if _, err := fmt.Fprintf(w, "%s,%s\n", timeseries.FormatKey(key), labels.Values[i]); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
