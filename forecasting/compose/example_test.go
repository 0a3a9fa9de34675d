package compose_test

import (
	"fmt"
	"io"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/forecasting"
	"github.com/YuminosukeSato/sciforecast/forecasting/compose"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/preprocessing"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

func ExampleGroupbyCategoryForecaster() {
	y, _ := timeseries.NewPanel("demand", []string{"a", "b"}, [][]float64{
		{10, 11, 9, 10, 12, 10},
		{0, 0, 5, 0, 0, 5},
	})

	mean, _ := forecasting.NewNaiveForecaster(forecasting.WithStrategy(forecasting.StrategyMean))
	croston, _ := forecasting.NewCroston()
	f, err := compose.NewGroupbyCategoryForecaster(
		map[string]model.Forecaster{
			preprocessing.ClassSmooth:       mean,
			preprocessing.ClassIntermittent: croston,
		},
		compose.WithFallback(mean),
		compose.WithLogger(log.NewZerologLogger(io.Discard, log.LevelWarn)),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := f.Fit(y, nil, model.Horizon{1}); err != nil {
		fmt.Println(err)
		return
	}

	categories := f.Category()
	for i, key := range categories.Keys {
		fmt.Println(timeseries.FormatKey(key), categories.Values[i])
	}
	pred, _ := f.Predict(nil, nil)
	for i := 0; i < pred.Len(); i++ {
		fmt.Printf("%s %.2f\n", pred.IndexAt(i), pred.At(i, 0))
	}
	// Output:
	// a smooth
	// b intermittent
	// a@6 10.33
	// b@6 1.67
}

func ExampleForecastByLevel() {
	var (
		index []timeseries.Index
		rows  [][]float64
	)
	for _, store := range []string{"s1", "s2"} {
		for _, sku := range []string{"x", "y"} {
			for t := int64(0); t < 3; t++ {
				index = append(index, timeseries.Index{Levels: []string{store, sku}, Time: t})
				rows = append(rows, []float64{float64(t + 1)})
			}
		}
	}
	y, _ := timeseries.New(index, []string{"sales"}, rows)

	last, _ := forecasting.NewNaiveForecaster()
	for _, mode := range []string{compose.GroupByLocal, compose.GroupByPanel, compose.GroupByGlobal} {
		f, _ := compose.NewForecastByLevel(last,
			compose.WithGroupBy(mode),
			compose.WithByLevelLogger(log.NewZerologLogger(io.Discard, log.LevelWarn)),
		)
		if err := f.Fit(y, nil, model.Horizon{1}); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(mode, len(f.Forecasters()))
	}
	// Output:
	// local 4
	// panel 2
	// global 1
}
