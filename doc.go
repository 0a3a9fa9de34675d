// Package sciforecast provides time series forecasters for panels of series, designed for
// backend services that forecast many related series at once.
//
// sciforecast offers an sktime-like API: forecasters are fitted on a Frame with a hierarchical
// (level..., time) index and a forecasting horizon, then predict point forecasts, intervals,
// quantiles, variances and full distributions.
//
// # Features
//
//   - Composite forecasters: ForecastByLevel fits one clone per series or per panel level, and
//     GroupbyCategoryForecaster routes each series to the forecaster of its demand category
//   - Demand classification: ADI/CV categories for smooth, erratic, intermittent and lumpy demand,
//     or clusters of series shapes
//   - Early classification of prefixes with an explicit, caller-owned decision state
//   - Declarative specs: YAML forecaster specs built through a registry
//   - Structured errors and logging on cockroachdb/errors and zerolog
//
// # Installation
//
//	go get github.com/YuminosukeSato/sciforecast
//
// # Quick Start
//
// Route each product to a forecaster by its demand pattern:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/sciforecast/core/model"
//	    "github.com/YuminosukeSato/sciforecast/forecasting"
//	    "github.com/YuminosukeSato/sciforecast/forecasting/compose"
//	    "github.com/YuminosukeSato/sciforecast/timeseries"
//	)
//
//	func main() {
//	    y, err := timeseries.NewPanel("demand", []string{"milk", "candles"}, [][]float64{
//	        {40, 42, 39, 41, 43, 40},
//	        {0, 0, 3, 0, 0, 3},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    naive, _ := forecasting.NewNaiveForecaster()
//	    croston, _ := forecasting.NewCroston()
//	    f, err := compose.NewGroupbyCategoryForecaster(map[string]model.Forecaster{
//	        "smooth":       naive,
//	        "intermittent": croston,
//	    }, compose.WithFallback(naive))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := f.Fit(y, nil, model.HorizonRange(3)); err != nil {
//	        log.Fatal(err)
//	    }
//	    pred, err := f.Predict(nil, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(pred.Len())
//	}
//
// # Packages
//
//   - timeseries: Frame with hierarchical index, CSV input and output, category labels
//   - forecasting: NaiveForecaster, Croston, PolynomialTrendForecaster
//   - forecasting/compose: ForecastByLevel and GroupbyCategoryForecaster
//   - preprocessing: ADI/CV demand classification and feature scaling
//   - sklearn/cluster: k-means of series shapes
//   - sklearn/linear_model: least squares and logistic regression
//   - classification/early: early classifiers with DecisionState
//   - distribution: forecast distributions
//   - metrics: forecast and classification scores
//   - registry: YAML specs and the estimator registry
//   - plotting: history and forecast plots
//   - core/model: estimator interfaces, tags and state
//   - core/parallel: bounded parallel loops
//   - pkg/errors, pkg/log: error types and logging
//
// The sciforecast command fits a spec on a CSV file and writes forecasts:
//
//	sciforecast predict --data sales.csv --levels store,sku --config model.yaml --fh 1,2,3
package sciforecast
