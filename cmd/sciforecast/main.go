// Command sciforecast fits a forecaster described by a YAML spec on a CSV panel and writes the
// forecasts as CSV.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
