package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sciforecast/timeseries"
)

var demandSeries = map[string][]float64{
	ClassSmooth:       {10, 11, 9, 10, 12, 10, 11, 9},
	ClassErratic:      {1, 20, 2, 30, 1, 25, 3, 22},
	ClassIntermittent: {0, 0, 5, 0, 0, 5, 0, 5},
	ClassLumpy:        {0, 0, 1, 0, 0, 30, 0, 2},
}

func demandPanel(t *testing.T, keys ...string) *timeseries.Frame {
	t.Helper()
	series := make([][]float64, len(keys))
	for i, k := range keys {
		series[i] = demandSeries[k]
	}
	f, err := timeseries.NewPanel("demand", keys, series)
	require.NoError(t, err)
	return f
}
