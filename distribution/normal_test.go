package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sciforecast/timeseries"
)

func TestNormal_Quantile(t *testing.T) {
	mu := timeseries.NewSeriesAt("y", 10, []float64{0, 5})
	sigma := timeseries.NewSeriesAt("y", 10, []float64{1, 2})
	d, err := NewNormal(mu, sigma)
	require.NoError(t, err)

	median, err := d.Quantile(0.5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 5}, median.ColumnAt(0), 1e-12)

	upper, err := d.Quantile(0.975)
	require.NoError(t, err)
	assert.InDelta(t, 1.959964, upper.At(0, 0), 1e-5)
	assert.InDelta(t, 5+2*1.959964, upper.At(1, 0), 1e-5)

	_, err = d.Quantile(1)
	assert.Error(t, err)
}

func TestNormal_CDFAndLogPDF(t *testing.T) {
	mu := timeseries.NewSeries("y", []float64{0})
	sigma := timeseries.NewSeries("y", []float64{1})
	d, err := NewNormal(mu, sigma)
	require.NoError(t, err)

	cdf, err := d.CDF(timeseries.NewSeries("y", []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cdf.At(0, 0), 1e-12)

	lp, err := d.LogPDF(timeseries.NewSeries("y", []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, -0.5*math.Log(2*math.Pi), lp.At(0, 0), 1e-12)

	_, err = d.CDF(timeseries.NewSeriesAt("y", 3, []float64{0}))
	assert.Error(t, err)
}

func TestNewNormal_Validation(t *testing.T) {
	mu := timeseries.NewSeries("y", []float64{0, 1})
	_, err := NewNormal(mu, timeseries.NewSeries("y", []float64{1}))
	assert.Error(t, err)
	_, err = NewNormal(mu, timeseries.NewSeries("z", []float64{1, 1}))
	assert.Error(t, err)
	_, err = NewNormal(mu, timeseries.NewSeries("y", []float64{1, -1}))
	assert.Error(t, err)
}

func TestConcatAndSort(t *testing.T) {
	a, err := NewNormal(timeseries.NewSeriesAt("y", 2, []float64{2}), timeseries.NewSeriesAt("y", 2, []float64{0.2}))
	require.NoError(t, err)
	b, err := NewNormal(timeseries.NewSeriesAt("y", 1, []float64{1}), timeseries.NewSeriesAt("y", 1, []float64{0.1}))
	require.NoError(t, err)

	d, err := Concat(a, nil, b)
	require.NoError(t, err)
	d = d.SortIndex()
	assert.Equal(t, []float64{1, 2}, d.Mean().ColumnAt(0))
	assert.Equal(t, []float64{0.1, 0.2}, d.Std().ColumnAt(0))
	assert.Equal(t, 2, d.Len())
}
