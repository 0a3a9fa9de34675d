// Package distribution holds predictive distributions returned by PredictProba.
package distribution

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// Normal is a set of independent Gaussian marginals, one per cell of a forecast frame. Mean and
// standard deviation share the row index and columns of the point forecast.
type Normal struct {
	mu    *timeseries.Frame
	sigma *timeseries.Frame
}

// NewNormal pairs a mean frame with a standard-deviation frame of identical shape and index.
func NewNormal(mu, sigma *timeseries.Frame) (*Normal, error) {
	if mu == nil || sigma == nil {
		return nil, errors.NewValueError("distribution.NewNormal", "mean and scale frames are required")
	}
	if !mu.IndexEqual(sigma) {
		return nil, errors.NewValueError("distribution.NewNormal", "mean and scale frames have different indexes")
	}
	if !slices.Equal(mu.Columns(), sigma.Columns()) {
		return nil, errors.NewValueError("distribution.NewNormal", "mean and scale frames have different columns")
	}
	for j := range sigma.Columns() {
		for i, s := range sigma.ColumnAt(j) {
			if s < 0 {
				return nil, errors.NewValueError("distribution.NewNormal", fmt.Sprintf("negative scale %g at %s", s, sigma.IndexAt(i)))
			}
		}
	}
	return &Normal{mu: mu, sigma: sigma}, nil
}

// Mean returns the location frame.
func (n *Normal) Mean() *timeseries.Frame { return n.mu }

// Std returns the scale frame.
func (n *Normal) Std() *timeseries.Frame { return n.sigma }

// Len returns the number of rows.
func (n *Normal) Len() int { return n.mu.Len() }

// Index returns the row index shared by mean and scale.
func (n *Normal) Index() []timeseries.Index { return n.mu.Index() }

// Quantile evaluates the p-quantile of every marginal.
func (n *Normal) Quantile(p float64) (*timeseries.Frame, error) {
	if p <= 0 || p >= 1 {
		return nil, errors.NewValidationError("p", "quantile level must lie in (0, 1)", p)
	}
	return n.apply(func(d distuv.Normal, _ float64) float64 { return d.Quantile(p) }, nil)
}

// CDF evaluates every marginal's distribution function at the matching cell of y.
func (n *Normal) CDF(y *timeseries.Frame) (*timeseries.Frame, error) {
	return n.apply(func(d distuv.Normal, v float64) float64 { return d.CDF(v) }, y)
}

// LogPDF evaluates every marginal's log density at the matching cell of y.
func (n *Normal) LogPDF(y *timeseries.Frame) (*timeseries.Frame, error) {
	return n.apply(func(d distuv.Normal, v float64) float64 { return d.LogProb(v) }, y)
}

func (n *Normal) apply(fn func(d distuv.Normal, v float64) float64, y *timeseries.Frame) (*timeseries.Frame, error) {
	if y != nil && !y.IndexEqual(n.mu) {
		return nil, errors.NewValueError("Normal.apply", "observations must share the distribution index")
	}
	rows, cols := n.mu.Len(), len(n.mu.Columns())
	if rows == 0 {
		return n.mu, nil
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := distuv.Normal{Mu: n.mu.At(i, j), Sigma: n.sigma.At(i, j)}
			v := 0.0
			if y != nil {
				v = y.At(i, j)
			}
			out.Set(i, j, fn(d, v))
		}
	}
	return timeseries.NewFromDense(n.mu.Index(), n.mu.Columns(), out)
}

// SortIndex returns a copy with rows in index order.
func (n *Normal) SortIndex() *Normal {
	return &Normal{mu: n.mu.SortIndex(), sigma: n.sigma.SortIndex()}
}

// Concat stacks distributions row-wise. Nil parts are skipped.
func Concat(parts ...*Normal) (*Normal, error) {
	var mus, sigmas []*timeseries.Frame
	for _, p := range parts {
		if p == nil {
			continue
		}
		mus = append(mus, p.mu)
		sigmas = append(sigmas, p.sigma)
	}
	mu, err := timeseries.Concat(mus...)
	if err != nil {
		return nil, err
	}
	sigma, err := timeseries.Concat(sigmas...)
	if err != nil {
		return nil, err
	}
	return &Normal{mu: mu, sigma: sigma}, nil
}
