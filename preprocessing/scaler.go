// Package preprocessing provides feature scalers and the ADI/CV² demand classifier used to route
// series to forecasters.
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// StandardScaler removes the column mean and scales to unit population variance.
type StandardScaler struct {
	state *model.StateManager

	withMean bool
	withStd  bool

	mean  []float64
	scale []float64
}

// NewStandardScaler creates a StandardScaler.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{state: model.NewStateManager(), withMean: withMean, withStd: withStd}
}

// NewStandardScalerDefault centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit learns per-column mean and standard deviation. Constant columns get scale 1.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	s.mean = make([]float64, cols)
	s.scale = make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, X)
		if err := errors.CheckFinite("StandardScaler.Fit", col); err != nil {
			return err
		}
		m, v := stat.PopMeanVariance(col, nil)
		s.mean[j] = m
		s.scale[j] = math.Sqrt(v)
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	s.state.SetDimensions(rows, cols)
	s.state.SetFitted()
	return nil
}

// Transform applies the learned scaling.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != len(s.mean) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.mean), cols, 1)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if s.withMean {
			v -= s.mean[j]
		}
		if s.withStd {
			v /= s.scale[j]
		}
		return v
	}, X)
	return out, nil
}

// FitTransform is Fit followed by Transform.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps scaled values back.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != len(s.mean) {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", len(s.mean), cols, 1)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if s.withStd {
			v *= s.scale[j]
		}
		if s.withMean {
			v += s.mean[j]
		}
		return v
	}, X)
	return out, nil
}

// Mean returns the learned column means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Scale returns the learned column standard deviations.
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }

// GetParams returns the hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"with_mean": s.withMean, "with_std": s.withStd}
}

// MinMaxScaler maps every column linearly onto a feature range.
type MinMaxScaler struct {
	state *model.StateManager

	featureRange [2]float64

	dataMin []float64
	scale   []float64
}

// NewMinMaxScaler creates a MinMaxScaler targeting [featureRange[0], featureRange[1]].
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{state: model.NewStateManager(), featureRange: featureRange}
}

// NewMinMaxScalerDefault targets [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit learns per-column minimum and range. Constant columns map to the lower bound.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	if m.featureRange[0] >= m.featureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.featureRange)
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	m.dataMin = make([]float64, cols)
	m.scale = make([]float64, cols)
	width := m.featureRange[1] - m.featureRange[0]
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, X)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		m.dataMin[j] = lo
		m.scale[j] = 0
		if hi > lo {
			m.scale[j] = width / (hi - lo)
		}
	}
	m.state.SetDimensions(rows, cols)
	m.state.SetFitted()
	return nil
}

// Transform applies the learned mapping.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != len(m.dataMin) {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", len(m.dataMin), cols, 1)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return m.featureRange[0] + (v-m.dataMin[j])*m.scale[j]
	}, X)
	return out, nil
}

// FitTransform is Fit followed by Transform.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// GetParams returns the hyperparameters.
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"feature_range": m.featureRange}
}

var (
	_ model.Transformer = (*StandardScaler)(nil)
	_ model.Transformer = (*MinMaxScaler)(nil)
)
