// Package linear_model provides the linear learners used inside sciforecast estimators: ordinary
// least squares for trend fitting and logistic regression for early classification.
package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// LinearRegression is ordinary least squares solved by QR factorisation.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool
	positive     bool

	coef      []float64
	intercept float64
	// (AᵀA)⁻¹ of the design matrix A (with intercept column), kept for prediction variance
	gramInv  *mat.Dense
	sigma2   float64
	nSamples int
}

// LinearRegressionOption configures a LinearRegression.
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept sets whether an intercept is estimated. Default true.
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) { lr.fitIntercept = fit }
}

// WithPositive clips negative coefficients to zero after fitting.
func WithPositive(positive bool) LinearRegressionOption {
	return func(lr *LinearRegression) { lr.positive = positive }
}

// NewLinearRegression creates an unfitted LinearRegression.
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

func (lr *LinearRegression) design(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	if !lr.fitIntercept {
		return mat.DenseCopyOf(X)
	}
	A := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		A.Set(i, 0, 1)
		for j := 0; j < cols; j++ {
			A.Set(i, j+1, X.At(i, j))
		}
	}
	return A
}

// Fit estimates coefficients for the n×1 target y. It needs at least as many samples as
// parameters.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}

	A := lr.design(X)
	_, p := A.Dims()
	if rows < p {
		return errors.NewValueError("LinearRegression.Fit",
			fmt.Sprintf("%d samples cannot determine %d parameters", rows, p))
	}

	var qr mat.QR
	qr.Factorize(A)
	beta := mat.NewDense(p, 1, nil)
	if err := qr.SolveTo(beta, false, y); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}

	var gram, gramInv mat.Dense
	gram.Mul(A.T(), A)
	if err := gramInv.Inverse(&gram); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}

	offset := 0
	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = beta.At(0, 0)
		offset = 1
	}
	lr.coef = make([]float64, cols)
	for j := range lr.coef {
		lr.coef[j] = beta.At(j+offset, 0)
		if lr.positive && lr.coef[j] < 0 {
			lr.coef[j] = 0
		}
	}

	var fitted mat.Dense
	fitted.Mul(A, beta)
	rss := 0.0
	for i := 0; i < rows; i++ {
		r := y.At(i, 0) - fitted.At(i, 0)
		rss += r * r
	}
	lr.sigma2 = 0
	if rows > p {
		lr.sigma2 = rss / float64(rows-p)
	}
	lr.gramInv = &gramInv
	lr.nSamples = rows

	lr.state.SetDimensions(rows, cols)
	lr.state.SetFitted()
	return nil
}

// Predict returns the n×1 fitted values for X.
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != len(lr.coef) {
		return nil, errors.NewDimensionError("LinearRegression.Predict", len(lr.coef), cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		v := lr.intercept
		for j := 0; j < cols; j++ {
			v += X.At(i, j) * lr.coef[j]
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// PredictionVariance returns the variance of a new observation at every row of X:
// σ²(1 + xᵀ(AᵀA)⁻¹x), with σ² the residual variance of the fit.
func (lr *LinearRegression) PredictionVariance(X mat.Matrix) ([]float64, error) {
	if err := lr.state.RequireFitted("LinearRegression", "PredictionVariance"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if cols != len(lr.coef) {
		return nil, errors.NewDimensionError("LinearRegression.PredictionVariance", len(lr.coef), cols, 1)
	}
	A := lr.design(X)
	rows, _ := A.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		x := A.RowView(i)
		var gx mat.VecDense
		gx.MulVec(lr.gramInv, x)
		out[i] = lr.sigma2 * (1 + mat.Dot(x, &gx))
	}
	return out, nil
}

// ResidualVariance returns RSS/(n-p) of the fit, 0 for an exact fit.
func (lr *LinearRegression) ResidualVariance() float64 { return lr.sigma2 }

// Score returns the coefficient of determination R² on (X, y).
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	mean := 0.0
	for i := 0; i < rows; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(rows)
	var ssTot, ssRes float64
	for i := 0; i < rows; i++ {
		yi := y.At(i, 0)
		ssTot += (yi - mean) * (yi - mean)
		ssRes += (yi - pred.At(i, 0)) * (yi - pred.At(i, 0))
	}
	if ssTot == 0 {
		return 0, errors.NewValueError("LinearRegression.Score", "cannot compute score with zero variance in y_true")
	}
	return 1 - ssRes/ssTot, nil
}

// Coef returns a copy of the fitted coefficients.
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept returns the fitted intercept.
func (lr *LinearRegression) Intercept() float64 { return lr.intercept }

// IsFitted reports whether Fit has completed.
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"positive":      lr.positive,
	}
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LinearRegression) Clone() *LinearRegression {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept), WithPositive(lr.positive))
}
