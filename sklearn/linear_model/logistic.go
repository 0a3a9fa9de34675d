package linear_model

import (
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// LogisticRegression is an L2-regularised logistic regression trained by gradient descent.
// Two classes are fitted with a single weight vector, more classes one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager

	penalty      string
	C            float64
	fitIntercept bool
	maxIter      int
	tol          float64
	randomState  int64

	coef      [][]float64
	intercept []float64
	classes   []int
	nFeatures int
	nIter     []int
}

// LogisticRegressionOption configures a LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// WithLRPenalty sets the regularisation, "l2" (default) or "none".
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularisation strength. Default 1.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether an intercept is learned. Default true.
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter sets the gradient descent iteration limit. Default 100.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the gradient norm at which training stops. Default 1e-4.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState seeds the weight initialisation. Default 0.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

// NewLogisticRegression creates an unfitted LogisticRegression.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit trains on X with integer class labels in the n×1 matrix y.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}

	lr.classes = lr.classes[:0]
	for i := 0; i < nSamples; i++ {
		if c := int(y.At(i, 0)); !slices.Contains(lr.classes, c) {
			lr.classes = append(lr.classes, c)
		}
	}
	slices.Sort(lr.classes)
	if len(lr.classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "at least two classes are required")
	}
	lr.nFeatures = nFeatures

	nModels := len(lr.classes)
	if nModels == 2 {
		nModels = 1
	}
	rng := rand.New(rand.NewSource(lr.randomState))
	lr.coef = make([][]float64, nModels)
	lr.intercept = make([]float64, nModels)
	lr.nIter = make([]int, nModels)
	for k := range lr.coef {
		lr.coef[k] = make([]float64, nFeatures)
		for j := range lr.coef[k] {
			lr.coef[k][j] = rng.NormFloat64() * 0.01
		}
		positive := lr.classes[k]
		if nModels == 1 {
			positive = lr.classes[1]
		}
		target := make([]float64, nSamples)
		for i := range target {
			if int(y.At(i, 0)) == positive {
				target[i] = 1
			}
		}
		lr.fitOne(X, target, k)
	}

	lr.state.SetDimensions(nSamples, nFeatures)
	lr.state.SetFitted()
	return nil
}

// fitOne runs gradient descent for weight vector k against 0/1 targets.
func (lr *LogisticRegression) fitOne(X mat.Matrix, target []float64, k int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef[k]
	const baseLearningRate = 1.0

	for iter := 0; iter < lr.maxIter; iter++ {
		grad := make([]float64, nFeatures)
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			z := lr.intercept[k]
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			e := sigmoid(z) - target[i]
			gradIntercept += e
			for j := 0; j < nFeatures; j++ {
				grad[j] += e * X.At(i, j)
			}
		}
		maxGrad := math.Abs(gradIntercept / float64(nSamples))
		for j := range grad {
			grad[j] /= float64(nSamples)
			if lr.penalty == "l2" {
				grad[j] += weights[j] / lr.C
			}
			maxGrad = math.Max(maxGrad, math.Abs(grad[j]))
		}

		rate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= rate * grad[j]
		}
		if lr.fitIntercept {
			lr.intercept[k] -= rate * gradIntercept / float64(nSamples)
		}
		lr.nIter[k] = iter + 1
		if maxGrad < lr.tol {
			return
		}
	}
	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, ""))
}

func (lr *LogisticRegression) scores(X mat.Matrix) ([][]float64, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "Predict"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures {
		return nil, errors.NewDimensionError("LogisticRegression.Predict", lr.nFeatures, nFeatures, 1)
	}
	out := make([][]float64, nSamples)
	for i := range out {
		out[i] = make([]float64, len(lr.coef))
		for k, w := range lr.coef {
			z := lr.intercept[k]
			for j := range w {
				z += X.At(i, j) * w[j]
			}
			out[i][k] = z
		}
	}
	return out, nil
}

// PredictProba returns an n×nClasses matrix of class probabilities, columns ordered as Classes().
// One-vs-rest scores are normalised with a softmax.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.scores(X)
	if err != nil {
		return nil, err
	}
	probas := mat.NewDense(len(scores), len(lr.classes), nil)
	for i, s := range scores {
		if len(lr.classes) == 2 {
			p := sigmoid(s[0])
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		m := slices.Max(s)
		sum := 0.0
		for k := range s {
			s[k] = math.Exp(s[k] - m)
			sum += s[k]
		}
		for k := range s {
			probas.Set(i, k, s[k]/sum)
		}
	}
	return probas, nil
}

// Predict returns the most probable class per row as an n×1 matrix.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, cols := probas.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(lr.classes[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y).
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	if n == 0 {
		return 0, errors.WithStack(errors.ErrEmptyData)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Classes returns the sorted class labels seen in Fit.
func (lr *LogisticRegression) Classes() []int { return slices.Clone(lr.classes) }

// NIter returns the iterations used per weight vector.
func (lr *LogisticRegression) NIter() []int { return slices.Clone(lr.nIter) }

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() *LogisticRegression {
	return NewLogisticRegression(
		WithLRPenalty(lr.penalty),
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.fitIntercept),
		WithLRMaxIter(lr.maxIter),
		WithLRTol(lr.tol),
		WithLRRandomState(lr.randomState),
	)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}
