package early

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/core/parallel"
	"github.com/YuminosukeSato/sciforecast/metrics"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
	"github.com/YuminosukeSato/sciforecast/preprocessing"
	"github.com/YuminosukeSato/sciforecast/sklearn/linear_model"
)

// DefaultProbabilityThreshold is the top-class probability a prediction needs to count as safe.
const DefaultProbabilityThreshold = 0.85

// ProbabilityThresholdClassifier fits one standardised logistic regression per classification
// point, the prefix lengths at which decisions are taken. A prediction is safe when its top class
// probability reaches the threshold; the label becomes final after the configured number of
// consecutive safe predictions of the same class, or at the full series length.
type ProbabilityThresholdClassifier struct {
	state *model.StateManager

	threshold   float64
	consecutive int
	points      []int
	nJobs       int
	lrOpts      []linear_model.LogisticRegressionOption
	baseLogger  log.Logger
	logger      log.Logger

	seriesLength int
	fittedPoints []int
	scalers      []*preprocessing.StandardScaler
	models       []*linear_model.LogisticRegression
	classes      []int
}

// ThresholdOption configures a ProbabilityThresholdClassifier.
type ThresholdOption func(*ProbabilityThresholdClassifier)

// WithProbabilityThreshold sets the safe probability, in (0, 1]. Default 0.85.
func WithProbabilityThreshold(p float64) ThresholdOption {
	return func(c *ProbabilityThresholdClassifier) { c.threshold = p }
}

// WithConsecutivePredictions sets how many safe predictions of the same class in a row make a
// label final. Default 1.
func WithConsecutivePredictions(n int) ThresholdOption {
	return func(c *ProbabilityThresholdClassifier) { c.consecutive = n }
}

// WithClassificationPoints sets the prefix lengths at which classifiers are trained. By default
// every length from 1 to the training series length is used.
func WithClassificationPoints(points ...int) ThresholdOption {
	return func(c *ProbabilityThresholdClassifier) { c.points = slices.Clone(points) }
}

// WithEstimatorOptions configures the logistic regression trained at every point.
func WithEstimatorOptions(opts ...linear_model.LogisticRegressionOption) ThresholdOption {
	return func(c *ProbabilityThresholdClassifier) { c.lrOpts = slices.Clone(opts) }
}

// WithThresholdNJobs trains up to n point classifiers concurrently. Default 1.
func WithThresholdNJobs(n int) ThresholdOption {
	return func(c *ProbabilityThresholdClassifier) { c.nJobs = n }
}

// WithThresholdLogger sets the logger, log.GetLogger() by default.
func WithThresholdLogger(logger log.Logger) ThresholdOption {
	return func(c *ProbabilityThresholdClassifier) { c.baseLogger = logger }
}

// NewProbabilityThresholdClassifier creates an unfitted classifier.
func NewProbabilityThresholdClassifier(opts ...ThresholdOption) (*ProbabilityThresholdClassifier, error) {
	c := &ProbabilityThresholdClassifier{
		state:       model.NewStateManager(),
		threshold:   DefaultProbabilityThreshold,
		consecutive: 1,
		nJobs:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !(c.threshold > 0 && c.threshold <= 1) {
		return nil, errors.NewValidationError("probability_threshold", "must lie in (0, 1]", c.threshold)
	}
	if c.consecutive < 1 {
		return nil, errors.NewValidationError("consecutive_predictions", "must be at least 1", c.consecutive)
	}
	if c.nJobs == 0 {
		return nil, errors.NewValidationError("n_jobs", "must be positive or negative, not 0", c.nJobs)
	}
	if c.points != nil {
		slices.Sort(c.points)
		if len(c.points) == 0 || c.points[0] < 1 {
			return nil, errors.NewValidationError("classification_points", "points must be positive prefix lengths", c.points)
		}
		if len(slices.Compact(slices.Clone(c.points))) != len(c.points) {
			return nil, errors.NewValidationError("classification_points", "points must be unique", c.points)
		}
	}
	if c.baseLogger == nil {
		c.baseLogger = log.GetLogger()
	}
	c.logger = c.baseLogger.With(
		log.ModelNameKey, c.Name(),
		log.EstimatorIDKey, uuid.NewString(),
	)
	return c, nil
}

func (c *ProbabilityThresholdClassifier) Name() string { return "ProbabilityThresholdClassifier" }

func (c *ProbabilityThresholdClassifier) Tags() model.Tags {
	return model.Tags{model.TagMissingValues: false, model.TagCapabilityMultivariate: false}
}

func (c *ProbabilityThresholdClassifier) IsFitted() bool { return c.state.IsFitted() }

// GetParams returns the hyperparameters.
func (c *ProbabilityThresholdClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"probability_threshold":   c.threshold,
		"consecutive_predictions": c.consecutive,
		"classification_points":   slices.Clone(c.points),
		"n_jobs":                  c.nJobs,
	}
}

// Clone returns an unfitted copy.
func (c *ProbabilityThresholdClassifier) Clone() *ProbabilityThresholdClassifier {
	clone, _ := NewProbabilityThresholdClassifier(
		WithProbabilityThreshold(c.threshold),
		WithConsecutivePredictions(c.consecutive),
		WithThresholdNJobs(c.nJobs),
		WithEstimatorOptions(c.lrOpts...),
		WithThresholdLogger(c.baseLogger),
	)
	if c.points != nil {
		clone.points = slices.Clone(c.points)
	}
	return clone
}

// ClassificationPoints returns the prefix lengths used after fit.
func (c *ProbabilityThresholdClassifier) ClassificationPoints() []int {
	return slices.Clone(c.fittedPoints)
}

// Classes returns the sorted class labels seen in fit.
func (c *ProbabilityThresholdClassifier) Classes() []int { return slices.Clone(c.classes) }

// Fit trains a scaler and a logistic regression on every prefix of X.
func (c *ProbabilityThresholdClassifier) Fit(X mat.Matrix, y []int) error {
	n, length := X.Dims()
	if n == 0 || length == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError(c.Name()+".Fit", n, len(y), 0)
	}
	start := time.Now()
	c.state.Reset()

	points := c.points
	if points == nil {
		points = make([]int, length)
		for i := range points {
			points[i] = i + 1
		}
	}
	if last := points[len(points)-1]; last > length {
		return errors.NewValidationError("classification_points",
			fmt.Sprintf("point exceeds the series length %d", length), last)
	}

	data := mat.DenseCopyOf(X)
	labels := mat.NewDense(n, 1, nil)
	for i, v := range y {
		labels.Set(i, 0, float64(v))
	}

	scalers := make([]*preprocessing.StandardScaler, len(points))
	models := make([]*linear_model.LogisticRegression, len(points))
	err := parallel.ForEach(context.Background(), len(points), c.nJobs, c.Name()+".Fit",
		func(_ context.Context, k int) error {
			scaler := preprocessing.NewStandardScalerDefault()
			scaled, err := scaler.FitTransform(data.Slice(0, n, 0, points[k]))
			if err != nil {
				return errors.Wrapf(err, "classification point %d", points[k])
			}
			lr := linear_model.NewLogisticRegression(c.lrOpts...)
			if err := lr.Fit(scaled, labels); err != nil {
				return errors.Wrapf(err, "classification point %d", points[k])
			}
			scalers[k], models[k] = scaler, lr
			return nil
		})
	if err != nil {
		return err
	}

	c.seriesLength = length
	c.fittedPoints = slices.Clone(points)
	c.scalers = scalers
	c.models = models
	c.classes = models[0].Classes()
	c.state.SetDimensions(n, length)
	c.state.SetFitted()
	c.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, length,
		"classification_points", len(points),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// point returns the index of the largest classification point not exceeding length.
func (c *ProbabilityThresholdClassifier) point(op string, length int) (int, error) {
	k, found := slices.BinarySearch(c.fittedPoints, length)
	if !found {
		k--
	}
	if k < 0 {
		return 0, errors.NewValueError(op,
			fmt.Sprintf("series of length %d is shorter than the first classification point %d", length, c.fittedPoints[0]))
	}
	return k, nil
}

func (c *ProbabilityThresholdClassifier) probabilities(op string, X mat.Matrix) (int, *mat.Dense, error) {
	if err := c.state.RequireFitted(c.Name(), op); err != nil {
		return 0, nil, err
	}
	n, length := X.Dims()
	if n == 0 {
		return 0, nil, errors.WithStack(errors.ErrEmptyData)
	}
	k, err := c.point(c.Name()+"."+op, length)
	if err != nil {
		return 0, nil, err
	}
	prefix := mat.DenseCopyOf(X).Slice(0, n, 0, c.fittedPoints[k])
	scaled, err := c.scalers[k].Transform(prefix)
	if err != nil {
		return 0, nil, err
	}
	proba, err := c.models[k].PredictProba(scaled)
	if err != nil {
		return 0, nil, err
	}
	return k, mat.DenseCopyOf(proba), nil
}

// decide advances state by one decision at classification point k.
func (c *ProbabilityThresholdClassifier) decide(state DecisionState, k int, proba *mat.Dense) ([]int, []bool, DecisionState) {
	p := c.fittedPoints[k]
	n := state.Len()
	next := state.Clone()
	labels := make([]int, n)
	decisions := make([]bool, n)
	for i := 0; i < n; i++ {
		if c.final(state, i) {
			labels[i], decisions[i] = state.LastLabels[i], true
			continue
		}
		// same prefix as last time: nothing new to decide on
		if state.LastTimestamps[i] >= p {
			labels[i] = state.LastLabels[i]
			continue
		}

		row := proba.RawRowView(i)
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		label := c.classes[best]
		count := 0
		if row[best] >= c.threshold {
			count = 1
			if label == state.LastLabels[i] {
				count = state.SafeCounts[i] + 1
			}
		}
		next.SafeCounts[i] = count
		next.LastTimestamps[i] = p
		next.LastLabels[i] = label
		labels[i] = label
		decisions[i] = c.final(next, i)
	}
	return labels, decisions, next
}

func (c *ProbabilityThresholdClassifier) final(state DecisionState, i int) bool {
	return state.SafeCounts[i] >= c.consecutive || state.LastTimestamps[i] >= c.seriesLength
}

// Predict labels every series from a fresh decision state.
func (c *ProbabilityThresholdClassifier) Predict(X mat.Matrix) (*Prediction, error) {
	n, _ := X.Dims()
	return c.UpdatePredict(X, NewDecisionState(n))
}

// UpdatePredict labels every series, continuing the decision process from state. Instances whose
// label is already final keep it.
func (c *ProbabilityThresholdClassifier) UpdatePredict(X mat.Matrix, state DecisionState) (*Prediction, error) {
	n, _ := X.Dims()
	if err := state.check(c.Name()+".UpdatePredict", n); err != nil {
		return nil, err
	}
	k, proba, err := c.probabilities("UpdatePredict", X)
	if err != nil {
		return nil, err
	}
	labels, decisions, next := c.decide(state, k, proba)
	c.logger.Debug("decided",
		log.OperationKey, log.OperationPredict,
		"classification_point", c.fittedPoints[k],
		"final", countTrue(decisions),
	)
	return &Prediction{Labels: labels, Decisions: decisions, State: next}, nil
}

// PredictProba returns class probabilities and decisions from a fresh decision state.
func (c *ProbabilityThresholdClassifier) PredictProba(X mat.Matrix) (*ProbaPrediction, error) {
	n, _ := X.Dims()
	return c.UpdatePredictProba(X, NewDecisionState(n))
}

// UpdatePredictProba returns class probabilities at the current prefix and continues the decision
// process from state.
func (c *ProbabilityThresholdClassifier) UpdatePredictProba(X mat.Matrix, state DecisionState) (*ProbaPrediction, error) {
	n, _ := X.Dims()
	if err := state.check(c.Name()+".UpdatePredictProba", n); err != nil {
		return nil, err
	}
	k, proba, err := c.probabilities("UpdatePredictProba", X)
	if err != nil {
		return nil, err
	}
	_, decisions, next := c.decide(state, k, proba)
	c.logger.Debug("decided",
		log.OperationKey, log.OperationPredictProba,
		"classification_point", c.fittedPoints[k],
		"final", countTrue(decisions),
	)
	return &ProbaPrediction{Proba: proba, Classes: c.Classes(), Decisions: decisions, State: next}, nil
}

// Score replays the decision process over every classification point up to the length of X. Each
// series is labelled at its first final decision; series never decided are labelled at the last
// point and count as fully consumed.
func (c *ProbabilityThresholdClassifier) Score(X mat.Matrix, y []int) (Scores, error) {
	if err := c.state.RequireFitted(c.Name(), "Score"); err != nil {
		return Scores{}, err
	}
	n, length := X.Dims()
	if len(y) != n {
		return Scores{}, errors.NewDimensionError(c.Name()+".Score", n, len(y), 0)
	}
	if n == 0 {
		return Scores{}, errors.WithStack(errors.ErrEmptyData)
	}
	data := mat.DenseCopyOf(X)

	state := NewDecisionState(n)
	labels := make([]int, n)
	decidedAt := make([]float64, n)
	for _, p := range c.fittedPoints {
		if p > length {
			break
		}
		pred, err := c.UpdatePredict(data.Slice(0, n, 0, p), state)
		if err != nil {
			return Scores{}, err
		}
		state = pred.State
		for i, final := range pred.Decisions {
			if final && decidedAt[i] == 0 {
				decidedAt[i] = float64(p) / float64(length)
				labels[i] = pred.Labels[i]
			}
		}
	}
	if state.LastTimestamps[0] == 0 {
		return Scores{}, errors.NewValueError(c.Name()+".Score",
			fmt.Sprintf("series of length %d is shorter than the first classification point %d", length, c.fittedPoints[0]))
	}
	for i := range decidedAt {
		if decidedAt[i] == 0 {
			decidedAt[i] = 1
			labels[i] = state.LastLabels[i]
		}
	}

	accuracy, err := metrics.Accuracy(y, labels)
	if err != nil {
		return Scores{}, err
	}
	earliness := stat.Mean(decidedAt, nil)
	scores := Scores{
		Accuracy:     accuracy,
		Earliness:    earliness,
		HarmonicMean: metrics.HarmonicMean(accuracy, earliness),
	}
	c.logger.Info("scored",
		log.OperationKey, log.OperationScore,
		log.SamplesKey, n,
		"accuracy", scores.Accuracy,
		"earliness", scores.Earliness,
	)
	return scores, nil
}

func countTrue(values []bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
