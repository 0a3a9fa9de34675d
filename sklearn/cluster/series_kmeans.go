package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/preprocessing"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// Scalers accepted by WithSeriesScaler.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// SeriesFeatureNames lists the per-instance features SeriesKMeans clusters on, in column order.
var SeriesFeatureNames = []string{"mean", "std", "zero_fraction", "slope"}

// SeriesKMeans clusters the instances of a panel. Every instance is summarised by the features
// in SeriesFeatureNames computed over its first column, the feature matrix is scaled, and
// MiniBatchKMeans groups the scaled rows.
type SeriesKMeans struct {
	state *model.StateManager

	nClusters   int
	scaler      string
	randomState int64

	kmeans   *MiniBatchKMeans
	standard *preprocessing.StandardScaler
	minmax   *preprocessing.MinMaxScaler
}

// SeriesKMeansOption configures a SeriesKMeans.
type SeriesKMeansOption func(*SeriesKMeans)

// WithSeriesNClusters sets the number of clusters.
func WithSeriesNClusters(n int) SeriesKMeansOption {
	return func(s *SeriesKMeans) { s.nClusters = n }
}

// WithSeriesScaler selects ScalerStandard or ScalerMinMax.
func WithSeriesScaler(name string) SeriesKMeansOption {
	return func(s *SeriesKMeans) { s.scaler = name }
}

// WithSeriesRandomState seeds the underlying k-means.
func WithSeriesRandomState(seed int64) SeriesKMeansOption {
	return func(s *SeriesKMeans) { s.randomState = seed }
}

// NewSeriesKMeans creates a SeriesKMeans with 2 clusters and standard scaling by default.
func NewSeriesKMeans(opts ...SeriesKMeansOption) (*SeriesKMeans, error) {
	s := &SeriesKMeans{state: model.NewStateManager(), nClusters: 2, scaler: ScalerStandard}
	for _, opt := range opts {
		opt(s)
	}
	if s.nClusters < 1 {
		return nil, errors.NewValidationError("n_clusters", "must be at least 1", s.nClusters)
	}
	if s.scaler != ScalerStandard && s.scaler != ScalerMinMax {
		return nil, errors.NewValidationError("scaler", `must be "standard" or "minmax"`, s.scaler)
	}
	return s, nil
}

func (s *SeriesKMeans) Name() string { return "SeriesKMeans" }

func (s *SeriesKMeans) Tags() model.Tags {
	return model.Tags{
		model.TagCapabilityPredict: true,
		model.TagMissingValues:     true,
	}
}

func (s *SeriesKMeans) IsFitted() bool { return s.state.IsFitted() }

// GetParams returns the hyperparameters.
func (s *SeriesKMeans) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_clusters":   s.nClusters,
		"scaler":       s.scaler,
		"random_state": s.randomState,
	}
}

// Clone returns an unfitted copy.
func (s *SeriesKMeans) Clone() model.Clusterer {
	return &SeriesKMeans{
		state:       model.NewStateManager(),
		nClusters:   s.nClusters,
		scaler:      s.scaler,
		randomState: s.randomState,
	}
}

// Fit clusters the instances of X.
func (s *SeriesKMeans) Fit(X *timeseries.Frame) error {
	features, err := SeriesFeatures(X)
	if err != nil {
		return err
	}
	var scaled mat.Matrix
	switch s.scaler {
	case ScalerMinMax:
		s.minmax = preprocessing.NewMinMaxScalerDefault()
		scaled, err = s.minmax.FitTransform(features)
	default:
		s.standard = preprocessing.NewStandardScalerDefault()
		scaled, err = s.standard.FitTransform(features)
	}
	if err != nil {
		return err
	}

	s.kmeans = NewMiniBatchKMeans(
		WithKMeansNClusters(s.nClusters),
		WithKMeansRandomState(s.randomState),
	)
	if err := s.kmeans.Fit(scaled); err != nil {
		return errors.Wrap(err, "SeriesKMeans.Fit")
	}
	rows, cols := features.Dims()
	s.state.SetDimensions(rows, cols)
	s.state.SetFitted()
	return nil
}

// Predict returns the cluster of every instance of X, in X.Instances() order.
func (s *SeriesKMeans) Predict(X *timeseries.Frame) ([]int, error) {
	if err := s.state.RequireFitted(s.Name(), "Predict"); err != nil {
		return nil, err
	}
	features, err := SeriesFeatures(X)
	if err != nil {
		return nil, err
	}
	var scaled mat.Matrix
	if s.minmax != nil {
		scaled, err = s.minmax.Transform(features)
	} else {
		scaled, err = s.standard.Transform(features)
	}
	if err != nil {
		return nil, err
	}
	return s.kmeans.Predict(scaled)
}

// Inertia returns the within-cluster sum of squares in scaled feature space.
func (s *SeriesKMeans) Inertia() float64 {
	if s.kmeans == nil {
		return math.NaN()
	}
	return s.kmeans.Inertia()
}

// SeriesFeatures summarises every instance of X by mean, standard deviation, fraction of zero
// observations and least-squares slope against time. Missing values are skipped.
func SeriesFeatures(X *timeseries.Frame) (*mat.Dense, error) {
	if X == nil || X.Len() == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	keys := X.Instances()
	out := mat.NewDense(len(keys), len(SeriesFeatureNames), nil)
	for i, key := range keys {
		inst := X.LocInstances([][]string{key})
		var values, times []float64
		zeros := 0
		for r, v := range inst.ColumnAt(0) {
			if math.IsNaN(v) {
				continue
			}
			values = append(values, v)
			times = append(times, float64(inst.IndexAt(r).Time))
			if v == 0 {
				zeros++
			}
		}
		if len(values) == 0 {
			return nil, errors.NewValueError("SeriesFeatures",
				"instance "+timeseries.FormatKey(key)+" has no observed values")
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		slope := 0.0
		if len(values) > 1 {
			_, slope = stat.LinearRegression(times, values, nil, false)
		}
		out.SetRow(i, []float64{mean, std, float64(zeros) / float64(len(values)), slope})
	}
	return out, nil
}
