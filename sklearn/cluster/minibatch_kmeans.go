// Package cluster provides clustering estimators. MiniBatchKMeans works on feature matrices;
// SeriesKMeans clusters the instances of a panel by summary features of each series.
package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// MiniBatchKMeans is k-means fitted with mini-batch center updates, following scikit-learn's
// MiniBatchKMeans.
type MiniBatchKMeans struct {
	state *model.StateManager

	nClusters        int
	init             string // "k-means++" or "random"
	maxIter          int
	batchSize        int
	randomState      int64
	tol              float64
	maxNoImprovement int
	nInit            int

	clusterCenters [][]float64
	labels         []int
	inertia        float64
	nIter          int

	mu  sync.RWMutex
	rng *rand.Rand
}

// KMeansOption configures a MiniBatchKMeans.
type KMeansOption func(*MiniBatchKMeans)

// NewMiniBatchKMeans creates a MiniBatchKMeans. The default seed is 0 so repeated fits agree.
func NewMiniBatchKMeans(options ...KMeansOption) *MiniBatchKMeans {
	kmeans := &MiniBatchKMeans{
		state:            model.NewStateManager(),
		nClusters:        8,
		init:             "k-means++",
		maxIter:          100,
		batchSize:        100,
		tol:              0.0,
		maxNoImprovement: 10,
		nInit:            3,
	}
	for _, opt := range options {
		opt(kmeans)
	}
	kmeans.rng = rand.New(rand.NewSource(kmeans.randomState))
	return kmeans
}

// WithKMeansNClusters sets the number of clusters.
func WithKMeansNClusters(n int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.nClusters = n }
}

// WithKMeansInit selects the initialisation, "k-means++" or "random".
func WithKMeansInit(init string) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.init = init }
}

// WithKMeansMaxIter sets the maximum number of mini-batch iterations per run.
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.maxIter = maxIter }
}

// WithKMeansBatchSize sets the mini-batch size.
func WithKMeansBatchSize(batchSize int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.batchSize = batchSize }
}

// WithKMeansRandomState sets the seed.
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.randomState = seed }
}

// WithKMeansTol sets the minimum inertia improvement counted as progress.
func WithKMeansTol(tol float64) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.tol = tol }
}

// WithKMeansNInit sets how many initialisations are tried; the lowest inertia wins.
func WithKMeansNInit(n int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) { kmeans.nInit = n }
}

func (kmeans *MiniBatchKMeans) Name() string { return "MiniBatchKMeans" }

func (kmeans *MiniBatchKMeans) IsFitted() bool { return kmeans.state.IsFitted() }

// GetParams returns the hyperparameters.
func (kmeans *MiniBatchKMeans) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_clusters":   kmeans.nClusters,
		"init":         kmeans.init,
		"max_iter":     kmeans.maxIter,
		"batch_size":   kmeans.batchSize,
		"random_state": kmeans.randomState,
		"tol":          kmeans.tol,
		"n_init":       kmeans.nInit,
	}
}

// Clone returns an unfitted copy with the same hyperparameters.
func (kmeans *MiniBatchKMeans) Clone() *MiniBatchKMeans {
	return NewMiniBatchKMeans(
		WithKMeansNClusters(kmeans.nClusters),
		WithKMeansInit(kmeans.init),
		WithKMeansMaxIter(kmeans.maxIter),
		WithKMeansBatchSize(kmeans.batchSize),
		WithKMeansRandomState(kmeans.randomState),
		WithKMeansTol(kmeans.tol),
		WithKMeansNInit(kmeans.nInit),
	)
}

// Fit clusters the rows of X.
func (kmeans *MiniBatchKMeans) Fit(X mat.Matrix) error {
	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	if kmeans.nClusters < 1 {
		return errors.NewValidationError("n_clusters", "must be at least 1", kmeans.nClusters)
	}
	rows, cols := X.Dims()
	if rows < kmeans.nClusters {
		return errors.NewValueError("MiniBatchKMeans.Fit",
			fmt.Sprintf("n_samples=%d should be >= n_clusters=%d", rows, kmeans.nClusters))
	}
	kmeans.rng = rand.New(rand.NewSource(kmeans.randomState))

	bestInertia := math.Inf(1)
	for run := 0; run < max(kmeans.nInit, 1); run++ {
		centers, labels, inertia, nIter := kmeans.fitSingleRun(X)
		if inertia < bestInertia {
			bestInertia = inertia
			kmeans.clusterCenters = centers
			kmeans.labels = labels
			kmeans.nIter = nIter
		}
	}
	kmeans.inertia = bestInertia
	kmeans.state.SetDimensions(rows, cols)
	kmeans.state.SetFitted()
	return nil
}

func (kmeans *MiniBatchKMeans) fitSingleRun(X mat.Matrix) ([][]float64, []int, float64, int) {
	rows, _ := X.Dims()
	centers := kmeans.initializeCenters(X)
	counts := make([]int, kmeans.nClusters)

	prevInertia := math.Inf(1)
	noImprovement := 0
	nIter := 0
	for iter := 0; iter < kmeans.maxIter; iter++ {
		nIter = iter + 1
		for _, idx := range kmeans.selectMiniBatch(rows) {
			sample := mat.Row(nil, idx, X)
			c := findNearestCluster(sample, centers)
			counts[c]++
			eta := 1.0 / float64(counts[c])
			for j := range sample {
				centers[c][j] = (1-eta)*centers[c][j] + eta*sample[j]
			}
		}

		inertia := computeInertia(X, centers)
		if prevInertia-inertia <= kmeans.tol {
			noImprovement++
			if noImprovement >= kmeans.maxNoImprovement {
				break
			}
		} else {
			noImprovement = 0
		}
		prevInertia = inertia
	}

	labels := make([]int, rows)
	for i := range labels {
		labels[i] = findNearestCluster(mat.Row(nil, i, X), centers)
	}
	return centers, labels, computeInertia(X, centers), nIter
}

// Transform returns the distance of every row to every cluster center.
func (kmeans *MiniBatchKMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if err := kmeans.checkInput("Transform", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	distances := mat.NewDense(rows, kmeans.nClusters, nil)
	for i := 0; i < rows; i++ {
		sample := mat.Row(nil, i, X)
		for c, center := range kmeans.clusterCenters {
			distances.Set(i, c, floats.Distance(sample, center, 2))
		}
	}
	return distances, nil
}

// Predict assigns every row of X to its nearest center.
func (kmeans *MiniBatchKMeans) Predict(X mat.Matrix) ([]int, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if err := kmeans.checkInput("Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = findNearestCluster(mat.Row(nil, i, X), kmeans.clusterCenters)
	}
	return labels, nil
}

// FitPredict fits and returns the training labels.
func (kmeans *MiniBatchKMeans) FitPredict(X mat.Matrix) ([]int, error) {
	if err := kmeans.Fit(X); err != nil {
		return nil, err
	}
	return kmeans.Labels(), nil
}

func (kmeans *MiniBatchKMeans) checkInput(method string, X mat.Matrix) error {
	if err := kmeans.state.RequireFitted(kmeans.Name(), method); err != nil {
		return err
	}
	_, cols := X.Dims()
	if _, want := kmeans.state.GetDimensions(); cols != want {
		return errors.NewDimensionError("MiniBatchKMeans."+method, want, cols, 1)
	}
	return nil
}

// NIterations returns the iterations run by the retained initialisation.
func (kmeans *MiniBatchKMeans) NIterations() int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.nIter
}

// ClusterCenters returns a copy of the fitted centers.
func (kmeans *MiniBatchKMeans) ClusterCenters() [][]float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	centers := make([][]float64, len(kmeans.clusterCenters))
	for i, c := range kmeans.clusterCenters {
		centers[i] = append([]float64(nil), c...)
	}
	return centers
}

// Labels returns the training labels.
func (kmeans *MiniBatchKMeans) Labels() []int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return append([]int(nil), kmeans.labels...)
}

// Inertia returns the within-cluster sum of squares.
func (kmeans *MiniBatchKMeans) Inertia() float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.inertia
}

func (kmeans *MiniBatchKMeans) initializeCenters(X mat.Matrix) [][]float64 {
	if kmeans.init == "random" {
		rows, _ := X.Dims()
		centers := make([][]float64, kmeans.nClusters)
		for i, idx := range kmeans.rng.Perm(rows)[:kmeans.nClusters] {
			centers[i] = mat.Row(nil, idx, X)
		}
		return centers
	}
	return kmeans.initKMeansPlusPlus(X)
}

// initKMeansPlusPlus picks each new center with probability proportional to its squared distance
// to the nearest chosen center.
func (kmeans *MiniBatchKMeans) initKMeansPlusPlus(X mat.Matrix) [][]float64 {
	rows, _ := X.Dims()
	centers := make([][]float64, 0, kmeans.nClusters)
	centers = append(centers, mat.Row(nil, kmeans.rng.Intn(rows), X))

	distances := make([]float64, rows)
	for len(centers) < kmeans.nClusters {
		total := 0.0
		for i := 0; i < rows; i++ {
			sample := mat.Row(nil, i, X)
			d := floats.Distance(sample, centers[findNearestCluster(sample, centers)], 2)
			distances[i] = d * d
			total += distances[i]
		}

		selected := kmeans.rng.Intn(rows)
		if total > 0 {
			target := kmeans.rng.Float64() * total
			cum := 0.0
			for i, d := range distances {
				cum += d
				if cum >= target && d > 0 {
					selected = i
					break
				}
			}
		}
		centers = append(centers, mat.Row(nil, selected, X))
	}
	return centers
}

func (kmeans *MiniBatchKMeans) selectMiniBatch(nSamples int) []int {
	return kmeans.rng.Perm(nSamples)[:min(kmeans.batchSize, nSamples)]
}

// findNearestCluster returns the index of the closest center; ties go to the lower index.
func findNearestCluster(sample []float64, centers [][]float64) int {
	best, nearest := math.Inf(1), 0
	for c, center := range centers {
		if d := floats.Distance(sample, center, 2); d < best {
			best, nearest = d, c
		}
	}
	return nearest
}

func computeInertia(X mat.Matrix, centers [][]float64) float64 {
	rows, _ := X.Dims()
	inertia := 0.0
	for i := 0; i < rows; i++ {
		sample := mat.Row(nil, i, X)
		d := floats.Distance(sample, centers[findNearestCluster(sample, centers)], 2)
		inertia += d * d
	}
	return inertia
}
