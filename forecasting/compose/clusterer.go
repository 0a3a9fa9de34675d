package compose

import (
	"strconv"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// clusterCategories uses a clusterer as a category transformer: the label of an instance is its
// cluster number in decimal.
type clusterCategories struct {
	clusterer model.Clusterer
}

// AsCategoryTransformer coerces est into a CategoryTransformer. Category transformers are returned
// as is; clusterers qualify only when tagged capability:predict, since labels must be assignable
// to data after fitting.
func AsCategoryTransformer(est model.Estimator) (model.CategoryTransformer, error) {
	switch t := est.(type) {
	case model.CategoryTransformer:
		return t, nil
	case model.Clusterer:
		if !t.Tags().Get(model.TagCapabilityPredict) {
			return nil, errors.NewValidationError("transformer",
				"clusterer must support cluster assignment (capability:predict)", t.Name())
		}
		return &clusterCategories{clusterer: t}, nil
	case nil:
		return nil, errors.NewValidationError("transformer", "transformer is nil", nil)
	default:
		return nil, errors.NewValidationError("transformer",
			"must be a category transformer or a clusterer", est.Name())
	}
}

func (c *clusterCategories) Name() string { return c.clusterer.Name() }

func (c *clusterCategories) Tags() model.Tags { return c.clusterer.Tags() }

func (c *clusterCategories) IsFitted() bool { return c.clusterer.IsFitted() }

// Clusterer returns the wrapped clusterer.
func (c *clusterCategories) Clusterer() model.Clusterer { return c.clusterer }

func (c *clusterCategories) Clone() model.CategoryTransformer {
	return &clusterCategories{clusterer: c.clusterer.Clone()}
}

func (c *clusterCategories) FitTransform(y, X *timeseries.Frame) (*timeseries.Labels, error) {
	if err := c.clusterer.Fit(y); err != nil {
		return nil, err
	}
	return c.Transform(y, X)
}

func (c *clusterCategories) Transform(y, _ *timeseries.Frame) (*timeseries.Labels, error) {
	clusters, err := c.clusterer.Predict(y)
	if err != nil {
		return nil, err
	}
	keys := y.Instances()
	if len(clusters) != len(keys) {
		return nil, errors.NewDimensionError(c.Name()+".Predict", len(keys), len(clusters), 0)
	}
	labels := &timeseries.Labels{Keys: keys, Values: make([]string, len(clusters))}
	for i, k := range clusters {
		labels.Values[i] = strconv.Itoa(k)
	}
	return labels, nil
}
