package preprocessing

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/core/parallel"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// Demand classes of the Syntetos/Boylan scheme.
const (
	ClassSmooth       = "smooth"
	ClassErratic      = "erratic"
	ClassIntermittent = "intermittent"
	ClassLumpy        = "lumpy"
)

// ADI/CV² feature names accepted by WithFeatures.
const (
	FeatureADI   = "adi"
	FeatureCV2   = "cv2"
	FeatureClass = "class"
)

const (
	DefaultADIThreshold = 1.32
	DefaultCVThreshold  = 0.49
	adicvParallelMin    = 64
)

// DemandProfile holds the ADI/CV² statistics of one instance.
type DemandProfile struct {
	Key   []string
	ADI   float64
	CV2   float64
	Class string
}

// ADICVTransformer classifies each series by its average demand interval (ADI) and squared
// coefficient of variation of non-zero demand (CV²):
//
//	ADI <= 1.32, CV² <= 0.49  smooth
//	ADI <= 1.32, CV² >  0.49  erratic
//	ADI >  1.32, CV² <= 0.49  intermittent
//	ADI >  1.32, CV² >  0.49  lumpy
//
// The label of an instance is its first requested feature, so the default feature list
// ("class") yields the demand class.
type ADICVTransformer struct {
	state *model.StateManager

	features     []string
	adiThreshold float64
	cvThreshold  float64
}

// ADICVOption configures an ADICVTransformer.
type ADICVOption func(*ADICVTransformer)

// WithFeatures selects and orders the output features among "adi", "cv2" and "class".
func WithFeatures(features ...string) ADICVOption {
	return func(t *ADICVTransformer) { t.features = slices.Clone(features) }
}

// WithADIThreshold overrides the ADI cut-off.
func WithADIThreshold(v float64) ADICVOption {
	return func(t *ADICVTransformer) { t.adiThreshold = v }
}

// WithCVThreshold overrides the CV² cut-off.
func WithCVThreshold(v float64) ADICVOption {
	return func(t *ADICVTransformer) { t.cvThreshold = v }
}

// NewADICVTransformer returns a transformer producing the "class" feature unless configured
// otherwise.
func NewADICVTransformer(opts ...ADICVOption) (*ADICVTransformer, error) {
	t := &ADICVTransformer{
		state:        model.NewStateManager(),
		features:     []string{FeatureClass},
		adiThreshold: DefaultADIThreshold,
		cvThreshold:  DefaultCVThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	if len(t.features) == 0 {
		return nil, errors.NewValidationError("features", "at least one feature is required", t.features)
	}
	for _, f := range t.features {
		if f != FeatureADI && f != FeatureCV2 && f != FeatureClass {
			return nil, errors.NewValidationError("features", fmt.Sprintf("unknown feature %q", f), t.features)
		}
	}
	if t.adiThreshold <= 0 || t.cvThreshold <= 0 {
		return nil, errors.NewValidationError("threshold", "thresholds must be positive",
			[2]float64{t.adiThreshold, t.cvThreshold})
	}
	return t, nil
}

func (t *ADICVTransformer) Name() string { return "ADICVTransformer" }

func (t *ADICVTransformer) Tags() model.Tags {
	return model.Tags{
		model.TagFitIsEmpty:        true,
		model.TagMissingValues:     true,
		model.TagIgnoresExogenousX: true,
	}
}

func (t *ADICVTransformer) IsFitted() bool { return t.state.IsFitted() }

// Features returns the configured feature list.
func (t *ADICVTransformer) Features() []string { return slices.Clone(t.features) }

// GetParams returns the hyperparameters.
func (t *ADICVTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"features":      t.Features(),
		"adi_threshold": t.adiThreshold,
		"cv_threshold":  t.cvThreshold,
	}
}

// Clone returns a copy with the same configuration.
func (t *ADICVTransformer) Clone() model.CategoryTransformer {
	return &ADICVTransformer{
		state:        model.NewStateManager(),
		features:     t.Features(),
		adiThreshold: t.adiThreshold,
		cvThreshold:  t.cvThreshold,
	}
}

// FitTransform labels every instance of y. X is ignored. Fitting learns nothing.
func (t *ADICVTransformer) FitTransform(y, X *timeseries.Frame) (*timeseries.Labels, error) {
	labels, err := t.Transform(y, X)
	if err != nil {
		return nil, err
	}
	t.state.SetFitted()
	return labels, nil
}

// Transform labels every instance of y with its first configured feature.
func (t *ADICVTransformer) Transform(y, _ *timeseries.Frame) (*timeseries.Labels, error) {
	profiles, err := t.Profiles(y)
	if err != nil {
		return nil, err
	}
	labels := &timeseries.Labels{
		Keys:   make([][]string, len(profiles)),
		Values: make([]string, len(profiles)),
	}
	for i, p := range profiles {
		labels.Keys[i] = p.Key
		labels.Values[i] = p.feature(t.features[0])
	}
	return labels, nil
}

// Profiles computes ADI, CV² and class for every instance of the univariate frame y.
func (t *ADICVTransformer) Profiles(y *timeseries.Frame) ([]DemandProfile, error) {
	if y == nil || y.Len() == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if len(y.Columns()) != 1 {
		return nil, errors.NewValueError("ADICVTransformer.Transform",
			fmt.Sprintf("expected a univariate series, got %d columns", len(y.Columns())))
	}
	keys := y.Instances()
	profiles := make([]DemandProfile, len(keys))
	parallel.ParallelizeWithThreshold(len(keys), adicvParallelMin, func(start, end int) {
		for i := start; i < end; i++ {
			values := y.LocInstances([][]string{keys[i]}).ColumnAt(0)
			profiles[i] = t.profile(keys[i], values)
		}
	})
	for _, p := range profiles {
		if math.IsInf(p.ADI, 1) {
			errors.Warn(errors.NewDegenerateSeriesWarning(t.Name(), timeseries.FormatKey(p.Key), "no non-zero demand, classified as intermittent"))
		}
	}
	return profiles, nil
}

func (t *ADICVTransformer) profile(key []string, values []float64) DemandProfile {
	var nonZero []float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		n++
		if v != 0 {
			nonZero = append(nonZero, v)
		}
	}
	p := DemandProfile{Key: key, ADI: math.Inf(1)}
	if len(nonZero) > 0 {
		p.ADI = float64(n) / float64(len(nonZero))
		mean, variance := stat.PopMeanVariance(nonZero, nil)
		p.CV2 = variance / (mean * mean)
	}
	p.Class = t.classify(p.ADI, p.CV2)
	return p
}

func (t *ADICVTransformer) classify(adi, cv2 float64) string {
	switch {
	case adi <= t.adiThreshold && cv2 <= t.cvThreshold:
		return ClassSmooth
	case adi <= t.adiThreshold:
		return ClassErratic
	case cv2 <= t.cvThreshold:
		return ClassIntermittent
	default:
		return ClassLumpy
	}
}

func (p DemandProfile) feature(name string) string {
	switch name {
	case FeatureADI:
		return strconv.FormatFloat(p.ADI, 'g', -1, 64)
	case FeatureCV2:
		return strconv.FormatFloat(p.CV2, 'g', -1, 64)
	default:
		return p.Class
	}
}
