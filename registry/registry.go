package registry

import (
	"maps"
	"slices"
	"sync"

	"github.com/YuminosukeSato/sciforecast/core/model"
	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/pkg/log"
)

// ForecasterFactory builds a forecaster from its spec. Composites build their members through r.
type ForecasterFactory func(r *Registry, s *Spec) (model.Forecaster, error)

// TransformerFactory builds a category transformer or a clusterer from its spec.
type TransformerFactory func(r *Registry, s *Spec) (model.Estimator, error)

// Registry maps estimator names to factories. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	forecasters  map[string]ForecasterFactory
	transformers map[string]TransformerFactory
	logger       log.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger handed to the composites the registry builds.
func WithLogger(logger log.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New returns a registry with every built-in estimator registered.
func New(opts ...Option) *Registry {
	r := &Registry{
		forecasters:  map[string]ForecasterFactory{},
		transformers: map[string]TransformerFactory{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLogger()
	}
	registerBuiltins(r)
	return r
}

// Logger returns the logger passed to built composites.
func (r *Registry) Logger() log.Logger { return r.logger }

// RegisterForecaster adds a forecaster factory. Names must be unique.
func (r *Registry) RegisterForecaster(name string, f ForecasterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.forecasters[name]; dup {
		return errors.NewValidationError("name", "forecaster already registered", name)
	}
	r.forecasters[name] = f
	return nil
}

// RegisterTransformer adds a transformer factory. Names must be unique.
func (r *Registry) RegisterTransformer(name string, f TransformerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.transformers[name]; dup {
		return errors.NewValidationError("name", "transformer already registered", name)
	}
	r.transformers[name] = f
	return nil
}

// Forecasters returns the registered forecaster names, sorted.
func (r *Registry) Forecasters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.forecasters))
}

// Transformers returns the registered transformer names, sorted.
func (r *Registry) Transformers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.transformers))
}

// BuildForecaster builds the forecaster described by s.
func (r *Registry) BuildForecaster(s *Spec) (model.Forecaster, error) {
	if s == nil {
		return nil, errors.NewValidationError("spec", "forecaster spec is nil", nil)
	}
	r.mu.RLock()
	factory, ok := r.forecasters[s.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("name", "unknown forecaster", s.Name)
	}
	f, err := factory(r, s)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: building %s", s.Name)
	}
	return f, nil
}

// BuildTransformer builds the transformer or clusterer described by s.
func (r *Registry) BuildTransformer(s *Spec) (model.Estimator, error) {
	if s == nil {
		return nil, errors.NewValidationError("spec", "transformer spec is nil", nil)
	}
	r.mu.RLock()
	factory, ok := r.transformers[s.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("name", "unknown transformer", s.Name)
	}
	t, err := factory(r, s)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: building %s", s.Name)
	}
	return t, nil
}
