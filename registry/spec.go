// Package registry builds estimators from declarative YAML specs.
//
//	name: GroupbyCategoryForecaster
//	params:
//	  n_jobs: 2
//	forecasters:
//	  smooth: {name: NaiveForecaster, params: {strategy: mean}}
//	  intermittent: {name: Croston}
//	fallback: {name: NaiveForecaster}
//	transformer: {name: ADICVTransformer}
package registry

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// Spec declares one estimator. Nested specs describe the members of composites.
type Spec struct {
	Name   string                 `yaml:"name"`
	Params map[string]interface{} `yaml:"params,omitempty"`

	// Forecaster is the blueprint of ForecastByLevel.
	Forecaster *Spec `yaml:"forecaster,omitempty"`
	// Forecasters maps categories to forecasters in GroupbyCategoryForecaster.
	Forecasters map[string]*Spec `yaml:"forecasters,omitempty"`
	Fallback    *Spec            `yaml:"fallback,omitempty"`
	Transformer *Spec            `yaml:"transformer,omitempty"`
}

// Parse decodes a YAML spec. Unknown fields are rejected.
func Parse(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Spec
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "registry: failed to parse spec")
	}
	if s.Name == "" {
		return nil, errors.NewValidationError("name", "spec has no estimator name", nil)
	}
	return &s, nil
}

// Load reads and parses a YAML spec file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: failed to read spec %s", path)
	}
	return Parse(data)
}

// Marshal encodes the spec as YAML.
func (s *Spec) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "registry: failed to encode spec")
	}
	return data, nil
}
