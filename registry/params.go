package registry

import (
	"fmt"
	"maps"
	"slices"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// params reads typed hyperparameters out of a spec and remembers which keys were consumed, so
// misspelt parameters are reported instead of silently ignored.
type params struct {
	estimator string
	values    map[string]interface{}
	used      map[string]bool
	err       error
}

func newParams(s *Spec) *params {
	return &params{estimator: s.Name, values: s.Params, used: map[string]bool{}}
}

func (p *params) lookup(key string) (interface{}, bool) {
	p.used[key] = true
	v, ok := p.values[key]
	return v, ok && v != nil
}

func (p *params) fail(key, want string, v interface{}) {
	if p.err == nil {
		p.err = errors.NewValidationError(key, fmt.Sprintf("%s: expected %s", p.estimator, want), v)
	}
}

func (p *params) String(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	s, isString := v.(string)
	if !isString {
		p.fail(key, "a string", v)
		return "", false
	}
	return s, true
}

func (p *params) Int(key string) (int, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	p.fail(key, "an integer", v)
	return 0, false
}

func (p *params) Float(key string) (float64, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	p.fail(key, "a number", v)
	return 0, false
}

func (p *params) Bool(key string) (bool, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return false, false
	}
	b, isBool := v.(bool)
	if !isBool {
		p.fail(key, "a boolean", v)
		return false, false
	}
	return b, true
}

func (p *params) Strings(key string) ([]string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, false
	}
	switch list := v.(type) {
	case string:
		return []string{list}, true
	case []interface{}:
		out := make([]string, len(list))
		for i, item := range list {
			s, isString := item.(string)
			if !isString {
				p.fail(key, "a list of strings", v)
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	p.fail(key, "a list of strings", v)
	return nil, false
}

// Err returns the first type error, or a ValidationError naming keys that were never read.
func (p *params) Err() error {
	if p.err != nil {
		return p.err
	}
	for _, key := range slices.Sorted(maps.Keys(p.values)) {
		if !p.used[key] {
			return errors.NewValidationError(key, fmt.Sprintf("unknown parameter of %s", p.estimator), p.values[key])
		}
	}
	return nil
}
