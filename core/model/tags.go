package model

import "maps"

// Capability and input-constraint tags.
const (
	TagIgnoresExogenousX      = "ignores-exogeneous-X"
	TagXYSameIndex            = "X-y-must-have-same-index"
	TagEnforceIndexType       = "enforce_index_type"
	TagMissingValues          = "capability:missing_values"
	TagInsample               = "capability:insample"
	TagPredInt                = "capability:pred_int"
	TagPredIntInsample        = "capability:pred_int:insample"
	TagRequiresFHInFit        = "requires-fh-in-fit"
	TagFitIsEmpty             = "fit_is_empty"
	TagCapabilityPredict      = "capability:predict"
	TagCapabilityMultivariate = "capability:multivariate"
)

// Tags maps tag names to boolean values. A missing tag reads as false.
type Tags map[string]bool

// Get returns the tag value, false when absent.
func (t Tags) Get(name string) bool {
	return t[name]
}

// Clone returns an independent copy.
func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	return maps.Clone(t)
}

// With returns a copy with the given tags overridden.
func (t Tags) With(overrides Tags) Tags {
	out := t.Clone()
	maps.Copy(out, overrides)
	return out
}

// AllTrue reports whether tag is true in every set. It is true for no sets.
func AllTrue(tag string, sets ...Tags) bool {
	for _, s := range sets {
		if !s.Get(tag) {
			return false
		}
	}
	return true
}

// AnyTrue reports whether tag is true in at least one set.
func AnyTrue(tag string, sets ...Tags) bool {
	for _, s := range sets {
		if s.Get(tag) {
			return true
		}
	}
	return false
}
