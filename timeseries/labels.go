package timeseries

import (
	"slices"
	"sort"
)

// Labels assigns one category label to each instance of a frame.
type Labels struct {
	Keys   [][]string
	Values []string
}

// LabelGroup lists the instances sharing a label.
type LabelGroup struct {
	Label string
	Keys  [][]string
}

// Len returns the number of labelled instances.
func (l *Labels) Len() int { return len(l.Keys) }

// Get returns the label of the instance key.
func (l *Labels) Get(key []string) (string, bool) {
	for i, k := range l.Keys {
		if slices.Equal(k, key) {
			return l.Values[i], true
		}
	}
	return "", false
}

// Categories returns the distinct labels in sorted order.
func (l *Labels) Categories() []string {
	out := slices.Clone(l.Values)
	slices.Sort(out)
	return slices.Compact(out)
}

// Groups returns instances grouped by label, ordered by label. Keys keep their original order
// within a group.
func (l *Labels) Groups() []LabelGroup {
	byLabel := make(map[string][][]string)
	for i, v := range l.Values {
		byLabel[v] = append(byLabel[v], l.Keys[i])
	}
	groups := make([]LabelGroup, 0, len(byLabel))
	for label, keys := range byLabel {
		groups = append(groups, LabelGroup{Label: label, Keys: keys})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Label < groups[b].Label })
	return groups
}
