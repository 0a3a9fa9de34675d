package timeseries

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// Frame is an immutable table of float64 columns indexed by (levels..., time).
// Operations that select or reorder rows return new frames.
type Frame struct {
	index   []Index
	columns []string
	data    *mat.Dense // nil when the frame has no rows
	levels  int
}

// Group is one partition of a Frame produced by GroupBy.
type Group struct {
	// Key holds the shared hierarchy prefix. It is empty for the single group of GroupBy(0).
	Key   []string
	Frame *Frame
}

// New builds a frame from row-major values. All indexes must carry the same number of levels and
// every row must have one value per column.
func New(index []Index, columns []string, rows [][]float64) (*Frame, error) {
	if len(columns) == 0 {
		return nil, errors.NewValueError("timeseries.New", "at least one column is required")
	}
	if len(rows) != len(index) {
		return nil, errors.NewDimensionError("timeseries.New", len(index), len(rows), 0)
	}
	flat := make([]float64, 0, len(rows)*len(columns))
	for _, r := range rows {
		if len(r) != len(columns) {
			return nil, errors.NewDimensionError("timeseries.New", len(columns), len(r), 1)
		}
		flat = append(flat, r...)
	}
	var data *mat.Dense
	if len(rows) > 0 {
		data = mat.NewDense(len(rows), len(columns), flat)
	}
	return newFrame(index, columns, data)
}

// NewFromDense builds a frame over data without copying it.
func NewFromDense(index []Index, columns []string, data *mat.Dense) (*Frame, error) {
	if data == nil {
		return New(index, columns, nil)
	}
	r, c := data.Dims()
	if r != len(index) {
		return nil, errors.NewDimensionError("timeseries.NewFromDense", len(index), r, 0)
	}
	if c != len(columns) {
		return nil, errors.NewDimensionError("timeseries.NewFromDense", len(columns), c, 1)
	}
	return newFrame(index, columns, data)
}

func newFrame(index []Index, columns []string, data *mat.Dense) (*Frame, error) {
	levels := 0
	if len(index) > 0 {
		levels = len(index[0].Levels)
	}
	for i, idx := range index {
		if len(idx.Levels) != levels {
			return nil, errors.NewValueError("timeseries.New",
				fmt.Sprintf("row %d has %d levels, expected %d", i, len(idx.Levels), levels))
		}
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, errors.NewValueError("timeseries.New", fmt.Sprintf("duplicate column %q", c))
		}
		seen[c] = struct{}{}
	}
	return &Frame{
		index:   slices.Clone(index),
		columns: slices.Clone(columns),
		data:    data,
		levels:  levels,
	}, nil
}

// NewSeries returns a flat single-column series observed at times 0..len(values)-1.
func NewSeries(name string, values []float64) *Frame {
	return NewSeriesAt(name, 0, values)
}

// NewSeriesAt returns a flat single-column series whose first observation is at time start.
func NewSeriesAt(name string, start int64, values []float64) *Frame {
	index := make([]Index, len(values))
	for i := range values {
		index[i] = Index{Time: start + int64(i)}
	}
	var data *mat.Dense
	if len(values) > 0 {
		data = mat.NewDense(len(values), 1, slices.Clone(values))
	}
	return &Frame{index: index, columns: []string{name}, data: data}
}

// NewPanel stacks flat series under a single hierarchy level named by keys.
func NewPanel(name string, keys []string, series [][]float64) (*Frame, error) {
	if len(keys) != len(series) {
		return nil, errors.NewDimensionError("timeseries.NewPanel", len(keys), len(series), 0)
	}
	var (
		index []Index
		rows  [][]float64
	)
	for i, s := range series {
		for t, v := range s {
			index = append(index, Index{Levels: []string{keys[i]}, Time: int64(t)})
			rows = append(rows, []float64{v})
		}
	}
	return New(index, []string{name}, rows)
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// NLevels returns the number of index levels including the time level: 1 for a flat series, 2 for
// a panel and 3 or more for a hierarchy.
func (f *Frame) NLevels() int { return f.levels + 1 }

// InstanceLevels returns the number of hierarchy levels, i.e. NLevels()-1.
func (f *Frame) InstanceLevels() int { return f.levels }

// Columns returns a copy of the column names.
func (f *Frame) Columns() []string { return slices.Clone(f.columns) }

// Index returns a copy of the row index.
func (f *Frame) Index() []Index { return slices.Clone(f.index) }

// IndexAt returns the index of row i.
func (f *Frame) IndexAt(i int) Index { return f.index[i] }

// At returns the value at row i, column j.
func (f *Frame) At(i, j int) float64 { return f.data.At(i, j) }

// Row returns a copy of row i.
func (f *Frame) Row(i int) []float64 {
	return mat.Row(nil, i, f.data)
}

// ColumnAt returns a copy of column j.
func (f *Frame) ColumnAt(j int) []float64 {
	if f.data == nil {
		return nil
	}
	return mat.Col(nil, j, f.data)
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	j := slices.Index(f.columns, name)
	if j < 0 {
		return nil, false
	}
	return f.ColumnAt(j), true
}

// Data returns the underlying matrix, nil for an empty frame.
func (f *Frame) Data() *mat.Dense { return f.data }

// HasMissing reports whether any value is NaN.
func (f *Frame) HasMissing() bool {
	for j := range f.columns {
		for _, v := range f.ColumnAt(j) {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Instances returns the distinct instance keys in order of first appearance. A flat series has a
// single empty key.
func (f *Frame) Instances() [][]string {
	if f.levels == 0 {
		return [][]string{{}}
	}
	seen := make(map[string]struct{})
	var keys [][]string
	for _, idx := range f.index {
		k := idx.Instance()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, slices.Clone(idx.Levels))
	}
	return keys
}

// Select returns the given rows in the given order.
func (f *Frame) Select(rows []int) *Frame {
	index := make([]Index, len(rows))
	var data *mat.Dense
	if len(rows) > 0 {
		data = mat.NewDense(len(rows), len(f.columns), nil)
	}
	for k, i := range rows {
		index[k] = f.index[i]
		data.SetRow(k, f.Row(i))
	}
	return &Frame{index: index, columns: slices.Clone(f.columns), data: data, levels: f.levels}
}

// SelectColumns returns a frame restricted to the named columns.
func (f *Frame) SelectColumns(names ...string) (*Frame, error) {
	cols := make([]int, len(names))
	for k, n := range names {
		j := slices.Index(f.columns, n)
		if j < 0 {
			return nil, errors.NewValueError("Frame.SelectColumns", fmt.Sprintf("unknown column %q", n))
		}
		cols[k] = j
	}
	var data *mat.Dense
	if f.Len() > 0 {
		data = mat.NewDense(f.Len(), len(names), nil)
		for k, j := range cols {
			data.SetCol(k, f.ColumnAt(j))
		}
	}
	return &Frame{index: slices.Clone(f.index), columns: slices.Clone(names), data: data, levels: f.levels}, nil
}

// LocInstances returns the rows whose instance key is one of keys, keeping row order. Keys
// shorter than the instance levels match as prefixes. For a flat series the empty key selects
// every row.
func (f *Frame) LocInstances(keys [][]string) *Frame {
	var rows []int
	for i, idx := range f.index {
		for _, k := range keys {
			if hasPrefix(idx.Levels, k) {
				rows = append(rows, i)
				break
			}
		}
	}
	return f.Select(rows)
}

// GroupBy partitions rows by their first depth hierarchy levels. Depth 0 yields one group holding
// the whole frame. Groups are ordered by key.
func (f *Frame) GroupBy(depth int) ([]Group, error) {
	if depth < 0 || depth > f.levels {
		return nil, errors.NewValueError("Frame.GroupBy",
			fmt.Sprintf("depth %d out of range for %d hierarchy levels", depth, f.levels))
	}
	if depth == 0 {
		return []Group{{Key: nil, Frame: f}}, nil
	}
	rowsByKey := make(map[string][]int)
	var keys []string
	for i, idx := range f.index {
		k := JoinKey(idx.Levels[:depth])
		if _, ok := rowsByKey[k]; !ok {
			keys = append(keys, k)
		}
		rowsByKey[k] = append(rowsByKey[k], i)
	}
	groups := make([]Group, len(keys))
	for g, k := range keys {
		rows := rowsByKey[k]
		groups[g] = Group{Key: slices.Clone(f.index[rows[0]].Levels[:depth]), Frame: f.Select(rows)}
	}
	sort.Slice(groups, func(a, b int) bool {
		return slices.Compare(groups[a].Key, groups[b].Key) < 0
	})
	return groups, nil
}

// SortIndex returns a copy with rows ordered by Index.Compare. The sort is stable.
func (f *Frame) SortIndex() *Frame {
	order := make([]int, f.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return f.index[order[a]].Compare(f.index[order[b]]) < 0
	})
	return f.Select(order)
}

// LastTime returns the largest time point, or false for an empty frame.
func (f *Frame) LastTime() (int64, bool) {
	if f.Len() == 0 {
		return 0, false
	}
	last := f.index[0].Time
	for _, idx := range f.index[1:] {
		last = max(last, idx.Time)
	}
	return last, true
}

// IndexEqual reports whether both frames have identical row indexes in identical order.
func (f *Frame) IndexEqual(other *Frame) bool {
	return slices.EqualFunc(f.index, other.index, Index.Equal)
}

// Concat stacks frames vertically. Nil frames are skipped. All frames must share the same
// columns and number of levels, and the combined index must not contain a row twice.
func Concat(frames ...*Frame) (*Frame, error) {
	var parts []*Frame
	for _, f := range frames {
		if f != nil {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	first := parts[0]
	n := 0
	for _, p := range parts {
		if !slices.Equal(p.columns, first.columns) {
			return nil, errors.NewValueError("timeseries.Concat",
				fmt.Sprintf("column mismatch: %v vs %v", first.columns, p.columns))
		}
		if p.Len() > 0 && first.Len() > 0 && p.levels != first.levels {
			return nil, errors.NewValueError("timeseries.Concat",
				fmt.Sprintf("level mismatch: %d vs %d", first.levels, p.levels))
		}
		n += p.Len()
	}

	index := make([]Index, 0, n)
	rows := make([][]float64, 0, n)
	seen := make(map[string]struct{}, n)
	for _, p := range parts {
		for i, idx := range p.index {
			k := idx.rowKey()
			if _, dup := seen[k]; dup {
				return nil, errors.NewValueError("timeseries.Concat", fmt.Sprintf("duplicate index entry %s", idx))
			}
			seen[k] = struct{}{}
			index = append(index, idx)
			rows = append(rows, p.Row(i))
		}
	}
	if n == 0 {
		return &Frame{columns: slices.Clone(first.columns), levels: first.levels}, nil
	}
	return New(index, first.columns, rows)
}
