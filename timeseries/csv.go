package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
)

// CSVOptions controls how a long-format CSV file maps onto a Frame.
type CSVOptions struct {
	// LevelColumns name the hierarchy columns, outermost first. Empty for a single series.
	LevelColumns []string
	// TimeColumn holds integer time points or dates in DateFormat (default "time").
	TimeColumn string
	// ValueColumns select the value columns; empty means every remaining column.
	ValueColumns []string
	// DateFormat parses non-integer time values; they become days since the Unix epoch
	// (default "2006-01-02").
	DateFormat string
	// Delimiter is the field separator (default ',').
	Delimiter rune
}

// DefaultCSVOptions returns options for a flat "time,<values...>" file.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		TimeColumn: "time",
		DateFormat: "2006-01-02",
		Delimiter:  ',',
	}
}

func (o *CSVOptions) withDefaults() *CSVOptions {
	out := DefaultCSVOptions()
	if o == nil {
		return out
	}
	out.LevelColumns = o.LevelColumns
	out.ValueColumns = o.ValueColumns
	if o.TimeColumn != "" {
		out.TimeColumn = o.TimeColumn
	}
	if o.DateFormat != "" {
		out.DateFormat = o.DateFormat
	}
	if o.Delimiter != 0 {
		out.Delimiter = o.Delimiter
	}
	return out
}

// LoadCSV reads a frame from a file.
func LoadCSV(filename string, opts *CSVOptions) (*Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()
	return ReadCSV(file, opts)
}

// ReadCSV reads a long-format table with a header row. Empty cells and "NaN" become missing
// values.
func ReadCSV(r io.Reader, opts *CSVOptions) (*Frame, error) {
	opts = opts.withDefaults()
	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	col := func(name string) (int, error) {
		j := slices.Index(header, name)
		if j < 0 {
			return 0, errors.NewValueError("timeseries.ReadCSV", fmt.Sprintf("column %q not found in header %v", name, header))
		}
		return j, nil
	}

	timeIdx, err := col(opts.TimeColumn)
	if err != nil {
		return nil, err
	}
	levelIdx := make([]int, len(opts.LevelColumns))
	for k, name := range opts.LevelColumns {
		if levelIdx[k], err = col(name); err != nil {
			return nil, err
		}
	}
	valueNames := opts.ValueColumns
	if len(valueNames) == 0 {
		for j, h := range header {
			if j != timeIdx && !slices.Contains(levelIdx, j) {
				valueNames = append(valueNames, h)
			}
		}
	}
	valueIdx := make([]int, len(valueNames))
	for k, name := range valueNames {
		if valueIdx[k], err = col(name); err != nil {
			return nil, err
		}
	}

	var (
		index []Index
		rows  [][]float64
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		t, err := parseTime(record[timeIdx], opts.DateFormat)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		levels := make([]string, len(levelIdx))
		for k, j := range levelIdx {
			levels[k] = strings.TrimSpace(record[j])
		}
		row := make([]float64, len(valueIdx))
		for k, j := range valueIdx {
			if row[k], err = parseValue(record[j]); err != nil {
				return nil, errors.Wrapf(err, "line %d column %q", line, valueNames[k])
			}
		}
		index = append(index, Index{Levels: levels, Time: t})
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	return New(index, valueNames, rows)
}

func parseTime(s, layout string) (int64, error) {
	s = strings.TrimSpace(s)
	if t, err := strconv.ParseInt(s, 10, 64); err == nil {
		return t, nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, errors.NewValueError("timeseries.ReadCSV", fmt.Sprintf("cannot parse time %q", s))
	}
	return t.Unix() / 86400, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes f in long format, one column per hierarchy level named by levelNames (generated
// as level_0, level_1... when nil), then "time", then the value columns.
func WriteCSV(w io.Writer, f *Frame, levelNames []string) error {
	if levelNames == nil {
		for i := 0; i < f.InstanceLevels(); i++ {
			levelNames = append(levelNames, "level_"+strconv.Itoa(i))
		}
	}
	if len(levelNames) != f.InstanceLevels() {
		return errors.NewDimensionError("timeseries.WriteCSV", f.InstanceLevels(), len(levelNames), 1)
	}
	cw := csv.NewWriter(w)
	header := append(slices.Clone(levelNames), "time")
	if err := cw.Write(append(header, f.columns...)); err != nil {
		return errors.WithStack(err)
	}
	for i, idx := range f.index {
		record := append(slices.Clone(idx.Levels), strconv.FormatInt(idx.Time, 10))
		for _, v := range f.Row(i) {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return errors.WithStack(err)
		}
	}
	cw.Flush()
	return errors.WithStack(cw.Error())
}
