package timeseries

import (
	"slices"
	"strconv"
	"strings"
)

// keySep never occurs in CSV-loaded level values.
const keySep = "\x1f"

// Index addresses one row of a Frame.
type Index struct {
	// Levels holds the hierarchy values, outermost first. Empty for a flat series.
	Levels []string
	// Time is the ordinal time point within the instance.
	Time int64
}

// Instance returns the instance key (all hierarchy levels) as a map key.
func (i Index) Instance() string {
	return JoinKey(i.Levels)
}

// Compare orders by levels lexicographically, then by time.
func (i Index) Compare(j Index) int {
	if c := slices.Compare(i.Levels, j.Levels); c != 0 {
		return c
	}
	switch {
	case i.Time < j.Time:
		return -1
	case i.Time > j.Time:
		return 1
	}
	return 0
}

// Equal reports whether both indexes address the same row.
func (i Index) Equal(j Index) bool {
	return i.Compare(j) == 0
}

func (i Index) String() string {
	if len(i.Levels) == 0 {
		return strconv.FormatInt(i.Time, 10)
	}
	return strings.Join(i.Levels, "/") + "@" + strconv.FormatInt(i.Time, 10)
}

func (i Index) rowKey() string {
	return i.Instance() + keySep + strconv.FormatInt(i.Time, 10)
}

// JoinKey turns a level tuple into a comparable map key.
func JoinKey(levels []string) string {
	return strings.Join(levels, keySep)
}

// SplitKey reverses JoinKey.
func SplitKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, keySep)
}

// FormatKey renders a level tuple for humans, e.g. "store1/sku3". The empty tuple renders as "*".
func FormatKey(levels []string) string {
	if len(levels) == 0 {
		return "*"
	}
	return strings.Join(levels, "/")
}

func hasPrefix(levels, prefix []string) bool {
	return len(levels) >= len(prefix) && slices.Equal(levels[:len(prefix)], prefix)
}
