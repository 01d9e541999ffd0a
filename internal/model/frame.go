package model

import (
	"errors"
	"fmt"
	"math"
)

// Frame is a column-oriented table of per-sample telemetry values for one
// lap. Missing or unparseable cells are NaN. A Frame is immutable once built;
// accessors hand out copies.
type Frame struct {
	names  []string
	index  map[string]int
	values [][]float64
	rows   int
	// percent holds columns already rescaled to 0-100. Never mutated.
	percent map[string]bool
}

// NewFrame builds a frame from ordered column names and one value slice per
// column. All columns must have the same length.
func NewFrame(names []string, columns [][]float64) (Frame, error) {
	if len(names) != len(columns) {
		return Frame{}, fmt.Errorf("frame: %d names for %d columns", len(names), len(columns))
	}
	f := Frame{
		names:  make([]string, len(names)),
		index:  make(map[string]int, len(names)),
		values: make([][]float64, len(columns)),
	}
	for i, name := range names {
		if name == "" {
			return Frame{}, errors.New("frame: empty column name")
		}
		if _, dup := f.index[name]; dup {
			return Frame{}, fmt.Errorf("frame: duplicate column %q", name)
		}
		if i > 0 && len(columns[i]) != len(columns[0]) {
			return Frame{}, fmt.Errorf("frame: column %q has %d rows, want %d", name, len(columns[i]), len(columns[0]))
		}
		f.names[i] = name
		f.index[name] = i
		f.values[i] = append([]float64(nil), columns[i]...)
	}
	if len(columns) > 0 {
		f.rows = len(columns[0])
	}
	return f, nil
}

// MustFrame is NewFrame for fixtures; it panics on malformed input.
func MustFrame(names []string, columns [][]float64) Frame {
	f, err := NewFrame(names, columns)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Frame) Len() int { return f.rows }

func (f Frame) Empty() bool { return f.rows == 0 || len(f.names) == 0 }

// Columns returns the column names in frame order.
func (f Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

func (f Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a copy of the named column.
func (f Frame) Column(name string) ([]float64, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), f.values[i]...), true
}

// WithColumn returns a new frame where the named column is replaced by values.
func (f Frame) WithColumn(name string, values []float64) (Frame, error) {
	i, ok := f.index[name]
	if !ok {
		return Frame{}, fmt.Errorf("frame: unknown column %q", name)
	}
	if len(values) != f.rows {
		return Frame{}, fmt.Errorf("frame: column %q has %d rows, want %d", name, len(values), f.rows)
	}
	cols := make([][]float64, len(f.values))
	copy(cols, f.values)
	cols[i] = values
	return f.derive(cols)
}

// Reorder returns a new frame whose row i is row order[i] of f.
func (f Frame) Reorder(order []int) (Frame, error) {
	if len(order) != f.rows {
		return Frame{}, fmt.Errorf("frame: reorder of %d rows with %d indices", f.rows, len(order))
	}
	cols := make([][]float64, len(f.values))
	for c, src := range f.values {
		dst := make([]float64, f.rows)
		for i, j := range order {
			if j < 0 || j >= f.rows {
				return Frame{}, fmt.Errorf("frame: reorder index %d out of range", j)
			}
			dst[i] = src[j]
		}
		cols[c] = dst
	}
	return f.derive(cols)
}

// derive builds a frame with f's columns and marks over new values.
func (f Frame) derive(cols [][]float64) (Frame, error) {
	out, err := NewFrame(f.names, cols)
	if err != nil {
		return Frame{}, err
	}
	out.percent = f.percent
	return out, nil
}

// Percent reports whether the named column is already on a 0-100 scale.
func (f Frame) Percent(name string) bool { return f.percent[name] }

// WithPercent returns f with name marked as on a 0-100 scale.
func (f Frame) WithPercent(name string) Frame {
	marks := make(map[string]bool, len(f.percent)+1)
	for k := range f.percent {
		marks[k] = true
	}
	marks[name] = true
	f.percent = marks
	return f
}

// Range reports the minimum and maximum of the non-NaN values. ok is false
// when every value is NaN.
func Range(values []float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}
