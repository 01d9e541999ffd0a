package metric

import (
	"fmt"
	"math"

	"f1telemetry/internal/model"
)

const availableColumnsShown = 10

// Result is a channel resolved against one lap of telemetry, with rows that
// lack a position or a value removed.
type Result struct {
	Channel    Channel
	Column     string
	Label      string
	Colorscale string
	X          []float64
	Y          []float64
	Values     []float64
	Distance   []float64
	Min        float64
	Max        float64
	AllZero    bool
}

func (r Result) Len() int { return len(r.Values) }

// Path is a position-only trace.
type Path struct {
	X []float64
	Y []float64
}

func (p Path) Len() int { return len(p.X) }

// Resolve extracts ch from nt. A missing column yields *model.ColumnMissingError;
// a column with no usable rows yields model.ErrNoValidPoints.
func Resolve(nt model.NormalizedTelemetry, ch Channel) (Result, error) {
	if nt.Empty() {
		return Result{}, model.ErrNotAvailable
	}
	xs, okX := nt.Column("X")
	ys, okY := nt.Column("Y")
	if !okX || !okY {
		return Result{}, fmt.Errorf("position columns: %w", model.ErrNotAvailable)
	}
	col, ok := ch.Lookup(nt.Columns())
	if !ok {
		return Result{}, &model.ColumnMissingError{Channel: ch.Name, Available: firstColumns(nt.Columns())}
	}
	values, _ := nt.Column(col)
	if ch.Rescale && !nt.Percent(col) {
		values = RescaleUnit(values)
	}
	dist, hasDist := nt.Column("Distance")

	res := Result{
		Channel:    ch,
		Column:     col,
		Label:      ch.Label,
		Colorscale: ch.Colorscale,
	}
	if _, max, ok := model.Range(values); ok && max == 0 {
		res.AllZero = true
	}
	for i := range values {
		if !finite(xs[i]) || !finite(ys[i]) || !finite(values[i]) {
			continue
		}
		res.X = append(res.X, xs[i])
		res.Y = append(res.Y, ys[i])
		res.Values = append(res.Values, values[i])
		if hasDist {
			res.Distance = append(res.Distance, dist[i])
		}
	}
	if len(res.Values) == 0 {
		return Result{}, fmt.Errorf("%s: %w", ch.Name, model.ErrNoValidPoints)
	}
	res.Min, res.Max, _ = model.Range(res.Values)
	return res, nil
}

// Positions extracts the X/Y trace of nt, dropping rows where either is NaN
// or infinite.
func Positions(nt model.NormalizedTelemetry) (Path, error) {
	if nt.Empty() {
		return Path{}, model.ErrNotAvailable
	}
	xs, okX := nt.Column("X")
	ys, okY := nt.Column("Y")
	if !okX || !okY {
		return Path{}, fmt.Errorf("position columns: %w", model.ErrNotAvailable)
	}
	var p Path
	for i := range xs {
		if !finite(xs[i]) || !finite(ys[i]) {
			continue
		}
		p.X = append(p.X, xs[i])
		p.Y = append(p.Y, ys[i])
	}
	if p.Len() == 0 {
		return Path{}, fmt.Errorf("position: %w", model.ErrNoValidPoints)
	}
	return p, nil
}

// RescaleUnit multiplies values by 100 when every non-NaN value lies in
// [0, 1]. The input is not modified.
func RescaleUnit(values []float64) []float64 {
	min, max, ok := model.Range(values)
	if !ok || min < 0 || max > 1 {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * 100
	}
	return out
}

func firstColumns(cols []string) []string {
	if len(cols) > availableColumnsShown {
		cols = cols[:availableColumnsShown]
	}
	return cols
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
