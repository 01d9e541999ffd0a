package compose

import (
	"errors"
	"fmt"

	"f1telemetry/internal/metric"
	"f1telemetry/internal/model"
)

// Palette is the color cycle for multi-driver overlays. Colors are taken by
// input position, so reordering the drivers changes their colors.
var Palette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2"}

const (
	QualifyingColor = "#9B59B6"
	RaceColor       = "#E67E22"
)

var ErrTooFewDrivers = errors.New("at least two drivers are required for a comparison")

// Input is one trace request: the label shown for it and either its resolved
// path or the error that prevented resolving it.
type Input struct {
	Label string
	Path  metric.Path
	Err   error
}

type Trace struct {
	Label  string
	Color  string
	Dashed bool
	Path   metric.Path
}

type Skipped struct {
	Label string
	Err   error
}

// Overlay is a set of traces drawn on shared axes. Traces are not resampled
// and keep their own sample counts.
type Overlay struct {
	Traces  []Trace
	Skipped []Skipped
}

// Comparison overlays driver traces in input order. An input that failed
// still consumes its palette slot.
func Comparison(inputs []Input) (Overlay, error) {
	if len(inputs) < 2 {
		return Overlay{}, ErrTooFewDrivers
	}
	var ov Overlay
	for i, in := range inputs {
		if in.Err != nil {
			ov.Skipped = append(ov.Skipped, Skipped{Label: in.Label, Err: in.Err})
			continue
		}
		ov.Traces = append(ov.Traces, Trace{
			Label: in.Label,
			Color: Palette[i%len(Palette)],
			Path:  in.Path,
		})
	}
	if len(ov.Traces) == 0 {
		return ov, fmt.Errorf("no driver telemetry: %w", model.ErrNotAvailable)
	}
	return ov, nil
}

// QualifyingVsRace overlays a driver's fastest qualifying lap (dashed) on
// their fastest race lap. Either side may be missing, not both.
func QualifyingVsRace(qual, race Input) (Overlay, error) {
	var ov Overlay
	add := func(in Input, color string, dashed bool) {
		if in.Err != nil {
			ov.Skipped = append(ov.Skipped, Skipped{Label: in.Label, Err: in.Err})
			return
		}
		ov.Traces = append(ov.Traces, Trace{Label: in.Label, Color: color, Dashed: dashed, Path: in.Path})
	}
	add(qual, QualifyingColor, true)
	add(race, RaceColor, false)
	if len(ov.Traces) == 0 {
		return ov, fmt.Errorf("no qualifying or race telemetry: %w", model.ErrNotAvailable)
	}
	return ov, nil
}
