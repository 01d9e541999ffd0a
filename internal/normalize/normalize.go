package normalize

import (
	"fmt"
	"math"
	"sort"

	"f1telemetry/internal/metric"
	"f1telemetry/internal/model"
)

const (
	columnX        = "X"
	columnY        = "Y"
	columnDistance = "Distance"
)

// Normalize prepares one lap of raw telemetry for resolution. It rescales a
// 0-1 brake column to 0-100 and orders rows by distance. Rows are never
// dropped.
func Normalize(frame model.Frame) (model.NormalizedTelemetry, error) {
	if frame.Empty() {
		return model.NormalizedTelemetry{}, fmt.Errorf("telemetry is empty: %w", model.ErrNotAvailable)
	}
	if !frame.Has(columnX) || !frame.Has(columnY) {
		return model.NormalizedTelemetry{}, fmt.Errorf("telemetry has no X/Y position: %w", model.ErrNotAvailable)
	}

	out := frame
	// A brake column marked percent came out of an earlier pass; rescaling it
	// again would multiply small percentages by 100.
	if col, ok := metric.Brake.Lookup(frame.Columns()); ok && !frame.Percent(col) {
		values, _ := frame.Column(col)
		scaled := metric.RescaleUnit(values)
		if !sameSlice(values, scaled) {
			var err error
			if out, err = out.WithColumn(col, scaled); err != nil {
				return model.NormalizedTelemetry{}, fmt.Errorf("rescale %s: %w", col, err)
			}
		}
		out = out.WithPercent(col)
	}

	if dist, ok := out.Column(columnDistance); ok {
		order := distanceOrder(dist)
		if !isIdentity(order) {
			var err error
			if out, err = out.Reorder(order); err != nil {
				return model.NormalizedTelemetry{}, fmt.Errorf("sort by distance: %w", err)
			}
		}
	}
	return model.NormalizedTelemetry{Frame: out}, nil
}

// distanceOrder returns the row permutation that sorts dist ascending. Ties
// and NaN distances keep their input order; NaN rows go last.
func distanceOrder(dist []float64) []int {
	order := make([]int, len(dist))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		da, db := dist[order[a]], dist[order[b]]
		if math.IsNaN(da) {
			return false
		}
		if math.IsNaN(db) {
			return true
		}
		return da < db
	})
	return order
}

func isIdentity(order []int) bool {
	for i, j := range order {
		if i != j {
			return false
		}
	}
	return true
}

func sameSlice(a, b []float64) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}
