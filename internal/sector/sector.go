package sector

import (
	"fmt"
	"math"
	"sort"

	"f1telemetry/internal/model"
)

// Epsilon is the magnitude below which a delta is reported as exactly zero.
const Epsilon = 1e-9

// ComputeDeltas measures every complete lap against the fastest time seen
// for each sector. The three reference times may come from different laps.
// Laps missing any sector are skipped.
func ComputeDeltas(records []model.LapSectorRecord) ([]model.SectorDelta, error) {
	laps := complete(records)
	if len(laps) == 0 {
		return nil, fmt.Errorf("sector times: %w", model.ErrNotAvailable)
	}
	best := bestOf(laps)
	out := make([]model.SectorDelta, 0, len(laps))
	for _, r := range laps {
		out = append(out, model.SectorDelta{
			LapNumber: r.LapNumber,
			S1:        delta(r.Sector1.Seconds(), best.S1),
			S2:        delta(r.Sector2.Seconds(), best.S2),
			S3:        delta(r.Sector3.Seconds(), best.S3),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LapNumber < out[j].LapNumber })
	return out, nil
}

// Best reports the fastest time of each sector over the complete laps.
func Best(records []model.LapSectorRecord) (model.SectorBest, error) {
	laps := complete(records)
	if len(laps) == 0 {
		return model.SectorBest{}, fmt.Errorf("sector times: %w", model.ErrNotAvailable)
	}
	return bestOf(laps), nil
}

func complete(records []model.LapSectorRecord) []model.LapSectorRecord {
	out := make([]model.LapSectorRecord, 0, len(records))
	for _, r := range records {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

func bestOf(laps []model.LapSectorRecord) model.SectorBest {
	b := model.SectorBest{S1: math.Inf(1), S2: math.Inf(1), S3: math.Inf(1)}
	for _, r := range laps {
		if s := r.Sector1.Seconds(); s < b.S1 || (s == b.S1 && r.LapNumber < b.S1Lap) {
			b.S1, b.S1Lap = s, r.LapNumber
		}
		if s := r.Sector2.Seconds(); s < b.S2 || (s == b.S2 && r.LapNumber < b.S2Lap) {
			b.S2, b.S2Lap = s, r.LapNumber
		}
		if s := r.Sector3.Seconds(); s < b.S3 || (s == b.S3 && r.LapNumber < b.S3Lap) {
			b.S3, b.S3Lap = s, r.LapNumber
		}
	}
	return b
}

func delta(value, min float64) float64 {
	d := value - min
	if math.Abs(d) < Epsilon {
		return 0
	}
	return d
}
