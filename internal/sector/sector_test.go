package sector

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"f1telemetry/internal/model"
)

func secs(v float64) model.Duration {
	return model.Present(time.Duration(math.Round(v * float64(time.Second))))
}

func near(a, b float64) bool { return math.Abs(a-b) < Epsilon }

func TestComputeDeltasScenario(t *testing.T) {
	records := []model.LapSectorRecord{
		{LapNumber: 3, Sector1: secs(30.5), Sector2: secs(28.2), Sector3: secs(39.5)},
		{LapNumber: 1, Sector1: secs(30.0), Sector2: secs(28.0)},
		{LapNumber: 2, Sector1: secs(31.0), Sector2: secs(27.5), Sector3: secs(40.0)},
	}
	deltas, err := ComputeDeltas(records)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 laps, got %d", len(deltas))
	}
	lap2, lap3 := deltas[0], deltas[1]
	if lap2.LapNumber != 2 || lap3.LapNumber != 3 {
		t.Fatalf("order: %d %d", lap2.LapNumber, lap3.LapNumber)
	}
	if !near(lap2.S1, 0.5) || lap2.S2 != 0 || !near(lap2.S3, 0.5) {
		t.Fatalf("lap 2 deltas: %+v", lap2)
	}
	if lap3.S1 != 0 || !near(lap3.S2, 0.7) || lap3.S3 != 0 {
		t.Fatalf("lap 3 deltas: %+v", lap3)
	}
}

func TestBestTracksLaps(t *testing.T) {
	records := []model.LapSectorRecord{
		{LapNumber: 1, Sector1: secs(30.0), Sector2: secs(28.0)},
		{LapNumber: 2, Sector1: secs(31.0), Sector2: secs(27.5), Sector3: secs(40.0)},
		{LapNumber: 3, Sector1: secs(30.5), Sector2: secs(28.2), Sector3: secs(39.5)},
	}
	best, err := Best(records)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best.S1Lap != 3 || best.S2Lap != 2 || best.S3Lap != 3 {
		t.Fatalf("best laps: %+v", best)
	}
	if !near(best.Theoretical(), 30.5+27.5+39.5) {
		t.Fatalf("theoretical: %v", best.Theoretical())
	}
}

func TestComputeDeltasNotAvailable(t *testing.T) {
	if _, err := ComputeDeltas(nil); !errors.Is(err, model.ErrNotAvailable) {
		t.Fatalf("nil records: %v", err)
	}
	partial := []model.LapSectorRecord{
		{LapNumber: 1, Sector1: secs(30), Sector3: secs(40)},
		{LapNumber: 2, Sector2: secs(28), Sector3: secs(40)},
	}
	if _, err := ComputeDeltas(partial); !errors.Is(err, model.ErrNotAvailable) {
		t.Fatalf("partial records: %v", err)
	}
}

func TestComputeDeltasStableForDuplicateLaps(t *testing.T) {
	records := []model.LapSectorRecord{
		{LapNumber: 4, Sector1: secs(31), Sector2: secs(28), Sector3: secs(40)},
		{LapNumber: 4, Sector1: secs(30), Sector2: secs(28), Sector3: secs(40)},
	}
	deltas, err := ComputeDeltas(records)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !near(deltas[0].S1, 1) || deltas[1].S1 != 0 {
		t.Fatalf("input order not kept for equal laps: %+v", deltas)
	}
}

func TestComputeDeltasProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(40)
		records := make([]model.LapSectorRecord, 0, n)
		for i := 0; i < n; i++ {
			r := model.LapSectorRecord{LapNumber: rng.Intn(70) + 1}
			if rng.Intn(8) != 0 {
				r.Sector1 = secs(25 + rng.Float64()*10)
			}
			if rng.Intn(8) != 0 {
				r.Sector2 = secs(25 + rng.Float64()*10)
			}
			if rng.Intn(8) != 0 {
				r.Sector3 = secs(25 + rng.Float64()*10)
			}
			records = append(records, r)
		}
		deltas, err := ComputeDeltas(records)
		if err != nil {
			if !errors.Is(err, model.ErrNotAvailable) {
				t.Fatalf("unexpected error: %v", err)
			}
			continue
		}
		min1, min2, min3 := math.Inf(1), math.Inf(1), math.Inf(1)
		for i, d := range deltas {
			if d.S1 < 0 || d.S2 < 0 || d.S3 < 0 {
				t.Fatalf("negative delta: %+v", d)
			}
			if i > 0 && deltas[i-1].LapNumber > d.LapNumber {
				t.Fatalf("not sorted at %d", i)
			}
			min1, min2, min3 = math.Min(min1, d.S1), math.Min(min2, d.S2), math.Min(min3, d.S3)
		}
		if min1 != 0 || min2 != 0 || min3 != 0 {
			t.Fatalf("minimum delta not zero: %v %v %v", min1, min2, min3)
		}
	}
}
