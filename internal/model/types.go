package model

import (
	"fmt"
	"strings"
	"time"
)

// NormalizedTelemetry is one driver's lap after normalization: rows ordered
// by Distance when the column exists, brake values on a 0-100 scale.
type NormalizedTelemetry struct {
	Frame
}

type SessionType string

const (
	SessionRace       SessionType = "R"
	SessionQualifying SessionType = "Q"
)

func ParseSessionType(value string) (SessionType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "R", "RACE":
		return SessionRace, nil
	case "Q", "QUALIFYING", "QUALI":
		return SessionQualifying, nil
	}
	return "", fmt.Errorf("unknown session type %q", value)
}

func (s SessionType) String() string {
	switch s {
	case SessionRace:
		return "Race"
	case SessionQualifying:
		return "Qualifying"
	}
	return string(s)
}

// Event is one entry of a season schedule.
type Event struct {
	RoundNumber int    `json:"round_number"`
	Location    string `json:"location"`
	EventName   string `json:"event_name"`
}

func (e Event) String() string {
	return fmt.Sprintf("Round %d: %s (%s)", e.RoundNumber, e.Location, e.EventName)
}

// Duration is a lap or sector time that may be absent.
type Duration struct {
	Value time.Duration
	Valid bool
}

func Present(d time.Duration) Duration { return Duration{Value: d, Valid: true} }

func (d Duration) Seconds() float64 { return d.Value.Seconds() }

type LapSectorRecord struct {
	LapNumber int
	LapTime   Duration
	Sector1   Duration
	Sector2   Duration
	Sector3   Duration
}

// Complete reports whether all three sector times are present.
func (r LapSectorRecord) Complete() bool {
	return r.Sector1.Valid && r.Sector2.Valid && r.Sector3.Valid
}

// SectorDelta holds per-sector offsets in seconds from the fastest observed
// time of that sector.
type SectorDelta struct {
	LapNumber int     `json:"lap_number"`
	S1        float64 `json:"s1"`
	S2        float64 `json:"s2"`
	S3        float64 `json:"s3"`
}

// SectorBest is the fastest observed time for each sector and the lap it was
// set on.
type SectorBest struct {
	S1, S2, S3          float64
	S1Lap, S2Lap, S3Lap int
}

// Theoretical is the sum of the three best sector times in seconds.
func (b SectorBest) Theoretical() float64 { return b.S1 + b.S2 + b.S3 }
