package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"f1telemetry/internal/model"
)

const firstSeason = 2018

var (
	ErrEmpty    = fmt.Errorf("no laps: %w", model.ErrNotAvailable)
	ErrNotFound = errors.New("not found")
)

// Provider supplies season schedules and sessions.
type Provider interface {
	Schedule(ctx context.Context, year int) ([]model.Event, error)
	Session(ctx context.Context, year int, roundOrName string, st model.SessionType) (Session, error)
}

// Session is a handle on one session. Laps are only available after Load.
type Session interface {
	Event() model.Event
	Type() model.SessionType
	Load(ctx context.Context) error
	Laps(driver string) (Laps, error)
}

// Laps is one driver's laps in a session.
type Laps interface {
	Driver() string
	Records() []model.LapSectorRecord
	Fastest() (Lap, error)
}

type Lap interface {
	Number() int
	Telemetry(ctx context.Context) (model.Frame, error)
}

// AvailableYears lists the seasons with telemetry, oldest first.
func AvailableYears(now time.Time) []int {
	years := make([]int, 0, now.Year()-firstSeason+1)
	for y := firstSeason; y <= now.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// FindEvent picks an event by round number when roundOrName is all digits,
// otherwise by a case-insensitive match on location or event name.
func FindEvent(events []model.Event, roundOrName string) (model.Event, bool) {
	key := strings.TrimSpace(roundOrName)
	if key == "" {
		return model.Event{}, false
	}
	if isDigits(key) {
		round, err := strconv.Atoi(key)
		if err != nil {
			return model.Event{}, false
		}
		for _, ev := range events {
			if ev.RoundNumber == round {
				return ev, true
			}
		}
		return model.Event{}, false
	}
	lower := strings.ToLower(key)
	for _, ev := range events {
		if strings.EqualFold(ev.Location, key) || strings.EqualFold(ev.EventName, key) {
			return ev, true
		}
	}
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Location), lower) || strings.Contains(strings.ToLower(ev.EventName), lower) {
			return ev, true
		}
	}
	return model.Event{}, false
}

func isDigits(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}
