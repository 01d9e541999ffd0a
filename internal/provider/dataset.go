package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"f1telemetry/internal/model"
)

// Dataset serves sessions from a tree of exported timing files:
//
//	<year>/schedule.json
//	<year>/<round>/<R|Q>/laps.csv
//	<year>/<round>/<R|Q>/telemetry/<DRIVER>/<lap>.csv
//
// Every table may also be stored as .json.
type Dataset struct {
	src    Source
	logger *slog.Logger
}

func NewDataset(src Source, logger *slog.Logger) *Dataset {
	return &Dataset{src: src, logger: logger}
}

func (d *Dataset) Schedule(ctx context.Context, year int) ([]model.Event, error) {
	data, err := d.src.Fetch(ctx, fmt.Sprintf("%d/schedule.json", year))
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w: %w", year, model.ErrUnavailable, err)
	}
	events, err := ParseSchedule(data)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w: %w", year, model.ErrUnavailable, err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].RoundNumber < events[j].RoundNumber })
	return events, nil
}

func (d *Dataset) Session(ctx context.Context, year int, roundOrName string, st model.SessionType) (Session, error) {
	if st != model.SessionRace && st != model.SessionQualifying {
		return nil, fmt.Errorf("session type %q: %w", string(st), model.ErrUnavailable)
	}
	events, err := d.Schedule(ctx, year)
	if err != nil {
		return nil, err
	}
	ev, ok := FindEvent(events, roundOrName)
	if !ok {
		return nil, fmt.Errorf("event %q in %d: %w", roundOrName, year, model.ErrUnavailable)
	}
	return &session{
		src:    d.src,
		logger: d.logger,
		event:  ev,
		st:     st,
		dir:    fmt.Sprintf("%d/%d/%s", year, ev.RoundNumber, string(st)),
	}, nil
}

type session struct {
	src    Source
	logger *slog.Logger
	event  model.Event
	st     model.SessionType
	dir    string

	mu     sync.RWMutex
	laps   map[string][]model.LapSectorRecord
	loaded bool
}

func (s *session) Event() model.Event { return s.event }

func (s *session) Type() model.SessionType { return s.st }

func (s *session) Load(ctx context.Context) error {
	data, err := fetchTable(ctx, s.src, s.dir+"/laps")
	if err != nil {
		return fmt.Errorf("load %s: %w: %w", s.dir, model.ErrLoad, err)
	}
	laps, err := ParseLaps(data)
	if err != nil {
		return fmt.Errorf("load %s: %w: %w", s.dir, model.ErrLoad, err)
	}
	s.mu.Lock()
	s.laps = laps
	s.loaded = true
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Debug("session loaded", "session", s.dir, "drivers", len(laps))
	}
	return nil
}

func (s *session) Laps(driver string) (Laps, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, fmt.Errorf("session %s not loaded: %w", s.dir, model.ErrLoad)
	}
	code := strings.ToUpper(strings.TrimSpace(driver))
	records := s.laps[code]
	if len(records) == 0 {
		return nil, fmt.Errorf("driver %s: %w", code, model.ErrNotAvailable)
	}
	return &driverLaps{
		src:     s.src,
		dir:     s.dir + "/telemetry/" + code,
		driver:  code,
		records: records,
	}, nil
}

type driverLaps struct {
	src     Source
	dir     string
	driver  string
	records []model.LapSectorRecord
}

func (l *driverLaps) Driver() string { return l.driver }

func (l *driverLaps) Records() []model.LapSectorRecord {
	return append([]model.LapSectorRecord(nil), l.records...)
}

// Fastest returns the lap with the lowest lap time; ties go to the earlier lap.
func (l *driverLaps) Fastest() (Lap, error) {
	best := -1
	for i, r := range l.records {
		if !r.LapTime.Valid {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := l.records[best]
		if r.LapTime.Value < b.LapTime.Value || (r.LapTime.Value == b.LapTime.Value && r.LapNumber < b.LapNumber) {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("driver %s: %w", l.driver, ErrEmpty)
	}
	return &lap{src: l.src, path: l.dir + "/" + strconv.Itoa(l.records[best].LapNumber), number: l.records[best].LapNumber}, nil
}

type lap struct {
	src    Source
	path   string
	number int
}

func (l *lap) Number() int { return l.number }

func (l *lap) Telemetry(ctx context.Context) (model.Frame, error) {
	data, err := fetchTable(ctx, l.src, l.path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Frame{}, fmt.Errorf("telemetry %s: %w", l.path, model.ErrNotAvailable)
		}
		return model.Frame{}, fmt.Errorf("telemetry %s: %w: %w", l.path, model.ErrUnavailable, err)
	}
	frame, err := ParseFrame(data)
	if err != nil {
		return model.Frame{}, fmt.Errorf("telemetry %s: %w: %w", l.path, model.ErrLoad, err)
	}
	return frame, nil
}

// fetchTable tries the .csv file first and falls back to .json.
func fetchTable(ctx context.Context, src Source, base string) ([]byte, error) {
	data, err := src.Fetch(ctx, base+".csv")
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return src.Fetch(ctx, base+".json")
}
