package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"f1telemetry/internal/compose"
	"f1telemetry/internal/config"
	"f1telemetry/internal/diagnostics"
	"f1telemetry/internal/metric"
	"f1telemetry/internal/model"
	"f1telemetry/internal/normalize"
	"f1telemetry/internal/provider"
	"f1telemetry/internal/render"
	"f1telemetry/internal/sector"
	"f1telemetry/internal/sink"
)

const compareWorkers = 4

// Analyzer runs the telemetry pipeline for one request at a time and records
// a diagnostic for every failure or warning it produces.
type Analyzer struct {
	provider provider.Provider
	diags    *diagnostics.Store
	sink     sink.Publisher
	logger   *slog.Logger
	cfg      atomic.Value
}

// Error carries the diagnostic recorded for a failed request.
type Error struct {
	Diagnostic diagnostics.Diagnostic
	Err        error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// SessionRef names one session of one event.
type SessionRef struct {
	Year    int
	Round   string
	Session model.SessionType
}

type RacingLineView struct {
	Driver    string
	LapNumber int
	Result    metric.Result
	Figure    render.Figure
	Warnings  []diagnostics.Diagnostic
}

// ChannelOutcome is the racing line for one channel, or why it failed.
type ChannelOutcome struct {
	Channel metric.Channel
	View    RacingLineView
	Err     error
}

type ComparisonView struct {
	Overlay  compose.Overlay
	Figure   render.Figure
	Warnings []diagnostics.Diagnostic
}

type SectorView struct {
	Driver string
	Deltas []model.SectorDelta
	Best   model.SectorBest
	Figure render.Figure
}

func NewAnalyzer(p provider.Provider, cfg *config.Config, diags *diagnostics.Store, pub sink.Publisher, logger *slog.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if diags == nil {
		diags = diagnostics.NewStore(cfg.Diagnostics.StoreLimit)
	}
	if pub == nil {
		pub = sink.Discard{}
	}
	a := &Analyzer{provider: p, diags: diags, sink: pub, logger: logger}
	a.cfg.Store(cfg)
	return a
}

func (a *Analyzer) UpdateConfig(cfg *config.Config) {
	a.cfg.Store(cfg)
}

func (a *Analyzer) config() *config.Config {
	if v := a.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (a *Analyzer) Diagnostics() *diagnostics.Store { return a.diags }

// ParseDrivers splits a comma separated list of driver codes. Codes are
// trimmed and upper-cased; empty entries are dropped and order is kept.
func ParseDrivers(input string) []string {
	codes := lo.Map(strings.Split(input, ","), func(code string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(code))
	})
	return lo.Compact(codes)
}

func (a *Analyzer) Schedule(ctx context.Context, year int) ([]model.Event, error) {
	events, err := a.provider.Schedule(ctx, year)
	if err != nil {
		return nil, a.fail(err, diagnostics.Context{Operation: diagnostics.OpSchedule, Year: year})
	}
	return events, nil
}

// RacingLine resolves one channel over the driver's fastest lap.
func (a *Analyzer) RacingLine(ctx context.Context, ref SessionRef, driver string, ch metric.Channel) (RacingLineView, error) {
	out, err := a.RacingLines(ctx, ref, driver, []metric.Channel{ch})
	if err != nil {
		return RacingLineView{}, err
	}
	return out[0].View, out[0].Err
}

// RacingLines loads the fastest lap once and resolves every channel against
// it. A channel that cannot be resolved fails on its own.
func (a *Analyzer) RacingLines(ctx context.Context, ref SessionRef, driver string, channels []metric.Channel) ([]ChannelOutcome, error) {
	driver = strings.ToUpper(strings.TrimSpace(driver))
	dc := diagnostics.Context{Operation: diagnostics.OpRacingLine, Year: ref.Year, Session: ref.Session, Driver: driver}
	if driver == "" {
		return nil, a.fail(fmt.Errorf("driver code required: %w", model.ErrNotAvailable), dc)
	}
	sess, err := a.openSession(ctx, ref, dc)
	if err != nil {
		return nil, err
	}
	nt, lapNumber, err := a.fastestTelemetry(ctx, sess, driver)
	if err != nil {
		return nil, a.fail(err, dc)
	}
	opts := a.trackOptions()
	out := make([]ChannelOutcome, 0, len(channels))
	for _, ch := range channels {
		cc := dc
		cc.Channel = ch.Name
		res, err := metric.Resolve(nt, ch)
		if err != nil {
			out = append(out, ChannelOutcome{Channel: ch, Err: a.fail(err, cc)})
			continue
		}
		view := RacingLineView{
			Driver:    driver,
			LapNumber: lapNumber,
			Result:    res,
			Figure:    render.RacingLine(res, render.RacingLineTitle(ch, driver), opts),
		}
		if res.AllZero {
			view.Warnings = append(view.Warnings, a.warn(diagnostics.AllZero(cc)))
		}
		a.publish(ctx, sink.Chart{Kind: string(diagnostics.OpRacingLine), Channel: ch.Name, Drivers: []string{driver}, Figure: view.Figure}, ref)
		out = append(out, ChannelOutcome{Channel: ch, View: view})
	}
	return out, nil
}

// Compare overlays the fastest laps of several drivers. Drivers are loaded
// concurrently; colors follow the order of drivers.
func (a *Analyzer) Compare(ctx context.Context, ref SessionRef, drivers []string) (ComparisonView, error) {
	dc := diagnostics.Context{Operation: diagnostics.OpComparison, Year: ref.Year, Session: ref.Session}
	if len(drivers) < 2 {
		return ComparisonView{}, a.fail(compose.ErrTooFewDrivers, dc)
	}
	sess, err := a.openSession(ctx, ref, dc)
	if err != nil {
		return ComparisonView{}, err
	}

	inputs := make([]compose.Input, len(drivers))
	var g errgroup.Group
	g.SetLimit(compareWorkers)
	for i, driver := range drivers {
		g.Go(func() error {
			path, err := a.fastestPath(ctx, sess, driver)
			inputs[i] = compose.Input{Label: driver, Path: path, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	ov, err := compose.Comparison(inputs)
	view := ComparisonView{Overlay: ov}
	for _, s := range ov.Skipped {
		view.Warnings = append(view.Warnings, a.warn(diagnostics.Skipped(s, diagnostics.Context{Operation: dc.Operation, Year: ref.Year})))
	}
	if err != nil {
		return view, a.fail(err, dc)
	}
	view.Figure = render.Comparison(ov, "Driver Comparison - Racing Lines", a.trackOptions())
	labels := lo.Map(ov.Traces, func(tr compose.Trace, _ int) string { return tr.Label })
	a.publish(ctx, sink.Chart{Kind: string(diagnostics.OpComparison), Drivers: labels, Figure: view.Figure}, ref)
	return view, nil
}

// SectorDeltas measures each lap's sectors against the driver's best sectors
// of the session.
func (a *Analyzer) SectorDeltas(ctx context.Context, ref SessionRef, driver string) (SectorView, error) {
	driver = strings.ToUpper(strings.TrimSpace(driver))
	dc := diagnostics.Context{Operation: diagnostics.OpSectorDelta, Year: ref.Year, Session: ref.Session, Driver: driver}
	sess, err := a.openSession(ctx, ref, dc)
	if err != nil {
		return SectorView{}, err
	}
	laps, err := sess.Laps(driver)
	if err != nil {
		return SectorView{}, a.fail(err, dc)
	}
	records := laps.Records()
	deltas, err := sector.ComputeDeltas(records)
	if err != nil {
		return SectorView{}, a.fail(err, dc)
	}
	best, err := sector.Best(records)
	if err != nil {
		return SectorView{}, a.fail(err, dc)
	}
	cfg := a.config()
	view := SectorView{
		Driver: driver,
		Deltas: deltas,
		Best:   best,
		Figure: render.SectorDeltas(driver, deltas, render.Options{Width: cfg.Render.SectorWidth, Height: cfg.Render.SectorHeight}),
	}
	a.publish(ctx, sink.Chart{Kind: string(diagnostics.OpSectorDelta), Drivers: []string{driver}, Figure: view.Figure}, ref)
	return view, nil
}

// QualifyingVsRace overlays the driver's fastest qualifying lap on their
// fastest race lap of the same event.
func (a *Analyzer) QualifyingVsRace(ctx context.Context, year int, round, driver string) (ComparisonView, error) {
	driver = strings.ToUpper(strings.TrimSpace(driver))
	dc := diagnostics.Context{Operation: diagnostics.OpQualifyingVsRace, Year: year, Driver: driver}
	raceRef := SessionRef{Year: year, Round: round, Session: model.SessionRace}
	race, err := a.openSession(ctx, raceRef, dc)
	if err != nil {
		return ComparisonView{}, err
	}
	qual, err := a.openSession(ctx, SessionRef{Year: year, Round: round, Session: model.SessionQualifying}, dc)
	if err != nil {
		return ComparisonView{}, err
	}

	var qualIn, raceIn compose.Input
	var g errgroup.Group
	g.Go(func() error {
		path, err := a.fastestPath(ctx, qual, driver)
		qualIn = compose.Input{Label: driver + " - Qualifying", Path: path, Err: err}
		return nil
	})
	g.Go(func() error {
		path, err := a.fastestPath(ctx, race, driver)
		raceIn = compose.Input{Label: driver + " - Race", Path: path, Err: err}
		return nil
	})
	_ = g.Wait()

	var view ComparisonView
	for _, side := range []struct {
		in compose.Input
		st model.SessionType
	}{{qualIn, model.SessionQualifying}, {raceIn, model.SessionRace}} {
		if side.in.Err == nil {
			continue
		}
		sc := dc
		sc.Session = side.st
		view.Warnings = append(view.Warnings, a.warn(diagnostics.Skipped(compose.Skipped{Label: driver, Err: side.in.Err}, sc)))
	}
	ov, err := compose.QualifyingVsRace(qualIn, raceIn)
	view.Overlay = ov
	if err != nil {
		return view, a.fail(err, dc)
	}
	view.Figure = render.Comparison(ov, fmt.Sprintf("Qualifying vs Race Comparison - %s", driver), a.trackOptions())
	a.publish(ctx, sink.Chart{Kind: string(diagnostics.OpQualifyingVsRace), Drivers: []string{driver}, Figure: view.Figure}, raceRef)
	return view, nil
}

func (a *Analyzer) openSession(ctx context.Context, ref SessionRef, dc diagnostics.Context) (provider.Session, error) {
	sc := dc
	sc.Session = ref.Session
	sess, err := a.provider.Session(ctx, ref.Year, ref.Round, ref.Session)
	if err != nil {
		return nil, a.fail(err, sc)
	}
	if err := sess.Load(ctx); err != nil {
		return nil, a.fail(err, sc)
	}
	if a.logger != nil {
		a.logger.Debug("session ready", "year", ref.Year, "event", sess.Event().String(), "session", string(ref.Session))
	}
	return sess, nil
}

func (a *Analyzer) fastestTelemetry(ctx context.Context, sess provider.Session, driver string) (model.NormalizedTelemetry, int, error) {
	laps, err := sess.Laps(driver)
	if err != nil {
		return model.NormalizedTelemetry{}, 0, err
	}
	lap, err := laps.Fastest()
	if err != nil {
		return model.NormalizedTelemetry{}, 0, err
	}
	frame, err := lap.Telemetry(ctx)
	if err != nil {
		return model.NormalizedTelemetry{}, 0, err
	}
	nt, err := normalize.Normalize(frame)
	if err != nil {
		return model.NormalizedTelemetry{}, 0, err
	}
	return nt, lap.Number(), nil
}

func (a *Analyzer) fastestPath(ctx context.Context, sess provider.Session, driver string) (metric.Path, error) {
	nt, _, err := a.fastestTelemetry(ctx, sess, driver)
	if err != nil {
		return metric.Path{}, err
	}
	return metric.Positions(nt)
}

func (a *Analyzer) trackOptions() render.Options {
	cfg := a.config()
	return render.Options{Width: cfg.Render.Width, Height: cfg.Render.Height}
}

// fail records the diagnostic for err and returns it wrapped in *Error. An
// error that already carries a diagnostic is returned unchanged.
func (a *Analyzer) fail(err error, dc diagnostics.Context) error {
	var done *Error
	if errors.As(err, &done) {
		return err
	}
	d := diagnostics.Describe(err, dc)
	a.diags.Add(d)
	if a.logger != nil {
		a.logger.Warn("request failed",
			"operation", dc.Operation,
			"year", dc.Year,
			"session", string(dc.Session),
			"driver", dc.Driver,
			"channel", dc.Channel,
			"err", err,
		)
	}
	return &Error{Diagnostic: d, Err: err}
}

func (a *Analyzer) warn(d diagnostics.Diagnostic) diagnostics.Diagnostic {
	a.diags.Add(d)
	if a.logger != nil {
		a.logger.Info("request warning", "operation", d.Operation, "driver", d.Driver, "message", d.Message)
	}
	return d
}

func (a *Analyzer) publish(ctx context.Context, c sink.Chart, ref SessionRef) {
	c.Year = ref.Year
	c.Round = ref.Round
	c.Session = string(ref.Session)
	if err := a.sink.Publish(ctx, c); err != nil && a.logger != nil {
		a.logger.Warn("chart publish failed", "kind", c.Kind, "err", err)
	}
}
