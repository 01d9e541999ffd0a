package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"f1telemetry/internal/cache"
	"f1telemetry/internal/compose"
	"f1telemetry/internal/config"
	"f1telemetry/internal/diagnostics"
	"f1telemetry/internal/metric"
	"f1telemetry/internal/model"
	"f1telemetry/internal/provider"
	"f1telemetry/internal/render"
	"f1telemetry/internal/service"
)

// CacheControl is the part of the read-through cache the API exposes.
type CacheControl interface {
	Stats() cache.Stats
	ClearMemory()
}

type Server struct {
	cfg      *config.Manager
	analyzer *service.Analyzer
	diags    *diagnostics.Store
	cache    CacheControl
	logger   *slog.Logger
	version  string
	now      func() time.Time
}

type statusResponse struct {
	Status      string         `json:"status"`
	Time        string         `json:"time"`
	Version     string         `json:"version"`
	ConfigPath  string         `json:"config_path"`
	Provider    providerStatus `json:"provider"`
	Cache       cacheStatus    `json:"cache"`
	API         apiStatus      `json:"api"`
	Sink        sinkStatus     `json:"sink"`
	Diagnostics int            `json:"diagnostics"`
}

type providerStatus struct {
	Kind    string `json:"kind"`
	Root    string `json:"root,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

type cacheStatus struct {
	Enabled bool         `json:"enabled"`
	Driver  string       `json:"driver,omitempty"`
	Stats   *cache.Stats `json:"stats,omitempty"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type sinkStatus struct {
	Kafka bool `json:"kafka"`
}

type eventResponse struct {
	model.Event
	Label string `json:"label"`
}

type racingLineResponse struct {
	Driver    string                   `json:"driver"`
	LapNumber int                      `json:"lap_number"`
	Channel   string                   `json:"channel"`
	Column    string                   `json:"column"`
	Points    int                      `json:"points"`
	Min       float64                  `json:"min"`
	Max       float64                  `json:"max"`
	AllZero   bool                     `json:"all_zero"`
	Warnings  []diagnostics.Diagnostic `json:"warnings,omitempty"`
	Figure    render.Figure            `json:"figure"`
}

type channelErrorResponse struct {
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

type comparisonResponse struct {
	Traces   []traceResponse          `json:"traces"`
	Warnings []diagnostics.Diagnostic `json:"warnings,omitempty"`
	Figure   render.Figure            `json:"figure"`
}

type traceResponse struct {
	Label  string `json:"label"`
	Color  string `json:"color"`
	Dashed bool   `json:"dashed"`
	Points int    `json:"points"`
}

type sectorResponse struct {
	Driver      string              `json:"driver"`
	Deltas      []model.SectorDelta `json:"deltas"`
	Best        bestResponse        `json:"best"`
	Theoretical float64             `json:"theoretical_best"`
	Figure      render.Figure       `json:"figure"`
}

type bestResponse struct {
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
	S1Lap int     `json:"s1_lap"`
	S2Lap int     `json:"s2_lap"`
	S3Lap int     `json:"s3_lap"`
}

type errorResponse struct {
	Error      string                  `json:"error"`
	Diagnostic *diagnostics.Diagnostic `json:"diagnostic,omitempty"`
}

func NewServer(cfg *config.Manager, analyzer *service.Analyzer, cacheCtl CacheControl, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:      cfg,
		analyzer: analyzer,
		diags:    analyzer.Diagnostics(),
		cache:    cacheCtl,
		logger:   logger,
		version:  version,
		now:      time.Now,
	}
}

func Start(ctx context.Context, cfg *config.Manager, analyzer *service.Analyzer, cacheCtl CacheControl, logger *slog.Logger, version string) *http.Server {
	if cfg == nil || analyzer == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(cfg, analyzer, cacheCtl, logger, version)

	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/years", s.handleYears)
	mux.HandleFunc("/schedule", s.handleSchedule)
	mux.HandleFunc("/racing-line", s.handleRacingLine)
	mux.HandleFunc("/comparison", s.handleComparison)
	mux.HandleFunc("/sector-delta", s.handleSectorDelta)
	mux.HandleFunc("/qualifying-vs-race", s.handleQualifyingVsRace)
	mux.HandleFunc("/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/admin/clear", s.handleClear)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:      "ok",
		Time:        s.now().UTC().Format(time.RFC3339Nano),
		Version:     s.version,
		ConfigPath:  s.cfg.Path(),
		Provider:    providerStatus{Kind: cfg.Provider.Kind},
		Cache:       cacheStatus{Enabled: cfg.Cache.Enabled},
		API:         apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Sink:        sinkStatus{Kafka: cfg.Sink.Kafka.Enabled},
		Diagnostics: len(s.diags.List(0)),
	}
	if cfg.Provider.Kind == "http" {
		resp.Provider.BaseURL = cfg.Provider.BaseURL
	} else {
		resp.Provider.Root = cfg.Provider.Root
	}
	if cfg.Cache.Enabled {
		resp.Cache.Driver = cfg.Cache.Driver
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache.Stats = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": provider.AvailableYears(s.now())})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	events, err := s.analyzer.Schedule(r.Context(), year)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{Event: ev, Label: ev.String()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"events": out,
		"count":  len(out),
	})
}

func (s *Server) handleRacingLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, err := parseSessionRef(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	driver := strings.TrimSpace(r.URL.Query().Get("driver"))
	if driver == "" {
		writeBadRequest(w, errors.New("driver is required"))
		return
	}
	channels := parseChannels(r.URL.Query().Get("channel"))
	format := parseFormat(r)
	if len(channels) > 1 && format != "json" {
		writeBadRequest(w, fmt.Errorf("format %s supports a single channel", format))
		return
	}

	outcomes, err := s.analyzer.RacingLines(r.Context(), ref, driver, channels)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(outcomes) == 1 {
		o := outcomes[0]
		if o.Err != nil {
			s.writeError(w, o.Err)
			return
		}
		s.writeFigure(w, format, o.View.Figure, racingLineBody(o))
		return
	}
	views := make([]racingLineResponse, 0, len(outcomes))
	var failed []channelErrorResponse
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, channelErrorResponse{Channel: o.Channel.Name, Error: message(o.Err)})
			continue
		}
		views = append(views, racingLineBody(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"views":  views,
		"errors": failed,
	})
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, err := parseSessionRef(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	drivers := service.ParseDrivers(r.URL.Query().Get("drivers"))
	view, err := s.analyzer.Compare(r.Context(), ref, drivers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeFigure(w, parseFormat(r), view.Figure, comparisonBody(view))
}

func (s *Server) handleSectorDelta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, err := parseSessionRef(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	driver := strings.TrimSpace(r.URL.Query().Get("driver"))
	if driver == "" {
		writeBadRequest(w, errors.New("driver is required"))
		return
	}
	view, err := s.analyzer.SectorDeltas(r.Context(), ref, driver)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch parseFormat(r) {
	case "png":
		cfg := s.cfg.Get()
		var buf bytes.Buffer
		opts := render.Options{Width: cfg.Render.SectorWidth, Height: cfg.Render.SectorHeight}
		if err := render.WriteSectorPNG(&buf, view.Driver, view.Deltas, opts); err != nil {
			s.writeError(w, err)
			return
		}
		writeBytes(w, "image/png", buf.Bytes())
	case "json":
		b := view.Best
		writeJSON(w, http.StatusOK, sectorResponse{
			Driver:      view.Driver,
			Deltas:      view.Deltas,
			Best:        bestResponse{S1: b.S1, S2: b.S2, S3: b.S3, S1Lap: b.S1Lap, S2Lap: b.S2Lap, S3Lap: b.S3Lap},
			Theoretical: b.Theoretical(),
			Figure:      view.Figure,
		})
	default:
		writeBadRequest(w, errors.New("sector deltas are available as json or png"))
	}
}

func (s *Server) handleQualifyingVsRace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	round := strings.TrimSpace(r.URL.Query().Get("round"))
	driver := strings.TrimSpace(r.URL.Query().Get("driver"))
	if round == "" || driver == "" {
		writeBadRequest(w, errors.New("round and driver are required"))
		return
	}
	view, err := s.analyzer.QualifyingVsRace(r.Context(), year, round, driver)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeFigure(w, parseFormat(r), view.Figure, comparisonBody(view))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []diagnostics.Diagnostic
	if sinceStr != "" {
		if ts, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			list = s.diags.Since(ts)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	} else {
		list = s.diags.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diagnostics": list,
		"count":       len(list),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		s.diags.Clear()
		if s.cache != nil {
			s.cache.ClearMemory()
		}
	case "diagnostics":
		s.diags.Clear()
	case "cache":
		if s.cache != nil {
			s.cache.ClearMemory()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.logger != nil {
		s.logger.Info("cleared", "target", target)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) writeFigure(w http.ResponseWriter, format string, fig render.Figure, body any) {
	var buf bytes.Buffer
	switch format {
	case "json":
		writeJSON(w, http.StatusOK, body)
	case "svg":
		if err := render.WriteSVG(&buf, fig); err != nil {
			s.writeError(w, err)
			return
		}
		writeBytes(w, "image/svg+xml", buf.Bytes())
	case "png":
		if err := render.WritePNG(&buf, fig); err != nil {
			s.writeError(w, err)
			return
		}
		writeBytes(w, "image/png", buf.Bytes())
	default:
		writeBadRequest(w, fmt.Errorf("unknown format %q", format))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: message(err)}
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		d := svcErr.Diagnostic
		resp.Diagnostic = &d
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError && s.logger != nil {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, compose.ErrTooFewDrivers):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrColumnMissing), errors.Is(err, model.ErrNoValidPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotAvailable):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnavailable), errors.Is(err, model.ErrLoad):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func message(err error) string {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr.Diagnostic.Message
	}
	return err.Error()
}

func racingLineBody(o service.ChannelOutcome) racingLineResponse {
	v := o.View
	return racingLineResponse{
		Driver:    v.Driver,
		LapNumber: v.LapNumber,
		Channel:   o.Channel.Name,
		Column:    v.Result.Column,
		Points:    v.Result.Len(),
		Min:       v.Result.Min,
		Max:       v.Result.Max,
		AllZero:   v.Result.AllZero,
		Warnings:  v.Warnings,
		Figure:    v.Figure,
	}
}

func comparisonBody(view service.ComparisonView) comparisonResponse {
	resp := comparisonResponse{Warnings: view.Warnings, Figure: view.Figure}
	for _, tr := range view.Overlay.Traces {
		resp.Traces = append(resp.Traces, traceResponse{Label: tr.Label, Color: tr.Color, Dashed: tr.Dashed, Points: tr.Path.Len()})
	}
	return resp
}

func parseYear(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return 0, errors.New("year is required")
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", v)
	}
	return year, nil
}

func parseSessionRef(r *http.Request) (service.SessionRef, error) {
	year, err := parseYear(r)
	if err != nil {
		return service.SessionRef{}, err
	}
	round := strings.TrimSpace(r.URL.Query().Get("round"))
	if round == "" {
		return service.SessionRef{}, errors.New("round is required")
	}
	st := model.SessionRace
	if v := r.URL.Query().Get("session"); v != "" {
		if st, err = model.ParseSessionType(v); err != nil {
			return service.SessionRef{}, err
		}
	}
	return service.SessionRef{Year: year, Round: round, Session: st}, nil
}

// parseChannels reads a comma separated channel list. Unknown names fall
// back to Speed; an empty list means Speed alone.
func parseChannels(value string) []metric.Channel {
	var out []metric.Channel
	for _, name := range strings.Split(value, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		out = append(out, metric.ParseOrSpeed(name))
	}
	if len(out) == 0 {
		out = append(out, metric.Speed)
	}
	return out
}

func parseFormat(r *http.Request) string {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		return "json"
	}
	return format
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeJSON encodes before writing the header so an unencodable payload
// becomes a 500 rather than an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: fmt.Sprintf("encode response: %v", err)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
