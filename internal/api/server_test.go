package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"f1telemetry/internal/cache"
	"f1telemetry/internal/config"
	"f1telemetry/internal/diagnostics"
	"f1telemetry/internal/provider"
	"f1telemetry/internal/service"
)

type fakeCache struct {
	cleared int
}

func (c *fakeCache) Stats() cache.Stats { return cache.Stats{MemoryHits: 3, MemoryEntries: 2} }
func (c *fakeCache) ClearMemory()       { c.cleared++ }

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestServer(t *testing.T, extra ...func(root string)) (*Server, *fakeCache) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "2024/schedule.json", `[{"round_number":2,"location":"Jeddah","event_name":"Saudi Arabian Grand Prix"},{"round_number":1,"location":"Sakhir","event_name":"Bahrain Grand Prix"}]`)
	writeFile(t, root, "2024/1/R/laps.csv", "Driver,LapNumber,LapTime,Sector1Time,Sector2Time,Sector3Time\n"+
		"VER,1,91.5,30.0,28.0,33.5\n"+
		"VER,2,92.0,30.2,27.8,34.0\n"+
		"HAM,1,92.5,30.1,28.3,34.1\n")
	writeFile(t, root, "2024/1/R/telemetry/VER/1.csv", "Distance,X,Y,Speed,Brake,nGear,DRS\n0,0,0,200,True,6,0\n10,1,0,220,False,7,0\n20,2,1,250,False,7,0\n")
	writeFile(t, root, "2024/1/R/telemetry/HAM/1.csv", "Distance,X,Y,Speed\n0,5,5,190\n10,6,5,210\n")
	for _, fn := range extra {
		fn(root)
	}

	cfg := config.DefaultConfig()
	cfg.Render.Width, cfg.Render.Height = 300, 200
	cfg.Render.SectorWidth, cfg.Render.SectorHeight = 400, 450
	ds := provider.NewDataset(provider.NewDirSource(root), nil)
	analyzer := service.NewAnalyzer(ds, cfg, diagnostics.NewStore(20), nil, nil)
	fc := &fakeCache{}
	s := NewServer(config.NewStatic(cfg), analyzer, fc, nil, "test")
	s.now = func() time.Time { return time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s, fc
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected status: %v", body)
	}
	stats := body["cache"].(map[string]any)["stats"].(map[string]any)
	if stats["memory_hits"] != float64(3) {
		t.Fatalf("cache stats: %v", stats)
	}
}

func TestYears(t *testing.T) {
	s, _ := newTestServer(t)
	body := decode(t, get(t, s, "/years"))
	years := body["years"].([]any)
	if len(years) != 3 || years[0] != float64(2018) || years[2] != float64(2020) {
		t.Fatalf("years: %v", years)
	}
}

func TestSchedule(t *testing.T) {
	s, _ := newTestServer(t)
	body := decode(t, get(t, s, "/schedule?year=2024"))
	events := body["events"].([]any)
	first := events[0].(map[string]any)
	if first["label"] != "Round 1: Sakhir (Bahrain Grand Prix)" || first["round_number"] != float64(1) {
		t.Fatalf("first event: %v", first)
	}
	if rec := get(t, s, "/schedule"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing year should be 400, got %d", rec.Code)
	}
	if rec := get(t, s, "/schedule?year=2019"); rec.Code != http.StatusBadGateway {
		t.Fatalf("missing schedule should be 502, got %d", rec.Code)
	}
}

func TestRacingLineJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/racing-line?year=2024&round=1&driver=ver&channel=brake")
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["channel"] != "Brake" || body["max"] != float64(100) || body["points"] != float64(3) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRacingLineDropsInfiniteCells(t *testing.T) {
	s, _ := newTestServer(t, func(root string) {
		writeFile(t, root, "2024/2/R/laps.csv", "Driver,LapNumber,LapTime,Sector1Time,Sector2Time,Sector3Time\nVER,1,88.0,29.0,28.0,31.0\n")
		writeFile(t, root, "2024/2/R/telemetry/VER/1.csv", "Distance,X,Y,Speed\n0,0,0,200\n10,1,0,inf\n20,2,1,250\n")
	})
	rec := get(t, s, "/racing-line?year=2024&round=2&driver=VER")
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["points"] != float64(2) || body["min"] != float64(200) || body["max"] != float64(250) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"max": math.Inf(1)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decode(t, rec); !strings.HasPrefix(body["error"].(string), "encode response:") {
		t.Fatalf("error: %v", body)
	}
}

func TestRacingLineImages(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/racing-line?year=2024&round=Bahrain&driver=VER&format=svg")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("svg: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Fatalf("svg body missing root")
	}
	rec = get(t, s, "/racing-line?year=2024&round=1&driver=VER&format=png")
	if rec.Code != http.StatusOK {
		t.Fatalf("png: %d", rec.Code)
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("png decode: %v", err)
	}
}

func TestRacingLineMissingChannel(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/racing-line?year=2024&round=1&driver=HAM&channel=Gear")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Gear data not available in telemetry. Available columns: Distance, X, Y, Speed" {
		t.Fatalf("error: %v", body["error"])
	}
	diags := decode(t, get(t, s, "/diagnostics"))
	if diags["count"] != float64(1) {
		t.Fatalf("expected one diagnostic, got %v", diags)
	}
}

func TestRacingLineSeveralChannels(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/racing-line?year=2024&round=1&driver=HAM&channel=Speed,Brake")
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	body := decode(t, rec)
	if len(body["views"].([]any)) != 1 || len(body["errors"].([]any)) != 1 {
		t.Fatalf("expected one view and one error: %v", body)
	}
	if rec := get(t, s, "/racing-line?year=2024&round=1&driver=HAM&channel=Speed,Brake&format=svg"); rec.Code != http.StatusBadRequest {
		t.Fatalf("several channels as svg should be 400, got %d", rec.Code)
	}
}

func TestRacingLineUnknownDriver(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := get(t, s, "/racing-line?year=2024&round=1&driver=ALO"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestComparison(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/comparison?year=2024&round=1&drivers=ver,ham")
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	traces := decode(t, rec)["traces"].([]any)
	if len(traces) != 2 || traces[0].(map[string]any)["label"] != "VER" {
		t.Fatalf("traces: %v", traces)
	}
	rec = get(t, s, "/comparison?year=2024&round=1&drivers=ver")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("one driver should be 400, got %d", rec.Code)
	}
	if msg := decode(t, rec)["error"]; msg != "Please enter at least 2 driver codes for comparison (comma-separated)" {
		t.Fatalf("message: %v", msg)
	}
}

func TestSectorDelta(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/sector-delta?year=2024&round=1&driver=VER")
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if len(body["deltas"].([]any)) != 2 {
		t.Fatalf("deltas: %v", body["deltas"])
	}
	best := body["best"].(map[string]any)
	if best["s2_lap"] != float64(2) || best["s1_lap"] != float64(1) {
		t.Fatalf("best: %v", best)
	}
	rec = get(t, s, "/sector-delta?year=2024&round=1&driver=VER&format=png")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("png: %d", rec.Code)
	}
}

func TestQualifyingVsRaceWithoutQualifying(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := get(t, s, "/qualifying-vs-race?year=2024&round=1&driver=VER"); rec.Code != http.StatusBadGateway {
		t.Fatalf("missing qualifying session should be 502, got %d", rec.Code)
	}
}

func TestClear(t *testing.T) {
	s, fc := newTestServer(t)
	get(t, s, "/racing-line?year=2024&round=1&driver=ALO")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target":"all"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: %d", rec.Code)
	}
	if fc.cleared != 1 || len(s.diags.List(0)) != 0 {
		t.Fatalf("clear did not reach cache and diagnostics")
	}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target":"bogus"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus target: %d", rec.Code)
	}
	if rec := get(t, s, "/admin/clear"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET clear: %d", rec.Code)
	}
}
