package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

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

func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "2024/schedule.json", `[{"round_number":1,"location":"Sakhir","event_name":"Bahrain Grand Prix"}]`)
	writeFile(t, root, "2024/1/R/laps.csv", "Driver,LapNumber,LapTime,Sector1Time,Sector2Time,Sector3Time\n"+
		"VER,1,91.5,30.0,28.0,33.5\n"+
		"VER,2,92.0,30.2,27.8,34.0\n"+
		"HAM,1,92.5,30.1,28.3,34.1\n")
	writeFile(t, root, "2024/1/R/telemetry/VER/1.csv", "Distance,X,Y,Speed,Brake\n0,0,0,200,1\n10,1,0,220,0\n20,2,1,250,0\n")
	writeFile(t, root, "2024/1/R/telemetry/HAM/1.csv", "Distance,X,Y,Speed\n0,5,5,190\n10,6,5,210\n")
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestYears(t *testing.T) {
	out, err := run(t, "years")
	if err != nil {
		t.Fatalf("years: %v", err)
	}
	if !strings.HasPrefix(out, "2018\n") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSchedule(t *testing.T) {
	out, err := run(t, "--data", fixture(t), "--no-cache", "schedule", "--year", "2024")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "Sakhir") || !strings.Contains(out, "Bahrain Grand Prix") {
		t.Fatalf("schedule table missing event: %s", out)
	}
}

func TestRacingLineWritesSVG(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "line.svg")
	out, err := run(t, "--data", fixture(t), "--no-cache", "racing-line", "-y", "2024", "-r", "Bahrain", "-d", "VER", "-c", "Speed", "-o", target)
	if err != nil {
		t.Fatalf("racing-line: %v", err)
	}
	if !strings.Contains(out, "Speed") {
		t.Fatalf("summary missing channel: %s", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read svg: %v", err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Fatalf("not an svg file")
	}
}

func TestRacingLineMissingChannelIsReported(t *testing.T) {
	out, err := run(t, "--data", fixture(t), "--no-cache", "racing-line", "-y", "2024", "-r", "1", "-d", "HAM", "-c", "Speed,Brake")
	if err != nil {
		t.Fatalf("racing-line: %v", err)
	}
	if !strings.Contains(out, "Brake data not available in telemetry") {
		t.Fatalf("missing brake note: %s", out)
	}
}

func TestCompareJSON(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cmp.json")
	_, err := run(t, "--data", fixture(t), "--no-cache", "compare", "-y", "2024", "-r", "1", "-d", "VER,HAM", "-o", target)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var fig struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &fig); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fig.Data) != 2 || fig.Data[0].Name != "VER" || fig.Data[1].Name != "HAM" {
		t.Fatalf("traces: %+v", fig.Data)
	}
}

func TestCompareNeedsTwoDrivers(t *testing.T) {
	_, err := run(t, "--data", fixture(t), "--no-cache", "compare", "-y", "2024", "-r", "1", "-d", "VER")
	if err == nil || !strings.Contains(errorMessage(err), "at least 2 driver codes") {
		t.Fatalf("expected too few drivers, got %v", err)
	}
}

func TestSectors(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sectors.png")
	out, err := run(t, "--data", fixture(t), "--no-cache", "sectors", "-y", "2024", "-r", "1", "-d", "VER", "-o", target)
	if err != nil {
		t.Fatalf("sectors: %v", err)
	}
	if !strings.Contains(out, "Theoretical best: 91.300s") {
		t.Fatalf("missing theoretical best: %s", out)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		t.Fatalf("png not written: %v", err)
	}
}

func TestMissingRequiredFlag(t *testing.T) {
	if _, err := run(t, "--data", fixture(t), "sectors", "-y", "2024", "-r", "1"); err == nil {
		t.Fatalf("expected missing driver flag error")
	}
}

func TestConfigFileOverrides(t *testing.T) {
	data := fixture(t)
	cfgPath := filepath.Join(t.TempDir(), "f1telemetry.yaml")
	writeFile(t, filepath.Dir(cfgPath), filepath.Base(cfgPath), "provider:\n  kind: dir\n  root: /does/not/exist\ncache:\n  enabled: false\n")
	out, err := run(t, "--config", cfgPath, "--data", data, "schedule", "--year", "2024")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "Sakhir") {
		t.Fatalf("--data should override the file root: %s", out)
	}
}

func TestEnvironmentFillsUnsetFlags(t *testing.T) {
	t.Setenv("F1TELEMETRY_DATA", fixture(t))
	t.Setenv("F1TELEMETRY_NO_CACHE", "true")
	out, err := run(t, "schedule", "--year", "2024")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "Sakhir") {
		t.Fatalf("F1TELEMETRY_DATA not applied: %s", out)
	}

	t.Setenv("F1TELEMETRY_NO_CACHE", "maybe")
	if _, err := run(t, "schedule", "--year", "2024"); err == nil || !strings.Contains(err.Error(), "F1TELEMETRY_NO_CACHE") {
		t.Fatalf("expected bad env value error, got %v", err)
	}
}

func TestOverridesSurviveReload(t *testing.T) {
	data := fixture(t)
	cfgPath := filepath.Join(t.TempDir(), "f1telemetry.yaml")
	writeFile(t, filepath.Dir(cfgPath), filepath.Base(cfgPath), "provider:\n  kind: dir\n  root: /does/not/exist\n")

	opts := &globalOptions{}
	cmd := &cobra.Command{Use: "f1telemetry"}
	opts.bind(cmd)
	if err := cmd.ParseFlags([]string{"--config", cfgPath, "--data", data, "--no-cache"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	mgr, err := opts.loadConfig(cmd)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if mgr.Path() == "" {
		t.Fatalf("config file should stay watched")
	}

	writeFile(t, filepath.Dir(cfgPath), filepath.Base(cfgPath), "log_level: warn\nprovider:\n  kind: dir\n  root: /still/missing\ncache:\n  enabled: true\n")
	cfg, err := mgr.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("file change not picked up: %+v", cfg)
	}
	if cfg.Provider.Root != data || cfg.Cache.Enabled {
		t.Fatalf("overrides lost on reload: %+v", cfg)
	}
}
