package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "log_level: debug\nprovider:\n  kind: dir\n  root: /srv/f1\ncache:\n  enabled: true\n  dir: /var/cache/f1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Provider.Root != "/srv/f1" || cfg.Cache.Dir != "/var/cache/f1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Cache.Driver != "sqlite" || cfg.Cache.MemoryEntries != 256 || cfg.Render.Width != 1000 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"provider":{"kind":"http","base_url":"https://example.com/f1"},"api":{"enabled":false}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Kind != "http" || cfg.API.Enabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Provider.Timeout != 30*time.Second {
		t.Fatalf("timeout default: %s", cfg.Provider.Timeout)
	}
}

func TestLoadJSONTimeout(t *testing.T) {
	cases := []struct {
		timeout string
		want    time.Duration
	}{
		{`"45s"`, 45 * time.Second},
		{`"1m30s"`, 90 * time.Second},
		{`2000000000`, 2 * time.Second},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"provider":{"kind":"dir","root":"/srv/f1","timeout":` + tc.timeout + `}}`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", tc.timeout, err)
		}
		if cfg.Provider.Timeout != tc.want || cfg.Provider.Root != "/srv/f1" {
			t.Fatalf("%s: got %+v", tc.timeout, cfg.Provider)
		}
	}

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"provider":{"kind":"dir","root":"/srv/f1","timeout":"soon"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unparseable timeout")
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Provider.Timeout = 12 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"timeout": "12s"`) {
		t.Fatalf("timeout not written as a duration string:\n%s", raw)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Provider.Timeout != 12*time.Second {
		t.Fatalf("timeout: %s", loaded.Provider.Timeout)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"http without url":    func(c *Config) { c.Provider.Kind = "http" },
		"unknown kind":        func(c *Config) { c.Provider.Kind = "s3" },
		"postgres no dsn":     func(c *Config) { c.Cache.Driver = "postgres" },
		"kafka without topic": func(c *Config) { c.Sink.Kafka = KafkaConfig{Enabled: true, Brokers: []string{"b:9092"}} },
		"api without addr":    func(c *Config) { c.API.Addr = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestManagerUpdateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *m.Get()
	next.LogLevel = "warn"
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg, err := m.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	needs, err := m.NeedsReload()
	if err != nil || needs {
		t.Fatalf("needs reload: %v %v", needs, err)
	}
}

func TestStaticManager(t *testing.T) {
	m := NewStatic(nil)
	if m.Get().API.Addr != ":8081" {
		t.Fatalf("static defaults: %+v", m.Get())
	}
	if needs, _ := m.NeedsReload(); needs {
		t.Fatalf("static manager never reloads")
	}
	stop := make(chan struct{})
	close(stop)
	m.Watch(time.Millisecond, nil, nil, stop)
}
