package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	LogFormat   string            `json:"log_format" yaml:"log_format"`
	Provider    ProviderConfig    `json:"provider" yaml:"provider"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	API         APIConfig         `json:"api" yaml:"api"`
	Render      RenderConfig      `json:"render" yaml:"render"`
	Sink        SinkConfig        `json:"sink" yaml:"sink"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" yaml:"diagnostics"`
}

type ProviderConfig struct {
	Kind    string        `json:"kind" yaml:"kind"`
	Root    string        `json:"root" yaml:"root"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// UnmarshalJSON reads timeout as a duration string ("30s") or as an integer
// count of nanoseconds, matching what the YAML decoder accepts.
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type plain ProviderConfig
	aux := struct {
		*plain
		Timeout json.RawMessage `json:"timeout"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw := bytes.TrimSpace(aux.Timeout)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("provider.timeout: %w", err)
		}
		p.Timeout = d
		return nil
	}
	var nanos int64
	if err := json.Unmarshal(raw, &nanos); err != nil {
		return fmt.Errorf("provider.timeout: %w", err)
	}
	p.Timeout = time.Duration(nanos)
	return nil
}

// MarshalJSON writes timeout as a duration string.
func (p ProviderConfig) MarshalJSON() ([]byte, error) {
	type plain ProviderConfig
	return json.Marshal(struct {
		plain
		Timeout string `json:"timeout"`
	}{plain: plain(p), Timeout: p.Timeout.String()})
}

type CacheConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Dir           string `json:"dir" yaml:"dir"`
	Driver        string `json:"driver" yaml:"driver"`
	DSN           string `json:"dsn" yaml:"dsn"`
	MemoryEntries int    `json:"memory_entries" yaml:"memory_entries"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type RenderConfig struct {
	Width        int `json:"width" yaml:"width"`
	Height       int `json:"height" yaml:"height"`
	SectorWidth  int `json:"sector_width" yaml:"sector_width"`
	SectorHeight int `json:"sector_height" yaml:"sector_height"`
}

type SinkConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type DiagnosticsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Provider:  ProviderConfig{Kind: "dir", Root: "data", Timeout: 30 * time.Second},
		Cache: CacheConfig{
			Enabled:       true,
			Dir:           "cache",
			Driver:        "sqlite",
			MemoryEntries: 256,
		},
		API:         APIConfig{Enabled: true, Addr: ":8081"},
		Render:      RenderConfig{Width: 1000, Height: 800, SectorWidth: 1000, SectorHeight: 900},
		Sink:        SinkConfig{Kafka: KafkaConfig{Enabled: false}},
		Diagnostics: DiagnosticsConfig{StoreLimit: 1000},
	}
}

// Load reads a YAML or JSON config file. The format follows the first
// non-blank byte, so a .yaml file holding JSON still decodes.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// load decodes path over the defaults, applies overrides, then validates the
// result.
func load(path string, overrides []func(*Config)) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, fmt.Errorf("config %s is empty", path)
	}
	cfg := DefaultConfig()
	if err := decode(body, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	applyDefaults(cfg)
	for _, fn := range overrides {
		fn(cfg)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(body []byte, cfg *Config) error {
	switch body[0] {
	case '{', '[':
		return json.Unmarshal(body, cfg)
	default:
		return yaml.Unmarshal(body, cfg)
	}
}

// Save writes cfg as JSON when path ends in .json and as YAML otherwise.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("save config: no path")
	}
	if cfg == nil {
		return errors.New("save config: nil config")
	}
	marshal := yaml.Marshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}
	out, err := marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = "dir"
	}
	if cfg.Provider.Timeout <= 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "sqlite"
	}
	if cfg.Cache.MemoryEntries <= 0 {
		cfg.Cache.MemoryEntries = 256
	}
	if cfg.Render.Width <= 0 {
		cfg.Render.Width = 1000
	}
	if cfg.Render.Height <= 0 {
		cfg.Render.Height = 800
	}
	if cfg.Render.SectorWidth <= 0 {
		cfg.Render.SectorWidth = 1000
	}
	if cfg.Render.SectorHeight <= 0 {
		cfg.Render.SectorHeight = 900
	}
	if cfg.Diagnostics.StoreLimit <= 0 {
		cfg.Diagnostics.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	switch strings.ToLower(cfg.Provider.Kind) {
	case "dir":
		if cfg.Provider.Root == "" {
			return errors.New("provider.root required when provider.kind is dir")
		}
	case "http":
		if cfg.Provider.BaseURL == "" {
			return errors.New("provider.base_url required when provider.kind is http")
		}
	default:
		return fmt.Errorf("provider.kind must be dir or http, got %q", cfg.Provider.Kind)
	}
	if cfg.Cache.Enabled {
		switch strings.ToLower(cfg.Cache.Driver) {
		case "sqlite":
		case "postgres", "postgresql":
			if cfg.Cache.DSN == "" {
				return errors.New("cache.dsn required when cache.driver is postgres")
			}
		default:
			return fmt.Errorf("cache.driver must be sqlite or postgres, got %q", cfg.Cache.Driver)
		}
	}
	if cfg.Sink.Kafka.Enabled {
		if len(cfg.Sink.Kafka.Brokers) == 0 || cfg.Sink.Kafka.Topic == "" {
			return errors.New("sink.kafka requires brokers, topic")
		}
	}
	return nil
}

// snapshot pairs a config with the mtime of the file it came from.
type snapshot struct {
	cfg     *Config
	modTime time.Time
}

// Manager hands out the current config and swaps it atomically on reload.
// A Manager without a path never reloads.
type Manager struct {
	path      string
	overrides []func(*Config)
	cur       atomic.Pointer[snapshot]
}

// NewManager loads path. overrides run on every load, after the file and
// defaults and before validation, so command-line settings survive reloads.
func NewManager(path string, overrides ...func(*Config)) (*Manager, error) {
	m := &Manager{path: path, overrides: overrides}
	if _, err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewStatic wraps a config that is not backed by a file.
func NewStatic(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cur.Store(&snapshot{cfg: cfg})
	return m
}

func (m *Manager) Get() *Config {
	if s := m.cur.Load(); s != nil {
		return s.cfg
	}
	return DefaultConfig()
}

// Path is empty for static managers.
func (m *Manager) Path() string { return m.path }

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := load(m.path, m.overrides)
	if err != nil {
		return nil, err
	}
	m.store(cfg)
	return cfg, nil
}

// Update validates cfg, persists it when file backed, then publishes it.
// cfg is saved as given; overrides are not stripped.
func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("update config: nil config")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.store(cfg)
	return nil
}

// NeedsReload reports whether the file changed since the last load or save.
func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	st, err := os.Stat(m.path)
	if err != nil {
		return false, fmt.Errorf("stat config: %w", err)
	}
	var seen time.Time
	if s := m.cur.Load(); s != nil {
		seen = s.modTime
	}
	return st.ModTime().After(seen), nil
}

func (m *Manager) store(cfg *Config) {
	s := &snapshot{cfg: cfg}
	if m.path != "" {
		if st, err := os.Stat(m.path); err == nil {
			s.modTime = st.ModTime()
		}
	}
	m.cur.Store(s)
}

// ResolvePath makes a relative config path absolute against the working
// directory. It returns path untouched when that fails.
func ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
