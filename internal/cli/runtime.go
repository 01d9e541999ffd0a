package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"f1telemetry/internal/cache"
	"f1telemetry/internal/config"
	"f1telemetry/internal/logging"
	"f1telemetry/internal/provider"
	"f1telemetry/internal/service"
	"f1telemetry/internal/sink"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dataDir    string
	baseURL    string
	cacheDir   string
	noCache    bool
	logLevel   string
	logFormat  string
}

// runtime is the wired pipeline behind a command.
type runtime struct {
	cfg      *config.Manager
	logger   *slog.Logger
	cache    *cache.ReadThrough
	sink     sink.Publisher
	analyzer *service.Analyzer
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (yaml or json)")
	flags.StringVar(&o.dataDir, "data", "", "directory holding exported session data")
	flags.StringVar(&o.baseURL, "base-url", "", "base URL of a session data mirror")
	flags.StringVar(&o.cacheDir, "cache-dir", "", "directory of the persistent cache")
	flags.BoolVar(&o.noCache, "no-cache", false, "disable the response cache")
	flags.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&o.logFormat, "log-format", "", "json or text")
}

// envPrefix names the environment variables that stand in for unset global
// flags, e.g. F1TELEMETRY_CACHE_DIR for --cache-dir.
const envPrefix = "F1TELEMETRY"

// bindEnv sets every global flag left unset on the command line from its
// environment variable.
func bindEnv(cmd *cobra.Command) error {
	var errs []error
	cmd.Root().PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		key := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		val, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		if err := cmd.Flags().Set(f.Name, val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	})
	return errors.Join(errs...)
}

// overrides turns the global flags that were set into config adjustments.
func (o *globalOptions) overrides(flags *pflag.FlagSet) []func(*config.Config) {
	var out []func(*config.Config)
	if flags.Changed("data") {
		out = append(out, func(c *config.Config) {
			c.Provider.Kind = "dir"
			c.Provider.Root = o.dataDir
		})
	}
	if flags.Changed("base-url") {
		out = append(out, func(c *config.Config) {
			c.Provider.Kind = "http"
			c.Provider.BaseURL = o.baseURL
		})
	}
	if flags.Changed("cache-dir") {
		out = append(out, func(c *config.Config) { c.Cache.Dir = o.cacheDir })
	}
	if o.noCache {
		out = append(out, func(c *config.Config) { c.Cache.Enabled = false })
	}
	if o.logLevel != "" {
		out = append(out, func(c *config.Config) { c.LogLevel = o.logLevel })
	}
	if o.logFormat != "" {
		out = append(out, func(c *config.Config) { c.LogFormat = o.logFormat })
	}
	return out
}

// loadConfig reads the config file, if any, with flag overrides applied. A
// file-backed manager re-applies the overrides whenever the file reloads.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Manager, error) {
	if err := bindEnv(cmd); err != nil {
		return nil, err
	}
	adjust := o.overrides(cmd.Flags())
	if o.configPath != "" {
		m, err := config.NewManager(config.ResolvePath(o.configPath), adjust...)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return m, nil
	}
	cfg := config.DefaultConfig()
	for _, fn := range adjust {
		fn(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return config.NewStatic(cfg), nil
}

func (o *globalOptions) open(ctx context.Context, cmd *cobra.Command, logOut io.Writer) (*runtime, error) {
	mgr, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	logger := logging.NewLoggerTo(logOut, cfg.LogLevel, cfg.LogFormat)

	origin, err := newSource(cfg.Provider)
	if err != nil {
		return nil, err
	}
	rt, err := cache.Open(ctx, cfg.Cache, origin, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	pub := sink.Open(cfg.Sink.Kafka, logger)
	ds := provider.NewDataset(rt, logger)
	return &runtime{
		cfg:      mgr,
		logger:   logger,
		cache:    rt,
		sink:     pub,
		analyzer: service.NewAnalyzer(ds, cfg, nil, pub, logger),
	}, nil
}

func newSource(cfg config.ProviderConfig) (provider.Source, error) {
	switch cfg.Kind {
	case "http":
		src, err := provider.NewHTTPSource(cfg.BaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "dir", "":
		return provider.NewDirSource(cfg.Root), nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
}

func (r *runtime) Close() error {
	return errors.Join(r.sink.Close(), r.cache.Close())
}
