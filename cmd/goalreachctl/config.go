package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"goalreach/internal/search"
	"goalreach/internal/server"
	"goalreach/internal/storage"
)

var validate = validator.New()

type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Search SearchConfig `yaml:"search"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type StoreConfig struct {
	Kind       string `yaml:"kind" validate:"oneof=memory sqlite"`
	DBPath     string `yaml:"db_path" validate:"required"`
	RunsDir    string `yaml:"runs_dir" validate:"required"`
	ExportsDir string `yaml:"exports_dir" validate:"required"`
}

type SearchConfig struct {
	Depth        int           `yaml:"depth" validate:"gte=1,lte=8"`
	SquaresDepth int           `yaml:"squares_depth" validate:"gte=1,lte=8"`
	Workers      int           `yaml:"workers" validate:"gte=0"`
	SkipSquares  bool          `yaml:"skip_squares"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	DefaultTimeout time.Duration `yaml:"default_timeout" validate:"gt=0"`
	MaxTimeout     time.Duration `yaml:"max_timeout" validate:"gtefield=DefaultTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Kind:       storage.DefaultStoreKind(),
			DBPath:     "goalreach.db",
			RunsDir:    "runs",
			ExportsDir: "exports",
		},
		Search: SearchConfig{
			Depth:        search.DefaultDepth,
			SquaresDepth: search.DefaultSquaresDepth,
		},
		Server: ServerConfig{
			Addr:           server.DefaultAddr,
			DefaultTimeout: server.DefaultTimeout,
			MaxTimeout:     server.MaxTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", configKey(fe.Namespace()), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// configKey turns "Config.Search.SquaresDepth" into "search.squaresdepth".
func configKey(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}

// globalFlags are the persistent flags that override the config file.
type globalFlags struct {
	configPath string
	storeKind  string
	dbPath     string
	runsDir    string
	exportsDir string
	logLevel   string
	logFormat  string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "YAML config file")
	fs.StringVar(&g.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	fs.StringVar(&g.dbPath, "db-path", "goalreach.db", "sqlite database path")
	fs.StringVar(&g.runsDir, "runs-dir", "runs", "run artifacts directory")
	fs.StringVar(&g.exportsDir, "exports-dir", "exports", "default export directory")
	fs.StringVar(&g.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.StringVar(&g.logFormat, "log-format", "auto", "log format: auto|text|json")
}

func (g *globalFlags) apply(cfg *Config, fs *pflag.FlagSet) {
	if fs.Changed("store") {
		cfg.Store.Kind = g.storeKind
	}
	if fs.Changed("db-path") {
		cfg.Store.DBPath = g.dbPath
	}
	if fs.Changed("runs-dir") {
		cfg.Store.RunsDir = g.runsDir
	}
	if fs.Changed("exports-dir") {
		cfg.Store.ExportsDir = g.exportsDir
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
}
