package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/htol/shelf/logger"
)

// Store drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Default store files, used when store.path is not set.
const (
	DefaultJSONPath   = "library.json"
	DefaultSQLitePath = "library.db"
)

type Config struct {
	Server   ServerConfig `toml:"server"`
	Store    StoreConfig  `toml:"store"`
	Import   ImportConfig `toml:"import"`
	LogLevel string       `toml:"log_level"`
}

type ServerConfig struct {
	Port         int    `toml:"port"`
	BaseURL      string `toml:"base_url"`
	ReadTimeout  int    `toml:"read_timeout"`  // seconds
	WriteTimeout int    `toml:"write_timeout"` // seconds
	IdleTimeout  int    `toml:"idle_timeout"`  // seconds
}

type StoreConfig struct {
	Path    string `toml:"path"`
	Driver  string `toml:"driver"`
	Backups int    `toml:"backups"`
	Watch   bool   `toml:"watch"`
}

// Location returns Path, or the default file for Driver when Path is empty.
func (s StoreConfig) Location() string {
	if s.Path != "" {
		return s.Path
	}
	if s.Driver == DriverSQLite {
		return DefaultSQLitePath
	}
	return DefaultJSONPath
}

type ImportConfig struct {
	Workers int `toml:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3001,
			ReadTimeout:  15,
			WriteTimeout: 15,
			IdleTimeout:  60,
		},
		Store: StoreConfig{
			Driver:  DriverJSON,
			Backups: 1,
			Watch:   true,
		},
		Import: ImportConfig{
			Workers: 4,
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, env files, an optional TOML file and
// environment variables, in that order of precedence (later wins).
// An empty path falls back to SHELF_CONFIG; a missing file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles(".env.local", ".env")

	cfg := Default()

	if path == "" {
		path = os.Getenv("SHELF_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// godotenv.Load never overrides variables that are already set.
func loadEnvFiles(names ...string) {
	for _, name := range names {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to load env file", "file", name, "error", err)
		}
	}
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.BaseURL = getEnv("BASE_URL", c.Server.BaseURL)
	c.Server.ReadTimeout = getEnvInt("READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.Backups = getEnvInt("STORE_BACKUPS", c.Store.Backups)
	c.Store.Watch = getEnvBool("STORE_WATCH", c.Store.Watch)
	c.Import.Workers = getEnvInt("IMPORT_WORKERS", c.Import.Workers)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Store.Driver {
	case DriverJSON, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: must be %q or %q", c.Store.Driver, DriverJSON, DriverSQLite))
	}
	if c.Store.Backups < 0 {
		errs = append(errs, fmt.Errorf("store.backups %d must not be negative", c.Store.Backups))
	}
	if c.Import.Workers < 1 {
		errs = append(errs, fmt.Errorf("import.workers %d must be positive", c.Import.Workers))
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q: must be debug, info, warn or error", c.LogLevel))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		logger.Warn("Ignoring non-integer environment value", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		logger.Warn("Ignoring non-boolean environment value", "key", key, "value", val)
	}
	return defaultVal
}
