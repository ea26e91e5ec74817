package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Values resolve in order file,
// environment, flags; later sources win.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Limits    LimitsConfig    `yaml:"limits"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address string `yaml:"address" env:"CHATSTORE_ADDR"`
	Port    int    `yaml:"port" env:"CHATSTORE_PORT"`
}

// StorageConfig holds the pebble store location.
type StorageConfig struct {
	DBPath string `yaml:"db_path" env:"CHATSTORE_DB_PATH"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" env:"CHATSTORE_LOG_LEVEL"`
}

// SweepConfig controls the chat lifecycle sweeps. ExpireAfter is the age at
// which an active chat gains the auto_expired marker; ArchiveAfter is the
// further age at which an auto-expired chat gains archived_at. RowsPerSec
// paces row updates during a sweep so a large scan cannot saturate the
// store.
type SweepConfig struct {
	Enabled      bool    `yaml:"enabled" env:"CHATSTORE_SWEEP_ENABLED"`
	Cron         string  `yaml:"cron" env:"CHATSTORE_SWEEP_CRON"`
	ExpireAfter  string  `yaml:"expire_after" env:"CHATSTORE_SWEEP_EXPIRE_AFTER"`
	ArchiveAfter string  `yaml:"archive_after" env:"CHATSTORE_SWEEP_ARCHIVE_AFTER"`
	RowsPerSec   float64 `yaml:"rows_per_sec" env:"CHATSTORE_SWEEP_ROWS_PER_SEC"`
}

// LimitsConfig holds validation limits applied before writes.
type LimitsConfig struct {
	MaxMessageChars int `yaml:"max_message_chars" env:"CHATSTORE_MAX_MESSAGE_CHARS"`
	MaxPageSize     int `yaml:"max_page_size" env:"CHATSTORE_MAX_PAGE_SIZE"`
}

// RateLimitConfig holds per-caller API rate limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"CHATSTORE_RATE_RPS"`
	Burst int     `yaml:"burst" env:"CHATSTORE_RATE_BURST"`
}

// Default returns the configuration used when no file or env overrides are
// present.
func Default() Config {
	var c Config
	c.Server.Address = "127.0.0.1"
	c.Server.Port = 8080
	c.Storage.DBPath = "./db"
	c.Logging.Level = "info"
	c.Sweep.Enabled = true
	c.Sweep.Cron = "0 3 * * *"
	c.Sweep.ExpireAfter = "720h"   // 30 days
	c.Sweep.ArchiveAfter = "1440h" // 60 days
	c.Sweep.RowsPerSec = 200
	c.Limits.MaxMessageChars = 1000
	c.Limits.MaxPageSize = 100
	c.RateLimit.RPS = 50
	c.RateLimit.Burst = 100
	return c
}

// Load reads the YAML file at path (if non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ExpireAfter parses the expiry threshold, falling back to 30 days.
func (c SweepConfig) ExpireAfterDuration() time.Duration {
	if d, err := time.ParseDuration(c.ExpireAfter); err == nil && d > 0 {
		return d
	}
	return 30 * 24 * time.Hour
}

// ArchiveAfterDuration parses the archive threshold, falling back to 60 days.
func (c SweepConfig) ArchiveAfterDuration() time.Duration {
	if d, err := time.ParseDuration(c.ArchiveAfter); err == nil && d > 0 {
		return d
	}
	return 60 * 24 * time.Hour
}

// ParseCommandFlags registers and parses the command-line flags shared by
// the server binary. It returns the values and a set of flags the user
// explicitly provided so callers can apply flag-wins precedence.
func ParseCommandFlags() (addr, dbPath, cfgPath string, set map[string]bool) {
	addrFlag := flag.String("addr", "", "listen address (host:port)")
	dbFlag := flag.String("db", "", "path to the store directory")
	cfgFlag := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set
}

// ResolveConfigPath picks the config path: explicit flag wins, then the
// CHATSTORE_CONFIG env var, then empty (defaults only).
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if p := os.Getenv("CHATSTORE_CONFIG"); p != "" {
		return p
	}
	return flagVal
}
