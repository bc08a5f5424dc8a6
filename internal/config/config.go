package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone given to calendars created without one.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DefaultCalendar is created on first start and put in use.
	DefaultCalendar string `yaml:"default_calendar" json:"default_calendar"`

	// AutoDecline rejects copied events that would conflict in the target.
	AutoDecline bool `yaml:"auto_decline" json:"auto_decline"`

	// DBPath is the SQLite file. Empty keeps everything in memory.
	DBPath string `yaml:"db_path" json:"db_path"`

	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogColor bool   `yaml:"log_color" json:"log_color"`

	// ExportDir is where relative export paths are resolved.
	ExportDir string `yaml:"export_dir" json:"export_dir"`

	// ReminderMinutes is how long before an event starts serve mode
	// announces it over the websocket. Zero disables reminders.
	ReminderMinutes int `yaml:"reminder_minutes" json:"reminder_minutes"`

	// BackupPassphrase enables the backup and restore commands.
	BackupPassphrase string `yaml:"backup_passphrase,omitempty" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:        "America/New_York",
		DefaultCalendar: "",
		AutoDecline:     false,
		DBPath:          "almanac.db",
		Listen:          "127.0.0.1:8080",
		LogLevel:        "info",
		LogColor:        true,
		ExportDir:       ".",
		ReminderMinutes: 10,
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.ExportDir == "" {
		c.ExportDir = "."
	}
	if c.ReminderMinutes < 0 {
		c.ReminderMinutes = 0
	}
}

// Load reads the YAML file at path, creating it with defaults when it does
// not exist. A .env file in the working directory and ALMANAC_* variables
// are applied on top.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ALMANAC_TIMEZONE":          &c.Timezone,
		"ALMANAC_DEFAULT_CALENDAR":  &c.DefaultCalendar,
		"ALMANAC_DB_PATH":           &c.DBPath,
		"ALMANAC_LISTEN":            &c.Listen,
		"ALMANAC_LOG_LEVEL":         &c.LogLevel,
		"ALMANAC_EXPORT_DIR":        &c.ExportDir,
		"ALMANAC_BACKUP_PASSPHRASE": &c.BackupPassphrase,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"ALMANAC_AUTO_DECLINE": &c.AutoDecline,
		"ALMANAC_LOG_COLOR":    &c.LogColor,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", key, v, err)
		}
		*dst = b
	}

	if v, ok := os.LookupEnv("ALMANAC_REMINDER_MINUTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ALMANAC_REMINDER_MINUTES=%q: %w", v, err)
		}
		c.ReminderMinutes = n
	}
	return nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".almanac-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
