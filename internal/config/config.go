// Package config provides configuration file and environment variable
// support for fixdesk.
//
// Configuration priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables (FIXDESK_*)
//  3. Config file (~/.fixdesk/config.toml)
//  4. Built-in defaults
//
// The loaded Config is constructed once at process start and passed by
// reference into the store, server, and mailer constructors. Core logic
// never reads the environment directly.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// SMTP holds the email notifier settings.
type SMTP struct {
	// Host is the SMTP server hostname.
	Host string `toml:"host"`

	// Port is the SMTP server port. 587 implies STARTTLS by default.
	Port int `toml:"port"`

	// User and Password authenticate against the SMTP server.
	User     string `toml:"user"`
	Password string `toml:"password"`

	// From is the sender address, optionally with a display name
	// ("Fixdesk <repairs@example.com>").
	From string `toml:"from"`

	// StartTLS selects STARTTLS when true and implicit TLS when false.
	StartTLS bool `toml:"starttls"`

	// TimeoutSeconds bounds each delivery attempt.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// Disabled switches the mailer to preview mode: status emails are
	// logged instead of sent, and sends report success.
	Disabled bool `toml:"disabled"`
}

// Missing returns the names of required SMTP settings that are unset.
// An empty result means the mailer is fully configured.
func (s SMTP) Missing() []string {
	var missing []string
	if s.Host == "" {
		missing = append(missing, "smtp.host")
	}
	if s.Port == 0 {
		missing = append(missing, "smtp.port")
	}
	if s.User == "" {
		missing = append(missing, "smtp.user")
	}
	if s.Password == "" {
		missing = append(missing, "smtp.password")
	}
	if s.From == "" {
		missing = append(missing, "smtp.from")
	}
	return missing
}

// Config represents the fixdesk configuration.
type Config struct {
	// DataDir is the directory holding the database and attachment
	// files. Default: ~/.fixdesk
	DataDir string `toml:"data_dir"`

	// DB is the path to the database file.
	// Default: <data_dir>/fixdesk.db
	DB string `toml:"db"`

	// TechnicianPassword gates the technician queue in the web UI.
	TechnicianPassword string `toml:"technician_password"`

	// SessionSecret signs web UI session cookies. Generated by
	// `fixdesk init` when absent.
	SessionSecret string `toml:"session_secret"`

	// BaseURL is the public URL of the status page, included in
	// notification emails when set.
	BaseURL string `toml:"base_url"`

	// Host and Port configure the web server bind address.
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// BackupKeep is how many database backups to retain.
	// Default: 5
	BackupKeep int `toml:"backup_keep"`

	SMTP SMTP `toml:"smtp"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:       "localhost",
		Port:       8470,
		BackupKeep: 5,
		SMTP: SMTP{
			Port:           587,
			StartTLS:       true,
			TimeoutSeconds: 20,
		},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fixdesk", "config.toml")
}

// Load loads configuration from the default config file location and
// environment variables.
func Load() (*Config, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath loads configuration from a specific file path.
// Environment variables take precedence over file settings. Returns the
// defaults if the config file doesn't exist.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, cfg); err != nil {
				return nil, err
			}
		}
		// Missing file is fine; continue with defaults.
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies environment variable overrides to the config.
func (c *Config) applyEnv() {
	setString(&c.DataDir, "FIXDESK_DATA_DIR")
	setString(&c.DB, "FIXDESK_DB")
	setString(&c.TechnicianPassword, "FIXDESK_TECHNICIAN_PASSWORD")
	setString(&c.SessionSecret, "FIXDESK_SESSION_SECRET")
	setString(&c.BaseURL, "FIXDESK_BASE_URL")
	setString(&c.Host, "FIXDESK_HOST")
	setInt(&c.Port, "FIXDESK_PORT")
	setInt(&c.BackupKeep, "FIXDESK_BACKUP_KEEP")

	setString(&c.SMTP.Host, "FIXDESK_SMTP_HOST")
	setInt(&c.SMTP.Port, "FIXDESK_SMTP_PORT")
	setString(&c.SMTP.User, "FIXDESK_SMTP_USER")
	setString(&c.SMTP.Password, "FIXDESK_SMTP_PASSWORD")
	setString(&c.SMTP.From, "FIXDESK_SMTP_FROM")
	setInt(&c.SMTP.TimeoutSeconds, "FIXDESK_SMTP_TIMEOUT_SECONDS")
	setBool(&c.SMTP.StartTLS, "FIXDESK_SMTP_STARTTLS")
	setBool(&c.SMTP.Disabled, "FIXDESK_SMTP_DISABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}

// GetDataDir returns the data directory, using the default if not set.
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fixdesk"
	}
	return filepath.Join(home, ".fixdesk")
}

// GetDB returns the database path, using <data_dir>/fixdesk.db if not set.
func (c *Config) GetDB() string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(c.GetDataDir(), "fixdesk.db")
}

// AttachmentsRoot returns the directory that holds per-ticket
// attachment files.
func (c *Config) AttachmentsRoot() string {
	return filepath.Join(c.GetDataDir(), "tickets")
}

// SampleConfig returns a sample configuration file content.
func SampleConfig() string {
	return `# Fixdesk Configuration File
# Location: ~/.fixdesk/config.toml
#
# Configuration priority (highest to lowest):
#   1. Command-line flags
#   2. Environment variables (FIXDESK_*)
#   3. This config file
#   4. Built-in defaults

# Directory for the database and attachment files
# Default: ~/.fixdesk
# Environment: FIXDESK_DATA_DIR
# data_dir = "/var/lib/fixdesk"

# Path to the database file
# Default: <data_dir>/fixdesk.db
# Environment: FIXDESK_DB
# db = "/path/to/fixdesk.db"

# Password for the technician queue in the web UI
# Environment: FIXDESK_TECHNICIAN_PASSWORD
# technician_password = ""

# Secret used to sign web session cookies (set by fixdesk init)
# Environment: FIXDESK_SESSION_SECRET
# session_secret = ""

# Public URL of the status page, linked in notification emails
# Environment: FIXDESK_BASE_URL
# base_url = "https://repairs.example.com"

# Web server bind address
# Environment: FIXDESK_HOST, FIXDESK_PORT
# host = "localhost"
# port = 8470

# Number of database backups to retain
# Environment: FIXDESK_BACKUP_KEEP
# backup_keep = 5

# Email notification settings. Leave host/user/password empty to report
# "not configured"; set disabled = true to log previews instead of
# sending.
[smtp]
# host = "smtp.gmail.com"
port = 587
# user = ""
# password = ""
# from = "Fixdesk <repairs@example.com>"
starttls = true
timeout_seconds = 20
disabled = false
`
}

// WriteConfigFile writes the sample config file to the specified path.
// Creates parent directories if needed.
func WriteConfigFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(SampleConfig()), 0600)
}
