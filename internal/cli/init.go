package cli

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/internal/db"
)

var (
	initForce        bool
	initTechPassword string
)

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing database")
	initCmd.Flags().StringVar(&initTechPassword, "tech-password", "", "Technician password (prompted when omitted)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize fixdesk for first-time use",
	Long: `Initialize fixdesk by creating the data directory, database, and
configuration file.

This command:
- Creates ~/.fixdesk/ if it doesn't exist
- Creates fixdesk.db and runs any pending migrations
- Writes config.toml with a generated session secret and the
  technician password for the web UI
- Writes config.toml.sample documenting every setting

Use --force to overwrite an existing database.`,
	RunE: runInit,
}

type initResult struct {
	Database string `json:"database"`
	Config   string `json:"config,omitempty"`
	Created  bool   `json:"created"`
	Schema   int64  `json:"schema_version"`
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetDBPath()

	if db.Exists(path) && !initForce {
		return fmt.Errorf("database already exists at %s (use --force to overwrite)", db.ExpandPath(path))
	}
	if initForce && db.Exists(path) {
		VerboseOutput("Removing existing database...\n")
		if err := os.Remove(db.ExpandPath(path)); err != nil {
			return fmt.Errorf("failed to remove existing database: %w", err)
		}
	}

	VerboseOutput("Creating database...\n")
	database, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer database.Close()

	VerboseOutput("Running migrations...\n")
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := database.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	configPath, err := writeInitialConfig()
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(initResult{
			Database: database.Path(),
			Config:   configPath,
			Created:  true,
			Schema:   version,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Initialized fixdesk database at %s", database.Path())
	OutputLine("Schema version: %d", version)
	if configPath != "" {
		OutputLine("Wrote configuration to %s", configPath)
	}
	return nil
}

// writeInitialConfig creates config.toml with a fresh session secret
// and the technician password. An existing config file is left alone.
func writeInitialConfig() (string, error) {
	path := config.DefaultConfigPath()
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err == nil {
		VerboseOutput("Keeping existing config at %s\n", path)
		return "", nil
	}

	password := initTechPassword
	if password == "" {
		var err error
		password, err = promptPassword("Technician password for the web UI (empty disables login): ")
		if err != nil {
			return "", err
		}
	}

	cfg := globalConfig
	cfg.TechnicianPassword = password
	cfg.SessionSecret = newSessionSecret()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}

	// The commented sample documents settings the encoder leaves bare.
	if err := config.WriteConfigFile(path + ".sample"); err != nil {
		VerboseOutput("Warning: could not write sample config: %v\n", err)
	}

	return path, nil
}

// promptPassword reads a password without echo when stdin is a
// terminal, falling back to empty when it is not.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Print(prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func newSessionSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; an empty
		// secret makes serve refuse to start rather than run insecurely.
		return ""
	}
	return hex.EncodeToString(buf)
}
