// Package cli implements the fixdesk command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fixdesk/fixdesk/internal/backup"
	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/internal/db"
	"github.com/fixdesk/fixdesk/internal/extractor"
	"github.com/fixdesk/fixdesk/internal/notify"
	"github.com/fixdesk/fixdesk/internal/service"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	dbPath  string
	jsonOut bool
	quiet   bool
	verbose bool
)

// Global configuration (loaded once at startup)
var globalConfig *config.Config

// skipBackupCommands lists commands that should not trigger automatic
// backup: commands that don't touch the database, or that create it.
var skipBackupCommands = map[string]bool{
	"help":       true,
	"version":    true,
	"init":       true,
	"completion": true,
	"backup":     true,
}

var rootCmd = &cobra.Command{
	Use:   "fixdesk",
	Short: "Repair shop ticketing from intake to pickup",
	Long: `Fixdesk tracks repair tickets for a small repair shop.

Front desk staff check devices in, technicians work a triage queue, and
customers check repair status with the claim code from their receipt.

Use "fixdesk init" to set up the database and configuration.
Use "fixdesk serve" to start the web UI.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return runAutoBackup(cmd)
	},
}

func init() {
	var err error
	globalConfig, err = config.Load()
	if err != nil {
		// An invalid config file should not brick the CLI.
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		globalConfig = config.DefaultConfig()
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (default ~/.fixdesk/fixdesk.db)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("fixdesk %s (%s, %s)\n", Version, shortCommit(), shortDate()))

	rootCmd.AddCommand(versionCmd)
}

func shortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func shortDate() string {
	if len(BuildDate) >= 10 {
		return BuildDate[:10]
	}
	return BuildDate
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// runAutoBackup creates a daily database backup before commands that
// may write. A failed backup warns but never blocks the command.
func runAutoBackup(cmd *cobra.Command) error {
	if skipBackupCommands[cmd.Name()] {
		return nil
	}
	if globalConfig == nil {
		return nil
	}

	path := db.ExpandPath(GetDBPath())
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	mgr := backup.NewManager(path, globalConfig.BackupKeep)
	backupPath, err := mgr.BackupIfNeeded()
	if err != nil {
		ErrorOutput("Warning: automatic backup failed: %v\n", err)
		return nil
	}
	if backupPath != "" {
		VerboseOutput("Created backup: %s\n", backupPath)
	}
	return nil
}

// GetDBPath returns the database path from flags, config, or default.
// Priority: flag > env > config file > default
func GetDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if globalConfig != nil {
		return globalConfig.GetDB()
	}
	return db.DefaultDBPath
}

// openServices opens the database and wires the repo, mailer, and
// service. The caller must Close the returned DB.
func openServices() (*db.DB, *db.TicketRepo, *service.TicketService, error) {
	database, err := db.Open(GetDBPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := db.NewTicketRepo(database, extractor.New(extractor.DefaultVocabulary()), globalConfig.AttachmentsRoot())
	mailer := notify.NewMailer(globalConfig.SMTP, nil)
	svc := service.NewTicketService(repo, mailer, globalConfig.BaseURL)
	return database, repo, svc, nil
}

// IsJSON returns whether JSON output is requested.
func IsJSON() bool {
	return jsonOut
}

// Output prints to stdout unless quiet mode is enabled.
func Output(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

// OutputLine prints a line to stdout unless quiet mode is enabled.
func OutputLine(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// VerboseOutput prints to stdout only in verbose mode.
func VerboseOutput(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Printf(format, args...)
	}
}

// ErrorOutput prints to stderr.
func ErrorOutput(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
