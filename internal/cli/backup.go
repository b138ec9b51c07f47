package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fixdesk/fixdesk/internal/backup"
	"github.com/fixdesk/fixdesk/internal/db"
)

func init() {
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the database now",
	Long: `Create a database backup immediately, rotating older backups.

Backups live next to the database file and the oldest are deleted
beyond the configured retention count (backup_keep, default 5).`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	path := db.ExpandPath(GetDBPath())
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no database at %s (run 'fixdesk init' first)", path)
	}

	mgr := backup.NewManager(path, globalConfig.BackupKeep)
	backupPath, err := mgr.Backup()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(map[string]string{"backup": backupPath}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	OutputLine("Created backup: %s", backupPath)
	return nil
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing backups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

func runBackupList(cmd *cobra.Command, args []string) error {
	mgr := backup.NewManager(db.ExpandPath(GetDBPath()), globalConfig.BackupKeep)
	backups, err := mgr.List()
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(backups, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	if len(backups) == 0 {
		OutputLine("No backups found in %s", mgr.Dir())
		return nil
	}
	for _, b := range backups {
		info, err := os.Stat(b)
		if err != nil {
			OutputLine("%s", b)
			continue
		}
		OutputLine("%s  %s  %d bytes", b, info.ModTime().Format("2006-01-02 15:04"), info.Size())
	}
	return nil
}
