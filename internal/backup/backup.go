// Package backup creates rotating copies of the fixdesk database.
//
// A backup runs automatically before CLI commands that write to the
// database, at most once per day. Copies live next to the database as
// fixdesk.db.bak.1, fixdesk.db.bak.2, and so on, with 1 the newest.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// Prefix names the rotating backup files.
	Prefix = "fixdesk.db.bak."

	// minInterval is the minimum age of the newest backup before a new
	// one is taken.
	minInterval = 24 * time.Hour
)

// Manager copies the database file and rotates old copies.
type Manager struct {
	dbPath string
	dir    string
	keep   int
}

// NewManager creates a backup manager for the database at dbPath,
// retaining keep copies in the database's directory.
func NewManager(dbPath string, keep int) *Manager {
	if keep <= 0 {
		keep = 5
	}
	return &Manager{dbPath: dbPath, dir: filepath.Dir(dbPath), keep: keep}
}

// Dir returns the directory where backups are stored.
func (m *Manager) Dir() string {
	return m.dir
}

// BackupIfNeeded creates a backup when the newest existing one is older
// than a day. Returns the new backup path, or "" when nothing was done.
// A missing database is not an error; there is simply nothing to copy.
func (m *Manager) BackupIfNeeded() (string, error) {
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return "", nil
	}

	existing, err := m.List()
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		info, err := os.Stat(existing[0])
		if err != nil {
			return "", fmt.Errorf("stat newest backup: %w", err)
		}
		if time.Since(info.ModTime()) < minInterval {
			return "", nil
		}
	}

	return m.Backup()
}

// Backup unconditionally creates a new backup, rotating the existing
// ones and dropping any beyond the retention count.
func (m *Manager) Backup() (string, error) {
	if err := m.rotate(); err != nil {
		return "", fmt.Errorf("rotate backups: %w", err)
	}

	dst := filepath.Join(m.dir, Prefix+"1")
	if err := copyFile(m.dbPath, dst); err != nil {
		return "", fmt.Errorf("copy database: %w", err)
	}
	return dst, nil
}

// List returns existing backup paths, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	type numbered struct {
		path string
		n    int
	}
	var found []numbered
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), Prefix))
		if err != nil {
			continue
		}
		found = append(found, numbered{path: filepath.Join(m.dir, entry.Name()), n: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// rotate shifts bak.N to bak.N+1 oldest-first and removes copies past
// the retention count.
func (m *Manager) rotate() error {
	existing, err := m.List()
	if err != nil {
		return err
	}

	for i := len(existing) - 1; i >= 0; i-- {
		path := existing[i]
		n, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), Prefix))
		if n+1 > m.keep {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old backup %s: %w", path, err)
			}
			continue
		}
		next := filepath.Join(m.dir, fmt.Sprintf("%s%d", Prefix, n+1))
		if err := os.Rename(path, next); err != nil {
			return fmt.Errorf("rename backup %s: %w", path, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
