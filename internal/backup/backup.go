// Package backup writes point-in-time copies of the Resonance SQLite database
// and prunes old copies.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	filePrefix = "resonance-"
	fileSuffix = ".db"
	timeLayout = "20060102T150405Z"
)

// Info describes one backup file.
type Info struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Verified  bool      `json:"verified"`
}

// Snapshot writes a consistent copy of db into dir using VACUUM INTO, which
// handles WAL mode. The file is named after now. When verify is set the copy
// is checked with PRAGMA integrity_check.
func Snapshot(ctx context.Context, db *sql.DB, dir string, now time.Time, verify bool) (Info, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Info{}, fmt.Errorf("backup: failed to create %s: %w", dir, err)
	}

	ts := now.UTC().Truncate(time.Second)
	path := filepath.Join(dir, filePrefix+ts.Format(timeLayout)+fileSuffix)
	if _, err := os.Stat(path); err == nil {
		return Info{}, fmt.Errorf("backup: %s already exists", path)
	}

	quoted := strings.ReplaceAll(path, "'", "''")
	if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return Info{}, fmt.Errorf("backup: failed to write snapshot: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("backup: failed to stat snapshot: %w", err)
	}
	info := Info{Path: path, Timestamp: ts, Size: st.Size()}

	if verify {
		if err := Verify(ctx, path); err != nil {
			return info, err
		}
		info.Verified = true
	}
	return info, nil
}

// Verify runs SQLite's integrity check against a backup file.
func Verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("backup: failed to open %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("backup: integrity check on %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("backup: integrity check failed for %s: %s", path, result)
	}
	return nil
}

// List returns the backups in dir, newest first. Files that do not follow
// the snapshot naming scheme are ignored. A missing dir yields no backups.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read %s: %w", dir, err)
	}

	var backups []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ts, err := time.Parse(timeLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		st, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{Path: filepath.Join(dir, name), Timestamp: ts, Size: st.Size()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Prune keeps the newest keep backups in dir and removes the rest. It returns
// the removed paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("backup: keep must be at least 1, got %d", keep)
	}
	backups, err := List(dir)
	if err != nil || len(backups) <= keep {
		return nil, err
	}

	var removed []string
	var lastErr error
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			lastErr = err
			continue
		}
		removed = append(removed, b.Path)
	}
	if lastErr != nil {
		return removed, fmt.Errorf("backup: failed to remove some backups: %w", lastErr)
	}
	return removed, nil
}
