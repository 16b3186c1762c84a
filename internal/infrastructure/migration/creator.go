package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MigrationFile describes a generated up/down pair.
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down migration pair named
// <timestamp>_<name>.{up,down}.sql under migrationsDir.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now()
	version := now.Format("20060102150405") // sortable
	base := fmt.Sprintf("%s_%s", version, sanitizeName(name))

	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		UpPath:      filepath.Join(migrationsDir, base+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, base+".down.sql"),
	}

	header := func(suffix string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "-- Migration: %s%s\n", name, suffix)
		fmt.Fprintf(&b, "-- Created: %s\n", now.Format(time.RFC3339))
		if description != "" {
			fmt.Fprintf(&b, "-- Description: %s\n", description)
		}
		b.WriteString("\n")
		return b.String()
	}

	if err := os.WriteFile(mf.UpPath, []byte(header("")), 0644); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(mf.DownPath, []byte(header(" (rollback)")), 0644); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

// sanitizeName lowercases the name and collapses separators to single
// underscores so the pair sorts and reads cleanly.
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := true // suppress leading underscore
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '-' || r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ListMigrations returns the base names of every up migration in the
// directory, sorted ascending. A missing directory is an empty list.
func ListMigrations(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			migrations = append(migrations, base)
		}
	}
	sort.Strings(migrations)
	return migrations, nil
}
