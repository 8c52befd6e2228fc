// Package history records which libraries were opened and by which launch,
// so `refkeep recent` can list them.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rbright/refkeep/internal/logging"
)

// Source says whether a library came from the primary's own argv or a
// forwarded launch.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// DefaultFileName is the database name under the state directory.
const DefaultFileName = "history.db"

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one library open.
type Entry struct {
	ID         uuid.UUID
	InstanceID string
	Path       string
	Source     Source
	OpenedAt   time.Time
}

// Visit aggregates the opens of one path.
type Visit struct {
	Path     string
	LastOpen time.Time
	Opens    int
}

// Store is a sqlite-backed launch history.
type Store struct {
	db *sql.DB
}

// ResolvePath returns configured or $XDG_STATE_HOME/refkeep/history.db.
func ResolvePath(configured string) (string, error) {
	configured = strings.TrimSpace(configured)
	if configured != "" {
		return configured, nil
	}
	dir, err := logging.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// Open creates the database file if needed and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod history path: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// dataSourceName builds a file: URI for an absolute path. The path is
// escaped so '?', '#' and '%' in file names are not read as URI syntax.
func dataSourceName(path string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(path),
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
	}
	return u.String()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one open. A zero ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	entry.Path = strings.TrimSpace(entry.Path)
	if entry.Path == "" {
		return fmt.Errorf("record history: empty path")
	}
	switch entry.Source {
	case SourceLocal, SourceRemote:
	default:
		return fmt.Errorf("record history: invalid source %q", entry.Source)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OpenedAt.IsZero() {
		entry.OpenedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO launches(launch_id, instance_id, path, source, opened_at)
VALUES (?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.InstanceID, entry.Path, string(entry.Source), ts(entry.OpenedAt),
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns distinct paths, most recently opened first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Visit, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT path, MAX(opened_at) AS last_open, COUNT(*) AS opens
FROM launches
GROUP BY path
ORDER BY last_open DESC, path ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var (
			v        Visit
			lastOpen string
		)
		if err := rows.Scan(&v.Path, &lastOpen, &v.Opens); err != nil {
			return nil, fmt.Errorf("scan recent history: %w", err)
		}
		v.LastOpen, err = parseTS(lastOpen)
		if err != nil {
			return nil, fmt.Errorf("parse opened_at %q: %w", lastOpen, err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent history: %w", err)
	}
	return visits, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
