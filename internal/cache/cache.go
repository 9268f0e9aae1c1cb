// Package cache persists scanned packs in SQLite so unchanged packs are not
// scanned again.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaki95/pack-shuffler/internal/domain"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS packs (
	path        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	payload     TEXT NOT NULL,
	cached_at   TEXT NOT NULL
)`

// Cache is the pack cache. Entries are keyed by container path and are only
// returned while their fingerprint still matches.
type Cache struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &Cache{db: db, path: path}
	if err := retryOnBusy(context.Background(), func() error {
		_, err := db.Exec(schema)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Get returns the cached pack for path when its fingerprint matches.
func (c *Cache) Get(ctx context.Context, path, fingerprint string) (*domain.Pack, bool, error) {
	var stored, payload string
	err := retryOnBusy(ctx, func() error {
		return c.db.QueryRowContext(ctx,
			`SELECT fingerprint, payload FROM packs WHERE path = ?`, path,
		).Scan(&stored, &payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query pack %s: %w", path, err)
	}
	if stored != fingerprint {
		return nil, false, nil
	}

	var pack domain.Pack
	if err := json.Unmarshal([]byte(payload), &pack); err != nil {
		return nil, false, fmt.Errorf("decode pack %s: %w", path, err)
	}
	return &pack, true, nil
}

// Put stores pack under path, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, path, fingerprint string, pack *domain.Pack) error {
	payload, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("encode pack %s: %w", path, err)
	}
	return retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx,
			`INSERT INTO packs (path, fingerprint, payload, cached_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET
			   fingerprint = excluded.fingerprint,
			   payload = excluded.payload,
			   cached_at = excluded.cached_at`,
			path, fingerprint, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

// Remove deletes the entry for path.
func (c *Cache) Remove(ctx context.Context, path string) error {
	return retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx, `DELETE FROM packs WHERE path = ?`, path)
		return err
	})
}

// Prune deletes entries whose path is not in keep and returns how many were
// removed.
func (c *Cache) Prune(ctx context.Context, keep []string) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		keepSet[p] = struct{}{}
	}

	rows, err := c.db.QueryContext(ctx, `SELECT path FROM packs`)
	if err != nil {
		return 0, fmt.Errorf("list cached packs: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return 0, err
		}
		if _, ok := keepSet[p]; !ok {
			stale = append(stale, p)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	for _, p := range stale {
		if err := c.Remove(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
