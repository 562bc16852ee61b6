package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/tripflow/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements Cache using SQLite.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens or creates a SQLite-backed cache at dbPath.
func NewSQLite(dbPath string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers, busy timeout for writer contention.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	c := &SQLiteCache{db: db, now: time.Now}
	if err := c.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return c, nil
}

func (c *SQLiteCache) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS cache_entries (
		namespace  TEXT NOT NULL,
		session_id TEXT NOT NULL,
		value      BLOB NOT NULL,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at) WHERE expires_at IS NOT NULL;
	`
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (c *SQLiteCache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Set stores value under (namespace, sessionID), replacing any previous
// value. A ttl <= 0 stores the entry without expiry.
func (c *SQLiteCache) Set(ctx context.Context, namespace, sessionID string, value []byte, ttl time.Duration) error {
	now := c.now()
	var expiresAt any
	if ttl > 0 {
		expiresAt = now.Add(ttl).Unix()
	}

	query := `
	INSERT INTO cache_entries (namespace, session_id, value, expires_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(namespace, session_id) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at`

	if err := c.execWithRetry(ctx, query, namespace, sessionID, value, expiresAt, now.Unix()); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Get returns the stored value, or (nil, nil) when the entry does not
// exist. An entry past its expiry is deleted on read and reported absent.
func (c *SQLiteCache) Get(ctx context.Context, namespace, sessionID string) ([]byte, error) {
	query := `SELECT value, expires_at FROM cache_entries WHERE namespace = ? AND session_id = ?`
	row := c.db.QueryRowContext(ctx, query, namespace, sessionID)

	var value []byte
	var expiresAt sql.NullInt64
	err := row.Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}

	if expiresAt.Valid && c.now().Unix() > expiresAt.Int64 {
		if err := c.Delete(ctx, namespace, sessionID); err != nil {
			slog.Warn("failed to delete expired cache entry",
				"namespace", namespace,
				"session_id", sessionID,
				"error", err)
		}
		return nil, nil
	}

	return value, nil
}

// Delete removes one entry. Deleting a missing entry is not an error.
func (c *SQLiteCache) Delete(ctx context.Context, namespace, sessionID string) error {
	query := `DELETE FROM cache_entries WHERE namespace = ? AND session_id = ?`
	if err := c.execWithRetry(ctx, query, namespace, sessionID); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// ClearSession removes all entries for a session across namespaces.
func (c *SQLiteCache) ClearSession(ctx context.Context, sessionID string) error {
	query := `DELETE FROM cache_entries WHERE session_id = ?`
	if err := c.execWithRetry(ctx, query, sessionID); err != nil {
		return fmt.Errorf("clear session entries: %w", err)
	}
	return nil
}

// ClearExpired removes every entry past its expiry and returns the count.
func (c *SQLiteCache) ClearExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at < ?`
	result, err := c.db.ExecContext(ctx, query, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("clear expired entries: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// execWithRetry runs a write statement, retrying with exponential backoff
// while SQLite reports the database busy or locked.
func (c *SQLiteCache) execWithRetry(ctx context.Context, query string, args ...any) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = c.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
		slog.Debug("cache write hit busy database, retrying", "attempt", i+1, "delay", delay)
		time.Sleep(delay)
	}
	return err
}
