package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle holding the client's session state: cookies
// per server host and the profile last logged in on each server.
type Store struct {
	db *sql.DB
}

// Profile is the login remembered for one server.
type Profile struct {
	BaseURL    string
	Username   string
	LoggedInAt time.Time
}

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "eventchat.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) (err error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cookies (
			host TEXT NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '/',
			value TEXT NOT NULL,
			expires_at DATETIME,
			secure INTEGER NOT NULL DEFAULT 0,
			http_only INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (host, name, path)
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			base_url TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			logged_in_at DATETIME NOT NULL
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveCookies upserts cookies for host. A cookie with MaxAge < 0 or an
// expiry in the past is deleted instead.
func (s *Store) SaveCookies(ctx context.Context, host string, cookies []*http.Cookie) (err error) {
	if len(cookies) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	now := time.Now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			if _, err = tx.ExecContext(ctx, `DELETE FROM cookies WHERE host=? AND name=? AND path=?`, host, c.Name, path); err != nil {
				return err
			}
			continue
		}
		var expires sql.NullTime
		switch {
		case c.MaxAge > 0:
			expires = sql.NullTime{Time: now.Add(time.Duration(c.MaxAge) * time.Second).UTC(), Valid: true}
		case !c.Expires.IsZero():
			expires = sql.NullTime{Time: c.Expires.UTC(), Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cookies(host, name, path, value, expires_at, secure, http_only, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(host, name, path) DO UPDATE SET
				value=excluded.value,
				expires_at=excluded.expires_at,
				secure=excluded.secure,
				http_only=excluded.http_only,
				updated_at=excluded.updated_at
		`, host, c.Name, path, c.Value, expires, c.Secure, c.HttpOnly); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadCookies returns the unexpired cookies stored for host.
func (s *Store) LoadCookies(ctx context.Context, host string) ([]*http.Cookie, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, path, value, expires_at, secure, http_only
		FROM cookies
		WHERE host = ?
		ORDER BY name ASC
	`, host)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var cookies []*http.Cookie
	for rows.Next() {
		var (
			c       http.Cookie
			expires sql.NullTime
		)
		if err := rows.Scan(&c.Name, &c.Path, &c.Value, &expires, &c.Secure, &c.HttpOnly); err != nil {
			return nil, err
		}
		if expires.Valid {
			if expires.Time.Before(now) {
				continue
			}
			c.Expires = expires.Time
		}
		cookies = append(cookies, &c)
	}
	return cookies, rows.Err()
}

// ClearCookies forgets every cookie of host (logout).
func (s *Store) ClearCookies(ctx context.Context, host string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ?`, host)
	return err
}

// SaveProfile records a successful login on baseURL.
func (s *Store) SaveProfile(ctx context.Context, baseURL, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles(base_url, username, logged_in_at) VALUES(?, ?, ?)
		ON CONFLICT(base_url) DO UPDATE SET username=excluded.username, logged_in_at=excluded.logged_in_at
	`, baseURL, username, time.Now().UTC())
	return err
}

// GetProfile returns the profile for baseURL, or nil when there is none.
func (s *Store) GetProfile(ctx context.Context, baseURL string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT base_url, username, logged_in_at FROM profiles WHERE base_url = ?`, baseURL)
	var profile Profile
	if err := row.Scan(&profile.BaseURL, &profile.Username, &profile.LoggedInAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// DeleteProfile removes the profile of baseURL.
func (s *Store) DeleteProfile(ctx context.Context, baseURL string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE base_url = ?`, baseURL)
	return err
}
