package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coinsight/crypto_screener/internal/domain"
)

// State keys mirror what the browser persists locally, so a dashboard
// restart behaves like a page reload.
const (
	keyScanResult   = "scan_result"
	keyLastScanTime = "last_scan_time"
	keyTheme        = "theme"
	keyUser         = "user"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS dashboard_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) set(ctx context.Context, key, value string) error {
	query := `INSERT INTO dashboard_state (key, value, updated_at)
			  VALUES (?, ?, ?)
			  ON CONFLICT(key) DO UPDATE SET
			  value=excluded.value,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM dashboard_state WHERE key = ?`, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_state WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// StateRepository implementation

func (s *SQLiteStore) SaveScanResult(ctx context.Context, res *domain.ScanResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := s.set(ctx, keyScanResult, string(payload)); err != nil {
		return err
	}
	return s.set(ctx, keyLastScanTime, res.FetchedAt.UTC().Format(time.RFC3339))
}

// LoadScanResult returns (nil, nil) when nothing is stored. A corrupt
// payload is cleared and treated as absent, never surfaced as an error.
func (s *SQLiteStore) LoadScanResult(ctx context.Context) (*domain.ScanResult, error) {
	raw, ok, err := s.get(ctx, keyScanResult)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var res domain.ScanResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		_ = s.delete(ctx, keyScanResult, keyLastScanTime)
		return nil, nil
	}
	if res.Data == nil {
		res.Data = []domain.Coin{}
	}

	if stamp, ok, err := s.get(ctx, keyLastScanTime); err == nil && ok {
		if t, perr := time.Parse(time.RFC3339, stamp); perr == nil {
			res.FetchedAt = t
		}
	}
	return &res, nil
}

func (s *SQLiteStore) ClearScanResult(ctx context.Context) error {
	return s.delete(ctx, keyScanResult, keyLastScanTime)
}

func (s *SQLiteStore) SaveTheme(ctx context.Context, theme string) error {
	return s.set(ctx, keyTheme, theme)
}

func (s *SQLiteStore) LoadTheme(ctx context.Context) (string, error) {
	theme, ok, err := s.get(ctx, keyTheme)
	if err != nil || !ok {
		return "", err
	}
	return theme, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, u *domain.User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.set(ctx, keyUser, string(payload))
}

func (s *SQLiteStore) LoadUser(ctx context.Context) (*domain.User, error) {
	raw, ok, err := s.get(ctx, keyUser)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		_ = s.delete(ctx, keyUser)
		return nil, nil
	}
	return &u, nil
}

func (s *SQLiteStore) ClearUser(ctx context.Context) error {
	return s.delete(ctx, keyUser)
}
