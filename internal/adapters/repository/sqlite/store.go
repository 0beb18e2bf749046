// Package sqlite provides a SQLite-backed implementation of the repository contracts.
package sqlite

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

	"github.com/okian/xpboard/internal/adapters/repository"
	"github.com/okian/xpboard/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/types"
	_ "modernc.org/sqlite"
)

// Store persists progress, starboard entries and settings in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection keeps writes ordered without SQLITE_BUSY retries.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) millis() int64 { return s.now().UTC().UnixMilli() }

// GetProgress returns one user's progress record.
func (s *Store) GetProgress(ctx context.Context, userID string) (model.UserProgress, error) {
	p := model.UserProgress{UserID: userID}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT xp, level, username FROM user_progress WHERE user_id = ?`, userID,
	).Scan(&p.XP, &p.Level, &p.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProgress{}, repository.ErrNotFound
	}
	if err != nil {
		return model.UserProgress{}, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// SaveProgress upserts one user's progress record.
func (s *Store) SaveProgress(ctx context.Context, p model.UserProgress) error {
	if p.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO user_progress (user_id, xp, level, username, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   xp = excluded.xp,
		   level = excluded.level,
		   username = excluded.username,
		   updated_at = excluded.updated_at`,
		p.UserID, p.XP, p.Level, p.Username, s.millis(),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Rank returns userID's position ordered by XP desc, then user id asc.
func (s *Store) Rank(ctx context.Context, userID string) (types.Entry, error) {
	p, err := s.GetProgress(ctx, userID)
	if err != nil {
		return types.Entry{}, err
	}
	var ahead int
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_progress WHERE xp > ? OR (xp = ? AND user_id < ?)`,
		p.XP, p.XP, p.UserID,
	).Scan(&ahead)
	if err != nil {
		return types.Entry{}, fmt.Errorf("rank: %w", err)
	}
	return types.Entry{Rank: ahead + 1, UserID: p.UserID, Username: p.Username, XP: p.XP, Level: p.Level}, nil
}

// TopN returns up to n entries in rank order.
func (s *Store) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, repository.ErrInvalidLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT user_id, username, xp, level FROM user_progress
		 ORDER BY xp DESC, user_id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top n: %w", err)
	}
	defer rows.Close()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		e := types.Entry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.Username, &e.XP, &e.Level); err != nil {
			return nil, fmt.Errorf("scan top n: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top n: %w", err)
	}
	return out, nil
}

// Count returns the number of tracked users, or 0 when the query fails.
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_progress`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// GetEntry returns the starboard entry for a source message.
func (s *Store) GetEntry(ctx context.Context, sourceMessageID string) (model.StarboardEntry, error) {
	e := model.StarboardEntry{SourceMessageID: sourceMessageID}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT promoted_message_id, stars, author_id, channel_id
		 FROM starboard_entries WHERE source_message_id = ?`, sourceMessageID,
	).Scan(&e.PromotedMessageID, &e.StarCount, &e.AuthorID, &e.SourceChannelID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StarboardEntry{}, repository.ErrNotFound
	}
	if err != nil {
		return model.StarboardEntry{}, fmt.Errorf("get starboard entry: %w", err)
	}
	return e, nil
}

// InsertEntry stores e unless its source message already has an entry.
func (s *Store) InsertEntry(ctx context.Context, e model.StarboardEntry) (model.StarboardEntry, error) {
	now := s.millis()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO starboard_entries
		   (source_message_id, promoted_message_id, stars, author_id, channel_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_message_id) DO NOTHING`,
		e.SourceMessageID, e.PromotedMessageID, e.StarCount, e.AuthorID, e.SourceChannelID, now, now,
	)
	if err != nil {
		return model.StarboardEntry{}, fmt.Errorf("insert starboard entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.StarboardEntry{}, fmt.Errorf("insert starboard entry: %w", err)
	}
	if affected == 0 {
		existing, err := s.GetEntry(ctx, e.SourceMessageID)
		if err != nil {
			return model.StarboardEntry{}, err
		}
		return existing, repository.ErrAlreadyExists
	}
	return e, nil
}

// UpdateStarCount sets the star count of an existing entry.
func (s *Store) UpdateStarCount(ctx context.Context, sourceMessageID string, stars int) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE starboard_entries SET stars = ?, updated_at = ? WHERE source_message_id = ?`,
		stars, s.millis(), sourceMessageID,
	)
	if err != nil {
		return fmt.Errorf("update star count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update star count: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// LoadSettings decodes the configuration record.
func (s *Store) LoadSettings(ctx context.Context) (model.Settings, error) {
	var body string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM settings WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	var settings model.Settings
	if err := json.Unmarshal([]byte(body), &settings); err != nil {
		return model.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings.Clone(), nil
}

// SaveSettings replaces the configuration record.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings) error {
	body, err := json.Marshal(settings.Clone())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (id, body, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(body), s.millis(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
