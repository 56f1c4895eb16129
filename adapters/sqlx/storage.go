package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"streakbot/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL storage configuration.
type Config struct {
	Driver          string        `json:"driver" env:"STREAKBOT_STORAGE_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"STREAKBOT_STORAGE_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"STREAKBOT_STORAGE_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"STREAKBOT_STORAGE_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"STREAKBOT_STORAGE_SQL_CONN_MAX_LIFETIME"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          string(driver),
		DSN:             "",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	handle TEXT NOT NULL DEFAULT '',
	total_score BIGINT NOT NULL DEFAULT 0,
	game_score BIGINT NOT NULL DEFAULT 0,
	current_streak INTEGER NOT NULL DEFAULT 0,
	longest_streak INTEGER NOT NULL DEFAULT 0,
	last_activity_date TIMESTAMP NULL,
	daily_reward_last_claimed TIMESTAMP NULL,
	pending_guess INTEGER NULL,
	updated TIMESTAMP NOT NULL
)`

// Store implements engine.Storage on a SQL database via sqlx. Updates run
// inside a transaction; on Postgres the row is locked with FOR UPDATE, on
// SQLite the single-writer model serializes them.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection, applies the schema, and returns the store.
func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := NewWithDB(db, Driver(cfg.Driver))
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// userRow maps the users table.
type userRow struct {
	ID                     string        `db:"id"`
	DisplayName            string        `db:"display_name"`
	Handle                 string        `db:"handle"`
	TotalScore             int64         `db:"total_score"`
	GameScore              int64         `db:"game_score"`
	CurrentStreak          int           `db:"current_streak"`
	LongestStreak          int           `db:"longest_streak"`
	LastActivityDate       sql.NullTime  `db:"last_activity_date"`
	DailyRewardLastClaimed sql.NullTime  `db:"daily_reward_last_claimed"`
	PendingGuess           sql.NullInt64 `db:"pending_guess"`
	Updated                time.Time     `db:"updated"`
}

func (r userRow) record() core.UserRecord {
	rec := core.UserRecord{
		ID:            core.UserID(r.ID),
		DisplayName:   r.DisplayName,
		Handle:        r.Handle,
		TotalScore:    r.TotalScore,
		GameScore:     r.GameScore,
		CurrentStreak: r.CurrentStreak,
		LongestStreak: r.LongestStreak,
		Updated:       r.Updated,
	}
	if r.LastActivityDate.Valid {
		t := r.LastActivityDate.Time
		rec.LastActivityDate = &t
	}
	if r.DailyRewardLastClaimed.Valid {
		t := r.DailyRewardLastClaimed.Time
		rec.DailyRewardLastClaimed = &t
	}
	if r.PendingGuess.Valid {
		g := int(r.PendingGuess.Int64)
		rec.PendingGuess = &g
	}
	return rec
}

func rowOf(rec core.UserRecord) userRow {
	r := userRow{
		ID:            string(rec.ID),
		DisplayName:   rec.DisplayName,
		Handle:        rec.Handle,
		TotalScore:    rec.TotalScore,
		GameScore:     rec.GameScore,
		CurrentStreak: rec.CurrentStreak,
		LongestStreak: rec.LongestStreak,
		Updated:       rec.Updated,
	}
	if rec.LastActivityDate != nil {
		r.LastActivityDate = sql.NullTime{Time: *rec.LastActivityDate, Valid: true}
	}
	if rec.DailyRewardLastClaimed != nil {
		r.DailyRewardLastClaimed = sql.NullTime{Time: *rec.DailyRewardLastClaimed, Valid: true}
	}
	if rec.PendingGuess != nil {
		r.PendingGuess = sql.NullInt64{Int64: int64(*rec.PendingGuess), Valid: true}
	}
	return r
}

const selectColumns = `id, display_name, handle, total_score, game_score,
	current_streak, longest_streak, last_activity_date,
	daily_reward_last_claimed, pending_guess, updated`

func (s *Store) Find(ctx context.Context, id core.UserID) (core.UserRecord, error) {
	var row userRow
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM users WHERE id = ?`)
	err := s.db.GetContext(ctx, &row, query, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserRecord{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return row.record(), nil
}

func (s *Store) Ensure(ctx context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error) {
	out, err := s.ensureTx(ctx, id, displayName, handle)
	if isUniqueViolation(err) {
		// Lost a create race: FOR UPDATE locks nothing on a missing row, so
		// two concurrent inserts can collide. The row exists now; re-read it.
		return s.ensureTx(ctx, id, displayName, handle)
	}
	return out, err
}

func (s *Store) ensureTx(ctx context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error) {
	var out core.UserRecord
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.getForUpdate(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			rec := core.UserRecord{
				ID:          id,
				DisplayName: displayName,
				Handle:      handle,
				Updated:     time.Now().UTC(),
			}
			if err := s.insert(ctx, tx, rec); err != nil {
				return err
			}
			out = rec
			return nil
		}
		if err != nil {
			return err
		}
		rec := row.record()
		if displayName != "" {
			rec.DisplayName = displayName
		}
		if handle != "" {
			rec.Handle = handle
		}
		if err := s.save(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return core.UserRecord{}, err
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id core.UserID, fn func(*core.UserRecord) error) (core.UserRecord, error) {
	var out core.UserRecord
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.getForUpdate(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		rec := row.record()
		if err := fn(&rec); err != nil {
			return err
		}
		if err := s.save(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return core.UserRecord{}, err
	}
	return out, nil
}

func (s *Store) Reset(ctx context.Context, id core.UserID) (bool, error) {
	query := s.db.Rebind(`UPDATE users SET total_score = 0, game_score = 0,
		current_streak = 0, longest_streak = 0, last_activity_date = NULL,
		daily_reward_last_claimed = NULL, pending_guess = NULL, updated = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), string(id))
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TopN(ctx context.Context, n int) ([]core.UserRecord, error) {
	var rows []userRow
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM users
		ORDER BY total_score DESC, longest_streak DESC, current_streak DESC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, n); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	out := make([]core.UserRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// isUniqueViolation reports whether err is a duplicate-key error from either
// supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) getForUpdate(ctx context.Context, tx *sqlx.Tx, id core.UserID) (userRow, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = ?`
	if s.driver == DriverPostgres {
		query += ` FOR UPDATE`
	}
	var row userRow
	err := tx.GetContext(ctx, &row, tx.Rebind(query), string(id))
	return row, err
}

func (s *Store) insert(ctx context.Context, tx *sqlx.Tx, rec core.UserRecord) error {
	row := rowOf(rec)
	query := tx.Rebind(`INSERT INTO users (id, display_name, handle, total_score,
		game_score, current_streak, longest_streak, last_activity_date,
		daily_reward_last_claimed, pending_guess, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := tx.ExecContext(ctx, query,
		row.ID, row.DisplayName, row.Handle, row.TotalScore, row.GameScore,
		row.CurrentStreak, row.LongestStreak, row.LastActivityDate,
		row.DailyRewardLastClaimed, row.PendingGuess, row.Updated)
	return err
}

func (s *Store) save(ctx context.Context, tx *sqlx.Tx, rec core.UserRecord) error {
	row := rowOf(rec)
	query := tx.Rebind(`UPDATE users SET display_name = ?, handle = ?,
		total_score = ?, game_score = ?, current_streak = ?, longest_streak = ?,
		last_activity_date = ?, daily_reward_last_claimed = ?, pending_guess = ?,
		updated = ? WHERE id = ?`)
	_, err := tx.ExecContext(ctx, query,
		row.DisplayName, row.Handle, row.TotalScore, row.GameScore,
		row.CurrentStreak, row.LongestStreak, row.LastActivityDate,
		row.DailyRewardLastClaimed, row.PendingGuess, row.Updated, row.ID)
	return err
}
