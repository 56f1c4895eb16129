package sqlx

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streakbot/core"
)

var userColumns = []string{
	"id", "display_name", "handle", "total_score", "game_score",
	"current_streak", "longest_streak", "last_activity_date",
	"daily_reward_last_claimed", "pending_guess", "updated",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(libsqlx.NewDb(db, "postgres"), DriverPostgres), mock
}

func TestFind(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id =`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "Alice", "alice", int64(40), int64(15), 3, 5, now, nil, nil, now))

	rec, err := store.Find(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("u1"), rec.ID)
	assert.Equal(t, int64(40), rec.TotalScore)
	assert.Equal(t, 5, rec.LongestStreak)
	require.NotNil(t, rec.LastActivityDate)
	assert.Nil(t, rec.PendingGuess)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id =`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Find(context.Background(), "ghost")
	require.ErrorIs(t, err, core.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCreates(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.Ensure(context.Background(), "u1", "Alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.DisplayName)
	assert.Zero(t, rec.TotalScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureRetriesAfterCreateRace(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	// First attempt: row missing, insert loses to a concurrent create.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	// Retry reads the row the winner inserted.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "Alice", "alice", int64(0), int64(0), 0, 0, nil, nil, nil, now))
	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.Ensure(context.Background(), "u1", "Alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("u1"), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureRefreshesExisting(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "Old Name", "old", int64(40), int64(0), 3, 5, nil, nil, nil, now))
	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.Ensure(context.Background(), "u1", "New Name", "")
	require.NoError(t, err)
	assert.Equal(t, "New Name", rec.DisplayName)
	assert.Equal(t, "old", rec.Handle)
	assert.Equal(t, int64(40), rec.TotalScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRunsMutatorInTx(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "", "", int64(0), int64(0), 0, 0, nil, nil, nil, now))
	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.Update(context.Background(), "u1", func(r *core.UserRecord) error {
		next, _, err := core.Advance(*r, now, 10)
		if err != nil {
			return err
		}
		*r = next
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.TotalScore)
	assert.Equal(t, 1, rec.CurrentStreak)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMutatorErrorRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "", "", int64(0), int64(0), 0, 0, nil, nil, nil, now))
	mock.ExpectRollback()

	wantErr := assert.AnError
	_, err := store.Update(context.Background(), "u1", func(r *core.UserRecord) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = (.+) FOR UPDATE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), "ghost", func(r *core.UserRecord) error { return nil })
	require.ErrorIs(t, err, core.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReset(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE users SET total_score = (.+) WHERE id =`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	existed, err := store.Reset(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, existed)

	mock.ExpectExec(`UPDATE users SET total_score = (.+) WHERE id =`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	existed, err = store.Reset(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopNOrdering(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM users\s+ORDER BY total_score DESC, longest_streak DESC, current_streak DESC\s+LIMIT`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("b", "", "", int64(90), int64(0), 2, 8, nil, nil, nil, now).
			AddRow("a", "", "", int64(90), int64(0), 1, 2, nil, nil, nil, now))

	top, err := store.TopN(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, core.UserID("b"), top[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
