package engine

import (
	"context"
	"time"

	"streakbot/core"
)

// Storage abstracts persistence for user gamification records.
//
// Update must be a single atomic read-modify-write: the mutator runs
// against the current record and the result becomes visible in one step
// (lock, transaction, or optimistic retry depending on the adapter). This
// is the only guard against lost updates when the same user triggers two
// actions concurrently.
type Storage interface {
	// Find returns the record for id, or core.ErrUserNotFound.
	Find(ctx context.Context, id core.UserID) (core.UserRecord, error)

	// Ensure is the idempotent lookup-or-create registration path. It
	// refreshes the presentation fields on every call.
	Ensure(ctx context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error)

	// Update applies fn to the record for id atomically and returns the
	// updated record. Absent records yield core.ErrUserNotFound; Update
	// never creates.
	Update(ctx context.Context, id core.UserID, fn func(*core.UserRecord) error) (core.UserRecord, error)

	// Reset zeroes the record's score/streak state and reports whether a
	// matching record existed.
	Reset(ctx context.Context, id core.UserID) (bool, error)

	// TopN returns at most n records sorted descending by
	// (TotalScore, LongestStreak, CurrentStreak).
	TopN(ctx context.Context, n int) ([]core.UserRecord, error)
}

// Clock supplies the current time. Injected so the date-boundary logic is
// testable without waiting for midnight.
type Clock func() time.Time
