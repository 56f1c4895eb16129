package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a chat user. IDs are opaque external
// identifiers (chat/session ids) and are never interpreted.
type UserID string

// Bounds for the guessing mini-game secret.
const (
	GuessMin = 1
	GuessMax = 10
)

var (
	// ErrUserNotFound is returned when an operation targets an unregistered
	// user. It is non-retriable; callers surface it as-is.
	ErrUserNotFound = errors.New("user not found")

	// ErrStoreUnavailable wraps connectivity failures of the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// UserRecord is a snapshot of a user's gamification state.
// Storage adapters should return deep copies to maintain immutability
// guarantees at their boundary.
type UserRecord struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Handle      string `json:"handle,omitempty"`

	TotalScore    int64 `json:"total_score"`
	GameScore     int64 `json:"game_score"`
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`

	// LastActivityDate is the time of the last streak-eligible action;
	// nil means the user has never acted.
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`

	// DailyRewardLastClaimed gates the daily-reward command's
	// already-claimed reply. Distinct from LastActivityDate, which the
	// streak engine itself maintains.
	DailyRewardLastClaimed *time.Time `json:"daily_reward_last_claimed,omitempty"`

	// PendingGuess holds the secret number of an in-progress guessing
	// round; nil when no round is active.
	PendingGuess *int `json:"pending_guess,omitempty"`

	Updated time.Time `json:"updated"`
}

// Clone returns a deep copy of the record to uphold immutability.
func (r UserRecord) Clone() UserRecord {
	cp := r
	if r.LastActivityDate != nil {
		t := *r.LastActivityDate
		cp.LastActivityDate = &t
	}
	if r.DailyRewardLastClaimed != nil {
		t := *r.DailyRewardLastClaimed
		cp.DailyRewardLastClaimed = &t
	}
	if r.PendingGuess != nil {
		g := *r.PendingGuess
		cp.PendingGuess = &g
	}
	return cp
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims user identifiers. IDs are opaque and
// case-sensitive, so no case folding is applied.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(s), nil
}

// StartOfDayUTC returns 00:00:00.000 UTC of t's calendar day. All streak
// continuity decisions use this boundary, never elapsed hours.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	return StartOfDayUTC(a).Equal(StartOfDayUTC(b))
}
