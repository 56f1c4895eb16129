package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventStreakAdvanced EventType = "streak_advanced"
	EventStreakBroken   EventType = "streak_broken"
	EventRewardClaimed  EventType = "reward_claimed"
	EventGuessStarted   EventType = "guess_started"
	EventGuessResolved  EventType = "guess_resolved"
	EventUserReset      EventType = "user_reset"
)

// Event represents an immutable domain event.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	UserID   UserID         `json:"user_id"`
	Outcome  Outcome        `json:"outcome,omitempty"`
	Streak   int            `json:"streak,omitempty"`
	Delta    int64          `json:"delta,omitempty"`
	Total    int64          `json:"total,omitempty"`
	Correct  bool           `json:"correct,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewStreakAdvanced(user UserID, res StreakResult, total int64) Event {
	return Event{Type: EventStreakAdvanced, Time: time.Now().UTC(), UserID: user,
		Outcome: res.Outcome, Streak: res.CurrentStreak, Delta: res.PointsAdded, Total: total}
}

func NewStreakBroken(user UserID, streak int) Event {
	return Event{Type: EventStreakBroken, Time: time.Now().UTC(), UserID: user, Streak: streak}
}

func NewRewardClaimed(user UserID, delta int64, total int64) Event {
	return Event{Type: EventRewardClaimed, Time: time.Now().UTC(), UserID: user, Delta: delta, Total: total}
}

func NewGuessStarted(user UserID) Event {
	return Event{Type: EventGuessStarted, Time: time.Now().UTC(), UserID: user}
}

func NewGuessResolved(user UserID, correct bool, streak int) Event {
	return Event{Type: EventGuessResolved, Time: time.Now().UTC(), UserID: user, Correct: correct, Streak: streak}
}

func NewUserReset(user UserID) Event {
	return Event{Type: EventUserReset, Time: time.Now().UTC(), UserID: user}
}
