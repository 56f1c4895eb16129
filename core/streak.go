package core

import (
	"fmt"
	"time"
)

// Outcome identifies which branch of the daily transition fired.
type Outcome string

const (
	OutcomeFirstAction Outcome = "first_action"
	OutcomeContinued   Outcome = "continued"
	OutcomeBroken      Outcome = "broken"
	OutcomeSameDay     Outcome = "same_day"
)

// StreakResult reports the effect of a single streak-eligible action.
type StreakResult struct {
	Outcome       Outcome `json:"outcome"`
	CurrentStreak int     `json:"current_streak"`
	IsNewDay      bool    `json:"is_new_day"`
	PointsAdded   int64   `json:"points_added"`
	Message       string  `json:"message"`
}

// Advance computes the next record state for one streak-eligible action at
// now. It is pure: the caller owns persistence, so the whole transition can
// run inside a single atomic read-modify-write against the store.
//
// Day boundaries are UTC calendar days, not elapsed time: acting at 23:59
// and again at 00:01 UTC the next minute counts as a new day, while acting
// at 00:01 and again 23 hours later the same UTC day does not.
func Advance(rec UserRecord, now time.Time, award int64) (UserRecord, StreakResult, error) {
	today := StartOfDayUTC(now)
	yesterday := today.Add(-24 * time.Hour)

	total, err := AddSafe(rec.TotalScore, award)
	if err != nil {
		return rec, StreakResult{}, err
	}

	// Repeat within today's UTC day: score still accrues, streak and
	// LastActivityDate stay untouched.
	if rec.LastActivityDate != nil && !rec.LastActivityDate.Before(today) {
		rec.TotalScore = total
		rec.Updated = now.UTC()
		return rec, StreakResult{
			Outcome:       OutcomeSameDay,
			CurrentStreak: rec.CurrentStreak,
			IsNewDay:      false,
			PointsAdded:   award,
			Message:       fmt.Sprintf("Already counted for today. +%d points.", award),
		}, nil
	}

	var outcome Outcome
	switch {
	case rec.LastActivityDate == nil:
		rec.CurrentStreak = 1
		outcome = OutcomeFirstAction
	case !rec.LastActivityDate.Before(yesterday):
		rec.CurrentStreak++
		outcome = OutcomeContinued
	default:
		rec.CurrentStreak = 1
		outcome = OutcomeBroken
	}

	game, err := AddSafe(rec.GameScore, award)
	if err != nil {
		return rec, StreakResult{}, err
	}

	ts := now.UTC()
	rec.LastActivityDate = &ts
	rec.TotalScore = total
	rec.GameScore = game
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.Updated = ts

	var msg string
	switch outcome {
	case OutcomeFirstAction:
		msg = fmt.Sprintf("Streak started! Day 1. +%d points.", award)
	case OutcomeContinued:
		msg = fmt.Sprintf("Streak continued! Day %d. +%d points.", rec.CurrentStreak, award)
	default:
		msg = fmt.Sprintf("Streak broken. Back to day 1. +%d points.", award)
	}

	return rec, StreakResult{
		Outcome:       outcome,
		CurrentStreak: rec.CurrentStreak,
		IsNewDay:      true,
		PointsAdded:   award,
		Message:       msg,
	}, nil
}

// ResetRecord zeroes all score and streak fields and clears the date
// markers and any pending guess, keeping the identity fields. The record
// itself is never deleted by normal operation.
func ResetRecord(rec UserRecord, now time.Time) UserRecord {
	rec.TotalScore = 0
	rec.GameScore = 0
	rec.CurrentStreak = 0
	rec.LongestStreak = 0
	rec.LastActivityDate = nil
	rec.DailyRewardLastClaimed = nil
	rec.PendingGuess = nil
	rec.Updated = now.UTC()
	return rec
}
