package stats

import (
	"context"
	"sync"
	"time"

	"streakbot/core"
	"streakbot/engine"
)

const dayFormat = "2006-01-02"

// Tracker aggregates engagement counters from the event stream: daily
// active users, rewards claimed, guessing-game activity, and streak breaks.
// All counters are in-memory and reset with the process.
type Tracker struct {
	mu sync.Mutex

	activeByDay  map[string]map[core.UserID]struct{}
	rewardsByDay map[string]int64
	pointsByDay  map[string]int64

	guessesStarted  int64
	guessesResolved int64
	guessesWon      int64
	streaksBroken   int64
}

func NewTracker() *Tracker {
	return &Tracker{
		activeByDay:  map[string]map[core.UserID]struct{}{},
		rewardsByDay: map[string]int64{},
		pointsByDay:  map[string]int64{},
	}
}

// OnEvent folds one domain event into the counters.
func (t *Tracker) OnEvent(ev core.Event) {
	day := ev.Time.UTC().Format(dayFormat)

	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.UserID != "" {
		users := t.activeByDay[day]
		if users == nil {
			users = map[core.UserID]struct{}{}
			t.activeByDay[day] = users
		}
		users[ev.UserID] = struct{}{}
	}

	switch ev.Type {
	case core.EventStreakAdvanced:
		t.pointsByDay[day] += ev.Delta
	case core.EventRewardClaimed:
		t.rewardsByDay[day]++
	case core.EventGuessStarted:
		t.guessesStarted++
	case core.EventGuessResolved:
		t.guessesResolved++
		if ev.Correct {
			t.guessesWon++
		}
	case core.EventStreakBroken:
		t.streaksBroken++
	}
}

// Handler adapts the tracker to the bus subscription signature.
func (t *Tracker) Handler() func(context.Context, core.Event) {
	return func(_ context.Context, ev core.Event) { t.OnEvent(ev) }
}

// Attach subscribes the tracker to every event type and returns a detach func.
func (t *Tracker) Attach(subscribe func(core.EventType, func(context.Context, core.Event)) func()) func() {
	types := []core.EventType{
		core.EventStreakAdvanced, core.EventStreakBroken,
		core.EventRewardClaimed, core.EventGuessStarted,
		core.EventGuessResolved, core.EventUserReset,
	}
	unsubs := make([]func(), 0, len(types))
	for _, typ := range types {
		unsubs = append(unsubs, subscribe(typ, t.Handler()))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// ActiveUsers returns the distinct user count seen on day (UTC, 2006-01-02).
func (t *Tracker) ActiveUsers(day string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.activeByDay[day])
}

// PointsAwarded returns the points awarded on day.
func (t *Tracker) PointsAwarded(day string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pointsByDay[day]
}

// RewardsClaimed returns the number of daily rewards claimed on day.
func (t *Tracker) RewardsClaimed(day string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rewardsByDay[day]
}

// Snapshot is a point-in-time view for dashboards and the stats endpoint.
type Snapshot struct {
	Day             string `json:"day"`
	ActiveToday     int    `json:"active_today"`
	PointsToday     int64  `json:"points_today"`
	RewardsToday    int64  `json:"rewards_today"`
	GuessesStarted  int64  `json:"guesses_started"`
	GuessesResolved int64  `json:"guesses_resolved"`
	GuessesWon      int64  `json:"guesses_won"`
	StreaksBroken   int64  `json:"streaks_broken"`

	// Overview fields populated from storage.
	SampledUsers     int     `json:"sampled_users"`
	TopScore         int64   `json:"top_score"`
	AvgCurrentStreak float64 `json:"avg_current_streak"`
	AvgLongestStreak float64 `json:"avg_longest_streak"`
}

// SnapshotAt builds a snapshot for now's UTC day from the counters alone.
func (t *Tracker) SnapshotAt(now time.Time) Snapshot {
	day := now.UTC().Format(dayFormat)
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Day:             day,
		ActiveToday:     len(t.activeByDay[day]),
		PointsToday:     t.pointsByDay[day],
		RewardsToday:    t.rewardsByDay[day],
		GuessesStarted:  t.guessesStarted,
		GuessesResolved: t.guessesResolved,
		GuessesWon:      t.guessesWon,
		StreaksBroken:   t.streaksBroken,
	}
}

// Overview enriches a snapshot with aggregates over the top sampleLimit
// ranked records from storage.
func (t *Tracker) Overview(ctx context.Context, storage engine.Storage, sampleLimit int, now time.Time) (Snapshot, error) {
	snap := t.SnapshotAt(now)
	if sampleLimit <= 0 {
		sampleLimit = 100
	}
	recs, err := storage.TopN(ctx, sampleLimit)
	if err != nil {
		return Snapshot{}, err
	}
	snap.SampledUsers = len(recs)
	if len(recs) == 0 {
		return snap, nil
	}
	snap.TopScore = recs[0].TotalScore
	var cur, longest int64
	for _, rec := range recs {
		cur += int64(rec.CurrentStreak)
		longest += int64(rec.LongestStreak)
	}
	snap.AvgCurrentStreak = float64(cur) / float64(len(recs))
	snap.AvgLongestStreak = float64(longest) / float64(len(recs))
	return snap, nil
}
