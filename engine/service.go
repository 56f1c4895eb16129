package engine

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"streakbot/core"
)

// Default awards for the two streak-eligible actions.
const (
	DefaultDailyAward int64 = 10
	DefaultGuessAward int64 = 25
)

var (
	// ErrNotAuthorized is returned when a non-admin attempts an
	// administrative operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrGuessOutOfRange is returned for guesses outside [GuessMin, GuessMax].
	ErrGuessOutOfRange = errors.New("guess out of range")
)

// AdminFunc decides whether a user may perform administrative operations.
// Injected so the engine carries no deployment-specific identities.
type AdminFunc func(core.UserID) bool

// Params tunes a StreakService. Zero values fall back to defaults.
type Params struct {
	Clock      Clock
	DailyAward int64
	GuessAward int64
	Admin      AdminFunc
}

// StreakService wires storage and the event bus into the chat-facing
// gamification API: streak updates, daily rewards, the guessing game, and
// administrative reset.
type StreakService struct {
	storage    Storage
	bus        *EventBus
	clock      Clock
	dailyAward int64
	guessAward int64
	isAdmin    AdminFunc

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewStreakService(storage Storage, bus *EventBus, p Params) *StreakService {
	if storage == nil || bus == nil {
		panic("NewStreakService requires non-nil storage and bus")
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.DailyAward == 0 {
		p.DailyAward = DefaultDailyAward
	}
	if p.GuessAward == 0 {
		p.GuessAward = DefaultGuessAward
	}
	if p.Admin == nil {
		p.Admin = func(core.UserID) bool { return false }
	}
	return &StreakService{
		storage:    storage,
		bus:        bus,
		clock:      p.Clock,
		dailyAward: p.DailyAward,
		guessAward: p.GuessAward,
		isAdmin:    p.Admin,
		rng:        newRNG(),
	}
}

// newRNG seeds a PCG generator from crypto/rand.
func newRNG() *rand.Rand {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	return rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(seed[:8]),
		binary.BigEndian.Uint64(seed[8:]),
	))
}

func (s *StreakService) secret() int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return core.GuessMin + s.rng.IntN(core.GuessMax-core.GuessMin+1)
}

// Subscribe convenience method.
func (s *StreakService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *StreakService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *StreakService) Close() { s.bus.Close() }

// EnsureUser is the idempotent registration path: it creates the record on
// first observed interaction and refreshes the presentation fields on every
// later one.
func (s *StreakService) EnsureUser(ctx context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return core.UserRecord{}, err
	}
	return s.storage.Ensure(ctx, normalized, displayName, handle)
}

// GetRecord returns the current record for id.
func (s *StreakService) GetRecord(ctx context.Context, id core.UserID) (core.UserRecord, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return core.UserRecord{}, err
	}
	return s.storage.Find(ctx, normalized)
}

// ApplyDailyAction runs one streak-eligible action for id, awarding the
// given score. The user must already exist; this operation never registers.
// The whole transition is persisted as one atomic write.
func (s *StreakService) ApplyDailyAction(ctx context.Context, id core.UserID, award int64) (core.StreakResult, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return core.StreakResult{}, err
	}

	var res core.StreakResult
	rec, err := s.storage.Update(ctx, normalized, func(rec *core.UserRecord) error {
		next, r, err := core.Advance(*rec, s.clock(), award)
		if err != nil {
			return err
		}
		*rec = next
		res = r
		return nil
	})
	if err != nil {
		return core.StreakResult{}, err
	}

	s.bus.Publish(ctx, core.NewStreakAdvanced(normalized, res, rec.TotalScore))
	if res.Outcome == core.OutcomeBroken {
		s.bus.Publish(ctx, core.NewStreakBroken(normalized, res.CurrentStreak))
	}
	return res, nil
}

// DailyResult reports a daily reward claim.
type DailyResult struct {
	AlreadyClaimed bool
	Streak         core.StreakResult
}

// ClaimDailyReward grants the fixed daily award once per UTC calendar day.
// A repeat claim on the same day leaves the record untouched apart from the
// claim check itself.
func (s *StreakService) ClaimDailyReward(ctx context.Context, id core.UserID) (DailyResult, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return DailyResult{}, err
	}

	var out DailyResult
	rec, err := s.storage.Update(ctx, normalized, func(rec *core.UserRecord) error {
		now := s.clock()
		today := core.StartOfDayUTC(now)
		if rec.DailyRewardLastClaimed != nil && !rec.DailyRewardLastClaimed.Before(today) {
			out = DailyResult{AlreadyClaimed: true}
			return nil
		}
		ts := now.UTC()
		rec.DailyRewardLastClaimed = &ts
		next, r, err := core.Advance(*rec, now, s.dailyAward)
		if err != nil {
			return err
		}
		*rec = next
		out = DailyResult{Streak: r}
		return nil
	})
	if err != nil {
		return DailyResult{}, err
	}

	if !out.AlreadyClaimed {
		s.bus.Publish(ctx, core.NewRewardClaimed(normalized, s.dailyAward, rec.TotalScore))
		s.bus.Publish(ctx, core.NewStreakAdvanced(normalized, out.Streak, rec.TotalScore))
		if out.Streak.Outcome == core.OutcomeBroken {
			s.bus.Publish(ctx, core.NewStreakBroken(normalized, out.Streak.CurrentStreak))
		}
	}
	return out, nil
}

// GuessResult reports the outcome of a guessing-game interaction.
type GuessResult struct {
	// Started is set when a fresh round was opened.
	Started bool
	// InProgress is set when a start was requested while a round was
	// already active.
	InProgress bool
	// NoRound is set when a guess was submitted without an active round.
	NoRound bool

	Correct bool
	// Hint is "higher" or "lower" after a wrong guess.
	Hint string
	// Streak carries the streak transition for a correct guess, which is a
	// streak-eligible action.
	Streak *core.StreakResult
}

// StartGuess opens a guessing round for id, picking a secret number in
// [GuessMin, GuessMax]. Starting while a round is active reports
// InProgress without replacing the secret.
func (s *StreakService) StartGuess(ctx context.Context, id core.UserID) (GuessResult, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return GuessResult{}, err
	}

	var out GuessResult
	_, err = s.storage.Update(ctx, normalized, func(rec *core.UserRecord) error {
		if rec.PendingGuess != nil {
			out = GuessResult{InProgress: true}
			return nil
		}
		n := s.secret()
		rec.PendingGuess = &n
		rec.Updated = s.clock().UTC()
		out = GuessResult{Started: true}
		return nil
	})
	if err != nil {
		return GuessResult{}, err
	}

	if out.Started {
		s.bus.Publish(ctx, core.NewGuessStarted(normalized))
	}
	return out, nil
}

// SubmitGuess resolves a guess against the pending secret. A correct guess
// closes the round and feeds the streak engine in the same atomic write; a
// wrong guess keeps the round open and returns a hint.
func (s *StreakService) SubmitGuess(ctx context.Context, id core.UserID, n int) (GuessResult, error) {
	if n < core.GuessMin || n > core.GuessMax {
		return GuessResult{}, ErrGuessOutOfRange
	}
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return GuessResult{}, err
	}

	var out GuessResult
	rec, err := s.storage.Update(ctx, normalized, func(rec *core.UserRecord) error {
		if rec.PendingGuess == nil {
			out = GuessResult{NoRound: true}
			return nil
		}
		secret := *rec.PendingGuess
		switch {
		case n == secret:
			rec.PendingGuess = nil
			next, r, err := core.Advance(*rec, s.clock(), s.guessAward)
			if err != nil {
				return err
			}
			*rec = next
			out = GuessResult{Correct: true, Streak: &r}
		case n < secret:
			out = GuessResult{Hint: "higher"}
		default:
			out = GuessResult{Hint: "lower"}
		}
		return nil
	})
	if err != nil {
		return GuessResult{}, err
	}

	if !out.NoRound {
		streak := 0
		if out.Streak != nil {
			streak = out.Streak.CurrentStreak
		}
		s.bus.Publish(ctx, core.NewGuessResolved(normalized, out.Correct, streak))
		if out.Correct {
			s.bus.Publish(ctx, core.NewStreakAdvanced(normalized, *out.Streak, rec.TotalScore))
			if out.Streak.Outcome == core.OutcomeBroken {
				s.bus.Publish(ctx, core.NewStreakBroken(normalized, out.Streak.CurrentStreak))
			}
		}
	}
	return out, nil
}

// ResetUser zeroes target's score and streak state. actor must pass the
// injected admin check. Reports whether a matching record existed.
func (s *StreakService) ResetUser(ctx context.Context, actor, target core.UserID) (bool, error) {
	if !s.isAdmin(actor) {
		return false, ErrNotAuthorized
	}
	normalized, err := core.NormalizeUserID(target)
	if err != nil {
		return false, err
	}
	existed, err := s.storage.Reset(ctx, normalized)
	if err != nil {
		return false, err
	}
	if existed {
		s.bus.Publish(ctx, core.NewUserReset(normalized))
	}
	return existed, nil
}
