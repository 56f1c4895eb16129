package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"streakbot/core"
	"streakbot/engine"
	"streakbot/leaderboard"
)

// Message is the transport-neutral view of an incoming chat message.
type Message struct {
	UserID      core.UserID
	DisplayName string
	Handle      string
	Content     string
}

var (
	guessRe = regexp.MustCompile(`^guess(?:\s+(-?\d+))?$`)
	resetRe = regexp.MustCompile(`^reset\s+(\S+)$`)
)

// Router turns chat messages into engine calls and reply text. It carries no
// transport state, so command behavior is testable without a live session.
type Router struct {
	prefix string
	svc    *engine.StreakService
	board  *leaderboard.Service
}

func NewRouter(prefix string, svc *engine.StreakService, board *leaderboard.Service) *Router {
	if prefix == "" {
		prefix = "!"
	}
	return &Router{prefix: prefix, svc: svc, board: board}
}

// Handle processes one message. Every message registers or refreshes the
// sender; only prefixed commands produce a reply.
func (r *Router) Handle(ctx context.Context, msg Message) (string, bool) {
	if _, err := r.svc.EnsureUser(ctx, msg.UserID, msg.DisplayName, msg.Handle); err != nil {
		return "", false
	}

	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, r.prefix) {
		return "", false
	}
	cmd := strings.TrimSpace(strings.TrimPrefix(content, r.prefix))

	switch {
	case cmd == "daily":
		return r.daily(ctx, msg.UserID), true
	case cmd == "leaderboard" || cmd == "top":
		recs := r.board.TopN(ctx, leaderboard.DefaultLimit)
		return leaderboard.Render(recs), true
	case cmd == "rank" || cmd == "me":
		return r.rank(ctx, msg.UserID), true
	case guessRe.MatchString(cmd):
		return r.guess(ctx, msg.UserID, guessRe.FindStringSubmatch(cmd)[1]), true
	case resetRe.MatchString(cmd):
		target := core.UserID(resetRe.FindStringSubmatch(cmd)[1])
		return r.reset(ctx, msg.UserID, target), true
	case cmd == "help":
		return r.help(), true
	}
	return "", false
}

func (r *Router) daily(ctx context.Context, user core.UserID) string {
	res, err := r.svc.ClaimDailyReward(ctx, user)
	if err != nil {
		return serviceTrouble(err)
	}
	if res.AlreadyClaimed {
		return "You already claimed your daily reward today. Come back tomorrow!"
	}
	return res.Streak.Message + fmt.Sprintf(" Current streak: %d🔥", res.Streak.CurrentStreak)
}

func (r *Router) rank(ctx context.Context, user core.UserID) string {
	rec, err := r.svc.GetRecord(ctx, user)
	if errors.Is(err, core.ErrUserNotFound) {
		return "No stats yet. Say something or claim your daily reward to get started!"
	}
	if err != nil {
		return serviceTrouble(err)
	}
	return fmt.Sprintf("**%s** | %d pts (game %d) | streak %d🔥 | best %d🔥",
		displayNameOf(rec), rec.TotalScore, rec.GameScore, rec.CurrentStreak, rec.LongestStreak)
}

func (r *Router) guess(ctx context.Context, user core.UserID, arg string) string {
	if arg == "" {
		res, err := r.svc.StartGuess(ctx, user)
		if err != nil {
			return serviceTrouble(err)
		}
		if res.InProgress {
			return "A round is already running. Send your guess!"
		}
		return fmt.Sprintf("I picked a number between %d and %d. Guess it with %sguess <n>!",
			core.GuessMin, core.GuessMax, r.prefix)
	}

	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Sprintf("That is not a number I can work with. Try %d to %d.", core.GuessMin, core.GuessMax)
	}
	res, err := r.svc.SubmitGuess(ctx, user, n)
	if errors.Is(err, engine.ErrGuessOutOfRange) {
		return fmt.Sprintf("Out of range. Pick a number from %d to %d.", core.GuessMin, core.GuessMax)
	}
	if err != nil {
		return serviceTrouble(err)
	}
	switch {
	case res.NoRound:
		return fmt.Sprintf("No round running. Start one with %sguess", r.prefix)
	case res.Correct:
		return "🎉 Correct! " + res.Streak.Message
	case res.Hint == "higher":
		return "Nope, go higher."
	default:
		return "Nope, go lower."
	}
}

func (r *Router) reset(ctx context.Context, actor, target core.UserID) string {
	existed, err := r.svc.ResetUser(ctx, actor, target)
	if errors.Is(err, engine.ErrNotAuthorized) {
		return "You are not allowed to do that."
	}
	if err != nil {
		return serviceTrouble(err)
	}
	if !existed {
		return fmt.Sprintf("No record found for %s.", target)
	}
	return fmt.Sprintf("Stats for %s have been reset.", target)
}

func (r *Router) help() string {
	p := r.prefix
	return strings.Join([]string{
		"Commands:",
		p + "daily - claim your daily reward",
		p + "guess - start the number guessing game",
		p + "guess <n> - submit a guess",
		p + "leaderboard (or " + p + "top) - show the top players",
		p + "rank (or " + p + "me) - show your stats",
		p + "reset <user> - reset a player's stats (admins only)",
	}, "\n")
}

func displayNameOf(rec core.UserRecord) string {
	if rec.DisplayName != "" {
		return rec.DisplayName
	}
	if rec.Handle != "" {
		return rec.Handle
	}
	return string(rec.ID)
}

func serviceTrouble(err error) string {
	if errors.Is(err, core.ErrStoreUnavailable) {
		return "The scoreboard is taking a nap. Try again in a moment."
	}
	return "Something went wrong. Try again."
}
