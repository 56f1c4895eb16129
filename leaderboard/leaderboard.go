package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"streakbot/core"
	"streakbot/engine"
)

// DefaultLimit is the number of rows served when no limit is given.
const DefaultLimit = 10

// nameWidth is the fixed display-name column width.
const nameWidth = 15

// EmptyMessage is the fixed reply for a board with no records.
const EmptyMessage = "The leaderboard is empty. Be the first to score!"

// Key is the composite ranking key. Records are ordered descending by
// TotalScore, then LongestStreak, then CurrentStreak; ordering among exact
// ties is stable but unspecified.
type Key struct {
	TotalScore    int64
	LongestStreak int
	CurrentStreak int
}

// KeyOf extracts the ranking key from a record.
func KeyOf(rec core.UserRecord) Key {
	return Key{
		TotalScore:    rec.TotalScore,
		LongestStreak: rec.LongestStreak,
		CurrentStreak: rec.CurrentStreak,
	}
}

// Compare returns >0 when k ranks above o, <0 when below, 0 on an exact tie.
func (k Key) Compare(o Key) int {
	switch {
	case k.TotalScore != o.TotalScore:
		if k.TotalScore > o.TotalScore {
			return 1
		}
		return -1
	case k.LongestStreak != o.LongestStreak:
		if k.LongestStreak > o.LongestStreak {
			return 1
		}
		return -1
	case k.CurrentStreak != o.CurrentStreak:
		if k.CurrentStreak > o.CurrentStreak {
			return 1
		}
		return -1
	}
	return 0
}

// Sort orders records in place, best first. The sort is stable so exact
// ties keep their incoming order.
func Sort(recs []core.UserRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return KeyOf(recs[i]).Compare(KeyOf(recs[j])) > 0
	})
}

// Service is the read-only ranked view over the record store.
type Service struct {
	storage engine.Storage
	logger  *slog.Logger
}

func NewService(storage engine.Storage) *Service {
	return &Service{storage: storage, logger: slog.Default()}
}

// TopN returns at most n ranked records (DefaultLimit when n <= 0). On
// store failure it serves an empty board instead of propagating the error:
// this view is non-critical and must never break the primary flow.
func (s *Service) TopN(ctx context.Context, n int) []core.UserRecord {
	if n <= 0 {
		n = DefaultLimit
	}
	recs, err := s.storage.TopN(ctx, n)
	if err != nil {
		s.logger.Warn("leaderboard query failed, serving empty board", "error", err)
		return nil
	}
	return recs
}

// Render formats records as a fixed-width text table. Pure: no I/O, no
// mutation. Output is header + one row per record + footer legend.
func Render(recs []core.UserRecord) string {
	if len(recs) == 0 {
		return EmptyMessage
	}
	var b strings.Builder
	b.WriteString("🏆 **Leaderboard** 🏆\n")
	for i, r := range recs {
		fmt.Fprintf(&b, "%s %s %6d pts  %3d🔥\n",
			rankMarker(i+1), padName(displayName(r), nameWidth), r.TotalScore, r.LongestStreak)
	}
	b.WriteString("pts = total score, 🔥 = longest streak")
	return b.String()
}

func displayName(r core.UserRecord) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Handle != "" {
		return r.Handle
	}
	return string(r.ID)
}

// rankMarker returns medal symbols for the podium and "{rank}." beyond it.
func rankMarker(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}

// padName truncates or pads name to exactly width runes.
func padName(name string, width int) string {
	runes := []rune(name)
	if len(runes) > width {
		return string(runes[:width])
	}
	return string(runes) + strings.Repeat(" ", width-len(runes))
}
