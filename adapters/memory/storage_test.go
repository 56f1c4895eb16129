package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"streakbot/core"
)

func TestFindUnknownUser(t *testing.T) {
	s := New()
	_, err := s.Find(context.Background(), "nobody")
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec, err := s.Ensure(ctx, "u1", "Alice", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if rec.DisplayName != "Alice" {
		t.Fatalf("display name = %q", rec.DisplayName)
	}

	// Second call refreshes presentation fields without resetting state.
	_, err = s.Update(ctx, "u1", func(r *core.UserRecord) error {
		r.TotalScore = 42
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rec, err = s.Ensure(ctx, "u1", "Alice!", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalScore != 42 || rec.DisplayName != "Alice!" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestUpdateNeverCreates(t *testing.T) {
	s := New()
	_, err := s.Update(context.Background(), "ghost", func(r *core.UserRecord) error { return nil })
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestUpdateMutatorErrorLeavesRecord(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Ensure(ctx, "u1", "", "")

	boom := errors.New("boom")
	_, err := s.Update(ctx, "u1", func(r *core.UserRecord) error {
		r.TotalScore = 999
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	rec, _ := s.Find(ctx, "u1")
	if rec.TotalScore != 0 {
		t.Fatal("failed mutator must not leak partial writes")
	}
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Ensure(ctx, "u1", "", "")

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "u1", func(r *core.UserRecord) error {
				r.TotalScore++
				return nil
			})
		}()
	}
	wg.Wait()

	rec, _ := s.Find(ctx, "u1")
	if rec.TotalScore != n {
		t.Fatalf("total = %d, want %d", rec.TotalScore, n)
	}
}

func TestResetAndReporting(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Ensure(ctx, "u1", "", "")
	_, _ = s.Update(ctx, "u1", func(r *core.UserRecord) error {
		r.TotalScore = 10
		r.CurrentStreak = 2
		r.LongestStreak = 5
		return nil
	})

	existed, err := s.Reset(ctx, "u1")
	if err != nil || !existed {
		t.Fatalf("existed=%v err=%v", existed, err)
	}
	rec, _ := s.Find(ctx, "u1")
	if rec.TotalScore != 0 || rec.CurrentStreak != 0 || rec.LongestStreak != 0 {
		t.Fatalf("record not reset: %+v", rec)
	}

	existed, err = s.Reset(ctx, "ghost")
	if err != nil || existed {
		t.Fatalf("reset of missing user: existed=%v err=%v", existed, err)
	}
}

func TestTopNRanked(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		id := core.UserID(fmt.Sprintf("u%02d", i))
		_, _ = s.Ensure(ctx, id, "", "")
		score := int64(i * 10)
		_, _ = s.Update(ctx, id, func(r *core.UserRecord) error {
			r.TotalScore = score
			return nil
		})
	}

	top, err := s.TopN(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 10 {
		t.Fatalf("got %d, want 10", len(top))
	}
	if top[0].ID != "u14" || top[0].TotalScore != 140 {
		t.Fatalf("unexpected leader: %+v", top[0])
	}
	for i := 1; i < len(top); i++ {
		if top[i-1].TotalScore < top[i].TotalScore {
			t.Fatal("not sorted descending")
		}
	}
}
