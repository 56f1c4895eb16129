package jsonfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"streakbot/core"
)

func TestPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ensure(ctx, "u1", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, "u1", func(r *core.UserRecord) error {
		r.TotalScore = 30
		r.CurrentStreak = 3
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := reopened.Find(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalScore != 30 || rec.CurrentStreak != 3 || rec.DisplayName != "Alice" {
		t.Fatalf("unexpected record after reopen: %+v", rec)
	}
}

func TestUpdateUnknownUser(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Update(context.Background(), "ghost", func(r *core.UserRecord) error { return nil })
	if !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestTopNSorted(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	scores := map[core.UserID]int64{"a": 5, "b": 50, "c": 20}
	for id, score := range scores {
		_, _ = s.Ensure(ctx, id, "", "")
		sc := score
		_, _ = s.Update(ctx, id, func(r *core.UserRecord) error {
			r.TotalScore = sc
			return nil
		})
	}

	top, err := s.TopN(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].ID != "b" || top[1].ID != "c" {
		t.Fatalf("unexpected order: %+v", top)
	}
}
