package leaderboard

import (
	"fmt"
	"testing"

	"streakbot/core"
)

func TestSkipListOrdering(t *testing.T) {
	s := NewSkipList()
	s.Update("low", Key{TotalScore: 10})
	s.Update("high", Key{TotalScore: 100})
	s.Update("mid", Key{TotalScore: 50})

	top := s.TopN(3)
	if len(top) != 3 || top[0].User != "high" || top[1].User != "mid" || top[2].User != "low" {
		t.Fatalf("unexpected order: %+v", top)
	}
}

func TestSkipListCompositeTieBreaks(t *testing.T) {
	s := NewSkipList()
	s.Update("a", Key{TotalScore: 50, LongestStreak: 2})
	s.Update("b", Key{TotalScore: 50, LongestStreak: 5})
	s.Update("c", Key{TotalScore: 50, LongestStreak: 5, CurrentStreak: 3})

	top := s.TopN(3)
	if top[0].User != "c" || top[1].User != "b" || top[2].User != "a" {
		t.Fatalf("unexpected order: %+v", top)
	}
}

func TestSkipListUpdateMovesUser(t *testing.T) {
	s := NewSkipList()
	for i := 0; i < 50; i++ {
		s.Update(core.UserID(fmt.Sprintf("u%02d", i)), Key{TotalScore: int64(i)})
	}
	s.Update("u00", Key{TotalScore: 1000})

	top := s.TopN(1)
	if top[0].User != "u00" {
		t.Fatalf("expected u00 on top, got %v", top[0].User)
	}
	if s.Len() != 50 {
		t.Fatalf("len = %d, want 50", s.Len())
	}
}

func TestSkipListRemove(t *testing.T) {
	s := NewSkipList()
	s.Update("a", Key{TotalScore: 1})
	s.Update("b", Key{TotalScore: 2})
	s.Remove("b")
	if _, ok := s.Get("b"); ok {
		t.Fatal("b still present after Remove")
	}
	top := s.TopN(10)
	if len(top) != 1 || top[0].User != "a" {
		t.Fatalf("unexpected entries: %+v", top)
	}
}
