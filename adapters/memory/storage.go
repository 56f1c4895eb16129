package memory

import (
	"context"
	"sync"
	"time"

	"streakbot/core"
	"streakbot/leaderboard"
)

// Store is a concurrent in-memory Storage implementation. Each record has
// its own mutex so the Update mutator runs as a single read-modify-write,
// and a skip list keeps the ranked index current for TopN.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
	index *leaderboard.SkipList
}

type userRecord struct {
	mu  sync.Mutex
	rec core.UserRecord
}

func New() *Store {
	return &Store{index: leaderboard.NewSkipList()}
}

func (s *Store) Find(_ context.Context, id core.UserID) (core.UserRecord, error) {
	v, ok := s.users.Load(id)
	if !ok {
		return core.UserRecord{}, core.ErrUserNotFound
	}
	ur := v.(*userRecord)
	ur.mu.Lock()
	defer ur.mu.Unlock()
	return ur.rec.Clone(), nil
}

func (s *Store) Ensure(_ context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error) {
	fresh := &userRecord{rec: core.UserRecord{ID: id, Updated: time.Now().UTC()}}
	v, _ := s.users.LoadOrStore(id, fresh)
	ur := v.(*userRecord)

	ur.mu.Lock()
	defer ur.mu.Unlock()
	if displayName != "" {
		ur.rec.DisplayName = displayName
	}
	if handle != "" {
		ur.rec.Handle = handle
	}
	s.index.Update(id, leaderboard.KeyOf(ur.rec))
	return ur.rec.Clone(), nil
}

func (s *Store) Update(_ context.Context, id core.UserID, fn func(*core.UserRecord) error) (core.UserRecord, error) {
	v, ok := s.users.Load(id)
	if !ok {
		return core.UserRecord{}, core.ErrUserNotFound
	}
	ur := v.(*userRecord)

	ur.mu.Lock()
	defer ur.mu.Unlock()
	next := ur.rec.Clone()
	if err := fn(&next); err != nil {
		return core.UserRecord{}, err
	}
	ur.rec = next
	s.index.Update(id, leaderboard.KeyOf(next))
	return next.Clone(), nil
}

func (s *Store) Reset(_ context.Context, id core.UserID) (bool, error) {
	v, ok := s.users.Load(id)
	if !ok {
		return false, nil
	}
	ur := v.(*userRecord)

	ur.mu.Lock()
	defer ur.mu.Unlock()
	ur.rec = core.ResetRecord(ur.rec, time.Now())
	s.index.Update(id, leaderboard.KeyOf(ur.rec))
	return true, nil
}

func (s *Store) TopN(ctx context.Context, n int) ([]core.UserRecord, error) {
	entries := s.index.TopN(n)
	out := make([]core.UserRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := s.Find(ctx, e.User)
		if err != nil {
			continue // evicted between index read and fetch
		}
		out = append(out, rec)
	}
	return out, nil
}
