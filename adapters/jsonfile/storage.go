package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streakbot/core"
	"streakbot/leaderboard"
)

// Store persists all user records to a single JSON file.
// Suitable for demos and small single-process deployments; every write
// rewrites the file via tmp-and-rename.
type Store struct {
	path string
	mu   sync.Mutex
	data map[core.UserID]core.UserRecord
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]core.UserRecord{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.UserRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.UserRecord, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Find(_ context.Context, id core.UserID) (core.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	if !ok {
		return core.UserRecord{}, core.ErrUserNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Ensure(_ context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	if !ok {
		rec = core.UserRecord{ID: id, Updated: time.Now().UTC()}
	}
	if displayName != "" {
		rec.DisplayName = displayName
	}
	if handle != "" {
		rec.Handle = handle
	}
	s.data[id] = rec
	if err := s.persist(); err != nil {
		return core.UserRecord{}, err
	}
	return rec.Clone(), nil
}

func (s *Store) Update(_ context.Context, id core.UserID, fn func(*core.UserRecord) error) (core.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	if !ok {
		return core.UserRecord{}, core.ErrUserNotFound
	}
	next := rec.Clone()
	if err := fn(&next); err != nil {
		return core.UserRecord{}, err
	}
	s.data[id] = next
	if err := s.persist(); err != nil {
		return core.UserRecord{}, err
	}
	return next.Clone(), nil
}

func (s *Store) Reset(_ context.Context, id core.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	if !ok {
		return false, nil
	}
	s.data[id] = core.ResetRecord(rec, time.Now())
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) TopN(_ context.Context, n int) ([]core.UserRecord, error) {
	s.mu.Lock()
	recs := make([]core.UserRecord, 0, len(s.data))
	for _, rec := range s.data {
		recs = append(recs, rec.Clone())
	}
	s.mu.Unlock()

	leaderboard.Sort(recs)
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}
