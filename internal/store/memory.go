// Package store holds the meeting collection on behalf of the external
// system the engine proposes transitions to. It keeps everything in memory;
// callers get deep-copied snapshots and never share slices with the store.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"meetcal/internal/model"
)

// ErrNotFound is returned for unknown meeting IDs.
var ErrNotFound = errors.New("store: meeting not found")

// Memory is a mutex-guarded meeting collection keyed by ID.
type Memory struct {
	mu       sync.RWMutex
	meetings map[string]model.Meeting
	version  uint64
}

// NewMemory returns a store seeded with meetings. Later duplicates of an ID
// replace earlier ones.
func NewMemory(meetings []model.Meeting) *Memory {
	s := &Memory{meetings: make(map[string]model.Meeting, len(meetings))}
	for _, m := range meetings {
		s.meetings[m.ID] = m.Clone()
	}
	return s
}

// Snapshot returns a copy of every meeting ordered by start time, then ID.
func (s *Memory) Snapshot() []model.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns one meeting.
func (s *Memory) Get(id string) (model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return model.Meeting{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return m.Clone(), nil
}

// Put persists an updated meeting. The meeting must already exist and
// satisfy the model invariants.
func (s *Memory) Put(m model.Meeting) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, m.ID)
	}
	s.meetings[m.ID] = m.Clone()
	s.version++
	return nil
}

// Replace swaps the whole collection, e.g. after a feed reload.
func (s *Memory) Replace(meetings []model.Meeting) {
	next := make(map[string]model.Meeting, len(meetings))
	for _, m := range meetings {
		next[m.ID] = m.Clone()
	}
	s.mu.Lock()
	s.meetings = next
	s.version++
	s.mu.Unlock()
}

// Version increases on every write; the HTTP layer uses it as an ETag.
func (s *Memory) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of meetings.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meetings)
}
