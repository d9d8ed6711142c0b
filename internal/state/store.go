package state

import (
	"sync"
	"time"

	"github.com/fisaks/fieldhub/internal/hub"
)

// Store keeps the last published snapshot per device so unchanged
// states are only republished on the heartbeat cadence.
type Store interface {
	GetLast(device string) (hub.Snapshot, time.Time, bool)
	Update(device string, snap hub.Snapshot)
	HasChanged(device string, snap hub.Snapshot) bool
	Clear()
}

type store struct {
	snaps    map[string]hub.Snapshot
	lastSent map[string]time.Time
	mu       sync.RWMutex
}

func NewStore() Store {
	return &store{
		snaps:    make(map[string]hub.Snapshot),
		lastSent: make(map[string]time.Time),
	}
}

func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = make(map[string]hub.Snapshot)
	s.lastSent = make(map[string]time.Time)
}

func (s *store) GetLast(device string) (hub.Snapshot, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[device]
	sent, ok2 := s.lastSent[device]
	return snap, sent, ok && ok2
}

func (s *store) Update(device string, snap hub.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[device] = snap
	s.lastSent[device] = time.Now()
}

func (s *store) HasChanged(device string, snap hub.Snapshot) bool {
	last, _, ok := s.GetLast(device)
	if !ok {
		return true
	}
	return last.Availability != snap.Availability || !last.State.Equal(snap.State)
}
