// Package store tracks per-conversation control state: whether a human
// operator has taken the conversation over (locked), and whether the team
// has already been alerted in the current episode. Lock state is the one
// piece that must survive restarts, so it is written through to an optional
// persister.
package store

import (
	"log/slog"
	"sync"
	"time"
)

// LockRecord is one persisted conversation lock.
type LockRecord struct {
	ConversationID string
	LockedBy       string
	LockedAt       time.Time
}

// Persister is the durable side of the store. Implementations must be safe
// for concurrent use.
type Persister interface {
	SaveLock(rec LockRecord) error
	DeleteLock(conversationID string) error
	LoadLocks() ([]LockRecord, error)
	Close() error
}

type convState struct {
	locked   bool
	lockedBy string
	lockedAt time.Time
	alerted  bool
}

// ConversationState is a read-only snapshot of one conversation's state.
type ConversationState struct {
	ConversationID string    `json:"conversation_id"`
	Locked         bool      `json:"locked"`
	LockedBy       string    `json:"locked_by,omitempty"`
	LockedAt       time.Time `json:"locked_at,omitempty"`
	Alerted        bool      `json:"alerted"`
}

// Store holds conversation control state in memory, writing lock changes
// through to the persister. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	convs   map[string]*convState
	persist Persister
}

// New creates a store. persist may be nil for a purely in-memory store;
// otherwise existing locks are loaded from it.
func New(persist Persister) (*Store, error) {
	s := &Store{
		convs:   make(map[string]*convState),
		persist: persist,
	}
	if persist != nil {
		recs, err := persist.LoadLocks()
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			s.convs[rec.ConversationID] = &convState{
				locked:   true,
				lockedBy: rec.LockedBy,
				lockedAt: rec.LockedAt,
			}
		}
	}
	return s, nil
}

func (s *Store) state(id string) *convState {
	st, ok := s.convs[id]
	if !ok {
		st = &convState{}
		s.convs[id] = st
	}
	return st
}

// Lock marks the conversation as human-controlled and clears the alerted
// flag so a future unlock starts a fresh episode. Returns whether it was
// already locked. Persistence failures are logged, not returned: the
// in-memory lock must hold either way.
func (s *Store) Lock(id, by string) (already bool) {
	s.mu.Lock()
	st := s.state(id)
	already = st.locked
	st.locked = true
	st.alerted = false
	if !already {
		st.lockedBy = by
		st.lockedAt = time.Now().UTC()
	}
	rec := LockRecord{ConversationID: id, LockedBy: st.lockedBy, LockedAt: st.lockedAt}
	s.mu.Unlock()

	if !already && s.persist != nil {
		if err := s.persist.SaveLock(rec); err != nil {
			slog.Error("failed to persist conversation lock", "conversation", id, "error", err)
		}
	}
	return already
}

// Unlock removes the lock and resets the alerted flag. This is the admin
// reset path; nothing in the message flow calls it.
func (s *Store) Unlock(id string) {
	s.mu.Lock()
	st := s.state(id)
	st.locked = false
	st.lockedBy = ""
	st.lockedAt = time.Time{}
	st.alerted = false
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.DeleteLock(id); err != nil {
			slog.Error("failed to remove persisted lock", "conversation", id, "error", err)
		}
	}
}

// IsLocked reports whether the conversation is under human control.
func (s *Store) IsLocked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.convs[id]
	return ok && st.locked
}

// MarkAlerted flips the alerted flag and reports whether this call did the
// flipping. Exactly one caller per episode sees true, which is what makes
// operator escalations one-shot.
func (s *Store) MarkAlerted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	if st.alerted {
		return false
	}
	st.alerted = true
	return true
}

// ResetAlert clears the alerted flag without touching the lock.
func (s *Store) ResetAlert(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.convs[id]; ok {
		st.alerted = false
	}
}

// Snapshot returns the state of every known conversation, for the status
// endpoint and the locks CLI.
func (s *Store) Snapshot() []ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationState, 0, len(s.convs))
	for id, st := range s.convs {
		out = append(out, ConversationState{
			ConversationID: id,
			Locked:         st.locked,
			LockedBy:       st.lockedBy,
			LockedAt:       st.lockedAt,
			Alerted:        st.alerted,
		})
	}
	return out
}

// Close releases the persister, if any.
func (s *Store) Close() error {
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}
