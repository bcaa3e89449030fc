// Package session implements the per-operator session core: the store that owns
// the current grid statistics and conversation log, and the coordinator that is
// the only caller of the remote grid service.
package session

import (
	"sync"

	"github.com/ashureev/gridassist/internal/domain"
)

// Snapshot is an immutable copy of the session state handed to surfaces.
type Snapshot struct {
	Version      uint64                     `json:"version"`
	CurrentStats *domain.GridStatistics     `json:"current_stats"`
	CurrentCase  string                     `json:"current_case,omitempty"`
	Conversation []domain.ConversationEntry `json:"conversation"`
	Processing   bool                       `json:"processing"`
}

// Store is the single source of truth for one session's state.
// Mutators never fail and perform no validation; callers validate first.
type Store struct {
	mu           sync.RWMutex
	version      uint64
	stats        *domain.GridStatistics
	currentCase  string
	conversation []domain.ConversationEntry
	processing   bool

	subsMu sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	closed bool
}

// NewStore creates a store seeded with the welcome entry.
func NewStore() *Store {
	return &Store{
		conversation: []domain.ConversationEntry{domain.WelcomeEntry()},
		subs:         make(map[int]chan Snapshot),
	}
}

// SetStats replaces the current statistics.
func (s *Store) SetStats(stats domain.GridStatistics) {
	s.mu.Lock()
	s.stats = &stats
	s.publish(s.bumpLocked())
	s.mu.Unlock()
}

// SetCurrentCase records the id of the most recently loaded case.
func (s *Store) SetCurrentCase(caseName string) {
	s.mu.Lock()
	s.currentCase = caseName
	s.publish(s.bumpLocked())
	s.mu.Unlock()
}

// AppendEntry adds an entry at the end of the conversation log.
func (s *Store) AppendEntry(entry domain.ConversationEntry) {
	s.mu.Lock()
	s.conversation = append(s.conversation, entry)
	s.publish(s.bumpLocked())
	s.mu.Unlock()
}

// SetProcessing sets the in-flight flag.
func (s *Store) SetProcessing(flag bool) {
	s.mu.Lock()
	if s.processing == flag {
		s.mu.Unlock()
		return
	}
	s.processing = flag
	s.publish(s.bumpLocked())
	s.mu.Unlock()
}

// CurrentStats returns a copy of the current statistics, if any.
func (s *Store) CurrentStats() (domain.GridStatistics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return domain.GridStatistics{}, false
	}
	return *s.stats, true
}

// CurrentCase returns the id of the last successfully loaded case.
func (s *Store) CurrentCase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCase
}

// Conversation returns a copy of the log in insertion order.
func (s *Store) Conversation() []domain.ConversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationEntry, len(s.conversation))
	copy(out, s.conversation)
	return out
}

// IsProcessing reports whether an action is in flight.
func (s *Store) IsProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

// Snapshot returns a consistent copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every change.
// A slow reader may miss intermediate snapshots but never the latest one.
// The returned cancel func is idempotent.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subsMu.Lock()
	if s.closed {
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close ends the session's notifications; all subscriber channels are closed.
func (s *Store) Close() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Store) bumpLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:      s.version,
		CurrentCase:  s.currentCase,
		Conversation: make([]domain.ConversationEntry, len(s.conversation)),
		Processing:   s.processing,
	}
	copy(snap.Conversation, s.conversation)
	if s.stats != nil {
		stats := *s.stats
		snap.CurrentStats = &stats
	}
	return snap
}

// publish runs with s.mu held so subscribers observe versions in order.
func (s *Store) publish(snap Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		// Replace any stale pending snapshot with the newest one.
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
