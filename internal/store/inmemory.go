package store

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/qurain/qurainbot/internal/catalog"
)

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithTimeout overrides the inactivity timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *InMemoryStore) {
		s.timeout = d
	}
}

// WithClock overrides the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// entry is the mutable stored form of a record. done marks a record whose
// final answer was accepted; it stays invisible to Get and ActiveCount and
// is removed by End or the sweeper.
type entry struct {
	record ConversationRecord
	done   bool
}

// InMemoryStore is the in-memory ConversationStore. A single mutex guards
// the map; no operation performs I/O while holding it, so contention stays
// bounded by map work.
type InMemoryStore struct {
	catalog *catalog.Catalog
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewInMemoryStore creates a ConversationStore validating service codes
// against the given catalog.
func NewInMemoryStore(cat *catalog.Catalog, opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		catalog: cat,
		timeout: DefaultTimeout,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("InMemoryStore created", "timeout", s.timeout)
	return s
}

// Begin creates a fresh record for userID, replacing any existing one.
func (s *InMemoryStore) Begin(userID, serviceCode string) (ConversationRecord, error) {
	if _, ok := s.catalog.Lookup(serviceCode); !ok {
		slog.Warn("InMemoryStore.Begin: unknown service code", "userID", userID, "serviceCode", serviceCode)
		return ConversationRecord{}, ErrUnknownServiceCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[userID]; ok && !prev.done {
		slog.Info("InMemoryStore.Begin: abandoning in-progress conversation", "userID", userID, "previousService", prev.record.ServiceCode, "newService", serviceCode)
	}
	rec := ConversationRecord{
		UserID:       userID,
		ServiceCode:  serviceCode,
		CurrentStep:  0,
		Answers:      make(map[string]string),
		LastActivity: s.now(),
	}
	s.entries[userID] = &entry{record: rec}
	return snapshot(rec), nil
}

// Get returns the user's record if present and fresh, lazily removing it
// when expired.
func (s *InMemoryStore) Get(userID string) (ConversationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || e.done {
		return ConversationRecord{}, false
	}
	if s.expired(e) {
		delete(s.entries, userID)
		slog.Debug("InMemoryStore.Get: record expired", "userID", userID, "serviceCode", e.record.ServiceCode)
		return ConversationRecord{}, false
	}
	return snapshot(e.record), true
}

// RecordAnswer stores text for the current step, completing or advancing
// the record.
func (s *InMemoryStore) RecordAnswer(userID, text string) (ConversationRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || e.done {
		return ConversationRecord{}, false, ErrNoActiveConversation
	}
	if s.expired(e) {
		delete(s.entries, userID)
		return ConversationRecord{}, false, ErrNoActiveConversation
	}

	def, ok := s.catalog.Lookup(e.record.ServiceCode)
	if !ok {
		// The catalog is immutable, so this only happens if a record was
		// created against a different catalog instance.
		delete(s.entries, userID)
		slog.Error("InMemoryStore.RecordAnswer: record references unknown service", "userID", userID, "serviceCode", e.record.ServiceCode)
		return ConversationRecord{}, false, ErrUnknownServiceCode
	}

	e.record.Answers[def.Fields[e.record.CurrentStep]] = text
	if e.record.CurrentStep == len(def.Steps)-1 {
		e.done = true
		return snapshot(e.record), true, nil
	}
	e.record.CurrentStep++
	e.record.LastActivity = s.now()
	return snapshot(e.record), false, nil
}

// End removes the user's record. Idempotent.
func (s *InMemoryStore) End(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// ActiveCount returns the number of live records, purging expired ones on
// the way.
func (s *InMemoryStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for userID, e := range s.entries {
		if e.done || s.expired(e) {
			if s.expired(e) {
				delete(s.entries, userID)
			}
			continue
		}
		count++
	}
	return count
}

// Clear removes every record and returns how many were removed.
func (s *InMemoryStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.entries)
	s.entries = make(map[string]*entry)
	slog.Info("InMemoryStore.Clear: removed all records", "count", count)
	return count
}

// StartSweeper launches a background goroutine that purges expired and
// completed records at the given interval until ctx is cancelled. Purely an
// optimization: Get already expires lazily.
func (s *InMemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("InMemoryStore sweeper stopped")
				return
			case <-ticker.C:
				removed := s.sweep()
				if removed > 0 {
					slog.Debug("InMemoryStore sweeper purged records", "removed", removed)
				}
			}
		}
	}()
}

func (s *InMemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, e := range s.entries {
		if e.done || s.expired(e) {
			delete(s.entries, userID)
			removed++
		}
	}
	return removed
}

func (s *InMemoryStore) expired(e *entry) bool {
	return s.now().Sub(e.record.LastActivity) > s.timeout
}

func snapshot(rec ConversationRecord) ConversationRecord {
	rec.Answers = maps.Clone(rec.Answers)
	return rec
}
