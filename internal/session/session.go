// Package session holds per-user dashboard state between uploads, replacing
// any ambient global with an explicit context object.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Context is one authenticated dashboard session. Uploaded tables are cached
// per view so switching views does not force a re-upload.
type Context struct {
	ID       uuid.UUID
	User     string
	LastSeen time.Time

	mu     sync.Mutex
	tables map[string]*table.RawTable
}

// PutTable caches a parsed table under a view name.
func (c *Context) PutTable(view string, t *table.RawTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[view] = t
}

// Table returns the cached table for a view, if any.
func (c *Context) Table(view string) (*table.RawTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[view]
	return t, ok
}

// Store is an in-memory session registry. Idle sessions are removed by Reap.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Context
	idle     time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore builds a store that considers sessions idle after the given
// duration.
func NewStore(idle time.Duration, logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Context),
		idle:     idle,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new session for a user.
func (s *Store) Create(user string) *Context {
	c := &Context{
		ID:       uuid.New(),
		User:     user,
		LastSeen: s.now(),
		tables:   make(map[string]*table.RawTable),
	}
	s.mu.Lock()
	s.sessions[c.ID] = c
	s.mu.Unlock()
	s.logger.Info("session created", slog.String("user", user), slog.String("session_id", c.ID.String()))
	return c
}

// Get returns the session and refreshes its last-seen time.
func (s *Store) Get(id uuid.UUID) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.LastSeen = s.now()
	return c, nil
}

// Delete drops a session, if present.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap removes sessions idle longer than the configured window and returns
// how many were dropped.
func (s *Store) Reap() int {
	cutoff := s.now().Add(-s.idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	var reaped int
	for id, c := range s.sessions {
		if c.LastSeen.Before(cutoff) {
			delete(s.sessions, id)
			reaped++
		}
	}
	if reaped > 0 {
		s.logger.Info("idle sessions reaped", slog.Int("count", reaped))
	}
	return reaped
}
