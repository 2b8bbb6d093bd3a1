package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// session is one user conversation. State is process-lifetime-scoped;
// the surfaced-set only grows until an explicit reset. Each session has
// its own mutex so concurrent requests against the same session
// serialize without blocking other sessions.
type session struct {
	mu          sync.Mutex
	id          string
	exchanges   []domain.Exchange
	usedSources map[string]struct{}
	createdAt   time.Time
}

// SessionRegistry owns all live sessions, keyed by id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*session)}
}

func (r *SessionRegistry) Create(_ context.Context) (domain.SessionSnapshot, error) {
	s := &session{
		id:          uuid.NewString(),
		usedSources: make(map[string]struct{}),
		createdAt:   time.Now().UTC(),
	}
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s.snapshot(), nil
}

func (r *SessionRegistry) Get(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	s, ok := r.lookup(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("session %s", sessionID))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// RecordExchange appends a turn and adds its surfaced chunk ids to the
// accumulated set. Called by the presentation layer after displaying a
// result set, once per displayed set.
func (r *SessionRegistry) RecordExchange(_ context.Context, sessionID string, exchange domain.Exchange) error {
	s, ok := r.lookup(sessionID)
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "record exchange", fmt.Errorf("session %s", sessionID))
	}
	if exchange.Timestamp.IsZero() {
		exchange.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, exchange)
	for _, id := range exchange.SourceIDs {
		s.usedSources[id] = struct{}{}
	}
	return nil
}

// Reset clears the transcript and the surfaced-set together; there is no
// partial reset.
func (r *SessionRegistry) Reset(_ context.Context, sessionID string) error {
	s, ok := r.lookup(sessionID)
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "reset session", fmt.Errorf("session %s", sessionID))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = nil
	s.usedSources = make(map[string]struct{})
	return nil
}

// surfacedSets returns copies of the accumulated surfaced-set and the
// most recent exchange's surfaced ids for diversification.
func (r *SessionRegistry) surfacedSets(sessionID string) (used, lastExchange map[string]struct{}, ok bool) {
	s, found := r.lookup(sessionID)
	if !found {
		return nil, nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	used = make(map[string]struct{}, len(s.usedSources))
	for id := range s.usedSources {
		used[id] = struct{}{}
	}
	lastExchange = make(map[string]struct{})
	if n := len(s.exchanges); n > 0 {
		for _, id := range s.exchanges[n-1].SourceIDs {
			lastExchange[id] = struct{}{}
		}
	}
	return used, lastExchange, true
}

func (r *SessionRegistry) lookup(sessionID string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (s *session) snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *session) snapshotLocked() domain.SessionSnapshot {
	exchanges := make([]domain.Exchange, len(s.exchanges))
	copy(exchanges, s.exchanges)
	used := make([]string, 0, len(s.usedSources))
	for id := range s.usedSources {
		used = append(used, id)
	}
	return domain.SessionSnapshot{
		SessionID:   s.id,
		Exchanges:   exchanges,
		UsedSources: used,
		CreatedAt:   s.createdAt,
	}
}
