package preview

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loopwork/flowstudio/pkg/models"
)

const defaultSessionTTL = 30 * time.Minute

// Session is one interactive preview run owned by a single designer. It
// lives only in memory; closing or abandoning it discards all state.
type Session struct {
	ID         string
	WorkflowID string
	Version    int
	Simulator  *Simulator
	CreatedAt  time.Time
	LastActive time.Time
}

// SessionManager hands out simulator instances keyed by session ID and
// expires the ones nobody is driving anymore.
type SessionManager struct {
	mu sync.Mutex

	logger        *slog.Logger
	sessions      map[string]*Session
	ttl           time.Duration
	simulatorOpts []Option
}

// ManagerOption configures a SessionManager.
type ManagerOption func(*SessionManager)

// WithSessionTTL overrides how long an untouched session survives.
func WithSessionTTL(ttl time.Duration) ManagerOption {
	return func(m *SessionManager) {
		m.ttl = ttl
	}
}

// WithSimulatorOptions applies the given options to every simulator the
// manager creates.
func WithSimulatorOptions(opts ...Option) ManagerOption {
	return func(m *SessionManager) {
		m.simulatorOpts = opts
	}
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(logger *slog.Logger, opts ...ManagerOption) *SessionManager {
	manager := &SessionManager{
		logger:   logger,
		sessions: make(map[string]*Session),
		ttl:      defaultSessionTTL,
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// Create starts a new session around a fresh simulator for the definition.
// Expired sessions are swept opportunistically here so the map cannot grow
// without bound.
func (m *SessionManager) Create(definition *models.Definition, workflowID string, version int) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(time.Now())

	now := time.Now()
	session := &Session{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Version:    version,
		Simulator:  NewSimulator(m.logger, definition, m.simulatorOpts...),
		CreatedAt:  now,
		LastActive: now,
	}

	m.sessions[session.ID] = session

	m.logger.Debug("created preview session",
		"session_id", session.ID, "workflow_id", workflowID, "version", version)

	return session
}

// Get returns a session and marks it active.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, false
	}

	session.LastActive = time.Now()

	return session, true
}

// Delete discards a session and everything its simulator accumulated.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// Sweep removes sessions idle longer than the TTL and reports how many.
func (m *SessionManager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sweep(now)
}

func (m *SessionManager) sweep(now time.Time) int {
	removed := 0

	for id, session := range m.sessions {
		if now.Sub(session.LastActive) > m.ttl {
			delete(m.sessions, id)

			removed++
		}
	}

	if removed > 0 {
		m.logger.Debug("swept expired preview sessions", "count", removed)
	}

	return removed
}
