package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/gemini"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/selector"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// Persister stores session data between restarts. *userlog.Store
// implements it.
type Persister interface {
	SaveSession(ctx context.Context, key userlog.Key, data any) error
	LoadSession(ctx context.Context, key userlog.Key, dst any) (bool, error)
}

// Session is the per-user state: the city selection and the AI enhancer
// with its own unavailability latch. Callers hold Lock while running a
// command against it.
type Session struct {
	User     userlog.Key
	Selector *selector.Selector
	Enhancer *gemini.Enhancer

	mu sync.Mutex
}

// Lock serializes commands of one user.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

type stored struct {
	Cities []wilayah.City `json:"cities"`
}

// Manager creates sessions lazily and restores their selection from the
// persister.
type Manager struct {
	regions selector.Regions
	gen     gemini.Generator
	persist Persister
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[userlog.Key]*Session
}

// NewManager creates a session manager. gen may be nil when AI is
// disabled and persist may be nil to keep sessions in memory only.
func NewManager(regions selector.Regions, gen gemini.Generator, persist Persister, logger *slog.Logger) *Manager {
	return &Manager{
		regions:  regions,
		gen:      gen,
		persist:  persist,
		logger:   logging.Component(logger, "session"),
		sessions: make(map[userlog.Key]*Session),
	}
}

// New returns a session that is neither tracked nor persisted, for
// scheduled jobs and one-shot runs.
func (m *Manager) New() *Session {
	return &Session{
		Selector: selector.New(m.regions, m.logger),
		Enhancer: gemini.NewEnhancer(m.gen, m.logger),
	}
}

// Get returns the session of key, creating and restoring it on first use.
func (m *Manager) Get(ctx context.Context, key userlog.Key) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := m.New()
	s.User = key
	m.restore(ctx, s)
	m.sessions[key] = s
	return s
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) restore(ctx context.Context, s *Session) {
	if m.persist == nil {
		return
	}
	var data stored
	ok, err := m.persist.LoadSession(ctx, s.User, &data)
	if err != nil {
		m.logger.Warn("session restore failed", "user", s.User.String(), "error", err)
		return
	}
	if !ok {
		return
	}
	for _, c := range data.Cities {
		s.Selector.Add(c)
	}
	m.logger.Debug("session restored", "user", s.User.String(), "cities", len(data.Cities))
}

// Save persists the current selection of s. Errors are logged.
func (m *Manager) Save(ctx context.Context, s *Session) {
	if m.persist == nil || s.User.IsZero() {
		return
	}
	data := stored{Cities: s.Selector.Selected().Values()}
	if err := m.persist.SaveSession(ctx, s.User, data); err != nil {
		m.logger.Warn("session save failed", "user", s.User.String(), "error", err)
	}
}
