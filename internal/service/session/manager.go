// Package session owns the persona sessions: a registry of in-memory
// conversation states and the controller operations that mutate them.
// Nothing here is persisted; a session lives exactly as long as the process
// (or until the janitor reaps it).
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/segmentio/ksuid"

	"personachat/internal/models"
	"personachat/internal/prompt"
)

var (
	// ErrNotFound means the session id is unknown (never created or reaped).
	ErrNotFound = errors.New("session not found")

	// ErrBusy rejects an operation while another one holds the session.
	ErrBusy = errors.New("session is busy with another operation")
)

// Generator is the slice of the provider boundary the controller needs.
type Generator interface {
	DescribePersona(ctx context.Context, img models.ImagePayload) (string, error)
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// TokenCounter measures an assembled request against the prompt ceiling.
type TokenCounter func(modelName string, messages []*schema.Message) (int, error)

// Config tunes the controller. Zero values fall back to safe defaults.
type Config struct {
	// RequestTimeout bounds every outbound provider call.
	RequestTimeout time.Duration
	// MaxPromptTokens rejects turns whose assembled request would exceed
	// this count. Zero disables the check.
	MaxPromptTokens int
	// ModelName feeds token accounting.
	ModelName string
	// SessionTTL is how long an idle session survives between janitor runs.
	SessionTTL time.Duration
	// CountTokens overrides the default tiktoken-based counter.
	CountTokens TokenCounter
}

const (
	defaultRequestTimeout = time.Minute
	defaultSessionTTL     = 2 * time.Hour
)

// state is one live session. The busy flag serializes controller operations;
// mu guards persona and log for concurrent readers (snapshots, the janitor).
type state struct {
	id        string
	createdAt time.Time

	busy atomic.Bool

	mu        sync.RWMutex
	persona   *models.Persona
	log       []models.Turn
	updatedAt time.Time
}

func (s *state) view() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Session{ID: s.id, CreatedAt: s.createdAt, UpdatedAt: s.updatedAt}
}

func (s *state) append(turn models.Turn) {
	s.mu.Lock()
	s.log = append(s.log, turn)
	s.updatedAt = turn.CreatedAt
	s.mu.Unlock()
}

// Manager is the session registry plus the Session Controller operations.
type Manager struct {
	gen Generator
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*state
}

func NewManager(gen Generator, cfg Config) *Manager {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.CountTokens == nil {
		cfg.CountTokens = prompt.CountTokens
	}
	return &Manager{
		gen:      gen,
		cfg:      cfg,
		sessions: make(map[string]*state),
	}
}

// Create registers a fresh session with no persona and an empty log.
func (m *Manager) Create() models.Session {
	now := time.Now()
	st := &state{
		id:        ksuid.New().String(),
		createdAt: now,
		updatedAt: now,
	}
	m.mu.Lock()
	m.sessions[st.id] = st
	m.mu.Unlock()
	return st.view()
}

// Delete discards a session and everything it holds.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) lookup(id string) (*state, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

// StartJanitor reaps idle sessions until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.purgeIdle()
			}
		}
	}()
}

func (m *Manager) purgeIdle() {
	cutoff := time.Now().Add(-m.cfg.SessionTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, st := range m.sessions {
		if st.busy.Load() {
			continue
		}
		st.mu.RLock()
		idle := st.updatedAt.Before(cutoff)
		st.mu.RUnlock()
		if idle {
			delete(m.sessions, id)
		}
	}
}
