package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhashavox/bhashavox/internal/ledger"
)

var ErrNotFound = errors.New("conversation not found")

// Conversation is the per-id registry entry. Turn content lives in the
// memory store; this only tracks identity, the assessed level, and activity.
type Conversation struct {
	ID             string       `json:"conversation_id"`
	AssessedLevel  ledger.Level `json:"assessed_level,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	Turns          int64        `json:"turns"`
}

// Manager registers conversations lazily on first turn. Entries persist for
// the process lifetime; Reset is the only removal path.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewManager() *Manager {
	return &Manager{conversations: make(map[string]*Conversation)}
}

// Ensure returns the conversation for id, creating it if needed. An empty
// id mints a fresh one; ids are never reused across sessions.
func (m *Manager) Ensure(id string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	c, ok := m.conversations[id]
	if !ok {
		now := time.Now().UTC()
		c = &Conversation{ID: id, StartedAt: now, LastActivityAt: now}
		m.conversations[id] = c
	}
	return clone(c)
}

func (m *Manager) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

// Touch bumps activity and the turn counter after a completed turn.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Turns++
	c.LastActivityAt = time.Now().UTC()
	return nil
}

// SetLevel pins an externally assessed proficiency level on the conversation.
func (m *Manager) SetLevel(id string, level ledger.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.AssessedLevel = level
	c.LastActivityAt = time.Now().UTC()
	return nil
}

// Reset removes the registry entry. Callers reset the memory store and
// ledger for the same id alongside.
func (m *Manager) Reset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

func clone(c *Conversation) *Conversation {
	cp := *c
	return &cp
}
