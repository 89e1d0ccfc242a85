// Package conversation manages per-session dialogue state: an
// append-only turn log persisted in redis with single-writer semantics
// per session.
package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

const sessionKeyPrefix = "session:"

// Context is the folded view of recent turns handed to the intent
// classifier and the tool dispatch.
type Context struct {
	Filters        models.QueryFilters
	PriorIntent    models.IntentKind
	LastProductIDs []string
	TurnCount      int
}

type Manager struct {
	store *redis.Client
	ttl   time.Duration
	depth int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	logger logger.Logger
}

func NewManager(store *redis.Client, ttl time.Duration, depth int, log logger.Logger) *Manager {
	if depth <= 0 {
		depth = 10
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		depth:  depth,
		locks:  make(map[string]*sync.Mutex),
		logger: log.WithFields(map[string]interface{}{"component": "conversation"}),
	}
}

// sessionLock returns the mutex serializing writes for one session.
// Concurrent turns on the same session apply in arrival order; turns on
// different sessions never contend.
func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

// AppendTurn adds one completed turn to the session log. Existing turns
// are never mutated.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if state == nil {
		state = &models.ConversationState{
			SessionID: sessionID,
			CreatedAt: now,
		}
	}

	if turn.TurnID == "" {
		turn.TurnID = uuid.NewString()
	}
	state.Turns = append(state.Turns, turn)
	state.UpdatedAt = now

	return m.save(ctx, state)
}

// Snapshot returns a consistent copy of the session state, or an empty
// state for an unknown session.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.ConversationState{SessionID: sessionID}, nil
	}
	return state, nil
}

// Context folds the most recent turns into the active filter set,
// most-recent-wins, and surfaces the prior intent plus the product ids
// shown last so follow-ups can reference them.
func (m *Manager) Context(ctx context.Context, sessionID string) (Context, error) {
	state, err := m.Snapshot(ctx, sessionID)
	if err != nil {
		return Context{}, err
	}

	out := Context{TurnCount: len(state.Turns)}
	if len(state.Turns) == 0 {
		return out, nil
	}

	start := len(state.Turns) - m.depth
	if start < 0 {
		start = 0
	}
	for _, turn := range state.Turns[start:] {
		out.Filters = out.Filters.Merge(turn.Filters)
	}

	last := state.Turns[len(state.Turns)-1]
	out.PriorIntent = last.Intent.Kind
	out.LastProductIDs = last.ProductIDs

	return out, nil
}

// Reset drops the session state and hands out a fresh session id.
func (m *Manager) Reset(ctx context.Context, sessionID string) (string, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil && err != redis.Nil {
		return "", err
	}

	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()

	return uuid.NewString(), nil
}

func (m *Manager) load(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	raw, err := m.store.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt session blob starts a fresh log rather than wedging
		// the session forever.
		m.logger.Warn("corrupt session state, starting fresh", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return nil, nil
	}
	return &state, nil
}

func (m *Manager) save(ctx context.Context, state *models.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, sessionKeyPrefix+state.SessionID, raw, m.ttl).Err()
}
