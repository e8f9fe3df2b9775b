package context

import (
	gocontext "context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/shopsense/ai"
	"github.com/hrygo/shopsense/internal/keylock"
)

// State is the informal session state.
type State string

const (
	StateFresh   State = "fresh"
	StateEngaged State = "engaged"
	StateDrifted State = "drifted"
)

// Context is the per-turn view of one session's conversational state.
type Context struct {
	SessionID    string
	History      []ai.Message
	Entities     Entities
	TopicChanged bool
	State        State
	TurnCount    int
}

// historyWindow bounds how much stored history a turn reads back. The full
// history stays durable in the store.
const historyWindow = 50

// Manager owns conversational state for all sessions. Turns within one
// session are serialized by a per-session lock; different sessions proceed
// in parallel.
type Manager struct {
	store     ai.ConversationStore
	detector  *TopicChangeDetector
	extractor *EntityExtractor
	logger    *slog.Logger

	locks *keylock.Table
}

func NewManager(store ai.ConversationStore, extractor *EntityExtractor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		detector:  NewTopicChangeDetector(),
		extractor: extractor,
		logger:    logger,
		locks:     keylock.New(),
	}
}

// GetContext loads the session history, runs topic-change detection against
// the incoming message, and extracts entities. On a detected change the
// product entities are cleared regardless of what extraction yields.
func (m *Manager) GetContext(ctx gocontext.Context, sessionID, currentMessage string) (*Context, error) {
	m.locks.Lock(sessionID)
	defer m.locks.Unlock(sessionID)

	history, err := m.store.GetLatestSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load session history")
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	c := &Context{
		SessionID: sessionID,
		History:   history,
		State:     StateFresh,
		TurnCount: len(history),
	}
	if len(history) == 0 {
		return c, nil
	}

	c.TopicChanged = m.detector.Detect(currentMessage, history)
	if m.extractor != nil {
		c.Entities = m.extractor.Extract(ctx, sessionID, append(history, ai.Message{Role: "user", Content: currentMessage}))
	}
	if c.TopicChanged {
		c.Entities.CurrentProduct = nil
		c.Entities.AllProducts = nil
		c.State = StateDrifted
		m.logger.InfoContext(ctx, "topic change detected, product context cleared", "session_id", sessionID)
	} else {
		c.State = StateEngaged
	}
	return c, nil
}

// History returns the session's stored recent history without running
// detection or extraction.
func (m *Manager) History(ctx gocontext.Context, sessionID string) ([]ai.Message, error) {
	history, err := m.store.GetLatestSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load session history")
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	return history, nil
}

// AddMessage appends one turn to the session's durable history.
func (m *Manager) AddMessage(ctx gocontext.Context, sessionID string, msg ai.Message) error {
	m.locks.Lock(sessionID)
	defer m.locks.Unlock(sessionID)
	return errors.Wrap(m.store.AppendMessage(ctx, sessionID, msg), "append message")
}

// ClearContext deletes the session's stored history.
func (m *Manager) ClearContext(ctx gocontext.Context, sessionID string) error {
	m.locks.Lock(sessionID)
	defer m.locks.Unlock(sessionID)

	if m.extractor != nil {
		if history, err := m.store.GetLatestSession(ctx, sessionID); err == nil {
			m.extractor.InvalidateSession(sessionID, history)
		}
	}
	if err := m.store.DeleteSessions(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}
