// Message state machine.
//
// This file defines the in-memory message collection and its transition
// primitives. The collection is the only shared mutable resource of the
// pipeline: every mutation is a single atomic rewrite under one mutex, and
// no other component touches message state directly (the animation engine
// and the orchestrator both write through this API).
//
// States are a closed sum: Loading, Animating{Full}, Completed, Hydrated,
// Errored{Reason}. Staging the full text inside Animating makes "full
// content exists iff the message is animating" structural rather than a
// convention; completing a message discards the staged copy with the state.
//
// Every operation is total: an unknown id is a no-op, never a panic, because
// UI races (a message removed while a reveal job is in flight) must not
// crash the pipeline.
package chat

import "sync"

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// State is the per-message lifecycle state. The interface is sealed: only
// the state types in this file implement it.
type State interface {
	// Name returns the wire name of the state (loading, animating, ...).
	Name() string
	isState()
}

// Loading marks a placeholder awaiting the completion call.
type Loading struct{}

// Animating marks a message whose content is being revealed; Full is the
// target text, of which Content is always a prefix.
type Animating struct{ Full string }

// Completed marks a fully revealed message.
type Completed struct{}

// Hydrated marks a message loaded from storage. Hydrated messages never
// animate.
type Hydrated struct{}

// Errored marks a failed turn; Reason is the user-facing message.
type Errored struct{ Reason string }

// Name implements State.
func (Loading) Name() string { return "loading" }

// Name implements State.
func (Animating) Name() string { return "animating" }

// Name implements State.
func (Completed) Name() string { return "completed" }

// Name implements State.
func (Hydrated) Name() string { return "hydrated" }

// Name implements State.
func (Errored) Name() string { return "error" }

func (Loading) isState()   {}
func (Animating) isState() {}
func (Completed) isState() {}
func (Hydrated) isState()  {}
func (Errored) isState()   {}

// Message is one entry of the conversation collection. ID is assigned
// client-side at creation time and stable across all state transitions; it
// is the join key for animation jobs and persistence upserts.
type Message struct {
	ID      string
	Role    Role
	Content string
	State   State
}

// StateManager owns the ordered message collection of the active
// conversation. Messages are appended in the order their creation operation
// runs, so two rapid sends stay ordered by trigger order even when their
// network responses arrive out of order.
type StateManager struct {
	mu   sync.Mutex
	msgs []Message
}

// NewStateManager returns an empty collection.
func NewStateManager() *StateManager { return &StateManager{} }

// Snapshot returns a copy of the collection in order.
func (m *StateManager) Snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// Get returns the message with the given id, if present.
func (m *StateManager) Get(id string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.ID == id {
			return msg, true
		}
	}
	return Message{}, false
}

// Len returns the number of messages in the collection.
func (m *StateManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// CreateUserMessage appends a completed user message.
func (m *StateManager) CreateUserMessage(id, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, Message{ID: id, Role: RoleUser, Content: content, State: Completed{}})
}

// CreateLoadingMessage appends an empty assistant placeholder in the loading
// state.
func (m *StateManager) CreateLoadingMessage(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, Message{ID: id, Role: RoleAssistant, State: Loading{}})
}

// CreateMessagePair appends the user message and its assistant placeholder
// in one atomic rewrite, so no observer can see the user turn without its
// pending reply.
func (m *StateManager) CreateMessagePair(userID, content, assistantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs,
		Message{ID: userID, Role: RoleUser, Content: content, State: Completed{}},
		Message{ID: assistantID, Role: RoleAssistant, State: Loading{}},
	)
}

// MarkLoading resets an existing message back into the loading state with
// empty content. Used when a regeneration re-enters the machine under the
// same id.
func (m *StateManager) MarkLoading(id string) {
	m.update(id, func(msg *Message) {
		msg.Content = ""
		msg.State = Loading{}
	})
}

// UpdateStreamingContent replaces the visible content of a message that is
// loading or animating. Messages in any terminal state ignore the write, so
// a stale reveal tick cannot resurrect a completed or errored message.
func (m *StateManager) UpdateStreamingContent(id, partial string) {
	m.update(id, func(msg *Message) {
		switch msg.State.(type) {
		case Loading, Animating:
			msg.Content = partial
		}
	})
}

// FinishStreamingAndAnimate stages the full response text and enters the
// animating state with empty visible content. Hydrated messages never
// animate; the call is ignored for them.
func (m *StateManager) FinishStreamingAndAnimate(id, full string) {
	m.update(id, func(msg *Message) {
		if _, ok := msg.State.(Hydrated); ok {
			return
		}
		msg.Content = ""
		msg.State = Animating{Full: full}
	})
}

// MarkCompleted finalizes a message: the staged full text (when animating)
// becomes the visible content and the staging copy is discarded with the
// state transition.
func (m *StateManager) MarkCompleted(id string) {
	m.update(id, func(msg *Message) {
		if st, ok := msg.State.(Animating); ok {
			msg.Content = st.Full
		}
		msg.State = Completed{}
	})
}

// MarkError puts a message into the error state with a user-facing reason.
func (m *StateManager) MarkError(id, reason string) {
	m.update(id, func(msg *Message) {
		msg.State = Errored{Reason: reason}
	})
}

// HandleRegeneration resets a message into the animating state with new
// target text, regardless of its prior state. Idempotent: calling it twice
// with the same text is a no-op beyond the first.
func (m *StateManager) HandleRegeneration(id, newFull string) {
	m.update(id, func(msg *Message) {
		msg.Content = ""
		msg.State = Animating{Full: newFull}
	})
}

// BatchUpdate applies a set of whole-message replacements in one atomic
// rewrite. Entries whose id is not present are ignored.
func (m *StateManager) BatchUpdate(list []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, repl := range list {
		for i := range m.msgs {
			if m.msgs[i].ID == repl.ID {
				m.msgs[i] = repl
				break
			}
		}
	}
}

// Hydrate replaces the whole collection with messages loaded from storage,
// all in the hydrated state.
func (m *StateManager) Hydrate(list []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = make([]Message, 0, len(list))
	for _, msg := range list {
		msg.State = Hydrated{}
		m.msgs = append(m.msgs, msg)
	}
}

// Reset clears the collection (new-room navigation or room deletion).
func (m *StateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = nil
}

// update applies fn to the message with the given id under the lock.
// Unknown ids are a no-op.
func (m *StateManager) update(id string, fn func(*Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.msgs {
		if m.msgs[i].ID == id {
			fn(&m.msgs[i])
			return
		}
	}
}
