// Request validation and placeholder materialization.
//
// ValidateSend is pure: it inspects a SendRequest against the model catalog
// and either returns a typed error (before any side effect) or a
// PreparedSend describing exactly which messages the orchestrator should
// materialize and which history to put on the wire.
package chat

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kchalkias/go-chat-client/internal/ai"
)

// SendRequest is the ephemeral value object describing one send or
// regenerate action.
type SendRequest struct {
	// UserContent is the new user utterance (send mode).
	UserContent string
	// RoomID is the target room, or nil for the first turn of a new
	// conversation.
	RoomID *int64
	// Messages is the prior conversation collection, in order.
	Messages []Message
	// Model is the selected completion model identifier.
	Model string
	// SearchMode requests retrieval-augmented completion; the model must
	// declare the capability.
	SearchMode bool
	// RegenerateIndex, when set, switches to regeneration mode: the
	// assistant message at this index is re-generated in place.
	RegenerateIndex *int
	// OriginalAssistantContent carries the displaced assistant text in
	// regeneration mode, used by persistence as a content-match fallback.
	OriginalAssistantContent string
	// ClientMessageID optionally pins the idempotency key; a fresh UUID is
	// minted when empty.
	ClientMessageID string
}

// PreparedSend is the validated, materialization-ready form of a request.
type PreparedSend struct {
	// Regeneration is true in regeneration mode.
	Regeneration bool
	// UserContent is the trimmed user utterance driving this turn. In
	// regeneration mode it is the content of the user message preceding the
	// regenerated assistant message.
	UserContent string
	// UserMessageID is the id of the user message to insert (send mode only).
	UserMessageID string
	// AssistantMessageID is the id of the assistant placeholder. In
	// regeneration mode it is the existing message's id, preserving UI
	// identity across the cycle.
	AssistantMessageID string
	// History is the conversation to put on the wire, ending with the user
	// turn being answered.
	History []ai.Message
	// OriginalAssistantContent is carried through for the persistence
	// fallback in regeneration mode.
	OriginalAssistantContent string
}

// ValidateSend checks req and materializes the turn. It performs no side
// effects; all failures are returned before any state, network, or storage
// mutation happens.
func ValidateSend(req SendRequest, catalog ai.Catalog) (*PreparedSend, error) {
	model, ok := catalog.Lookup(req.Model)
	if !ok {
		return nil, ErrUnknownModel
	}
	if req.SearchMode && !model.SupportsSearch {
		return nil, ErrSearchUnsupported
	}

	if req.RegenerateIndex != nil {
		return prepareRegeneration(req)
	}

	content := strings.TrimSpace(req.UserContent)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	clientID := req.ClientMessageID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	history := wireHistory(req.Messages, len(req.Messages))
	history = append(history, ai.Message{Role: string(RoleUser), Content: content})

	return &PreparedSend{
		UserContent:        content,
		UserMessageID:      uuid.NewString(),
		AssistantMessageID: clientID,
		History:            history,
	}, nil
}

// prepareRegeneration checks the pairing invariant: the index must reference
// an assistant message immediately preceded by a user message.
func prepareRegeneration(req SendRequest) (*PreparedSend, error) {
	i := *req.RegenerateIndex
	if i <= 0 || i >= len(req.Messages) {
		return nil, ErrBadRegenerateIndex
	}
	target := req.Messages[i]
	prior := req.Messages[i-1]
	if target.Role != RoleAssistant || prior.Role != RoleUser {
		return nil, ErrBadRegenerateIndex
	}

	original := req.OriginalAssistantContent
	if original == "" {
		original = fullText(target)
	}

	// History is truncated to end with the user turn being re-answered.
	history := wireHistory(req.Messages, i)

	return &PreparedSend{
		Regeneration:             true,
		UserContent:              prior.Content,
		AssistantMessageID:       target.ID,
		History:                  history,
		OriginalAssistantContent: original,
	}, nil
}

// wireHistory converts the first n collection entries to wire messages,
// skipping placeholders that have no content to send.
func wireHistory(msgs []Message, n int) []ai.Message {
	out := make([]ai.Message, 0, n+1)
	for _, m := range msgs[:n] {
		text := fullText(m)
		if text == "" {
			continue
		}
		out = append(out, ai.Message{Role: string(m.Role), Content: text})
	}
	return out
}

// fullText returns the complete text of a message: the staged full content
// while animating, the visible content otherwise.
func fullText(m Message) string {
	if st, ok := m.State.(Animating); ok {
		return st.Full
	}
	return m.Content
}
