// Chat HTTP handlers.
//
// This file exposes the UI-action entry points of the message pipeline:
//   - POST   /messages                  (send a user utterance)
//   - POST   /messages/{id}/regenerate  (re-run the assistant reply in place)
//   - GET    /messages                  (current conversation collection)
//
// Handlers are transport-thin: they validate input, call the orchestrator,
// and translate pipeline errors into HTTP responses. The conversation
// collection they return reflects in-flight reveals: an animating message's
// content is the currently revealed prefix.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kchalkias/go-chat-client/internal/chat"
	"github.com/kchalkias/go-chat-client/internal/repo"
)

// Orchestrator is the pipeline contract consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type Orchestrator interface {
	// Send runs one turn (send or regenerate) of the pipeline.
	Send(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	// OpenRoom hydrates a stored room into the active conversation.
	OpenRoom(ctx context.Context, roomID int64) error
	// DeleteRoom removes a room and resets the active conversation.
	DeleteRoom(ctx context.Context, roomID int64) error
	// Reset clears the active conversation.
	Reset()
	// Typing reports whether a turn is in flight.
	Typing() bool
}

// Handler bundles the dependencies of all route handlers.
type Handler struct {
	Orch   Orchestrator
	States *chat.StateManager
	Rooms  RoomService

	// DefaultModel is used when a request does not name a model.
	DefaultModel string
}

// New constructs the handler set.
func New(orch Orchestrator, states *chat.StateManager, rooms RoomService, defaultModel string) *Handler {
	return &Handler{Orch: orch, States: states, Rooms: rooms, DefaultModel: defaultModel}
}

// sendRequest is the POST /messages body.
type sendRequest struct {
	RoomID     *int64 `json:"room_id"`
	Content    string `json:"content"`
	Model      string `json:"model"`
	SearchMode bool   `json:"search_mode"`
}

// regenerateRequest is the POST /messages/{id}/regenerate body.
type regenerateRequest struct {
	RoomID *int64 `json:"room_id"`
}

// messageView is the wire form of one conversation entry.
type messageView struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// conversationView is the GET /messages envelope.
type conversationView struct {
	Messages []messageView `json:"messages"`
	Typing   bool          `json:"typing"`
}

// SendMessage runs a send turn and returns the ids the turn was bound to.
// The response is written as soon as the reveal starts; persistence
// continues in the background.
func (h *Handler) SendMessage(c *gin.Context) {
	var body sendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	model := body.Model
	if model == "" {
		model = h.DefaultModel
	}

	res, err := h.Orch.Send(c.Request.Context(), chat.SendRequest{
		UserContent: body.Content,
		RoomID:      body.RoomID,
		Messages:    h.States.Snapshot(),
		Model:       model,
		SearchMode:  body.SearchMode,
	})
	if err != nil {
		failSend(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RegenerateMessage re-runs the assistant reply identified by id, in place.
func (h *Handler) RegenerateMessage(c *gin.Context) {
	id := c.Param("id")
	var body regenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	snapshot := h.States.Snapshot()
	index := -1
	for i, m := range snapshot {
		if m.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		return
	}

	var original string
	if st, found := h.States.Get(id); found {
		original = st.Content
	}

	res, err := h.Orch.Send(c.Request.Context(), chat.SendRequest{
		RoomID:                   body.RoomID,
		Messages:                 snapshot,
		Model:                    h.DefaultModel,
		RegenerateIndex:          &index,
		OriginalAssistantContent: original,
	})
	if err != nil {
		failSend(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListConversation returns the active conversation collection, including
// in-flight reveal prefixes and the typing indicator.
func (h *Handler) ListConversation(c *gin.Context) {
	snapshot := h.States.Snapshot()
	out := conversationView{
		Messages: make([]messageView, 0, len(snapshot)),
		Typing:   h.Orch.Typing(),
	}
	for _, m := range snapshot {
		v := messageView{
			ID:      m.ID,
			Role:    string(m.Role),
			Content: m.Content,
			State:   m.State.Name(),
		}
		if st, isErr := m.State.(chat.Errored); isErr {
			v.Error = st.Reason
		}
		out.Messages = append(out.Messages, v)
	}
	ok(c, http.StatusOK, out)
}

// failSend maps pipeline errors onto the HTTP error taxonomy.
func failSend(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case chat.IsValidation(err):
		if errors.Is(err, chat.ErrNoSession) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case chat.IsAbort(err):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "the completion call timed out")
	case errors.Is(err, chat.ErrEmptyResponse):
		fail(c, http.StatusBadGateway, ErrCodeCompletionEmpty, "the completion response was empty")
	case repo.IsNotFound(err):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
	default:
		fail(c, http.StatusBadGateway, ErrCodeCompletionFailed, "the completion call failed")
	}
}
