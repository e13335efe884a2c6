// Orchestrator: the coordinator state machine of a turn.
//
// Send drives the eight pipeline steps: validate, optimistic state insert,
// room provisioning, the retried completion call, response-shape validation,
// reveal start, background persistence, and the first-turn navigation
// hand-off. Every failure in the middle steps funnels into one error path
// that marks the assistant placeholder errored with a user-facing message,
// and the typing indicator is cleared on every exit.
//
// Persistence runs in its own spawned task: its failure is counted, logged,
// and reported on a dedicated channel, decoupled from the task that resolves
// the user-visible send. It never reverts already-rendered content, because
// the user has already seen and can act on the response.
package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kchalkias/go-chat-client/internal/ai"
	"github.com/kchalkias/go-chat-client/internal/metrics"
	"github.com/kchalkias/go-chat-client/internal/retry"
	"github.com/kchalkias/go-chat-client/internal/session"
)

// User-facing failure strings for errored placeholders.
const (
	msgRoomFailed     = "Couldn't start the conversation. Please try again."
	msgTimedOut       = "The request timed out. Please try again."
	msgServiceFailed  = "The assistant couldn't be reached. Please try again."
	msgEmptyResponse  = "The assistant returned an empty response. Please try again."
	defaultPersistTTL = 30 * time.Second
)

// Navigator is the navigation collaborator, invoked once after first-turn
// persistence of a previously room-less conversation.
type Navigator interface {
	HandleNewRoomNavigation(roomID int64, userMessage, fullContent, model string)
}

// SendResult reports the ids a successful turn was bound to.
type SendResult struct {
	RoomID             int64
	RoomCreated        bool
	UserMessageID      string
	AssistantMessageID string
}

// Orchestrator coordinates the message lifecycle pipeline. All fields are
// set at construction; the orchestrator is safe for concurrent Sends, each
// bound to its own message ids from the moment of creation.
type Orchestrator struct {
	States    *StateManager
	Engine    *AnimationEngine
	AI        ai.Client
	Persist   *Persistence
	Sessions  session.Provider
	Navigator Navigator
	Catalog   ai.Catalog
	Retry     retry.Policy

	// PersistTimeout bounds the background persistence task.
	PersistTimeout time.Duration
	// OnTyping, when set, observes typing-indicator flips.
	OnTyping func(bool)

	typing      atomic.Int32
	persistErrs chan error
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(states *StateManager, engine *AnimationEngine, client ai.Client, persist *Persistence, sessions session.Provider, nav Navigator, catalog ai.Catalog) *Orchestrator {
	return &Orchestrator{
		States:         states,
		Engine:         engine,
		AI:             client,
		Persist:        persist,
		Sessions:       sessions,
		Navigator:      nav,
		Catalog:        catalog,
		Retry:          retry.DefaultPolicy(),
		PersistTimeout: defaultPersistTTL,
		persistErrs:    make(chan error, 16),
	}
}

// PersistenceFailures exposes the background persistence error channel.
// Failures are also logged and counted; the channel is for callers that want
// to surface a non-blocking indicator. It is never closed.
func (o *Orchestrator) PersistenceFailures() <-chan error { return o.persistErrs }

// Typing reports whether any turn is currently between validation and its
// terminal transition.
func (o *Orchestrator) Typing() bool { return o.typing.Load() > 0 }

// Send runs one turn of the pipeline. Validation failures return before any
// side effect; later failures leave the assistant placeholder in the error
// state and return the underlying error.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	tr := otel.Tracer("chat/Orchestrator")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("model", req.Model),
			attribute.Bool("regeneration", req.RegenerateIndex != nil),
		),
	)
	defer span.End()

	kind := "send"
	if req.RegenerateIndex != nil {
		kind = "regenerate"
	}

	// Step 1: validate. No side effects on failure.
	sess := o.Sessions.GetSession()
	if sess == nil {
		metrics.SendsTotal.WithLabelValues(kind, "validation_error").Inc()
		return nil, ErrNoSession
	}
	ps, err := ValidateSend(req, o.Catalog)
	if err != nil {
		metrics.SendsTotal.WithLabelValues(kind, "validation_error").Inc()
		return nil, err
	}

	// Step 2: optimistic UI transition, synchronous with the triggering
	// action so concurrent sends keep click order.
	if ps.Regeneration {
		o.States.MarkLoading(ps.AssistantMessageID)
	} else {
		o.States.CreateMessagePair(ps.UserMessageID, ps.UserContent, ps.AssistantMessageID)
	}
	o.setTyping(true)
	defer o.setTyping(false)

	// Step 3: resolve the room. Fatal for the turn on failure.
	roomID, created, err := o.Persist.EnsureRoom(ctx, req.RoomID, sess.UserID, req.Model, ps.UserContent)
	if err != nil {
		return nil, o.fail(kind, "room_error", ps.AssistantMessageID, msgRoomFailed, fmt.Errorf("ensure room: %w", err))
	}

	// Step 4: completion call through the retry policy.
	start := time.Now()
	resp, err := retry.Do(ctx, o.Retry, func(ctx context.Context) (*ai.CompletionResponse, error) {
		metrics.CompletionAttempts.Inc()
		return o.AI.Complete(ctx, sess.AccessToken, ai.CompletionRequest{
			RoomID:          &roomID,
			Messages:        ps.History,
			Model:           req.Model,
			ClientMessageID: ps.AssistantMessageID,
			SkipPersistence: true,
		})
	})
	metrics.CompletionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if IsAbort(err) {
			return nil, o.fail(kind, "abort", ps.AssistantMessageID, msgTimedOut, err)
		}
		return nil, o.fail(kind, "transport_error", ps.AssistantMessageID, msgServiceFailed, err)
	}

	// Step 5: response-shape validation. Terminal, never retried.
	content, ok := resp.Text()
	if !ok {
		return nil, o.fail(kind, "response_error", ps.AssistantMessageID, msgEmptyResponse, ErrEmptyResponse)
	}
	if resp.TimeWarning != "" {
		log.Warn().Str("warning", resp.TimeWarning).Msg("completion time warning")
	}

	// Step 6: start the reveal. Returns immediately; the reveal runs
	// concurrently with persistence.
	o.Engine.Start(ps.AssistantMessageID, content)

	// Steps 7–8: background persistence, then the navigation hand-off for a
	// freshly minted room.
	go o.persistTurn(roomID, created, sess.UserID, req.Model, ps, content)

	metrics.SendsTotal.WithLabelValues(kind, "ok").Inc()
	return &SendResult{
		RoomID:             roomID,
		RoomCreated:        created,
		UserMessageID:      ps.UserMessageID,
		AssistantMessageID: ps.AssistantMessageID,
	}, nil
}

// OpenRoom makes roomID the active conversation: running reveals are
// cancelled and the collection is replaced with the room's persisted rows in
// the hydrated state.
func (o *Orchestrator) OpenRoom(ctx context.Context, roomID int64) error {
	sess := o.Sessions.GetSession()
	if sess == nil {
		return ErrNoSession
	}
	msgs, err := o.Persist.LoadRoomMessages(ctx, roomID, sess.UserID)
	if err != nil {
		return err
	}
	o.Engine.StopAll()
	o.States.Hydrate(msgs)
	return nil
}

// Reset clears the active conversation (new-room navigation).
func (o *Orchestrator) Reset() {
	o.Engine.StopAll()
	o.States.Reset()
}

// DeleteRoom removes a room and, since its messages may be on screen, resets
// the active conversation.
func (o *Orchestrator) DeleteRoom(ctx context.Context, roomID int64) error {
	sess := o.Sessions.GetSession()
	if sess == nil {
		return ErrNoSession
	}
	if err := o.Persist.DeleteRoom(ctx, roomID, sess.UserID); err != nil {
		return err
	}
	o.Reset()
	return nil
}

// persistTurn is the spawned background task of steps 7–8. It runs on its
// own context so an abandoned UI request cannot cancel a write the user has
// already seen succeed.
func (o *Orchestrator) persistTurn(roomID int64, created bool, userID, model string, ps *PreparedSend, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.persistTimeout())
	defer cancel()

	var err error
	if ps.Regeneration {
		err = o.Persist.SaveRegeneration(ctx, roomID, userID, ps, content)
	} else {
		err = o.Persist.SaveTurn(ctx, roomID, userID, ps, content)
	}
	if err != nil {
		metrics.PersistenceFailures.Inc()
		log.Error().Err(err).Int64("room_id", roomID).Msg("turn persistence failed")
		select {
		case o.persistErrs <- err:
		default:
		}
		return
	}

	if created && o.Navigator != nil {
		o.Navigator.HandleNewRoomNavigation(roomID, ps.UserContent, content, model)
	}
}

// fail is the single error funnel of steps 3–6.
func (o *Orchestrator) fail(kind, outcome, assistantID, userMsg string, err error) error {
	o.States.MarkError(assistantID, userMsg)
	metrics.SendsTotal.WithLabelValues(kind, outcome).Inc()
	log.Error().Err(err).Str("outcome", outcome).Str("message_id", assistantID).Msg("send failed")
	return err
}

func (o *Orchestrator) setTyping(on bool) {
	var now int32
	if on {
		now = o.typing.Add(1)
	} else {
		now = o.typing.Add(-1)
	}
	if o.OnTyping != nil {
		o.OnTyping(now > 0)
	}
}

func (o *Orchestrator) persistTimeout() time.Duration {
	if o.PersistTimeout <= 0 {
		return defaultPersistTTL
	}
	return o.PersistTimeout
}
