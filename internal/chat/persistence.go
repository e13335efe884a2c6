// Message persistence.
//
// Persistence ensures a room exists before rows are written, inserts the
// user/assistant pair of a turn atomically, updates regenerated assistant
// rows in place, and performs the best-effort room metadata refresh. Room
// names are derived from the first user message of the conversation.
//
// Failure semantics: EnsureRoom failures are fatal for the turn (the caller
// marks the placeholder errored); turn writes report their error to the
// caller's background task; the metadata refresh logs and swallows its
// error, because a stale room name must never roll back an otherwise
// successful turn.
package chat

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kchalkias/go-chat-client/internal/domain"
	"github.com/kchalkias/go-chat-client/internal/repo"
)

// Store is the repository contract Persistence requires. Implementations
// are responsible for row-level reads and writes; Persistence owns the
// turn-level semantics on top.
type Store interface {
	// CreateRoom inserts a room row and returns it with the generated id.
	CreateRoom(ctx context.Context, db *gorm.DB, userID, name, model string) (*domain.Room, error)
	// GetRoom fetches a room by id ensuring it belongs to the user.
	GetRoom(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.Room, error)
	// ListRooms returns the user's rooms, most recently active first.
	ListRooms(ctx context.Context, db *gorm.DB, userID string) ([]domain.Room, error)
	// UpdateRoomMeta refreshes a room's name and updated_at timestamp.
	UpdateRoomMeta(ctx context.Context, db *gorm.DB, id int64, userID, name string) error
	// DeleteRoom removes a room and its messages.
	DeleteRoom(ctx context.Context, db *gorm.DB, id int64, userID string) error
	// InsertTurn persists a user+assistant pair atomically, idempotent on
	// the assistant client id.
	InsertTurn(ctx context.Context, db *gorm.DB, roomID int64, userID, userContent, userClientID, assistantContent, assistantClientID string) error
	// UpdateMessageContentByClientID rewrites the assistant row matched by
	// client id, or repo.ErrNotFound.
	UpdateMessageContentByClientID(ctx context.Context, db *gorm.DB, roomID int64, clientID, content string) error
	// UpdateLatestAssistantByContent rewrites the most recent assistant row
	// matching oldContent, or repo.ErrNotFound.
	UpdateLatestAssistantByContent(ctx context.Context, db *gorm.DB, roomID int64, oldContent, newContent string) error
	// ListMessages returns a room's rows in conversation order.
	ListMessages(db *gorm.DB, roomID int64, limit int) ([]domain.Message, error)
}

// Persistence coordinates the backend store writes of the pipeline.
type Persistence struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the repository used by this service.
	Store Store

	// NameMaxLen caps derived room names by rune length.
	NameMaxLen int
	// NameLocale selects the casing locale for derived room names.
	NameLocale language.Tag
}

// NewPersistence constructs a Persistence with sane naming defaults.
func NewPersistence(db *gorm.DB, st Store) *Persistence {
	return &Persistence{
		DB:         db,
		Store:      st,
		NameMaxLen: 60,
		NameLocale: language.English,
	}
}

// EnsureRoom returns the id of the room the turn should persist into,
// creating one when roomID is nil. The created flag reports whether this
// call minted the room. Room creation only ever happens here, after the user
// has actually sent content.
func (p *Persistence) EnsureRoom(ctx context.Context, roomID *int64, userID, model, firstUserContent string) (int64, bool, error) {
	tr := otel.Tracer("chat/Persistence")
	ctx, span := tr.Start(ctx, "EnsureRoom",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if roomID != nil {
		return *roomID, false, nil
	}

	name := p.deriveName(firstUserContent)
	if name == "" {
		name = "New chat"
	}
	room, err := p.Store.CreateRoom(ctx, p.DB, userID, name, model)
	if err != nil {
		return 0, false, err
	}
	return room.ID, true, nil
}

// SaveTurn persists the user+assistant pair of a first-send turn, then
// refreshes the room metadata best-effort.
func (p *Persistence) SaveTurn(ctx context.Context, roomID int64, userID string, ps *PreparedSend, assistantContent string) error {
	tr := otel.Tracer("chat/Persistence")
	ctx, span := tr.Start(ctx, "SaveTurn",
		trace.WithAttributes(attribute.Int64("room.id", roomID)),
	)
	defer span.End()

	err := p.Store.InsertTurn(ctx, p.DB, roomID, userID,
		ps.UserContent, ps.UserMessageID,
		assistantContent, ps.AssistantMessageID)
	if err != nil {
		return err
	}

	p.touchRoom(ctx, roomID, userID, ps.UserContent)
	return nil
}

// SaveRegeneration updates the regenerated assistant row in place, matched
// by client id with a most-recent-matching-content fallback for rows written
// before the client-id scheme existed, then refreshes the room metadata
// best-effort.
func (p *Persistence) SaveRegeneration(ctx context.Context, roomID int64, userID string, ps *PreparedSend, assistantContent string) error {
	tr := otel.Tracer("chat/Persistence")
	ctx, span := tr.Start(ctx, "SaveRegeneration",
		trace.WithAttributes(attribute.Int64("room.id", roomID)),
	)
	defer span.End()

	err := p.Store.UpdateMessageContentByClientID(ctx, p.DB, roomID, ps.AssistantMessageID, assistantContent)
	if repo.IsNotFound(err) && ps.OriginalAssistantContent != "" {
		err = p.Store.UpdateLatestAssistantByContent(ctx, p.DB, roomID, ps.OriginalAssistantContent, assistantContent)
	}
	if err != nil {
		return err
	}

	p.touchRoom(ctx, roomID, userID, "")
	return nil
}

// LoadRoomMessages returns a room's persisted rows as hydrated collection
// entries, verifying ownership first.
func (p *Persistence) LoadRoomMessages(ctx context.Context, roomID int64, userID string) ([]Message, error) {
	if _, err := p.Store.GetRoom(ctx, p.DB, roomID, userID); err != nil {
		return nil, err
	}
	rows, err := p.Store.ListMessages(p.DB.WithContext(ctx), roomID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{
			ID:      r.ClientID,
			Role:    Role(r.Role),
			Content: r.Content,
			State:   Hydrated{},
		})
	}
	return out, nil
}

// ListRooms returns the user's rooms, most recently active first.
func (p *Persistence) ListRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	return p.Store.ListRooms(ctx, p.DB, userID)
}

// DeleteRoom removes a room and its messages.
func (p *Persistence) DeleteRoom(ctx context.Context, roomID int64, userID string) error {
	return p.Store.DeleteRoom(ctx, p.DB, roomID, userID)
}

// touchRoom refreshes the room's name (when a first prompt is supplied) and
// updated_at timestamp. Best-effort by contract: failure is logged and
// swallowed.
func (p *Persistence) touchRoom(ctx context.Context, roomID int64, userID, firstUserContent string) {
	name := ""
	if firstUserContent != "" {
		name = p.deriveName(firstUserContent)
	}
	if err := p.Store.UpdateRoomMeta(ctx, p.DB, roomID, userID, name); err != nil {
		log.Warn().Err(err).Int64("room_id", roomID).Msg("room metadata update failed")
	}
}

// --- Room name derivation ---

// Extract Unicode letters with optional trailing numbers (e.g., "q3report2025").
var nameWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact room names.
var nameStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}

// deriveName builds a concise room name from the first user message.
func (p *Persistence) deriveName(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	toks := nameWordRE.FindAllString(strings.ToLower(prompt), -1)
	if len(toks) == 0 {
		return ""
	}

	locale := p.NameLocale
	if locale == language.Und {
		locale = language.English
	}
	caser := cases.Title(locale)

	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := nameStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return p.clipName(strings.Join(out, " "))
}

// clipName truncates a derived name to the configured maximum rune length.
func (p *Persistence) clipName(name string) string {
	max := p.NameMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(name) > max {
		return string([]rune(name)[:max])
	}
	return name
}
