package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kchalkias/go-chat-client/internal/domain"
	"github.com/kchalkias/go-chat-client/internal/repo"
)

// fakeStore records calls and returns scripted results. Only the methods a
// test exercises need scripting; the rest return zero values.
type fakeStore struct {
	createRoomErr error
	createdRoom   *domain.Room
	createCalls   int
	createdName   string

	insertTurnErr error
	insertCalls   []insertCall

	updateByClientErr  error
	updateByClientHits []string
	fallbackErr        error
	fallbackCalls      int

	metaErr   error
	metaCalls []metaCall

	rooms    []domain.Room
	listErr  error
	getErr   error
	messages []domain.Message
	msgsErr  error

	deleteErr error
}

type insertCall struct {
	roomID                         int64
	userContent, userClientID      string
	asstContent, assistantClientID string
}

type metaCall struct {
	roomID int64
	name   string
}

func (f *fakeStore) CreateRoom(ctx context.Context, db *gorm.DB, userID, name, model string) (*domain.Room, error) {
	f.createCalls++
	f.createdName = name
	if f.createRoomErr != nil {
		return nil, f.createRoomErr
	}
	if f.createdRoom != nil {
		r := *f.createdRoom
		r.UserID = userID
		r.Name = name
		r.Model = model
		return &r, nil
	}
	return &domain.Room{ID: 101, UserID: userID, Name: name, Model: model}, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.Room, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Room{ID: id, UserID: userID}, nil
}

func (f *fakeStore) ListRooms(ctx context.Context, db *gorm.DB, userID string) ([]domain.Room, error) {
	return f.rooms, f.listErr
}

func (f *fakeStore) UpdateRoomMeta(ctx context.Context, db *gorm.DB, id int64, userID, name string) error {
	f.metaCalls = append(f.metaCalls, metaCall{roomID: id, name: name})
	return f.metaErr
}

func (f *fakeStore) DeleteRoom(ctx context.Context, db *gorm.DB, id int64, userID string) error {
	return f.deleteErr
}

func (f *fakeStore) InsertTurn(ctx context.Context, db *gorm.DB, roomID int64, userID, userContent, userClientID, assistantContent, assistantClientID string) error {
	f.insertCalls = append(f.insertCalls, insertCall{
		roomID:            roomID,
		userContent:       userContent,
		userClientID:      userClientID,
		asstContent:       assistantContent,
		assistantClientID: assistantClientID,
	})
	return f.insertTurnErr
}

func (f *fakeStore) UpdateMessageContentByClientID(ctx context.Context, db *gorm.DB, roomID int64, clientID, content string) error {
	f.updateByClientHits = append(f.updateByClientHits, clientID)
	return f.updateByClientErr
}

func (f *fakeStore) UpdateLatestAssistantByContent(ctx context.Context, db *gorm.DB, roomID int64, oldContent, newContent string) error {
	f.fallbackCalls++
	return f.fallbackErr
}

func (f *fakeStore) ListMessages(db *gorm.DB, roomID int64, limit int) ([]domain.Message, error) {
	return f.messages, f.msgsErr
}

// newTestDB returns a throwaway handle; the fake store ignores it, but
// LoadRoomMessages derives a context-scoped session from it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("chat_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func int64p(v int64) *int64 { return &v }

func TestEnsureRoom_PassthroughWhenRoomKnown(t *testing.T) {
	fs := &fakeStore{}
	p := NewPersistence(newTestDB(t), fs)

	id, created, err := p.EnsureRoom(context.Background(), int64p(7), "u1", "m", "hello")
	if err != nil || id != 7 || created {
		t.Fatalf("EnsureRoom: id=%d created=%v err=%v", id, created, err)
	}
	if fs.createCalls != 0 {
		t.Fatalf("existing room must not trigger creation")
	}
}

func TestEnsureRoom_LazyCreateWithDerivedName(t *testing.T) {
	fs := &fakeStore{createdRoom: &domain.Room{ID: 55}}
	p := NewPersistence(newTestDB(t), fs)

	id, created, err := p.EnsureRoom(context.Background(), nil, "u1", "gpt-4o", "please help me plan a trip to the mountains")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	if id != 55 || !created {
		t.Fatalf("expected created room 55, got id=%d created=%v", id, created)
	}
	if fs.createCalls != 1 {
		t.Fatalf("expected one creation, got %d", fs.createCalls)
	}
	// Name is derived from the prompt: stop-words dropped, title-cased.
	if fs.createdName != "Please Help Me Plan Trip Mountains" {
		t.Fatalf("unexpected derived name: %q", fs.createdName)
	}
}

func TestEnsureRoom_EmptyPromptFallsBackToDefaultName(t *testing.T) {
	fs := &fakeStore{}
	p := NewPersistence(newTestDB(t), fs)

	_, _, err := p.EnsureRoom(context.Background(), nil, "u1", "m", "   !!!   ")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	if fs.createdName != "New chat" {
		t.Fatalf("expected default name, got %q", fs.createdName)
	}
}

func TestEnsureRoom_PropagatesCreateError(t *testing.T) {
	boom := errors.New("disk full")
	fs := &fakeStore{createRoomErr: boom}
	p := NewPersistence(newTestDB(t), fs)

	_, _, err := p.EnsureRoom(context.Background(), nil, "u1", "m", "hello there")
	if !errors.Is(err, boom) {
		t.Fatalf("expected create error, got %v", err)
	}
}

func TestSaveTurn_InsertsPairAndTouchesRoom(t *testing.T) {
	fs := &fakeStore{}
	p := NewPersistence(newTestDB(t), fs)

	ps := &PreparedSend{
		UserContent:        "what is a monad",
		UserMessageID:      "uc-1",
		AssistantMessageID: "ac-1",
	}
	if err := p.SaveTurn(context.Background(), 9, "u1", ps, "a monad is..."); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if len(fs.insertCalls) != 1 {
		t.Fatalf("expected one InsertTurn, got %d", len(fs.insertCalls))
	}
	got := fs.insertCalls[0]
	if got.roomID != 9 || got.userClientID != "uc-1" || got.assistantClientID != "ac-1" {
		t.Fatalf("unexpected insert: %+v", got)
	}
	if got.asstContent != "a monad is..." {
		t.Fatalf("unexpected assistant content: %q", got.asstContent)
	}
	// Metadata refresh ran with a derived name.
	if len(fs.metaCalls) != 1 || fs.metaCalls[0].roomID != 9 {
		t.Fatalf("expected room touch, got %+v", fs.metaCalls)
	}
	if fs.metaCalls[0].name == "" {
		t.Fatalf("expected derived name on first-turn touch")
	}
}

func TestSaveTurn_PropagatesInsertError(t *testing.T) {
	boom := errors.New("constraint failed")
	fs := &fakeStore{insertTurnErr: boom}
	p := NewPersistence(newTestDB(t), fs)

	err := p.SaveTurn(context.Background(), 9, "u1", &PreparedSend{}, "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if len(fs.metaCalls) != 0 {
		t.Fatalf("failed insert must not touch the room")
	}
}

func TestSaveTurn_MetaFailureIsSwallowed(t *testing.T) {
	fs := &fakeStore{metaErr: errors.New("locked")}
	p := NewPersistence(newTestDB(t), fs)

	if err := p.SaveTurn(context.Background(), 9, "u1", &PreparedSend{UserContent: "q"}, "a"); err != nil {
		t.Fatalf("metadata failure must not fail the turn: %v", err)
	}
}

func TestSaveRegeneration_ClientIDPath(t *testing.T) {
	fs := &fakeStore{}
	p := NewPersistence(newTestDB(t), fs)

	ps := &PreparedSend{Regeneration: true, AssistantMessageID: "ac-9", OriginalAssistantContent: "old"}
	if err := p.SaveRegeneration(context.Background(), 4, "u1", ps, "new answer"); err != nil {
		t.Fatalf("SaveRegeneration: %v", err)
	}
	if len(fs.updateByClientHits) != 1 || fs.updateByClientHits[0] != "ac-9" {
		t.Fatalf("expected client-id update, got %+v", fs.updateByClientHits)
	}
	if fs.fallbackCalls != 0 {
		t.Fatalf("fallback must not run when client id matched")
	}
	// Touch without rename (no first prompt).
	if len(fs.metaCalls) != 1 || fs.metaCalls[0].name != "" {
		t.Fatalf("expected rename-free touch, got %+v", fs.metaCalls)
	}
}

func TestSaveRegeneration_FallbackOnMissingClientID(t *testing.T) {
	fs := &fakeStore{updateByClientErr: repo.ErrNotFound}
	p := NewPersistence(newTestDB(t), fs)

	ps := &PreparedSend{Regeneration: true, AssistantMessageID: "ac-9", OriginalAssistantContent: "the old text"}
	if err := p.SaveRegeneration(context.Background(), 4, "u1", ps, "new answer"); err != nil {
		t.Fatalf("SaveRegeneration: %v", err)
	}
	if fs.fallbackCalls != 1 {
		t.Fatalf("expected content fallback, got %d calls", fs.fallbackCalls)
	}
}

func TestSaveRegeneration_NoFallbackWithoutOriginalContent(t *testing.T) {
	fs := &fakeStore{updateByClientErr: repo.ErrNotFound}
	p := NewPersistence(newTestDB(t), fs)

	ps := &PreparedSend{Regeneration: true, AssistantMessageID: "ac-9"}
	err := p.SaveRegeneration(context.Background(), 4, "u1", ps, "new answer")
	if !repo.IsNotFound(err) {
		t.Fatalf("expected not-found without fallback content, got %v", err)
	}
	if fs.fallbackCalls != 0 {
		t.Fatalf("fallback must not run without original content")
	}
}

func TestLoadRoomMessages_HydratesWithClientIDs(t *testing.T) {
	fs := &fakeStore{messages: []domain.Message{
		{ID: "row-1", ClientID: "c-1", Role: "user", Content: "q"},
		{ID: "row-2", ClientID: "c-2", Role: "assistant", Content: "a"},
	}}
	p := NewPersistence(newTestDB(t), fs)

	out, err := p.LoadRoomMessages(context.Background(), 3, "u1")
	if err != nil {
		t.Fatalf("LoadRoomMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	// The UI id is the client id, so regeneration after hydration can match
	// persisted rows.
	if out[0].ID != "c-1" || out[1].ID != "c-2" {
		t.Fatalf("expected client ids, got %q/%q", out[0].ID, out[1].ID)
	}
	for _, m := range out {
		if _, ok := m.State.(Hydrated); !ok {
			t.Fatalf("expected hydrated state, got %s", m.State.Name())
		}
	}
}

func TestLoadRoomMessages_OwnershipCheckedFirst(t *testing.T) {
	fs := &fakeStore{getErr: repo.ErrNotFound}
	p := NewPersistence(newTestDB(t), fs)

	_, err := p.LoadRoomMessages(context.Background(), 3, "intruder")
	if !repo.IsNotFound(err) {
		t.Fatalf("expected not-found for foreign room, got %v", err)
	}
}

func TestDeriveName_StopWordsAndTitleCase(t *testing.T) {
	p := NewPersistence(newTestDB(t), &fakeStore{})

	cases := map[string]struct {
		in   string
		want string
	}{
		"stop words dropped": {"what is the best way to learn go", "What Best Way Learn Go"},
		"empty":              {"   ", ""},
		"symbols only":       {"?!#$", ""},
		"word cap": {
			"alpha beta gamma delta epsilon zeta eta theta iota kappa",
			"Alpha Beta Gamma Delta Epsilon Zeta Eta Theta",
		},
		"numbers kept": {"q3 report2025 summary", "Q3 Report2025 Summary"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := p.deriveName(tc.in); got != tc.want {
				t.Fatalf("deriveName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClipName_RuneBudget(t *testing.T) {
	p := NewPersistence(newTestDB(t), &fakeStore{})
	p.NameMaxLen = 5

	if got := p.clipName("abcdefgh"); got != "abcde" {
		t.Fatalf("clipName = %q", got)
	}
	if got := p.clipName("ab"); got != "ab" {
		t.Fatalf("clipName short input = %q", got)
	}
}
