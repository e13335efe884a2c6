// Package domain defines the persistence models for rooms and messages.
// These types are mapped with GORM and form the storage contract of the
// message lifecycle pipeline.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Room represents a conversation owned by a user. Rooms are created lazily:
// the first turn of a new conversation runs with a nil room id and a row is
// only inserted once the pipeline knows persistence is required.
//
// Fields:
//   - ID: numeric autoincrement primary key.
//   - UserID: identifier of the room owner; indexed for efficient retrieval.
//   - Name: human-readable room name, derived from the first user message.
//   - Model: completion model identifier selected for this room.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Room struct {
	ID        int64          `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_rooms"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null;default:'New chat'"`
	Model     string         `json:"model"      gorm:"type:varchar(128);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "rooms" }

// Message represents a single persisted utterance within a room. Messages
// are authored either by the "user" or the "assistant".
//
// ClientID is the idempotency key: it carries the client-generated id of the
// optimistic UI message, so a retried network call cannot produce duplicate
// persisted turns and a regeneration can locate the exact assistant row to
// update in place.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RoomID: foreign key to the owning room (indexed).
//   - UserID: identifier of the room owner (denormalized for ownership checks).
//   - Role: "user", "assistant" or "system" (enforced by DB constraint).
//   - Content: full text content of the message.
//   - ClientID: client-generated idempotency key; indexed per room.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Room: FK association, ensures cascade delete/update.
type Message struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	RoomID    int64          `json:"room_id"    gorm:"not null;index:idx_room_msgs,priority:1;index:idx_room_client,priority:1"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index"`
	Role      string         `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	ClientID  string         `json:"client_id"  gorm:"type:char(36);index:idx_room_client,priority:2"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_room_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Room is the parent conversation. Messages are cascade-deleted
	// if their room is removed.
	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
