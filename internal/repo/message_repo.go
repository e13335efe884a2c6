// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the client-id (idempotency key) lookups the pipeline
// relies on for retries and regeneration.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kchalkias/go-chat-client/internal/domain"
)

// CreateMessage inserts a new message row. clientID may be empty for rows
// that have no optimistic UI counterpart (e.g. system messages).
func CreateMessage(db *gorm.DB, roomID int64, userID, role, content, clientID string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		ClientID:  clientID,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(db *gorm.DB, roomID int64, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("room_id = ?", roomID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, roomID int64) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE room_id = ? AND deleted_at IS NULL", roomID).Scan(&total).Error
	return total, err
}

// GetMessageByClientID fetches the message row in roomID that carries the
// given client-generated id, or ErrNotFound.
func GetMessageByClientID(ctx context.Context, db *gorm.DB, roomID int64, clientID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ? AND client_id = ?", roomID, clientID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageContentByClientID rewrites the content of the assistant row in
// roomID matched by clientID. Returns ErrNotFound when no row matches, so the
// caller can fall back to a content-based lookup.
func UpdateMessageContentByClientID(ctx context.Context, db *gorm.DB, roomID int64, clientID, content string) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ? AND client_id = ? AND role = ?", roomID, clientID, "assistant").
		Updates(map[string]any{"content": content, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateLatestAssistantByContent rewrites the most recent assistant row in
// roomID whose content equals oldContent. This is the defensive fallback for
// rows persisted before the client-id scheme existed. Returns ErrNotFound
// when no row matches.
func UpdateLatestAssistantByContent(ctx context.Context, db *gorm.DB, roomID int64, oldContent, newContent string) error {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ? AND role = ? AND content = ?", roomID, "assistant", oldContent).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{"content": newContent, "updated_at": time.Now().UTC()}).Error
}

// InsertTurn persists a user+assistant pair atomically, tagging each row with
// the client-generated id of its optimistic UI message. The insert is
// idempotent on the assistant client id: when a row with that id already
// exists in the room (a retried network call re-running persistence), the
// whole turn is treated as already written and nothing is inserted.
func InsertTurn(ctx context.Context, db *gorm.DB, roomID int64, userID string, userContent, userClientID, assistantContent, assistantClientID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if assistantClientID != "" {
			var count int64
			if err := tx.Model(&domain.Message{}).
				Where("room_id = ? AND client_id = ?", roomID, assistantClientID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
		}
		if _, err := CreateMessage(tx, roomID, userID, "user", userContent, userClientID); err != nil {
			return err
		}
		_, err := CreateMessage(tx, roomID, userID, "assistant", assistantContent, assistantClientID)
		return err
	})
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
