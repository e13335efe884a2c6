// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Room model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a room is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kchalkias/go-chat-client/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the pipeline layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateRoom inserts a new Room row owned by userID with the given name and
// model. The generated numeric id is available on the returned Room.
func CreateRoom(ctx context.Context, db *gorm.DB, userID, name, model string) (*domain.Room, error) {
	r := &domain.Room{
		UserID:    userID,
		Name:      name,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRoom fetches a single room by its ID and owner (userID). If the record
// does not exist, it returns ErrNotFound. On other DB errors, the raw error
// is returned.
func GetRoom(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.Room, error) {
	var r domain.Room
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRooms returns all rooms belonging to userID, ordered by last update
// descending (most recently active first). It returns an empty slice if the
// user has no rooms. On DB error, it returns the error.
func ListRooms(ctx context.Context, db *gorm.DB, userID string) ([]domain.Room, error) {
	var out []domain.Room
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// UpdateRoomMeta updates the name and bumps the updated_at timestamp of a
// room identified by id and owned by userID. An empty name leaves the stored
// name untouched. If no rows are affected (room missing or not owned by
// userID), it returns ErrNotFound. On DB error, the raw error is returned.
func UpdateRoomMeta(ctx context.Context, db *gorm.DB, id int64, userID, name string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name != "" {
		updates["name"] = name
	}
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteRoom removes a room and its messages. The message delete runs in the
// same transaction so a half-deleted conversation is never observable.
// Returns ErrNotFound when the room does not exist or is not owned by userID.
func DeleteRoom(ctx context.Context, db *gorm.DB, id int64, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Room{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("room_id = ?", id).Delete(&domain.Message{}).Error
	})
}
