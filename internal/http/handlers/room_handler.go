// Room HTTP handlers.
//
// This file exposes REST endpoints for room resources:
//   - GET    /rooms            (list, most recently active first)
//   - POST   /rooms/{id}/open  (hydrate a stored room into the conversation)
//   - DELETE /rooms/{id}       (delete a room and its messages)
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kchalkias/go-chat-client/internal/domain"
	"github.com/kchalkias/go-chat-client/internal/repo"
)

// RoomService defines the room-level operations consumed by HTTP handlers.
type RoomService interface {
	// ListRooms returns the user's rooms, most recently active first.
	ListRooms(ctx context.Context, userID string) ([]domain.Room, error)
}

// SessionUser resolves the acting user for room listings. The orchestrator
// resolves sessions itself for pipeline operations; listings need the id
// here at the transport layer.
type SessionUser func() (string, bool)

// ListRooms returns the acting user's rooms.
func (h *Handler) ListRooms(user SessionUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, authed := user()
		if !authed {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no active session")
			return
		}
		rooms, err := h.Rooms.ListRooms(c.Request.Context(), uid)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list rooms")
			return
		}
		ok(c, http.StatusOK, rooms)
	}
}

// OpenRoom hydrates the identified room into the active conversation.
func (h *Handler) OpenRoom(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid room id")
		return
	}
	if err := h.Orch.OpenRoom(c.Request.Context(), id); err != nil {
		if repo.IsNotFound(err) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not open room")
		return
	}
	noContent(c)
}

// DeleteRoom removes the identified room and resets the conversation.
func (h *Handler) DeleteRoom(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid room id")
		return
	}
	if err := h.Orch.DeleteRoom(c.Request.Context(), id); err != nil {
		if repo.IsNotFound(err) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete room")
		return
	}
	noContent(c)
}
