package lobby

import (
	"context"
	"net/http"

	"github.com/YF-George/lobbysync/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionDropper tears down any live session and cached state for a
// deleted room.
type SessionDropper interface {
	Drop(ctx context.Context, roomID uuid.UUID)
}

type Handler struct {
	service  Service
	sessions SessionDropper
}

func NewHandler(service Service, sessions SessionDropper) *Handler {
	return &Handler{service: service, sessions: sessions}
}

type CreateRoomRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255"`
}

// identity is an advisory hint only, never authenticated here
func identityFrom(c *gin.Context) (string, string) {
	userID := c.Query("userId")
	if userID == "" {
		userID = "anonymous"
	}
	userName := c.Query("userName")
	if userName == "" {
		userName = "mystery player"
	}
	return userID, userName
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateRoomRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, userName := identityFrom(c)

	room, err := h.service.CreateRoom(c.Request.Context(), userID, userName, form.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *Handler) Show(c *gin.Context) {
	room, err := h.service.GetRoomBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *Handler) Delete(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(errors.BadRequest("Invalid Room ID", err))
		return
	}

	userID, _ := identityFrom(c)

	if err := h.service.DeleteRoom(c.Request.Context(), roomID, userID); err != nil {
		c.Error(err)
		return
	}

	// the row is gone; kick any live session and drop the cached blob
	// so the deleted document cannot rehydrate
	if h.sessions != nil {
		h.sessions.Drop(c.Request.Context(), roomID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
}

func (h *Handler) ShowLogs(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(errors.BadRequest("Invalid Room ID", err))
		return
	}

	logs, err := h.service.ListLogs(c.Request.Context(), roomID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
