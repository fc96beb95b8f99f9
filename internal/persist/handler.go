package persist

import (
	"encoding/base64"
	defError "errors"
	"log"
	"net/http"
	"regexp"

	apiError "github.com/YF-George/lobbysync/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var roomIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

type Handler struct {
	gateway  Gateway
	maxBytes int64
}

// NewHandler builds the sync endpoint with the given request-size cap;
// a non-positive cap falls back to MaxStateBytes.
func NewHandler(gateway Gateway, maxStateBytes int64) *Handler {
	if maxStateBytes <= 0 {
		maxStateBytes = MaxStateBytes
	}
	return &Handler{gateway: gateway, maxBytes: maxStateBytes}
}

type SyncRequest struct {
	RoomID   string `json:"roomId"`
	YjsState string `json:"yjs_state"`
}

// Sync is the persistence write endpoint consumed by the session host
// boundary. Responses follow the {success, error} contract instead of
// the APIError middleware shape.
func (h *Handler) Sync(c *gin.Context) {
	// size guard on the declared length, before reading anything
	if c.Request.ContentLength > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "payload too large"})
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.YjsState == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing payload"})
		return
	}

	if !roomIDPattern.MatchString(req.RoomID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid Room ID"})
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid Room ID"})
		return
	}

	state, err := base64.StdEncoding.DecodeString(req.YjsState)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid state encoding"})
		return
	}

	if err := h.gateway.Persist(c.Request.Context(), roomID, state); err != nil {
		var apiErr *apiError.APIError
		if defError.As(err, &apiErr) && apiErr.Status < 500 {
			c.JSON(apiErr.Status, gin.H{"success": false, "error": apiErr.Message})
			return
		}
		log.Printf("API Sync Error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
