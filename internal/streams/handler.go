package streams

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherin/backend/internal/realtime"
	"github.com/gatherin/backend/pkg/response"
)

// CreateRequest is the body for POST /api/streams.
type CreateRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
	Title   string `json:"title"`
}

// Handler exposes broadcast discovery over HTTP so prospective viewers can
// find a session id before opening the signaling channel.
type Handler struct {
	registry  *realtime.Registry
	lifecycle *realtime.Lifecycle
	logger    *zap.Logger
}

// NewHandler creates a stream discovery handler.
func NewHandler(registry *realtime.Registry, lifecycle *realtime.Lifecycle, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, lifecycle: lifecycle, logger: logger}
}

// Create handles POST /api/streams. Returns the event's active session,
// allocating one if none exists; the session goes live only once a
// broadcaster registers over the signaling channel.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid event_id")
		return
	}
	s := h.registry.GetOrCreate(eventID, req.Title)
	response.Created(c, s)
}

// List handles GET /api/streams. Returns a snapshot of live sessions; any of
// them may have ended by the time the caller joins.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.registry.ListLive())
}

// GetByID handles GET /api/streams/:id.
func (h *Handler) GetByID(c *gin.Context) {
	s, ok := h.registry.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "stream not found")
		return
	}
	response.OK(c, s)
}

// End handles DELETE /api/streams/:id. Ending an unknown or already-ended
// stream is a no-op.
func (h *Handler) End(c *gin.Context) {
	h.lifecycle.End(c.Param("id"))
	response.NoContent(c)
}
