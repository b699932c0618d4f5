package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherin/backend/internal/middleware"
	"github.com/gatherin/backend/internal/models"
	"github.com/gatherin/backend/pkg/response"
)

// CreateRequest is the body for POST /api/events.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	StartsAt    string `json:"starts_at" binding:"required"`
	Capacity    int    `json:"capacity"`
	PriceCents  int    `json:"price_cents"`
	IsVirtual   bool   `json:"is_virtual"`
}

// UpdateRequest is the body for PATCH /api/events/:id. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Location    *string `json:"location"`
	StartsAt    *string `json:"starts_at"`
	Capacity    *int    `json:"capacity"`
	PriceCents  *int    `json:"price_cents"`
	IsVirtual   *bool   `json:"is_virtual"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /api/events (organizers only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	category := req.Category
	if category == "" {
		category = "other"
	}

	e := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Category:    category,
		Location:    req.Location,
		StartsAt:    startsAt,
		Capacity:    req.Capacity,
		PriceCents:  req.PriceCents,
		IsVirtual:   req.IsVirtual,
		OrganizerID: userID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /api/events. Supports ?category= and ?search= filters.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), c.Query("category"), c.Query("search"))
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /api/events/:id (organizer of the event only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.canMutate(c, e) {
		response.Forbidden(c, "only the organizer can modify this event")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Category != nil {
		e.Category = *req.Category
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		e.StartsAt = t
	}
	if req.Capacity != nil {
		e.Capacity = *req.Capacity
	}
	if req.PriceCents != nil {
		e.PriceCents = *req.PriceCents
	}
	if req.IsVirtual != nil {
		e.IsVirtual = *req.IsVirtual
	}

	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("update event", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /api/events/:id (organizer of the event only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	if !h.canMutate(c, e) {
		response.Forbidden(c, "only the organizer can modify this event")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

func (h *Handler) canMutate(c *gin.Context, e *models.Event) bool {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role := c.MustGet(middleware.ContextUserRole).(string)
	return e.OrganizerID == userID || role == string(models.RoleAdmin)
}
