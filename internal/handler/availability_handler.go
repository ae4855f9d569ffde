package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unilab/slotbook-api/internal/middleware"
	"github.com/unilab/slotbook-api/internal/service"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/outcome"
	"github.com/unilab/slotbook-api/pkg/response"
)

// AvailabilityHandler wires availability windows to HTTP routes.
type AvailabilityHandler struct {
	availabilities *service.AvailabilityService
}

// NewAvailabilityHandler constructs a new AvailabilityHandler.
func NewAvailabilityHandler(availabilities *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilities: availabilities}
}

// Declare godoc
// @Summary Declare an availability window
// @Description Expands the date range and daily time range into bookable slots. Rejected entirely when any slot falls in a DST gap or the window overlaps an existing one for the same teacher and room.
// @Tags Availabilities
// @Accept json
// @Produce json
// @Param payload body service.DeclareAvailabilityRequest true "Availability payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /availabilities [post]
func (h *AvailabilityHandler) Declare(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DeclareAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	result := h.availabilities.Declare(c.Request.Context(), claims.UserID, req)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.Created(c, result.Value())
}

// List godoc
// @Summary List availability windows
// @Description Teachers see their own windows including blocked ones; students see every unblocked window.
// @Tags Availabilities
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availabilities [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result := h.availabilities.List(c.Request.Context(), claims)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.JSON(c, http.StatusOK, result.Value(), nil)
}

// Get godoc
// @Summary Get one availability window with its slots
// @Tags Availabilities
// @Produce json
// @Param id path string true "Availability ID"
// @Success 200 {object} response.Envelope
// @Router /availabilities/{id} [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result := h.availabilities.Get(c.Request.Context(), c.Param("id"), claims)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.JSON(c, http.StatusOK, result.Value(), nil)
}

// Block godoc
// @Summary Block an availability window
// @Description Blocking is idempotent and leaves existing claims untouched.
// @Tags Availabilities
// @Param id path string true "Availability ID"
// @Success 204
// @Router /availabilities/{id}/block [post]
func (h *AvailabilityHandler) Block(c *gin.Context) {
	h.setBlocked(c, true)
}

// Unblock godoc
// @Summary Unblock an availability window
// @Tags Availabilities
// @Param id path string true "Availability ID"
// @Success 204
// @Router /availabilities/{id}/unblock [post]
func (h *AvailabilityHandler) Unblock(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *AvailabilityHandler) setBlocked(c *gin.Context, blocked bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var result outcome.Outcome[outcome.Unit]
	if blocked {
		result = h.availabilities.Block(c.Request.Context(), c.Param("id"), claims)
	} else {
		result = h.availabilities.Unblock(c.Request.Context(), c.Param("id"), claims)
	}
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete an availability window and all of its slots
// @Tags Availabilities
// @Param id path string true "Availability ID"
// @Success 204
// @Router /availabilities/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result := h.availabilities.Delete(c.Request.Context(), c.Param("id"), claims)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.NoContent(c)
}
