package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unilab/slotbook-api/internal/middleware"
	"github.com/unilab/slotbook-api/internal/service"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
	"github.com/unilab/slotbook-api/pkg/response"
)

// ReservationHandler wires slot claims to HTTP routes.
type ReservationHandler struct {
	reservations *service.ReservationService
}

// NewReservationHandler constructs a new ReservationHandler.
func NewReservationHandler(reservations *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// Claim godoc
// @Summary Claim a slot
// @Description Assigns the slot to the calling student. Fails with a specific code when the slot is unknown, already taken, inside a blocked window, starting in the past, or overlapping another reservation held by the student.
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /reservations/{id}/claim [post]
func (h *ReservationHandler) Claim(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result := h.reservations.Claim(c.Request.Context(), c.Param("id"), claims)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.JSON(c, http.StatusOK, result.Value(), nil)
}

// ListMine godoc
// @Summary List the calling student's reservations
// @Tags Reservations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reservations/mine [get]
func (h *ReservationHandler) ListMine(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result := h.reservations.ListMine(c.Request.Context(), claims)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.JSON(c, http.StatusOK, result.Value(), nil)
}

// Delete godoc
// @Summary Delete a slot from its window
// @Description Removes a single slot, claimed or not. Only the owning teacher or an admin may delete.
// @Tags Reservations
// @Param id path string true "Reservation ID"
// @Success 204
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) Delete(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result := h.reservations.Delete(c.Request.Context(), c.Param("id"), claims)
	if result.IsFailure() {
		response.Error(c, result.Err())
		return
	}
	response.NoContent(c)
}
