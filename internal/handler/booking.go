package handler // handler wires HTTP requests to the booking engine

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-fleet-reservation/internal/fleet"
)

// BookingHandler serves the passenger-facing booking and hold routes.
type BookingHandler struct {
	mgr      *fleet.Manager
	validate *validator.Validate
}

// NewBookingHandler constructs the handler with its own validator.
func NewBookingHandler(mgr *fleet.Manager) *BookingHandler {
	return &BookingHandler{mgr: mgr, validate: validator.New()}
}

// bookRequest is the JSON body of POST /v1/bookings and POST /v1/holds.
// BusID and Seat are optional preferences; a seat without a bus is
// rejected because a bare seat number is meaningless across the fleet.
type bookRequest struct {
	ClientID string `json:"client_id" validate:"required,max=64"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	BusID    *int   `json:"bus_id" validate:"omitempty,min=0"`
	Seat     *int   `json:"seat" validate:"omitempty,min=1"`
}

func (r bookRequest) toFleet() fleet.BookRequest {
	return fleet.BookRequest{ClientID: r.ClientID, Date: r.Date, BusID: r.BusID, Seat: r.Seat}
}

// clientRequest carries the caller identity for cancel/confirm/release.
type clientRequest struct {
	ClientID string `json:"client_id" validate:"required,max=64"`
}

// statusFor maps engine failure reasons onto HTTP status codes.
func statusFor(r fleet.Reason) int {
	switch r {
	case fleet.ReasonNotFound:
		return http.StatusNotFound
	case fleet.ReasonUnauthorized:
		return http.StatusForbidden
	case fleet.ReasonNoCapacity, fleet.ReasonLoadTooHigh:
		return http.StatusConflict
	case fleet.ReasonPersistenceFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Book handles POST /v1/bookings.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Seat != nil && req.BusID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat preference requires bus_id"})
	}
	res, err := h.mgr.Book(c.Request().Context(), req.toFleet())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusCreated, res)
}

// Cancel handles DELETE /v1/bookings/:id.  The caller identifies itself
// in the body; only the booking's holder may cancel it.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ClientID == "" {
		req.ClientID = c.QueryParam("client_id")
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.mgr.Cancel(c.Request().Context(), id, req.ClientID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, ok := h.mgr.GetBooking(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/bookings?client_id=...
func (h *BookingHandler) List(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	if clientID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "client_id is required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"client_id": clientID,
		"bookings":  h.mgr.ClientBookings(clientID),
	})
}

// Hold handles POST /v1/holds: a provisional claim that expires unless
// confirmed within the reservation timeout.
func (h *BookingHandler) Hold(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Seat != nil && req.BusID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat preference requires bus_id"})
	}
	res, err := h.mgr.HoldSeat(req.toFleet())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusCreated, res)
}

// ConfirmHold handles POST /v1/holds/:token/confirm.
func (h *BookingHandler) ConfirmHold(c echo.Context) error {
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.mgr.ConfirmHold(c.Request().Context(), c.Param("token"), req.ClientID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusCreated, res)
}

// ReleaseHold handles DELETE /v1/holds/:token.
func (h *BookingHandler) ReleaseHold(c echo.Context) error {
	var req clientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ClientID == "" {
		req.ClientID = c.QueryParam("client_id")
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.mgr.ReleaseHold(c.Param("token"), req.ClientID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusOK, res)
}
