package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-fleet-reservation/internal/fleet"
	"github.com/iliyamo/bus-fleet-reservation/internal/monitor"
)

// FleetHandler serves read-only fleet and stats routes.
type FleetHandler struct {
	mgr     *fleet.Manager
	sampler *monitor.Sampler
}

// NewFleetHandler constructs the handler.  The sampler may be nil when
// resource monitoring is disabled; /v1/stats then omits the resources
// block.
func NewFleetHandler(mgr *fleet.Manager, sampler *monitor.Sampler) *FleetHandler {
	return &FleetHandler{mgr: mgr, sampler: sampler}
}

// Snapshot handles GET /v1/fleet?date=YYYY-MM-DD.
func (h *FleetHandler) Snapshot(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":  date,
		"buses": h.mgr.FleetSnapshot(date),
	})
}

// Bus handles GET /v1/fleet/:id?date=YYYY-MM-DD.
func (h *FleetHandler) Bus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bus id"})
	}
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is required"})
	}
	snap, ok := h.mgr.BusStatus(id, date)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
	}
	return c.JSON(http.StatusOK, snap)
}

// Dates handles GET /v1/fleet/:id/dates.
func (h *FleetHandler) Dates(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bus id"})
	}
	dates, ok := h.mgr.AvailableDates(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bus_id": id, "dates": dates})
}

// Stats handles GET /v1/stats: the public engine counters plus the
// latest resource sample.
func (h *FleetHandler) Stats(c echo.Context) error {
	body := echo.Map{
		"load_factor":    h.mgr.OverallLoadFactor(),
		"total_visitors": h.mgr.TotalVisitors(),
	}
	if h.sampler != nil {
		body["resources"] = h.sampler.Latest()
	}
	return c.JSON(http.StatusOK, body)
}
