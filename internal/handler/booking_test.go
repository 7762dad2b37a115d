package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-fleet-reservation/internal/fleet"
)

func newTestEngine() *fleet.Manager {
	return fleet.NewManager(fleet.Config{InitialBuses: 1, SeatsPerBus: 4}, fleet.NopGateway{}, fleet.NopAudit{})
}

func doJSON(h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	_ = h(c)
	return rec
}

func TestBookEndpoint(t *testing.T) {
	h := NewBookingHandler(newTestEngine())

	rec := doJSON(h.Book, http.MethodPost, "/v1/bookings", `{"client_id":"alice","date":"2026-09-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"booking_id":1`)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestBookEndpointRejectsBadDate(t *testing.T) {
	h := NewBookingHandler(newTestEngine())

	rec := doJSON(h.Book, http.MethodPost, "/v1/bookings", `{"client_id":"alice","date":"01-09-2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookEndpointRejectsSeatWithoutBus(t *testing.T) {
	h := NewBookingHandler(newTestEngine())

	rec := doJSON(h.Book, http.MethodPost, "/v1/bookings", `{"client_id":"alice","date":"2026-09-01","seat":2}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "requires bus_id")
}

func TestBookEndpointFullBusConflicts(t *testing.T) {
	mgr := newTestEngine()
	h := NewBookingHandler(mgr)

	rec := doJSON(h.Book, http.MethodPost, "/v1/bookings", `{"client_id":"alice","date":"2026-09-01","bus_id":0,"seat":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(h.Book, http.MethodPost, "/v1/bookings", `{"client_id":"bob","date":"2026-09-01","bus_id":0,"seat":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_capacity")
}

func TestCancelEndpointAuthorization(t *testing.T) {
	mgr := newTestEngine()
	h := NewBookingHandler(mgr)

	rec := doJSON(h.Book, http.MethodPost, "/v1/bookings", `{"client_id":"alice","date":"2026-09-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(h.Cancel, http.MethodDelete, "/v1/bookings/1", `{"client_id":"mallory"}`, "id", "1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(h.Cancel, http.MethodDelete, "/v1/bookings/1", `{"client_id":"alice"}`, "id", "1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(h.Cancel, http.MethodDelete, "/v1/bookings/1", `{"client_id":"alice"}`, "id", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHoldEndpointRoundTrip(t *testing.T) {
	mgr := newTestEngine()
	h := NewBookingHandler(mgr)

	rec := doJSON(h.Hold, http.MethodPost, "/v1/holds", `{"client_id":"alice","date":"2026-09-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "hold_token")

	// Pull the token out of the engine's result via a direct call to
	// keep the test independent of JSON field ordering.
	hold, err := mgr.HoldSeat(fleet.BookRequest{ClientID: "bob", Date: "2026-09-01"})
	require.NoError(t, err)
	require.True(t, hold.OK)

	rec = doJSON(h.ConfirmHold, http.MethodPost, "/v1/holds/x/confirm", `{"client_id":"bob"}`, "token", hold.HoldToken)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(h.ReleaseHold, http.MethodDelete, "/v1/holds/x", `{"client_id":"bob"}`, "token", hold.HoldToken)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a confirmed hold's token is spent")
}

func TestListEndpointRequiresClient(t *testing.T) {
	h := NewBookingHandler(newTestEngine())

	rec := doJSON(h.List, http.MethodGet, "/v1/bookings", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(h.List, http.MethodGet, "/v1/bookings?client_id=alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	rec := doJSON(Health, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
