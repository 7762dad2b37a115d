package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-fleet-reservation/internal/utils"
)

func newTestAdmin(t *testing.T) *AdminHandler {
	t.Helper()
	hash, err := utils.HashPassword("swordfish", 4)
	require.NoError(t, err)
	return NewAdminHandler(newTestEngine(), "test-secret", 30, "admin", hash)
}

func TestAdminLogin(t *testing.T) {
	h := newTestAdmin(t)

	rec := doJSON(h.Login, http.MethodPost, "/v1/admin/login", `{"username":"admin","password":"swordfish"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	rec = doJSON(h.Login, http.MethodPost, "/v1/admin/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(h.Login, http.MethodPost, "/v1/admin/login", `{"username":"root","password":"swordfish"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(h.Login, http.MethodPost, "/v1/admin/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminMergeRefusedOnBusyFleet(t *testing.T) {
	h := newTestAdmin(t)

	// Three of four seats booked: far above the merge threshold.
	for _, body := range []string{
		`{"client_id":"a","date":"2026-09-01"}`,
		`{"client_id":"b","date":"2026-09-01"}`,
		`{"client_id":"c","date":"2026-09-01"}`,
	} {
		rec := doJSON(NewBookingHandler(h.mgr).Book, http.MethodPost, "/v1/bookings", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(h.Merge, http.MethodPost, "/v1/admin/merge", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "load_too_high")
}

func TestAdminOverview(t *testing.T) {
	h := newTestAdmin(t)

	rec := doJSON(h.Overview, http.MethodGet, "/v1/admin/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_buses":1`)
}

func TestAdminForceRelease(t *testing.T) {
	h := newTestAdmin(t)

	rec := doJSON(NewBookingHandler(h.mgr).Book, http.MethodPost, "/v1/bookings",
		`{"client_id":"alice","date":"2026-09-01","bus_id":0,"seat":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(h.ForceRelease, http.MethodPost, "/v1/admin/force-release",
		`{"bus_id":0,"seat":2,"date":"2026-09-01"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Already free now.
	rec = doJSON(h.ForceRelease, http.MethodPost, "/v1/admin/force-release",
		`{"bus_id":0,"seat":2,"date":"2026-09-01"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
