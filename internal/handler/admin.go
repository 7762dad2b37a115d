package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-fleet-reservation/internal/fleet"
	"github.com/iliyamo/bus-fleet-reservation/internal/utils"
)

// AdminHandler serves the operator surface: login, fleet consolidation,
// the overview report and the emergency seat release.
type AdminHandler struct {
	mgr       *fleet.Manager
	validate  *validator.Validate
	jwtSecret string
	ttlMin    int
	adminUser string
	passHash  string
}

// NewAdminHandler constructs the handler.  passHash is the bcrypt hash
// of the single operator account's password.
func NewAdminHandler(mgr *fleet.Manager, jwtSecret string, ttlMin int, adminUser, passHash string) *AdminHandler {
	return &AdminHandler{
		mgr:       mgr,
		validate:  validator.New(),
		jwtSecret: jwtSecret,
		ttlMin:    ttlMin,
		adminUser: adminUser,
		passHash:  passHash,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /v1/admin/login and issues an admin access token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	// Verify the hash even on a username mismatch so both failure modes
	// take comparable time.
	userOK := req.Username == h.adminUser
	passOK := utils.VerifyPassword(h.passHash, req.Password)
	if !userOK || !passOK {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAccessToken(h.jwtSecret, req.Username, "admin", h.ttlMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token signing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp,
	})
}

// Merge handles POST /v1/admin/merge: consolidate underutilized buses.
func (h *AdminHandler) Merge(c echo.Context) error {
	res := h.mgr.MergeUnderutilized(c.Request().Context())
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusOK, res)
}

// Overview handles GET /v1/admin/overview.
func (h *AdminHandler) Overview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.OverviewReport())
}

type forceReleaseRequest struct {
	BusID int    `json:"bus_id" validate:"min=0"`
	Seat  int    `json:"seat" validate:"required,min=1"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ForceRelease handles POST /v1/admin/force-release: free a seat and
// drop any booking or hold that references it.
func (h *AdminHandler) ForceRelease(c echo.Context) error {
	var req forceReleaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.mgr.ForceRelease(c.Request().Context(), req.BusID, req.Seat, req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !res.OK {
		return c.JSON(statusFor(res.Reason), res)
	}
	return c.JSON(http.StatusOK, res)
}
