// Package router assembles the HTTP surface: public booking and fleet
// routes, read caching, distributed rate limiting and the JWT-protected
// admin group.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bus-fleet-reservation/internal/config"
	"github.com/iliyamo/bus-fleet-reservation/internal/handler"
	"github.com/iliyamo/bus-fleet-reservation/internal/middleware"
)

// Deps bundles everything Register needs to wire the routes.
type Deps struct {
	Bookings  *handler.BookingHandler
	Fleet     *handler.FleetHandler
	Admin     *handler.AdminHandler
	Redis     *redis.Client // nil disables caching and rate limiting
	JWTSecret string
}

// Register mounts all routes on the Echo instance.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis))

	v1.POST("/bookings", d.Bookings.Book)
	v1.GET("/bookings", d.Bookings.List)
	v1.GET("/bookings/:id", d.Bookings.Get)
	v1.DELETE("/bookings/:id", d.Bookings.Cancel)

	v1.POST("/holds", d.Bookings.Hold)
	v1.POST("/holds/:token/confirm", d.Bookings.ConfirmHold)
	v1.DELETE("/holds/:token", d.Bookings.ReleaseHold)

	// Fleet reads dominate traffic during peak booking; they get the
	// response cache on top of the limiter.
	reads := v1.Group("")
	reads.Use(middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis))
	reads.GET("/fleet", d.Fleet.Snapshot)
	reads.GET("/fleet/:id", d.Fleet.Bus)
	reads.GET("/fleet/:id/dates", d.Fleet.Dates)
	reads.GET("/stats", d.Fleet.Stats)

	v1.POST("/admin/login", d.Admin.Login)

	admin := v1.Group("/admin")
	admin.Use(middleware.JWTAuth(d.JWTSecret), middleware.RequireRole("admin"))
	admin.POST("/merge", d.Admin.Merge)
	admin.GET("/overview", d.Admin.Overview)
	admin.POST("/force-release", d.Admin.ForceRelease)
}
