package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/meetnote-labs/meetnote/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg       *config.Config
	status    *StatusHandler
	startedAt time.Time
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, status *StatusHandler) *Router {
	return &Router{
		cfg:       cfg,
		status:    status,
		startedAt: time.Now(),
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupStatusRoutes(v1)
}

// setupStatusRoutes configures the read-only operator routes
func (rt *Router) setupStatusRoutes(g *echo.Group) {
	g.GET("/meetings", rt.status.ListMeetings)
	g.GET("/meetings/:id", rt.status.GetMeeting)
	g.GET("/status/failures", rt.status.ListFailures)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"environment":    rt.cfg.Server.Environment,
		"uptime_seconds": int(time.Since(rt.startedAt).Seconds()),
	})
}
