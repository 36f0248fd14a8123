package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cruise-feed-sync/internal/handler"    // handlers implementing the endpoints
	"github.com/iliyamo/cruise-feed-sync/internal/middleware" // JWT middleware for the admin surface
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterWebhook registers the inbound notification endpoint.  The feed
// cannot attach credentials, so the route is unauthenticated; the handler
// acknowledges everything and validates internally.
func RegisterWebhook(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/v1/webhooks/cruiseline", w.Receive)
}

// RegisterAdmin registers the operator surface under /v1/admin, protected
// by the JWT middleware.  All endpoints are read-only except the
// reconciliation trigger.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("/webhook-events", a.ListWebhookEvents)
	g.GET("/webhook-events/:event_id", a.GetWebhookEvent)
	g.GET("/sync-locks", a.ListSyncLocks)
	g.GET("/cruises/:id/snapshots", a.ListSnapshots)
	g.POST("/reconcile", a.TriggerReconcile)
}
