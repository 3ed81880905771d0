package router

import (
	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/handler"
	"github.com/sujal-shrestha/queless-backend/internal/middleware"
	"github.com/sujal-shrestha/queless-backend/internal/model"
)

// RegisterQueue registers the queue endpoints. The live view is public so
// waiting users can poll it without a session; everything else is staff
// only, with branch scope enforced inside the handlers against the branch
// claim of the access token.
func RegisterQueue(e *echo.Echo, h *handler.QueueHandler, jwtSecret string) {
	e.GET("/v1/queue/:branchId/live", h.Live)

	staff := e.Group("/v1/queue")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole(model.RoleStaff))

	staff.GET("/:branchId/roster", h.Roster)
	staff.POST("/:branchId/start", h.Start)
	staff.POST("/:branchId/next", h.Next)
	staff.POST("/verify", h.Verify)
}
