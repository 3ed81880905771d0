package router

import (
	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/handler"
	"github.com/sujal-shrestha/queless-backend/internal/middleware"
	"github.com/sujal-shrestha/queless-backend/internal/model"
)

// RegisterBookings registers the user-facing booking endpoints. Staff
// accounts may also book tickets for themselves, so both roles are allowed;
// ownership checks inside the handlers keep callers out of other people's
// bookings.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleUser, model.RoleStaff))

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/today", h.Today)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/review", h.Review)
}
