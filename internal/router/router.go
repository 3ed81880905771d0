// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/handler"
	"github.com/sujal-shrestha/queless-backend/internal/middleware"
	"github.com/sujal-shrestha/queless-backend/internal/model"
)

// RegisterRoutes registers routes that require no authentication at all.
// Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints under /v1/auth plus the
// profile endpoint. Register, login, refresh and logout run outside the JWT
// middleware; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.Use(middleware.RequireRole(model.RoleUser, model.RoleStaff))
	me.GET("/me", a.Me)
}

// RegisterCatalog registers the public browse endpoints. cacheMW is the
// Redis response cache; pass nil to serve uncached.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, cacheMW echo.MiddlewareFunc) {
	g := e.Group("/v1/venues")
	if cacheMW != nil {
		g.Use(cacheMW)
	}
	g.GET("", h.ListVenues)
	g.GET("/:id/branches", h.ListBranches)
}
