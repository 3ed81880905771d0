// Package handler implements the HTTP endpoints. Handlers bind and validate
// input, call into repositories and translate sentinel errors into JSON
// responses; they never build SQL themselves.
package handler

import (
	"time"

	"github.com/labstack/echo/v4"
)

// dbTimeout bounds every database call made from a handler.
const dbTimeout = 5 * time.Second

// callerID returns the authenticated user id placed in the context by the
// JWTAuth middleware, or 0 when absent.
func callerID(c echo.Context) uint64 {
	id, _ := c.Get("user_id").(uint64)
	return id
}

// callerRole returns the authenticated role, or "" when absent.
func callerRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}

// callerBranch returns the staff caller's assigned branch, or 0.
func callerBranch(c echo.Context) uint64 {
	b, _ := c.Get("branch_id").(uint64)
	return b
}
