package middleware // middleware provides reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the caller identity into the request context. Downstream
// handlers read it via c.Get("user_id") (uint64), c.Get("role") (string) and
// c.Get("branch_id") (uint64, 0 for non-staff). Ticket capability tokens are
// rejected here: they authorize a single scan at the verify endpoint, never
// an API session.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			role, _ := claims["role"].(string)
			if role == "" || role == utils.TicketRole {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			userID := numClaim(claims, "sub")
			if userID == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set("user_id", userID)
			c.Set("role", role)
			c.Set("branch_id", numClaim(claims, "branch"))
			return next(c)
		}
	}
}

// numClaim reads a numeric claim; JSON numbers decode as float64.
func numClaim(claims jwt.MapClaims, key string) uint64 {
	switch v := claims[key].(type) {
	case float64:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint64:
		return v
	}
	return 0
}
