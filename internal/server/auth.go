package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware creates an Echo middleware that requires a bearer token
// matching adminKey, except on the listed skip paths.
func AuthMiddleware(adminKey string, skipPaths []string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if adminKey == "" || skip[c.Path()] {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": map[string]interface{}{
						"type":    "authentication_error",
						"message": "missing authorization header",
					},
				})
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": map[string]interface{}{
						"type":    "authentication_error",
						"message": "invalid authorization header format, expected 'Bearer <token>'",
					},
				})
			}

			if strings.TrimPrefix(authHeader, prefix) != adminKey {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": map[string]interface{}{
						"type":    "authentication_error",
						"message": "invalid admin key",
					},
				})
			}

			return next(c)
		}
	}
}
