package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mahawthada/legal-assistant/internal/session"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// AuthMiddleware validates JWT tokens and puts the user on the request.
func (s *Server) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header"})
		}

		claims, err := s.authService.ValidateToken(parts[1])
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		}
		user, err := claims.User()
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		}

		c.SetRequest(c.Request().WithContext(session.WithUser(c.Request().Context(), user)))
		return next(c)
	}
}

// GetUser returns the user put on the request by AuthMiddleware.
func GetUser(c echo.Context) *types.User {
	user, _ := session.FromContext(c.Request().Context())
	return user
}

func (s *Server) userSession(c echo.Context) *UserSession {
	return s.sessions.Get(GetUser(c))
}
