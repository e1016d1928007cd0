package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mahawthada/legal-assistant/internal/types"
)

// LoginResponse is the response of POST /auth/login.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *types.User `json:"user"`
}

// Signup registers an account with the chat backend.
func (s *Server) Signup(c echo.Context) error {
	var req types.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "All fields are required."})
	}

	if err := s.backend.Signup(c.Request().Context(), &req); err != nil {
		return s.backendFailure(c, err, "failed to sign up")
	}
	return c.JSON(http.StatusCreated, SuccessResponse{Success: true})
}

// Login checks credentials with the chat backend and issues an access token.
func (s *Server) Login(c echo.Context) error {
	var req types.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and password are required"})
	}

	user, err := s.backend.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.backendFailure(c, err, "failed to log in")
	}

	token, expires, err := s.authService.IssueToken(user)
	if err != nil {
		s.logger.WithError(err).Error("failed to issue token")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to issue token"})
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: user})
}
