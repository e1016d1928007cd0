package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mahawthada/legal-assistant/internal/backend"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SuccessResponse represents a generic success response.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// backendFailure answers a failed backend call. Client errors reported by
// the backend keep their status; everything else is a gateway error.
func (s *Server) backendFailure(c echo.Context, err error, msg string) error {
	status := http.StatusBadGateway
	switch code := backend.StatusCode(err); {
	case backend.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case code >= 400 && code < 500:
		status = code
	}

	s.logger.WithError(err).WithField("status", status).Warn(msg)

	var se *backend.ServerError
	if status < 500 && errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}
