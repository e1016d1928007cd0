package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrDocumentTooLarge is returned when a verdict document exceeds the
// client's size cap.
var ErrDocumentTooLarge = errors.New("document too large")

// NetworkError is returned when a request never produced a response:
// connection refused, DNS failure, timeout or an aborted connection.
type NetworkError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is returned when the backend answered with a non-2xx status,
// or with a 2xx body that carries an "error" field.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// *ServerError.
func StatusCode(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsTimeout reports whether err is a timed out or aborted request.
func IsTimeout(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Timeout
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// rejected turns an in-band {"error": "..."} answer into a ServerError.
func rejected(op, msg string) error {
	return &ServerError{Op: op, StatusCode: http.StatusUnprocessableEntity, Message: msg}
}

// errorMessage extracts a human readable message from an error body. Flask
// answers {"message"}, FastAPI {"detail"} and some handlers {"error"}.
func errorMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	case len(payload.Detail) > 0:
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil {
			return detail
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(body))
}
