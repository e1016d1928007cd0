// Package backend is the HTTP client for the chat/auth service and the AI
// Judge service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContentTypePDF is the media type of verdict documents.
const ContentTypePDF = "application/pdf"

// MaxDocumentBytes is the default cap on a downloaded verdict document.
const MaxDocumentBytes = 50 << 20

const (
	headerRequestID = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// Client talks to both backends.
type Client struct {
	chatURL     string
	judgeURL    string
	httpClient  *http.Client
	logger      logrus.FieldLogger
	maxDocument int64
}

// NewClient creates a new backend client.
func NewClient(chatURL, judgeURL string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	return &Client{
		chatURL:  strings.TrimRight(chatURL, "/"),
		judgeURL: strings.TrimRight(judgeURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:      logger,
		maxDocument: MaxDocumentBytes,
	}
}

// SetMaxDocumentSize changes the verdict document cap. Values <= 0 restore
// MaxDocumentBytes.
func (c *Client) SetMaxDocumentSize(n int64) {
	if n <= 0 {
		n = MaxDocumentBytes
	}
	c.maxDocument = n
}

func (c *Client) newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and returns the response for 2xx statuses. Transport failures
// become *NetworkError and other statuses *ServerError.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)

	log := c.logger.WithFields(logrus.Fields{
		"op":         op,
		"method":     req.Method,
		"url":        req.URL.String(),
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("backend request failed")
		return nil, &NetworkError{Op: op, Err: err, Timeout: isTimeout(err)}
	}

	log = log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"latency": time.Since(start).String(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warn("backend returned error status")
		return nil, &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	log.Debug("backend request")
	return resp, nil
}

// doJSON sends req and decodes a JSON response into out (when non-nil).
func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// filenameFromDisposition returns the filename parameter of a
// Content-Disposition header, or "" when there is none.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	_, after, ok := strings.Cut(header, "filename=")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(after, ";")
	return strings.Trim(strings.TrimSpace(name), `"`)
}
