package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"

	"github.com/mahawthada/legal-assistant/internal/attachment"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// StartCaseRequest is the multipart form of POST /start_case.
type StartCaseRequest struct {
	CaseTitle      string
	Scenario       string
	PlaintiffName  string
	DefendantName  string
	PlaintiffFiles []attachment.File
	DefendantFiles []attachment.File
}

// StartCase creates a case and returns the judge's initial analysis.
func (c *Client) StartCase(ctx context.Context, start *StartCaseRequest) (*types.StartCaseResponse, error) {
	body, contentType, err := encodeStartCase(start)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.judgeURL+"/start_case", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var resp types.StartCaseResponse
	if err := c.doJSON(req, "start case", &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, rejected("start case", resp.Error)
	}
	if resp.CaseID == "" {
		return nil, fmt.Errorf("start case: response has no case_id")
	}
	return &resp, nil
}

func encodeStartCase(start *StartCaseRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"case_title", start.CaseTitle},
		{"scenario", start.Scenario},
		{"plaintiff_name", start.PlaintiffName},
		{"defendant_name", start.DefendantName},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := writeFiles(w, "plaintiff_files", start.PlaintiffFiles); err != nil {
		return nil, "", err
	}
	if err := writeFiles(w, "defendant_files", start.DefendantFiles); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFiles(w *multipart.Writer, field string, files []attachment.File) error {
	for _, f := range files {
		part, err := w.CreateFormFile(field, f.Name)
		if err != nil {
			return fmt.Errorf("create %s part: %w", field, err)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	return nil
}

// SubmitMessage sends one party statement for the current round.
func (c *Client) SubmitMessage(ctx context.Context, caseID types.CaseID, message string, role types.MessageRole) (*types.SubmitMessageResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", message); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}
	if err := w.WriteField("role", string(role)); err != nil {
		return nil, fmt.Errorf("write role: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	u := c.judgeURL + "/submit_message/" + url.PathEscape(string(caseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp types.SubmitMessageResponse
	if err := c.doJSON(req, "submit message", &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, rejected("submit message", resp.Error)
	}
	return &resp, nil
}

// CaseState fetches the server-side state of a case.
func (c *Client) CaseState(ctx context.Context, caseID types.CaseID) (*types.CaseState, error) {
	u := c.judgeURL + "/get_case_state/" + url.PathEscape(string(caseID))
	req, err := c.newJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var state types.CaseState
	if err := c.doJSON(req, "get case state", &state); err != nil {
		return nil, err
	}
	if state.Error != "" {
		return nil, &ServerError{Op: "get case state", StatusCode: http.StatusNotFound, Message: state.Error}
	}
	return &state, nil
}

// Verdict fetches the verdict document of a case. The content type is
// reported as sent; callers check it before treating the body as a PDF.
func (c *Client) Verdict(ctx context.Context, caseID types.CaseID) (*types.VerdictDocument, error) {
	return c.fetchDocument(ctx, "get verdict", "/get_verdict/", caseID)
}

// DownloadVerdictPDF fetches an archived verdict by case id.
func (c *Client) DownloadVerdictPDF(ctx context.Context, caseID types.CaseID) (*types.VerdictDocument, error) {
	doc, err := c.fetchDocument(ctx, "download verdict pdf", "/download_verdict_pdf/", caseID)
	if err != nil {
		return nil, err
	}
	if doc.Filename == "" {
		doc.Filename = string(caseID) + ".pdf"
	}
	return doc, nil
}

func (c *Client) fetchDocument(ctx context.Context, op, path string, caseID types.CaseID) (*types.VerdictDocument, error) {
	u := c.judgeURL + path + url.PathEscape(string(caseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", ContentTypePDF)

	resp, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDocument+1))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err), Timeout: isTimeout(err)}
	}
	if int64(len(data)) > c.maxDocument {
		return nil, fmt.Errorf("%s: %w: over %d bytes", op, ErrDocumentTooLarge, c.maxDocument)
	}
	return &types.VerdictDocument{
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// CaseHistory lists judged cases, newest verdict first.
func (c *Client) CaseHistory(ctx context.Context) ([]types.CaseSummary, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.judgeURL+"/get_case_history", nil)
	if err != nil {
		return nil, err
	}

	var cases []types.CaseSummary
	if err := c.doJSON(req, "get case history", &cases); err != nil {
		return nil, err
	}
	sort.SliceStable(cases, func(i, j int) bool {
		ti, _ := cases[i].VerdictTime()
		tj, _ := cases[j].VerdictTime()
		return ti.After(tj)
	})
	if cases == nil {
		cases = []types.CaseSummary{}
	}
	return cases, nil
}
