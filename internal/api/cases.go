package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mahawthada/legal-assistant/internal/attachment"
	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// MaxUploadBytes is the largest evidence file accepted.
const MaxUploadBytes = 20 << 20

// CaseMessageRequest is the request body for a party statement.
type CaseMessageRequest struct {
	Message string `json:"message"`
}

// CaseMessageResponse carries the judge's reply and the session.
type CaseMessageResponse struct {
	Reply types.Message    `json:"reply"`
	State casesession.View `json:"state"`
}

// caseError answers controller errors that are not backend failures.
func (s *Server) caseError(c echo.Context, err error) error {
	var (
		ve *casesession.ValidationError
		ce *attachment.CapacityError
		ie *attachment.IndexError
	)
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve.Fields))
		for f, msg := range ve.Fields {
			fields[string(f)] = msg
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "case form incomplete", Fields: fields})
	case errors.As(err, &ce):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ce.Error()})
	case errors.As(err, &ie):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: ie.Error()})
	case errors.Is(err, casesession.ErrEmptyMessage):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, casesession.ErrCaseActive),
		errors.Is(err, casesession.ErrNoCase),
		errors.Is(err, casesession.ErrVerdictRendered),
		errors.Is(err, casesession.ErrPollInFlight),
		errors.Is(err, casesession.ErrNotPolling),
		errors.Is(err, casesession.ErrAlreadyDownloaded),
		errors.Is(err, casesession.ErrNoVerdict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, casesession.ErrNotPDF),
		errors.Is(err, backend.ErrDocumentTooLarge):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return s.backendFailure(c, err, "case request failed")
}

func partyParam(c echo.Context) (types.Party, bool) {
	p := types.Party(c.Param("party"))
	return p, p.Valid()
}

func readUpload(fh *multipart.FileHeader) (attachment.File, error) {
	if fh.Size > MaxUploadBytes {
		return attachment.File{}, fmt.Errorf("%s is larger than %d MB", fh.Filename, MaxUploadBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return attachment.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return attachment.File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if len(data) > MaxUploadBytes {
		return attachment.File{}, fmt.Errorf("%s is larger than %d MB", fh.Filename, MaxUploadBytes>>20)
	}
	return attachment.FromBytes(fh.Filename, data), nil
}

// GetCase returns the case session.
func (s *Server) GetCase(c echo.Context) error {
	return c.JSON(http.StatusOK, s.userSession(c).Case.Snapshot())
}

// UpdateDraft replaces the text fields of the case form.
func (s *Server) UpdateDraft(c echo.Context) error {
	var draft casesession.Draft
	if err := c.Bind(&draft); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	ctrl := s.userSession(c).Case
	if err := ctrl.SetDraft(draft); err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// AddFiles attaches the uploaded "files" parts to a party.
func (s *Server) AddFiles(c echo.Context) error {
	party, ok := partyParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "party must be plaintiff or defendant"})
	}
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no files uploaded"})
	}

	files := make([]attachment.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}
		files = append(files, f)
	}

	ctrl := s.userSession(c).Case
	if err := ctrl.AddFiles(party, files...); err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

func fileIndex(c echo.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	return i, err == nil
}

// ReplaceFile swaps a party's file with the uploaded "file" part.
func (s *Server) ReplaceFile(c echo.Context) error {
	party, ok := partyParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "party must be plaintiff or defendant"})
	}
	index, ok := fileIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file index"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
	}
	f, err := readUpload(fh)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	ctrl := s.userSession(c).Case
	if err := ctrl.ReplaceFile(party, index, f); err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// RemoveFile drops a party's file.
func (s *Server) RemoveFile(c echo.Context) error {
	party, ok := partyParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "party must be plaintiff or defendant"})
	}
	index, ok := fileIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file index"})
	}

	ctrl := s.userSession(c).Case
	if err := ctrl.RemoveFile(party, index); err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// StartCase submits the case form.
func (s *Server) StartCase(c echo.Context) error {
	ctrl := s.userSession(c).Case
	if err := ctrl.Start(c.Request().Context()); err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusCreated, ctrl.Snapshot())
}

// SubmitCaseMessage sends a statement for the current speaker.
func (s *Server) SubmitCaseMessage(c echo.Context) error {
	var req CaseMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	ctrl := s.userSession(c).Case
	reply, err := ctrl.Send(c.Request().Context(), req.Message)
	if err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, CaseMessageResponse{Reply: reply, State: ctrl.Snapshot()})
}

// PollCase checks the case state immediately.
func (s *Server) PollCase(c echo.Context) error {
	ctrl := s.userSession(c).Case
	if err := ctrl.Poll(c.Request().Context()); err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// DownloadVerdict fetches the verdict PDF into the user's download folder.
func (s *Server) DownloadVerdict(c echo.Context) error {
	ctrl := s.userSession(c).Case
	rec, err := ctrl.DownloadVerdict(c.Request().Context())
	if err != nil {
		return s.caseError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ServeVerdict returns the downloaded verdict PDF.
func (s *Server) ServeVerdict(c echo.Context) error {
	view := s.userSession(c).Case.Snapshot()
	if view.Download == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "verdict not downloaded"})
	}
	return c.Attachment(view.Download.Location, view.Download.Filename)
}

// ResetCase abandons the case and clears the form.
func (s *Server) ResetCase(c echo.Context) error {
	ctrl := s.userSession(c).Case
	ctrl.Reset()
	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// ListCases returns judged cases, newest first.
func (s *Server) ListCases(c echo.Context) error {
	cases, err := s.backend.CaseHistory(c.Request().Context())
	if err != nil {
		return s.backendFailure(c, err, "failed to list cases")
	}
	return c.JSON(http.StatusOK, cases)
}

// DefaultDownloadsLimit caps GET /api/downloads without a limit parameter.
const DefaultDownloadsLimit = 50

// ListDownloads returns delivered verdicts, newest first.
func (s *Server) ListDownloads(c echo.Context) error {
	limit := DefaultDownloadsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive number"})
		}
		limit = n
	}

	records, err := s.sessions.Archive().List(c.Request().Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list downloads")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list downloads"})
	}
	return c.JSON(http.StatusOK, records)
}

// DownloadArchivedVerdict streams the verdict PDF of any judged case. A copy
// delivered earlier is served from disk; otherwise the judge backend is asked.
func (s *Server) DownloadArchivedVerdict(c echo.Context) error {
	caseID := types.CaseID(c.Param("id"))
	ctx := c.Request().Context()

	rec, err := s.sessions.Archive().Get(ctx, caseID)
	switch {
	case err == nil:
		if _, statErr := os.Stat(rec.Location); statErr == nil {
			return c.Attachment(rec.Location, rec.Filename)
		}
		s.logger.WithField("case_id", caseID).Warn("archived verdict missing on disk")
	case !errors.Is(err, casesession.ErrNoRecord):
		s.logger.WithError(err).WithField("case_id", caseID).Warn("verdict archive lookup failed")
	}

	doc, err := s.backend.DownloadVerdictPDF(ctx, caseID)
	if err != nil {
		return s.backendFailure(c, err, "failed to download verdict")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	return c.Blob(http.StatusOK, backend.ContentTypePDF, doc.Data)
}
