package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/service"
	"github.com/mahawthada/legal-assistant/internal/types"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) History(ctx context.Context, userID int64) ([]types.Conversation, error) {
	args := m.Called(ctx, userID)
	h, _ := args.Get(0).([]types.Conversation)
	return h, args.Error(1)
}

func (m *mockBackend) Send(ctx context.Context, req *types.ChatRequest) (*types.ChatReply, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*types.ChatReply)
	return r, args.Error(1)
}

func (m *mockBackend) DeleteConversation(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBackend) RenameConversation(ctx context.Context, id int64, topic string) error {
	return m.Called(ctx, id, topic).Error(0)
}

func (m *mockBackend) StartCase(ctx context.Context, req *backend.StartCaseRequest) (*types.StartCaseResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*types.StartCaseResponse)
	return r, args.Error(1)
}

func (m *mockBackend) SubmitMessage(ctx context.Context, caseID types.CaseID, message string, role types.MessageRole) (*types.SubmitMessageResponse, error) {
	args := m.Called(ctx, caseID, message, role)
	r, _ := args.Get(0).(*types.SubmitMessageResponse)
	return r, args.Error(1)
}

func (m *mockBackend) CaseState(ctx context.Context, caseID types.CaseID) (*types.CaseState, error) {
	args := m.Called(ctx, caseID)
	r, _ := args.Get(0).(*types.CaseState)
	return r, args.Error(1)
}

func (m *mockBackend) Verdict(ctx context.Context, caseID types.CaseID) (*types.VerdictDocument, error) {
	args := m.Called(ctx, caseID)
	r, _ := args.Get(0).(*types.VerdictDocument)
	return r, args.Error(1)
}

func (m *mockBackend) Login(ctx context.Context, email, password string) (*types.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func (m *mockBackend) Signup(ctx context.Context, signup *types.SignupRequest) error {
	return m.Called(ctx, signup).Error(0)
}

func (m *mockBackend) CaseHistory(ctx context.Context) ([]types.CaseSummary, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]types.CaseSummary)
	return r, args.Error(1)
}

func (m *mockBackend) DownloadVerdictPDF(ctx context.Context, caseID types.CaseID) (*types.VerdictDocument, error) {
	args := m.Called(ctx, caseID)
	r, _ := args.Get(0).(*types.VerdictDocument)
	return r, args.Error(1)
}

var testUser = &types.User{ID: 7, Username: "aye", Email: "aye@example.com"}

type testServer struct {
	e     *echo.Echo
	auth  *service.AuthService
	token string
}

func newTestServer(t *testing.T, be *mockBackend) *testServer {
	t.Helper()
	return newArchiveTestServer(t, be, nil)
}

func newArchiveTestServer(t *testing.T, be *mockBackend, archive casesession.DownloadArchive) *testServer {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	auth := service.NewAuthService("test-secret", time.Hour)
	reg := NewRegistry(be, SessionOptions{DownloadDir: t.TempDir(), PollInterval: time.Hour, Archive: archive}, logger)
	t.Cleanup(reg.Close)

	e := echo.New()
	NewServer(auth, be, reg, logger).Register(e)

	token, _, err := auth.IssueToken(testUser)
	require.NoError(t, err)
	return &testServer{e: e, auth: auth, token: token}
}

func (s *testServer) do(method, target string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		data, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if s.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(target, field string, names ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		part, _ := w.CreateFormFile(field, name)
		_, _ = part.Write([]byte("content of " + name))
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &mockBackend{})
	s.token = ""
	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t, &mockBackend{})

	s.token = ""
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/chat/messages", nil).Code)

	s.token = "not-a-jwt"
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/chat/messages", nil).Code)
}

func TestLogin(t *testing.T) {
	be := &mockBackend{}
	be.On("Login", mock.Anything, "aye@example.com", "pw").Return(testUser, nil).Once()
	be.On("Login", mock.Anything, "aye@example.com", "bad").
		Return(nil, &backend.ServerError{Op: "login", StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}).Once()

	s := newTestServer(t, be)
	s.token = ""

	rec := s.do(http.MethodPost, "/auth/login", types.LoginRequest{Email: "aye@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, testUser, resp.User)

	claims, err := s.auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)

	rec = s.do(http.MethodPost, "/auth/login", types.LoginRequest{Email: "aye@example.com", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode[ErrorResponse](t, rec).Error)
}

func TestSignupRequiresAllFields(t *testing.T) {
	be := &mockBackend{}
	s := newTestServer(t, be)
	s.token = ""

	rec := s.do(http.MethodPost, "/auth/signup", types.SignupRequest{Email: "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All fields are required.", decode[ErrorResponse](t, rec).Error)
	be.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestChatSend(t *testing.T) {
	be := &mockBackend{}
	be.On("Send", mock.Anything, mock.MatchedBy(func(req *types.ChatRequest) bool {
		return req.UserID == 7 && req.Message == "How do I file for divorce?"
	})).Return(&types.ChatReply{Answer: "You file a petition.", ConversationID: 3}, nil).Once()
	be.On("History", mock.Anything, int64(7)).Return([]types.Conversation{{ID: 3, Topic: "Divorce"}}, nil)

	s := newTestServer(t, be)
	rec := s.do(http.MethodPost, "/api/chat/messages", SendMessageRequest{Message: "How do I file for divorce?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SendMessageResponse](t, rec)
	assert.Equal(t, "You file a petition.", resp.Reply.Text)
	require.NotNil(t, resp.State.ConversationID)
	assert.Equal(t, int64(3), *resp.State.ConversationID)
	assert.Len(t, resp.State.Messages, 2)

	rec = s.do(http.MethodPost, "/api/chat/messages", SendMessageRequest{Message: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/chat/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ListConversationsResponse](t, rec).Conversations, 1)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	be := &mockBackend{}
	be.On("DeleteConversation", mock.Anything, int64(3)).Return(nil).Once()
	be.On("History", mock.Anything, int64(7)).Return([]types.Conversation{}, nil)

	s := newTestServer(t, be)

	rec := s.do(http.MethodDelete, "/api/chat/history/3", nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	be.AssertNotCalled(t, "DeleteConversation", mock.Anything, mock.Anything)

	rec = s.do(http.MethodDelete, "/api/chat/history/3?confirm=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	be.AssertExpectations(t)
}

func TestRenameFailureKeepsBanner(t *testing.T) {
	be := &mockBackend{}
	be.On("RenameConversation", mock.Anything, int64(3), "Lease").
		Return(&backend.NetworkError{Op: "rename", Err: context.DeadlineExceeded, Timeout: true}).Once()

	s := newTestServer(t, be)
	rec := s.do(http.MethodPatch, "/api/chat/history/3", RenameConversationRequest{Topic: "Lease"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = s.do(http.MethodGet, "/api/chat/messages", nil)
	assert.NotEmpty(t, decode[map[string]any](t, rec)["last_error"])
}

func TestStartCaseValidation(t *testing.T) {
	be := &mockBackend{}
	s := newTestServer(t, be)

	rec := s.do(http.MethodPost, "/api/case/start", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Len(t, resp.Fields, 6)
	assert.Equal(t, "Please enter a case title.", resp.Fields["case_title"])
	be.AssertNotCalled(t, "StartCase", mock.Anything, mock.Anything)
}

func TestAddFilesOverCapacity(t *testing.T) {
	s := newTestServer(t, &mockBackend{})

	rec := s.upload("/api/case/files/plaintiff", "files", "a.pdf", "b.pdf", "c.pdf", "d.pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You can upload at most 3 files for the plaintiff.", decode[ErrorResponse](t, rec).Error)

	rec = s.upload("/api/case/files/witness", "files", "a.pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/case/files/plaintiff/0", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaseFlow(t *testing.T) {
	be := &mockBackend{}
	be.On("StartCase", mock.Anything, mock.MatchedBy(func(req *backend.StartCaseRequest) bool {
		return req.CaseTitle == "Unpaid rent" && len(req.PlaintiffFiles) == 2 && len(req.DefendantFiles) == 1
	})).Return(&types.StartCaseResponse{CaseID: "42", InitialAnalysis: "Analysis.", Status: types.StatusInProgress, Language: "en"}, nil).Once()
	be.On("SubmitMessage", mock.Anything, types.CaseID("42"), "I paid.", types.RolePlaintiff).
		Return(&types.SubmitMessageResponse{Response: "Defendant?", CurrentSpeaker: "defendant", CurrentRound: 1}, nil).Once()
	be.On("CaseState", mock.Anything, types.CaseID("42")).
		Return(&types.CaseState{Status: types.StatusVerdictRendered, FinalVerdict: "Plaintiff wins."}, nil).Once()
	be.On("Verdict", mock.Anything, types.CaseID("42")).
		Return(&types.VerdictDocument{Filename: "verdict_42.pdf", ContentType: backend.ContentTypePDF, Data: []byte("%PDF")}, nil).Once()

	s := newTestServer(t, be)

	rec := s.do(http.MethodPut, "/api/case/draft", casesession.Draft{
		Title: "Unpaid rent", Scenario: "Rent unpaid.", PlaintiffName: "Aung", DefendantName: "Hla",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusOK, s.upload("/api/case/files/plaintiff", "files", "lease.pdf", "bank.pdf").Code)
	require.Equal(t, http.StatusOK, s.upload("/api/case/files/defendant", "files", "letter.txt").Code)

	rec = s.do(http.MethodPost, "/api/case/start", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[casesession.View](t, rec)
	assert.Equal(t, casesession.PhaseConversing, view.Phase)
	assert.Equal(t, types.CaseID("42"), view.CaseID)

	rec = s.do(http.MethodPost, "/api/case/messages", CaseMessageRequest{Message: "I paid."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Defendant?", decode[CaseMessageResponse](t, rec).Reply.Text)

	rec = s.do(http.MethodPost, "/api/case/poll", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[casesession.View](t, rec)
	assert.Equal(t, casesession.PhaseVerdictReady, view.Phase)
	assert.True(t, view.Downloaded)

	rec = s.do(http.MethodPost, "/api/case/verdict", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/case/verdict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())
	assert.True(t, strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "verdict_42.pdf"))

	rec = s.do(http.MethodPost, "/api/case/messages", CaseMessageRequest{Message: "Appeal!"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodDelete, "/api/case", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, casesession.PhaseDrafting, decode[casesession.View](t, rec).Phase)
	be.AssertExpectations(t)
}

func TestArchivedVerdict(t *testing.T) {
	be := &mockBackend{}
	be.On("DownloadVerdictPDF", mock.Anything, types.CaseID("9")).
		Return(&types.VerdictDocument{Filename: "9.pdf", ContentType: backend.ContentTypePDF, Data: []byte("%PDF")}, nil).Once()
	be.On("CaseHistory", mock.Anything).Return([]types.CaseSummary{{CaseID: "9"}}, nil).Once()

	s := newTestServer(t, be)

	rec := s.do(http.MethodGet, "/api/cases/9/verdict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, backend.ContentTypePDF, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `"9.pdf"`)

	rec = s.do(http.MethodGet, "/api/cases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.CaseSummary](t, rec), 1)
}

func TestArchivedVerdictServedFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdict_9.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-archived"), 0o600))

	archive := casesession.NewMemoryLedger()
	require.NoError(t, archive.Record(context.Background(), types.DownloadRecord{
		CaseID: "9", Filename: "verdict_9.pdf", Location: path, SizeBytes: 13, DownloadedAt: time.Now(),
	}))

	be := &mockBackend{}
	s := newArchiveTestServer(t, be, archive)

	rec := s.do(http.MethodGet, "/api/cases/9/verdict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-archived", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "verdict_9.pdf")
	be.AssertNotCalled(t, "DownloadVerdictPDF", mock.Anything, mock.Anything)
}

func TestArchivedVerdictMissingFileFallsBack(t *testing.T) {
	archive := casesession.NewMemoryLedger()
	require.NoError(t, archive.Record(context.Background(), types.DownloadRecord{
		CaseID: "9", Filename: "verdict_9.pdf", Location: filepath.Join(t.TempDir(), "gone.pdf"), DownloadedAt: time.Now(),
	}))

	be := &mockBackend{}
	be.On("DownloadVerdictPDF", mock.Anything, types.CaseID("9")).
		Return(&types.VerdictDocument{Filename: "9.pdf", ContentType: backend.ContentTypePDF, Data: []byte("%PDF")}, nil).Once()
	s := newArchiveTestServer(t, be, archive)

	rec := s.do(http.MethodGet, "/api/cases/9/verdict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())
	be.AssertExpectations(t)
}

func TestListDownloads(t *testing.T) {
	archive := casesession.NewMemoryLedger()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []types.CaseID{"1", "2", "3"} {
		require.NoError(t, archive.Record(context.Background(), types.DownloadRecord{
			CaseID: id, Filename: "verdict_" + string(id) + ".pdf", DownloadedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	s := newArchiveTestServer(t, &mockBackend{}, archive)

	rec := s.do(http.MethodGet, "/api/downloads?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]types.DownloadRecord](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, types.CaseID("3"), list[0].CaseID)
	assert.Equal(t, types.CaseID("2"), list[1].CaseID)

	rec = s.do(http.MethodGet, "/api/downloads?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
