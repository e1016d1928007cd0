package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/conversation"
	"github.com/mahawthada/legal-assistant/internal/service"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// Backend is everything the server needs from the chat and judge services.
type Backend interface {
	conversation.ChatGateway
	casesession.CaseGateway
	Login(ctx context.Context, email, password string) (*types.User, error)
	Signup(ctx context.Context, signup *types.SignupRequest) error
	CaseHistory(ctx context.Context) ([]types.CaseSummary, error)
	DownloadVerdictPDF(ctx context.Context, caseID types.CaseID) (*types.VerdictDocument, error)
}

// Server holds API dependencies.
type Server struct {
	authService *service.AuthService
	backend     Backend
	sessions    *Registry
	logger      *logrus.Logger
}

// NewServer creates a new API server.
func NewServer(authService *service.AuthService, backend Backend, sessions *Registry, logger *logrus.Logger) *Server {
	return &Server{
		authService: authService,
		backend:     backend,
		sessions:    sessions,
		logger:      logger,
	}
}

// Register mounts every route on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	auth := e.Group("/auth")
	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)

	api := e.Group("/api", s.AuthMiddleware)

	api.GET("/chat/history", s.ListConversations)
	api.GET("/chat/messages", s.GetTranscript)
	api.POST("/chat/messages", s.SendMessage)
	api.POST("/chat/new", s.NewConversation)
	api.POST("/chat/history/:id/select", s.SelectConversation)
	api.DELETE("/chat/history/:id", s.DeleteConversation)
	api.PATCH("/chat/history/:id", s.RenameConversation)

	api.GET("/case", s.GetCase)
	api.PUT("/case/draft", s.UpdateDraft)
	api.POST("/case/files/:party", s.AddFiles)
	api.PUT("/case/files/:party/:index", s.ReplaceFile)
	api.DELETE("/case/files/:party/:index", s.RemoveFile)
	api.POST("/case/start", s.StartCase)
	api.POST("/case/messages", s.SubmitCaseMessage)
	api.POST("/case/poll", s.PollCase)
	api.POST("/case/verdict", s.DownloadVerdict)
	api.GET("/case/verdict", s.ServeVerdict)
	api.DELETE("/case", s.ResetCase)

	api.GET("/cases", s.ListCases)
	api.GET("/cases/:id/verdict", s.DownloadArchivedVerdict)
	api.GET("/downloads", s.ListDownloads)
}
