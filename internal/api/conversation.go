package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mahawthada/legal-assistant/internal/conversation"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []types.Conversation `json:"conversations"`
	Stale         bool                 `json:"stale,omitempty"`
}

// SendMessageRequest is the request body for sending a chat message.
type SendMessageRequest struct {
	Message string     `json:"message"`
	Mode    types.Mode `json:"mode"`
}

// SendMessageResponse carries the reply and the updated transcript.
type SendMessageResponse struct {
	Reply types.Message      `json:"reply"`
	State conversation.State `json:"state"`
}

// RenameConversationRequest is the request body for renaming a conversation.
type RenameConversationRequest struct {
	Topic string `json:"topic"`
}

func conversationID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// ListConversations returns the user's conversations. When the backend is
// unreachable the last loaded list is returned and marked stale.
func (s *Server) ListConversations(c echo.Context) error {
	chat := s.userSession(c).Chat
	ctx := c.Request().Context()

	history, err := chat.LoadHistory(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load chat history")
		return c.JSON(http.StatusOK, ListConversationsResponse{
			Conversations: chat.CachedHistory(ctx),
			Stale:         true,
		})
	}
	return c.JSON(http.StatusOK, ListConversationsResponse{Conversations: history})
}

// GetTranscript returns the active conversation.
func (s *Server) GetTranscript(c echo.Context) error {
	return c.JSON(http.StatusOK, s.userSession(c).Chat.Snapshot())
}

// SendMessage handles POST /api/chat/messages
func (s *Server) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Mode != "" && req.Mode != types.ModeOnline && req.Mode != types.ModeOffline {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "mode must be online or offline"})
	}

	chat := s.userSession(c).Chat
	reply, err := chat.Send(c.Request().Context(), req.Message, req.Mode)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		}
		s.logger.WithError(err).Error("failed to send message")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to send message"})
	}
	return c.JSON(http.StatusOK, SendMessageResponse{Reply: reply, State: chat.Snapshot()})
}

// NewConversation clears the transcript.
func (s *Server) NewConversation(c echo.Context) error {
	chat := s.userSession(c).Chat
	chat.StartNew()
	return c.JSON(http.StatusOK, chat.Snapshot())
}

// SelectConversation opens a conversation from the history.
func (s *Server) SelectConversation(c echo.Context) error {
	id, ok := conversationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}

	chat := s.userSession(c).Chat
	if !chat.SelectByID(id) {
		if _, err := chat.LoadHistory(c.Request().Context()); err != nil {
			return s.backendFailure(c, err, "failed to load chat history")
		}
		if !chat.SelectByID(id) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		}
	}
	return c.JSON(http.StatusOK, chat.Snapshot())
}

// DeleteConversation deletes a conversation. The caller confirms with
// ?confirm=true.
func (s *Server) DeleteConversation(c echo.Context) error {
	id, ok := conversationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}

	confirmed := c.QueryParam("confirm") == "true"
	confirm := conversation.ConfirmFunc(func(context.Context, string) bool { return confirmed })

	chat := s.userSession(c).Chat
	if err := chat.Delete(c.Request().Context(), id, confirm); err != nil {
		if errors.Is(err, conversation.ErrNotConfirmed) {
			return c.JSON(http.StatusPreconditionRequired, ErrorResponse{Error: conversation.DeletePrompt})
		}
		return s.backendFailure(c, err, "failed to delete conversation")
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// RenameConversation sets a conversation's topic.
func (s *Server) RenameConversation(c echo.Context) error {
	id, ok := conversationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}
	var req RenameConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	chat := s.userSession(c).Chat
	if err := chat.Rename(c.Request().Context(), id, req.Topic); err != nil {
		if errors.Is(err, conversation.ErrEmptyTitle) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "topic is required"})
		}
		return s.backendFailure(c, err, "failed to rename conversation")
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
