package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mahawthada/legal-assistant/internal/types"
)

// History fetches every conversation of a user, newest first.
func (c *Client) History(ctx context.Context, userID int64) ([]types.Conversation, error) {
	url := fmt.Sprintf("%s/chat/history/%d", c.chatURL, userID)
	req, err := c.newJSONRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var history []types.Conversation
	if err := c.doJSON(req, "chat history", &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []types.Conversation{}
	}
	return history, nil
}

// Send posts a chat message. A nil ConversationID starts a new conversation.
func (c *Client) Send(ctx context.Context, chatReq *types.ChatRequest) (*types.ChatReply, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.chatURL+"/chat", chatReq)
	if err != nil {
		return nil, err
	}

	var reply types.ChatReply
	if err := c.doJSON(req, "send chat message", &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, conversationID int64) error {
	url := c.chatURL + "/chat/history/" + strconv.FormatInt(conversationID, 10)
	req, err := c.newJSONRequest(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, "delete conversation", nil)
}

// RenameConversation sets a conversation's topic.
func (c *Client) RenameConversation(ctx context.Context, conversationID int64, topic string) error {
	url := c.chatURL + "/chat/history/" + strconv.FormatInt(conversationID, 10)
	req, err := c.newJSONRequest(ctx, http.MethodPatch, url, types.RenameRequest{Topic: topic})
	if err != nil {
		return err
	}
	return c.doJSON(req, "rename conversation", nil)
}

// Login exchanges credentials for the account record.
func (c *Client) Login(ctx context.Context, email, password string) (*types.User, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.chatURL+"/login", types.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var resp types.LoginResponse
	if err := c.doJSON(req, "login", &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &ServerError{Op: "login", StatusCode: http.StatusUnauthorized, Message: resp.Message}
	}
	return resp.User, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, signup *types.SignupRequest) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.chatURL+"/signup", signup)
	if err != nil {
		return err
	}
	return c.doJSON(req, "signup", nil)
}
