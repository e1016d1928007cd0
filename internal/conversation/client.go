// Package conversation implements the legal chat client: history, optimistic
// send, and conversation selection, deletion and renaming.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/session"
	"github.com/mahawthada/legal-assistant/internal/textnorm"
	"github.com/mahawthada/legal-assistant/internal/types"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoSession    = errors.New("please log in to use the chatbot")
	ErrNotConfirmed = errors.New("delete was not confirmed")
	ErrEmptyTitle   = errors.New("conversation title is empty")
)

// Texts of the synthetic bot message appended when a send fails.
const (
	MsgInvalidRequest = "Your message could not be processed. Please rephrase it and try again."
	MsgServerError    = "The server ran into a problem answering your question. Please try again later."
	MsgTimeout        = "The request timed out. Please try again."
	MsgUnavailable    = "Sorry, I am unable to respond right now. Please try again later."
)

// DeletePrompt is the question put to the Confirmer before a delete.
const DeletePrompt = "Are you sure you want to delete this conversation?"

// ChatGateway is the chat backend.
type ChatGateway interface {
	History(ctx context.Context, userID int64) ([]types.Conversation, error)
	Send(ctx context.Context, req *types.ChatRequest) (*types.ChatReply, error)
	DeleteConversation(ctx context.Context, conversationID int64) error
	RenameConversation(ctx context.Context, conversationID int64, topic string) error
}

// HistoryCache stores conversation history between sessions.
type HistoryCache interface {
	Get(ctx context.Context, userID int64) ([]types.Conversation, bool, error)
	Set(ctx context.Context, userID int64, history []types.Conversation) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Option configures a Client.
type Option func(*Client)

// WithHistoryCache sets the cache history is written through to.
func WithHistoryCache(cache HistoryCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// State is a copy of the client's view.
type State struct {
	Messages       []types.Message `json:"messages"`
	ConversationID *int64          `json:"conversation_id"`
	Loading        bool            `json:"loading"`
	Editing        *int64          `json:"editing,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
}

// Client holds one user's chat state. It is safe for concurrent use; network
// calls run outside the lock and their results are committed afterwards.
type Client struct {
	gateway ChatGateway
	session session.Provider
	cache   HistoryCache
	logger  logrus.FieldLogger
	refresh singleflight.Group

	mu             sync.Mutex
	messages       []types.Message
	nextID         int
	conversationID *int64
	generation     uint64
	loading        bool
	history        []types.Conversation
	historyLoaded  bool
	editing        *int64
	lastErr        error
}

// NewClient creates a chat client.
func NewClient(gateway ChatGateway, sess session.Provider, logger logrus.FieldLogger, opts ...Option) *Client {
	c := &Client{
		gateway: gateway,
		session: sess,
		logger:  logger.WithField("component", "conversation"),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) currentUser() (*types.User, error) {
	user, ok := c.session.CurrentUser()
	if !ok {
		return nil, ErrNoSession
	}
	return user, nil
}

// LoadHistory fetches the user's conversations and replaces the cached list.
// On failure the previous list is kept.
func (c *Client) LoadHistory(ctx context.Context) ([]types.Conversation, error) {
	user, err := c.currentUser()
	if err != nil {
		return nil, err
	}
	return c.refreshHistory(ctx, user.ID)
}

// refreshHistory coalesces concurrent refreshes for the same user.
func (c *Client) refreshHistory(ctx context.Context, userID int64) ([]types.Conversation, error) {
	v, err, _ := c.refresh.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		history, err := c.gateway.History(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}

		c.mu.Lock()
		c.history = history
		c.historyLoaded = true
		c.mu.Unlock()

		if c.cache != nil {
			if err := c.cache.Set(ctx, userID, history); err != nil {
				c.logger.WithError(err).Warn("failed to cache history")
			}
		}
		return history, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneHistory(v.([]types.Conversation)), nil
}

// CachedHistory returns the last loaded history without a backend call,
// falling back to the history cache when nothing was loaded yet.
func (c *Client) CachedHistory(ctx context.Context) []types.Conversation {
	c.mu.Lock()
	if c.historyLoaded {
		defer c.mu.Unlock()
		return cloneHistory(c.history)
	}
	c.mu.Unlock()

	user, ok := c.session.CurrentUser()
	if !ok || c.cache == nil {
		return []types.Conversation{}
	}
	history, found, err := c.cache.Get(ctx, user.ID)
	if err != nil {
		c.logger.WithError(err).Warn("failed to read cached history")
		return []types.Conversation{}
	}
	if !found {
		return []types.Conversation{}
	}
	return history
}

// Send appends text as a user message, asks the backend and appends the
// reply. Backend failures are reported as a bot message, not an error.
func (c *Client) Send(ctx context.Context, text string, mode types.Mode) (types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return types.Message{}, ErrEmptyMessage
	}
	user, err := c.currentUser()
	if err != nil {
		return types.Message{}, err
	}
	if mode == "" {
		mode = types.ModeOnline
	}

	reply, ok := c.exchange(ctx, user, text, mode)
	if ok {
		if _, err := c.refreshHistory(ctx, user.ID); err != nil {
			c.logger.WithError(err).Warn("failed to refresh history after send")
		}
	}
	return reply, nil
}

func (c *Client) exchange(ctx context.Context, user *types.User, text string, mode types.Mode) (types.Message, bool) {
	c.mu.Lock()
	c.appendLocked(text, false, types.RoleUser)
	c.loading = true
	gen := c.generation
	var convID *int64
	if c.conversationID != nil {
		id := *c.conversationID
		convID = &id
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.generation == gen {
			c.loading = false
		}
		c.mu.Unlock()
	}()

	resp, err := c.gateway.Send(ctx, &types.ChatRequest{
		UserID:         user.ID,
		Message:        text,
		ConversationID: convID,
		Mode:           mode,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.WithError(err).WithField("user_id", user.ID).Warn("chat send failed")
		if c.generation != gen {
			return types.Message{Text: failureText(err), IsBot: true, Role: types.RoleAssistant}, false
		}
		return c.appendLocked(failureText(err), true, types.RoleAssistant), false
	}
	// The transcript was switched while the reply was in flight; the reply
	// belongs to the abandoned conversation.
	if c.generation != gen {
		c.logger.WithField("user_id", user.ID).Debug("dropping reply for a conversation no longer shown")
		return types.Message{Text: textnorm.Normalize(resp.Text()), IsBot: true, Role: types.RoleAssistant}, true
	}
	msg := c.appendLocked(textnorm.Normalize(resp.Text()), true, types.RoleAssistant)
	if resp.ConversationID != 0 {
		id := resp.ConversationID
		c.conversationID = &id
	}
	return msg, true
}

func failureText(err error) string {
	switch {
	case backend.IsTimeout(err):
		return MsgTimeout
	case backend.StatusCode(err) == http.StatusUnprocessableEntity:
		return MsgInvalidRequest
	case backend.StatusCode(err) == http.StatusInternalServerError:
		return MsgServerError
	default:
		return MsgUnavailable
	}
}

func (c *Client) appendLocked(text string, isBot bool, role types.MessageRole) types.Message {
	msg := types.Message{ID: c.nextID, Text: text, IsBot: isBot, Role: role}
	c.nextID++
	c.messages = append(c.messages, msg)
	return msg
}

// Select shows a stored conversation and continues it on the next send.
func (c *Client) Select(conv types.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.loading = false
	c.messages = make([]types.Message, 0, len(conv.Messages))
	c.nextID = 1
	for _, m := range conv.Messages {
		isBot := m.Sender == types.SenderBot
		role := types.RoleUser
		if isBot {
			role = types.RoleAssistant
		}
		c.appendLocked(m.Text, isBot, role)
	}
	id := conv.ID
	c.conversationID = &id
}

// SelectByID selects a conversation from the cached history.
func (c *Client) SelectByID(id int64) bool {
	c.mu.Lock()
	var found *types.Conversation
	for i := range c.history {
		if c.history[i].ID == id {
			conv := c.history[i]
			found = &conv
			break
		}
	}
	c.mu.Unlock()

	if found == nil {
		return false
	}
	c.Select(*found)
	return true
}

// StartNew clears the transcript. The next send starts a new conversation.
func (c *Client) StartNew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startNewLocked()
}

func (c *Client) startNewLocked() {
	c.generation++
	c.loading = false
	c.messages = nil
	c.nextID = 1
	c.conversationID = nil
}

// Delete removes a conversation after confirm agrees.
func (c *Client) Delete(ctx context.Context, id int64, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(ctx, DeletePrompt) {
		return ErrNotConfirmed
	}
	user, err := c.currentUser()
	if err != nil {
		return err
	}

	if err := c.gateway.DeleteConversation(ctx, id); err != nil {
		c.logger.WithError(err).WithField("conversation_id", id).Warn("delete conversation failed")
		return fmt.Errorf("delete conversation %d: %w", id, err)
	}

	c.StartNew()
	if _, err := c.refreshHistory(ctx, user.ID); err != nil {
		c.logger.WithError(err).Warn("failed to refresh history after delete")
	}
	return nil
}

// BeginRename puts a conversation in edit mode.
func (c *Client) BeginRename(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = &id
}

// CancelRename leaves edit mode.
func (c *Client) CancelRename() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = nil
}

// Editing returns the conversation in edit mode, if any.
func (c *Client) Editing() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return 0, false
	}
	return *c.editing, true
}

// Rename sets a conversation's title. Edit mode is closed before the call;
// a failure is returned and kept as the last error.
func (c *Client) Rename(ctx context.Context, id int64, title string) error {
	title = strings.TrimSpace(title)

	c.mu.Lock()
	c.editing = nil
	c.mu.Unlock()

	if title == "" {
		return c.fail(ErrEmptyTitle)
	}
	user, err := c.currentUser()
	if err != nil {
		return c.fail(err)
	}

	if err := c.gateway.RenameConversation(ctx, id, title); err != nil {
		c.logger.WithError(err).WithField("conversation_id", id).Warn("rename conversation failed")
		return c.fail(fmt.Errorf("rename conversation %d: %w", id, err))
	}

	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()

	if _, err := c.refreshHistory(ctx, user.ID); err != nil {
		c.logger.WithError(err).Warn("failed to refresh history after rename")
	}
	return nil
}

func (c *Client) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return err
}

// LastError returns the error shown in the banner, if any.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DismissError clears the banner.
func (c *Client) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

// Messages returns a copy of the transcript.
func (c *Client) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Message(nil), c.messages...)
}

// ConversationID returns the active conversation, if any.
func (c *Client) ConversationID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID == nil {
		return 0, false
	}
	return *c.conversationID, true
}

// Loading reports whether a send is in flight.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Snapshot returns a copy of the client's view.
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Messages: append([]types.Message{}, c.messages...),
		Loading:  c.loading,
	}
	if c.conversationID != nil {
		id := *c.conversationID
		s.ConversationID = &id
	}
	if c.editing != nil {
		id := *c.editing
		s.Editing = &id
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

func cloneHistory(history []types.Conversation) []types.Conversation {
	out := make([]types.Conversation, len(history))
	for i, conv := range history {
		out[i] = conv
		out[i].Messages = append([]types.HistoryMessage(nil), conv.Messages...)
	}
	return out
}
