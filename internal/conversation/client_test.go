package conversation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/session"
	"github.com/mahawthada/legal-assistant/internal/types"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) History(ctx context.Context, userID int64) ([]types.Conversation, error) {
	args := m.Called(ctx, userID)
	history, _ := args.Get(0).([]types.Conversation)
	return history, args.Error(1)
}

func (m *mockGateway) Send(ctx context.Context, req *types.ChatRequest) (*types.ChatReply, error) {
	args := m.Called(ctx, req)
	reply, _ := args.Get(0).(*types.ChatReply)
	return reply, args.Error(1)
}

func (m *mockGateway) DeleteConversation(ctx context.Context, conversationID int64) error {
	return m.Called(ctx, conversationID).Error(0)
}

func (m *mockGateway) RenameConversation(ctx context.Context, conversationID int64, topic string) error {
	return m.Called(ctx, conversationID, topic).Error(0)
}

type memoryCache struct {
	data map[int64][]types.Conversation
}

func (c *memoryCache) Get(_ context.Context, userID int64) ([]types.Conversation, bool, error) {
	h, ok := c.data[userID]
	return h, ok, nil
}

func (c *memoryCache) Set(_ context.Context, userID int64, history []types.Conversation) error {
	c.data[userID] = history
	return nil
}

var testUser = &types.User{ID: 7, Username: "aye", Email: "aye@example.com"}

func newTestClient(gw ChatGateway, opts ...Option) *Client {
	logger, _ := logtest.NewNullLogger()
	return NewClient(gw, session.NewStatic(testUser), logger, opts...)
}

var sampleHistory = []types.Conversation{{
	ID:    5,
	Topic: "Tenant rights",
	Messages: []types.HistoryMessage{
		{Sender: "user", Text: "What are my rights as a tenant?"},
		{Sender: "bot", Text: "You are entitled to..."},
	},
}}

func TestSendRejectsEmptyText(t *testing.T) {
	gw := &mockGateway{}
	c := newTestClient(gw)

	_, err := c.Send(context.Background(), "   ", types.ModeOnline)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, c.Messages())
	gw.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendRequiresSession(t *testing.T) {
	gw := &mockGateway{}
	logger, _ := logtest.NewNullLogger()
	c := NewClient(gw, session.NewStatic(nil), logger)

	_, err := c.Send(context.Background(), "Hello", types.ModeOnline)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, c.Messages())
}

func TestSendAppendsNormalizedReply(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Send", mock.Anything, mock.MatchedBy(func(req *types.ChatRequest) bool {
		return req.UserID == 7 && req.Message == "What are my rights?" && req.ConversationID == nil && req.Mode == types.ModeOffline
	})).Return(&types.ChatReply{Answer: "You have rights.\nYou have rights.\n\n\n\n***Note***", ConversationID: 5}, nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return(sampleHistory, nil).Once()

	c := newTestClient(gw)
	reply, err := c.Send(context.Background(), "What are my rights?", types.ModeOffline)
	require.NoError(t, err)

	assert.Equal(t, "You have rights.\n\n**Note**", reply.Text)
	assert.True(t, reply.IsBot)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.Message{ID: 1, Text: "What are my rights?", Role: types.RoleUser}, msgs[0])
	assert.Equal(t, 2, msgs[1].ID)

	id, ok := c.ConversationID()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)
	assert.False(t, c.Loading())
	assert.Len(t, c.CachedHistory(context.Background()), 1)
	gw.AssertExpectations(t)
}

func TestSendContinuesConversation(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Send", mock.Anything, mock.MatchedBy(func(req *types.ChatRequest) bool {
		return req.ConversationID != nil && *req.ConversationID == 5
	})).Return(&types.ChatReply{Message: "Continuing.", ConversationID: 5}, nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return(sampleHistory, nil)

	c := newTestClient(gw)
	c.Select(sampleHistory[0])

	reply, err := c.Send(context.Background(), "And deposits?", "")
	require.NoError(t, err)
	assert.Equal(t, "Continuing.", reply.Text)
	assert.Equal(t, 4, reply.ID)
	gw.AssertExpectations(t)
}

func TestSendFailureBecomesBotMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid request", &backend.ServerError{Op: "send", StatusCode: http.StatusUnprocessableEntity}, MsgInvalidRequest},
		{"server error", &backend.ServerError{Op: "send", StatusCode: http.StatusInternalServerError}, MsgServerError},
		{"timeout", &backend.NetworkError{Op: "send", Err: context.DeadlineExceeded, Timeout: true}, MsgTimeout},
		{"connection refused", &backend.NetworkError{Op: "send", Err: errors.New("connection refused")}, MsgUnavailable},
		{"bad gateway", &backend.ServerError{Op: "send", StatusCode: http.StatusBadGateway}, MsgUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{}
			gw.On("Send", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			c := newTestClient(gw)
			reply, err := c.Send(context.Background(), "Hello", types.ModeOnline)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Text)
			assert.True(t, reply.IsBot)
			assert.Len(t, c.Messages(), 2)
			assert.False(t, c.Loading())

			_, ok := c.ConversationID()
			assert.False(t, ok)
			gw.AssertNotCalled(t, "History", mock.Anything, mock.Anything)
		})
	}
}

func TestSendShowsUserMessageBeforeReply(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{}
	gw.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&types.ChatReply{Answer: "Done.", ConversationID: 1}, nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return([]types.Conversation{}, nil)

	c := newTestClient(gw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background(), "Is this visible?", types.ModeOnline)
	}()

	require.Eventually(t, func() bool { return c.Loading() }, time.Second, 5*time.Millisecond)
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Is this visible?", msgs[0].Text)

	close(release)
	<-done
	msgs = c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Done.", msgs[1].Text)
	assert.False(t, c.Loading())
}

func TestReplyDroppedAfterConversationSwitch(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{}
	gw.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&types.ChatReply{Answer: "old answer", ConversationID: 99}, nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return([]types.Conversation{}, nil)

	c := newTestClient(gw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background(), "First question", types.ModeOnline)
	}()

	require.Eventually(t, func() bool { return c.Loading() }, time.Second, 5*time.Millisecond)
	c.StartNew()
	assert.False(t, c.Loading())

	close(release)
	<-done

	assert.Empty(t, c.Messages())
	_, ok := c.ConversationID()
	assert.False(t, ok)
}

func TestSendFailureDroppedAfterSelect(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{}
	gw.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil, &backend.ServerError{Op: "chat", StatusCode: http.StatusInternalServerError}).Once()

	c := newTestClient(gw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background(), "First question", types.ModeOnline)
	}()

	require.Eventually(t, func() bool { return c.Loading() }, time.Second, 5*time.Millisecond)
	c.Select(sampleHistory[0])

	close(release)
	<-done

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are entitled to...", msgs[1].Text)
	id, ok := c.ConversationID()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)
}

func TestLoadHistoryFailureKeepsCache(t *testing.T) {
	gw := &mockGateway{}
	gw.On("History", mock.Anything, int64(7)).Return(sampleHistory, nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return(nil, errors.New("boom")).Once()

	c := newTestClient(gw)
	_, err := c.LoadHistory(context.Background())
	require.NoError(t, err)

	_, err = c.LoadHistory(context.Background())
	require.Error(t, err)
	assert.Equal(t, sampleHistory, c.CachedHistory(context.Background()))
}

func TestCachedHistoryFallsBackToCache(t *testing.T) {
	cache := &memoryCache{data: map[int64][]types.Conversation{7: sampleHistory}}
	c := newTestClient(&mockGateway{}, WithHistoryCache(cache))
	assert.Equal(t, sampleHistory, c.CachedHistory(context.Background()))

	gw := &mockGateway{}
	gw.On("History", mock.Anything, int64(7)).Return([]types.Conversation{}, nil).Once()
	c = newTestClient(gw, WithHistoryCache(cache))
	_, err := c.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cache.data[7])
}

func TestSelectAndStartNew(t *testing.T) {
	c := newTestClient(&mockGateway{})
	c.Select(sampleHistory[0])

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsBot)
	assert.True(t, msgs[1].IsBot)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)

	c.StartNew()
	assert.Empty(t, c.Messages())
	_, ok := c.ConversationID()
	assert.False(t, ok)
}

func TestDeleteDeclined(t *testing.T) {
	gw := &mockGateway{}
	c := newTestClient(gw)

	err := c.Delete(context.Background(), 5, ConfirmFunc(func(context.Context, string) bool { return false }))
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.ErrorIs(t, c.Delete(context.Background(), 5, nil), ErrNotConfirmed)
	gw.AssertNotCalled(t, "DeleteConversation", mock.Anything, mock.Anything)
}

func TestDeleteResetsConversation(t *testing.T) {
	gw := &mockGateway{}
	gw.On("DeleteConversation", mock.Anything, int64(5)).Return(nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return([]types.Conversation{}, nil).Once()

	c := newTestClient(gw)
	c.Select(sampleHistory[0])

	var prompt string
	err := c.Delete(context.Background(), 5, ConfirmFunc(func(_ context.Context, p string) bool {
		prompt = p
		return true
	}))
	require.NoError(t, err)
	assert.Equal(t, DeletePrompt, prompt)
	assert.Empty(t, c.Messages())
	assert.Empty(t, c.CachedHistory(context.Background()))
	gw.AssertExpectations(t)
}

func TestDeleteFailureKeepsState(t *testing.T) {
	gw := &mockGateway{}
	gw.On("DeleteConversation", mock.Anything, int64(5)).Return(errors.New("boom")).Once()

	c := newTestClient(gw)
	c.Select(sampleHistory[0])

	err := c.Delete(context.Background(), 5, ConfirmFunc(func(context.Context, string) bool { return true }))
	require.Error(t, err)
	assert.Len(t, c.Messages(), 2)
	id, _ := c.ConversationID()
	assert.Equal(t, int64(5), id)
}

func TestRename(t *testing.T) {
	gw := &mockGateway{}
	gw.On("RenameConversation", mock.Anything, int64(5), "Lease questions").Return(nil).Once()
	gw.On("History", mock.Anything, int64(7)).Return(sampleHistory, nil).Once()

	c := newTestClient(gw)
	c.BeginRename(5)
	id, ok := c.Editing()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)

	require.NoError(t, c.Rename(context.Background(), 5, "  Lease questions "))
	_, ok = c.Editing()
	assert.False(t, ok)
	assert.NoError(t, c.LastError())
	gw.AssertExpectations(t)
}

func TestRenameFailureIsReported(t *testing.T) {
	gw := &mockGateway{}
	gw.On("RenameConversation", mock.Anything, int64(5), "New title").
		Return(&backend.ServerError{Op: "rename", StatusCode: http.StatusInternalServerError}).Once()

	c := newTestClient(gw)
	c.BeginRename(5)

	err := c.Rename(context.Background(), 5, "New title")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, backend.StatusCode(err))
	assert.Equal(t, err, c.LastError())
	_, editing := c.Editing()
	assert.False(t, editing)
	assert.NotEmpty(t, c.Snapshot().LastError)
	gw.AssertNotCalled(t, "History", mock.Anything, mock.Anything)

	c.DismissError()
	assert.NoError(t, c.LastError())
}

func TestRenameRejectsBlankTitle(t *testing.T) {
	gw := &mockGateway{}
	c := newTestClient(gw)

	assert.ErrorIs(t, c.Rename(context.Background(), 5, "  "), ErrEmptyTitle)
	gw.AssertNotCalled(t, "RenameConversation", mock.Anything, mock.Anything, mock.Anything)
}
