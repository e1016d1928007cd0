package api

import (
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/conversation"
	"github.com/mahawthada/legal-assistant/internal/session"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// UserSession is the chat and case state of one signed-in user.
type UserSession struct {
	Chat *conversation.Client
	Case *casesession.Controller
}

// SessionOptions configures the sessions created by a Registry.
type SessionOptions struct {
	HistoryCache conversation.HistoryCache
	Archive      casesession.DownloadArchive
	DownloadDir  string
	PollInterval time.Duration
}

// Registry holds one UserSession per user id.
type Registry struct {
	backend Backend
	opts    SessionOptions
	logger  *logrus.Logger

	mu       sync.Mutex
	sessions map[int64]*UserSession
}

// NewRegistry creates an empty registry. Without an archive, deliveries are
// kept in memory.
func NewRegistry(backend Backend, opts SessionOptions, logger *logrus.Logger) *Registry {
	if opts.Archive == nil {
		opts.Archive = casesession.NewMemoryLedger()
	}
	return &Registry{
		backend:  backend,
		opts:     opts,
		logger:   logger,
		sessions: make(map[int64]*UserSession),
	}
}

// Get returns the user's session, creating it on first use.
func (r *Registry) Get(user *types.User) *UserSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[user.ID]; ok {
		return s
	}

	log := r.logger.WithField("user_id", user.ID)
	var chatOpts []conversation.Option
	if r.opts.HistoryCache != nil {
		chatOpts = append(chatOpts, conversation.WithHistoryCache(r.opts.HistoryCache))
	}
	caseOpts := []casesession.Option{
		casesession.WithPollInterval(r.opts.PollInterval),
		casesession.WithLedger(r.opts.Archive),
	}
	sink := casesession.NewDirSink(filepath.Join(r.opts.DownloadDir, strconv.FormatInt(user.ID, 10)))

	s := &UserSession{
		Chat: conversation.NewClient(r.backend, session.NewStatic(user), log, chatOpts...),
		Case: casesession.New(r.backend, sink, log, caseOpts...),
	}
	r.sessions[user.ID] = s
	log.Debug("session created")
	return s
}

// Archive returns the verdict deliveries shared by all sessions.
func (r *Registry) Archive() casesession.DownloadArchive {
	return r.opts.Archive
}

// Close stops every case poll loop.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Case.Close()
	}
}
