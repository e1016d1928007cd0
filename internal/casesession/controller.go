// Package casesession drives one AI Judge case from the draft form through
// the party rounds to the verdict and its PDF download.
package casesession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mahawthada/legal-assistant/internal/attachment"
	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/textnorm"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// DefaultPollInterval is how often the case state is polled for a verdict.
const DefaultPollInterval = 3 * time.Second

var (
	ErrCaseActive        = errors.New("a case is already in progress")
	ErrNoCase            = errors.New("no case in progress")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrVerdictRendered   = errors.New("verdict already rendered")
	ErrPollInFlight      = errors.New("a poll is already in flight")
	ErrNotPolling        = errors.New("case is not being polled")
	ErrAlreadyDownloaded = errors.New("verdict already downloaded")
	ErrNoVerdict         = errors.New("verdict not rendered yet")
)

// Phase is the stage of the case workflow.
type Phase string

const (
	PhaseDrafting        Phase = "drafting"
	PhaseSubmitting      Phase = "submitting"
	PhaseConversing      Phase = "conversing"
	PhaseAwaitingVerdict Phase = "awaiting_verdict"
	PhaseVerdictReady    Phase = "verdict_ready"
)

// CaseGateway is the AI Judge backend.
type CaseGateway interface {
	StartCase(ctx context.Context, req *backend.StartCaseRequest) (*types.StartCaseResponse, error)
	SubmitMessage(ctx context.Context, caseID types.CaseID, message string, role types.MessageRole) (*types.SubmitMessageResponse, error)
	CaseState(ctx context.Context, caseID types.CaseID) (*types.CaseState, error)
	Verdict(ctx context.Context, caseID types.CaseID) (*types.VerdictDocument, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets the verdict poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLedger sets the ledger consulted before and updated after a download.
func WithLedger(l DownloadLedger) Option {
	return func(c *Controller) {
		c.ledger = l
	}
}

// View is a copy of the session state.
type View struct {
	Phase          Phase                 `json:"phase"`
	CaseID         types.CaseID          `json:"case_id,omitempty"`
	Messages       []types.Message       `json:"messages"`
	Role           types.MessageRole     `json:"role,omitempty"`
	Round          int                   `json:"round,omitempty"`
	Language       string                `json:"language,omitempty"`
	CaseState      *types.CaseState      `json:"case_state,omitempty"`
	Verdict        string                `json:"verdict,omitempty"`
	Downloaded     bool                  `json:"downloaded"`
	Download       *types.DownloadRecord `json:"download,omitempty"`
	Draft          Draft                 `json:"draft"`
	PlaintiffFiles []string              `json:"plaintiff_files"`
	DefendantFiles []string              `json:"defendant_files"`
	FormComplete   bool                  `json:"form_complete"`
	FieldErrors    map[Field]string      `json:"field_errors,omitempty"`
	LastError      string                `json:"last_error,omitempty"`
}

// Controller owns one case session. It is safe for concurrent use; network
// calls run outside the lock and commit their result afterwards.
type Controller struct {
	gateway      CaseGateway
	sink         VerdictSink
	ledger       DownloadLedger
	logger       logrus.FieldLogger
	pollInterval time.Duration
	now          func() time.Time

	polling    atomic.Bool
	downloadMu sync.Mutex

	mu            sync.Mutex
	phase         Phase
	draft         Draft
	files         *attachment.Manager
	showErrors    bool
	caseID        types.CaseID
	language      string
	role          types.MessageRole
	round         int
	caseState     *types.CaseState
	verdict       string
	hasDownloaded bool
	download      *types.DownloadRecord
	pollStopped   bool
	messages      []types.Message
	nextID        int
	lastErr       error
	pollCancel    context.CancelFunc
	pollDone      chan struct{}
}

// New creates a controller in the drafting phase. Verdict PDFs are handed
// to sink.
func New(gateway CaseGateway, sink VerdictSink, logger logrus.FieldLogger, opts ...Option) *Controller {
	c := &Controller{
		gateway:      gateway,
		sink:         sink,
		logger:       logger.WithField("component", "casesession"),
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		phase:        PhaseDrafting,
		files:        attachment.NewManager(),
		nextID:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) editDraft(fn func(d *Draft)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseDrafting {
		return ErrCaseActive
	}
	fn(&c.draft)
	return nil
}

func (c *Controller) SetTitle(s string) error {
	return c.editDraft(func(d *Draft) { d.Title = s })
}

func (c *Controller) SetScenario(s string) error {
	return c.editDraft(func(d *Draft) { d.Scenario = s })
}

func (c *Controller) SetPlaintiffName(s string) error {
	return c.editDraft(func(d *Draft) { d.PlaintiffName = s })
}

func (c *Controller) SetDefendantName(s string) error {
	return c.editDraft(func(d *Draft) { d.DefendantName = s })
}

// SetDraft replaces all text fields at once.
func (c *Controller) SetDraft(d Draft) error {
	return c.editDraft(func(cur *Draft) { *cur = d })
}

func (c *Controller) editFiles(fn func(m *attachment.Manager) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseDrafting {
		return ErrCaseActive
	}
	return fn(c.files)
}

// AddFiles attaches files for a party. Exceeding the limit rejects the whole
// batch with an *attachment.CapacityError.
func (c *Controller) AddFiles(p types.Party, files ...attachment.File) error {
	return c.editFiles(func(m *attachment.Manager) error { return m.Add(p, files...) })
}

// ReplaceFile swaps the party's file at index.
func (c *Controller) ReplaceFile(p types.Party, index int, f attachment.File) error {
	return c.editFiles(func(m *attachment.Manager) error { return m.Replace(p, index, f) })
}

// RemoveFile drops the party's file at index.
func (c *Controller) RemoveFile(p types.Party, index int) error {
	return c.editFiles(func(m *attachment.Manager) error { return m.Remove(p, index) })
}

// IsFormComplete reports whether Start would be accepted.
func (c *Controller) IsFormComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return validate(c.draft, c.files) == nil
}

// Validate returns a *ValidationError describing the incomplete fields.
func (c *Controller) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ve := validate(c.draft, c.files); ve != nil {
		return ve
	}
	return nil
}

// Start submits the draft and opens the case. An incomplete form returns a
// *ValidationError and turns on field errors. A backend failure leaves a
// localized message in the transcript and returns to drafting.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseDrafting {
		c.mu.Unlock()
		return ErrCaseActive
	}
	if ve := validate(c.draft, c.files); ve != nil {
		c.showErrors = true
		c.mu.Unlock()
		return ve
	}
	c.phase = PhaseSubmitting
	c.showErrors = false
	req := &backend.StartCaseRequest{
		CaseTitle:      c.draft.Title,
		Scenario:       c.draft.Scenario,
		PlaintiffName:  c.draft.PlaintiffName,
		DefendantName:  c.draft.DefendantName,
		PlaintiffFiles: c.files.Files(types.Plaintiff),
		DefendantFiles: c.files.Files(types.Defendant),
	}
	lang := c.language
	c.mu.Unlock()

	resp, err := c.gateway.StartCase(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.WithError(err).Warn("start case failed")
		c.phase = PhaseDrafting
		c.resetTranscriptLocked()
		c.appendLocked(localized(lang, failStartCase), true, types.RoleJudge)
		c.lastErr = err
		return fmt.Errorf("start case: %w", err)
	}

	c.caseID = resp.CaseID
	c.language = resp.Language
	c.role = types.MessageRole(resp.CurrentSpeaker)
	if c.role == "" {
		c.role = types.RolePlaintiff
	}
	c.round = resp.CurrentRound
	if c.round <= 0 {
		c.round = 1
	}
	c.caseState = &types.CaseState{
		Status:         resp.Status,
		CurrentRound:   c.round,
		CurrentSpeaker: string(c.role),
		Language:       resp.Language,
	}
	c.verdict = ""
	c.hasDownloaded = false
	c.download = nil
	c.pollStopped = false
	c.lastErr = nil
	c.resetTranscriptLocked()
	c.appendLocked(textnorm.Normalize(resp.InitialAnalysis), true, types.RoleJudge)
	c.phase = phaseForStatus(resp.Status)

	c.logger.WithFields(logrus.Fields{
		"case_id":  c.caseID,
		"language": c.language,
	}).Info("case started")

	c.startPollingLocked()
	return nil
}

func phaseForStatus(s types.CaseStatus) Phase {
	if s == types.StatusAwaitingVerdict || s == types.StatusVerdictRendered {
		return PhaseAwaitingVerdict
	}
	return PhaseConversing
}

// Send submits a statement for the current speaker. Blank text, a missing
// case or a rendered verdict make it a no-op returning an error. A backend
// failure is reported as a localized judge message.
func (c *Controller) Send(ctx context.Context, text string) (types.Message, error) {
	c.mu.Lock()
	switch {
	case strings.TrimSpace(text) == "":
		c.mu.Unlock()
		return types.Message{}, ErrEmptyMessage
	case c.caseID == "" || c.phase == PhaseSubmitting:
		c.mu.Unlock()
		return types.Message{}, ErrNoCase
	case c.verdict != "":
		c.mu.Unlock()
		return types.Message{}, ErrVerdictRendered
	}
	role := c.role
	if role == "" {
		role = types.RolePlaintiff
	}
	c.appendLocked(text, false, role)
	caseID := c.caseID
	c.mu.Unlock()

	resp, err := c.gateway.SubmitMessage(ctx, caseID, text, role)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.caseID != caseID {
		return types.Message{}, ErrNoCase
	}
	if err != nil {
		c.logger.WithError(err).WithField("case_id", caseID).Warn("submit message failed")
		c.lastErr = err
		return c.appendLocked(localized(c.language, failSubmitMessage), true, types.RoleJudge), nil
	}

	if resp.Language != "" {
		c.language = resp.Language
	}
	reply := c.appendLocked(textnorm.Normalize(resp.Response), true, types.RoleJudge)
	c.role = role
	if resp.CurrentSpeaker != "" {
		c.role = types.MessageRole(resp.CurrentSpeaker)
	}
	if resp.CurrentRound > c.round {
		c.round = resp.CurrentRound
	}
	if c.caseState != nil && resp.Status != "" {
		c.caseState.Status = resp.Status
		c.caseState.CurrentRound = c.round
		c.caseState.CurrentSpeaker = string(c.role)
	}
	if c.phase == PhaseConversing && phaseForStatus(resp.Status) == PhaseAwaitingVerdict {
		c.phase = PhaseAwaitingVerdict
	}
	c.lastErr = nil
	return reply, nil
}

func (c *Controller) appendLocked(text string, isBot bool, role types.MessageRole) types.Message {
	msg := types.Message{ID: c.nextID, Text: text, IsBot: isBot, Role: role}
	c.nextID++
	c.messages = append(c.messages, msg)
	return msg
}

func (c *Controller) resetTranscriptLocked() {
	c.messages = nil
	c.nextID = 1
}

// Reset stops polling and returns to an empty draft.
func (c *Controller) Reset() {
	c.stopPolling()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseDrafting
	c.draft = Draft{}
	c.files.Reset()
	c.showErrors = false
	c.caseID = ""
	c.language = ""
	c.role = ""
	c.round = 0
	c.caseState = nil
	c.verdict = ""
	c.hasDownloaded = false
	c.download = nil
	c.pollStopped = false
	c.lastErr = nil
	c.resetTranscriptLocked()
}

// Close stops the poll loop and waits for it to exit.
func (c *Controller) Close() {
	c.stopPolling()
}

// CaseID returns the active case id, or "" while drafting.
func (c *Controller) CaseID() types.CaseID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caseID
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Message(nil), c.messages...)
}

// Snapshot returns a copy of the whole session view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Phase:          c.phase,
		CaseID:         c.caseID,
		Messages:       append([]types.Message{}, c.messages...),
		Role:           c.role,
		Round:          c.round,
		Language:       c.language,
		Verdict:        c.verdict,
		Downloaded:     c.hasDownloaded,
		Draft:          c.draft,
		PlaintiffFiles: attachment.Names(c.files.Files(types.Plaintiff)),
		DefendantFiles: attachment.Names(c.files.Files(types.Defendant)),
	}
	ve := validate(c.draft, c.files)
	v.FormComplete = ve == nil
	if c.showErrors && ve != nil {
		v.FieldErrors = ve.Fields
	}
	if c.caseState != nil {
		st := *c.caseState
		v.CaseState = &st
	}
	if c.download != nil {
		rec := *c.download
		v.Download = &rec
	}
	if c.lastErr != nil {
		v.LastError = c.lastErr.Error()
	}
	return v
}
