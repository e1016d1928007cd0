package casesession

import (
	"context"
	"errors"
	"time"

	"github.com/mahawthada/legal-assistant/internal/types"
)

func (c *Controller) startPollingLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.pollCancel = cancel
	c.pollDone = done
	go c.pollLoop(ctx, done)
}

func (c *Controller) stopPolling() {
	c.mu.Lock()
	cancel, done := c.pollCancel, c.pollDone
	c.pollCancel, c.pollDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Controller) pollLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop, _ := c.poll(ctx); stop {
				return
			}
		}
	}
}

// Poll checks the case state once, outside the regular schedule. It shares
// the in-flight guard with the poll loop and returns ErrPollInFlight when a
// poll is already running.
func (c *Controller) Poll(ctx context.Context) error {
	_, err := c.poll(ctx)
	return err
}

// poll reports whether polling is finished for this case.
func (c *Controller) poll(ctx context.Context) (bool, error) {
	if !c.polling.CompareAndSwap(false, true) {
		return false, ErrPollInFlight
	}
	defer c.polling.Store(false)

	c.mu.Lock()
	if c.caseID == "" || c.verdict != "" || c.hasDownloaded || c.pollStopped {
		c.mu.Unlock()
		return true, ErrNotPolling
	}
	caseID := c.caseID
	c.mu.Unlock()

	log := c.logger.WithField("case_id", caseID)
	state, err := c.gateway.CaseState(ctx, caseID)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		log.WithError(err).Warn("poll case state failed, polling stopped")

		c.mu.Lock()
		if c.caseID == caseID {
			c.pollStopped = true
			c.lastErr = err
			c.appendLocked(localized(c.language, failFetchVerdict), true, types.RoleJudge)
		}
		c.mu.Unlock()
		return true, err
	}

	c.mu.Lock()
	if c.caseID != caseID {
		c.mu.Unlock()
		return true, ErrNotPolling
	}
	st := *state
	c.caseState = &st
	if state.CurrentRound > c.round {
		c.round = state.CurrentRound
	}
	if state.Language != "" {
		c.language = state.Language
	}
	rendered := state.Status == types.StatusVerdictRendered && state.FinalVerdict != ""
	switch {
	case rendered:
		c.verdict = state.FinalVerdict
		c.phase = PhaseVerdictReady
	case state.Status == types.StatusAwaitingVerdict && c.phase == PhaseConversing:
		c.phase = PhaseAwaitingVerdict
	}
	c.mu.Unlock()

	if !rendered {
		return false, nil
	}
	log.Info("verdict rendered")
	if _, err := c.DownloadVerdict(ctx); err != nil && !errors.Is(err, ErrAlreadyDownloaded) && ctx.Err() == nil {
		log.WithError(err).Warn("verdict download failed")

		c.mu.Lock()
		if c.caseID == caseID {
			c.lastErr = err
			c.appendLocked(localized(c.language, failFetchVerdict), true, types.RoleJudge)
		}
		c.mu.Unlock()
	}
	return true, nil
}
