package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/mmassist/internal/domain"
	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/logging"
)

const (
	// DefaultPollInterval is the spacing between run status fetches.
	DefaultPollInterval = time.Second

	// DefaultMaxWait bounds how long a run is polled before giving up.
	DefaultMaxWait = 5 * time.Minute

	cancelTimeout = 10 * time.Second
)

// Reply texts returned instead of an assistant answer.
const (
	NoTextReply  = "No text response from assistant."
	ErrorReply   = "Sorry, but I encountered an error while talking to the assistant."
	TimeoutReply = "Sorry, the assistant did not answer in time."
)

var errRunTimeout = errors.New("run did not finish before the wait limit")

// OrchestratorConfig configures the run orchestrator.
type OrchestratorConfig struct {
	PollInterval time.Duration
	// MaxWait bounds polling. Zero or negative disables the limit.
	MaxWait time.Duration
}

// Orchestrator submits messages to a session, waits for the run to finish
// and turns the outcome into a reply.
type Orchestrator struct {
	cfg        OrchestratorConfig
	platform   Platform
	assistants *AssistantCache
	hooks      *hooks.Manager
	log        *logging.Logger
}

// NewOrchestrator creates an orchestrator. hookMgr may be nil.
func NewOrchestrator(
	cfg OrchestratorConfig,
	platform Platform,
	assistants *AssistantCache,
	hookMgr *hooks.Manager,
	log *logging.Logger,
) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Orchestrator{
		cfg:        cfg,
		platform:   platform,
		assistants: assistants,
		hooks:      hookMgr,
		log:        log.Sub("assistant"),
	}
}

// outcome is what one run produced, including partial progress on failure.
type outcome struct {
	state  domain.RunState
	run    Run
	polls  int
	answer domain.AiResponse
}

// Run sends messages to the session and waits for the assistant's answer.
// It never fails: errors become an apology reply and are logged.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, messages []domain.ChatMessage) domain.AiResponse {
	start := time.Now()
	o.hooks.Emit(ctx, hooks.EventBeforeRun, map[string]any{
		"sessionId": sessionID,
		"messages":  len(messages),
	})

	out, err := o.run(ctx, sessionID, messages)
	switch {
	case errors.Is(err, errRunTimeout):
		o.log.Warn().
			Str("sessionId", sessionID).
			Str("runId", out.run.ID).
			Int("polls", out.polls).
			Dur("maxWait", o.cfg.MaxWait).
			Msg("run timed out")
		o.cancel(ctx, sessionID, out.run.ID)
		out.state = domain.RunTimedOut
		out.answer = domain.AiResponse{Message: TimeoutReply}
	case err != nil:
		o.log.Error().
			Err(err).
			Str("sessionId", sessionID).
			Str("runId", out.run.ID).
			Str("state", string(out.state)).
			Msg("assistant run failed")
		if out.run.ID != "" && out.run.Status.Pending() {
			o.cancel(ctx, sessionID, out.run.ID)
		}
		out.state = domain.RunFailed
		out.answer = domain.AiResponse{Message: ErrorReply}
	}

	o.hooks.Emit(ctx, hooks.EventAfterRun, map[string]any{
		"sessionId":  sessionID,
		"runId":      out.run.ID,
		"state":      string(out.state),
		"status":     string(out.run.Status),
		"polls":      out.polls,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out.answer
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, messages []domain.ChatMessage) (outcome, error) {
	out := outcome{state: domain.RunSubmitted}

	asst, err := o.assistants.Get(ctx)
	if err != nil {
		return out, fmt.Errorf("getting assistant: %w", err)
	}

	var instructions string
	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			if err := o.platform.AppendMessage(ctx, sessionID, domain.RoleUser, m.Content); err != nil {
				return out, err
			}
		case domain.RoleSystem:
			instructions = m.Content
		}
	}

	run, err := o.platform.CreateRun(ctx, sessionID, RunRequest{
		AssistantID:  asst.ID,
		Instructions: instructions,
	})
	if err != nil {
		return out, err
	}
	out.run = run
	out.state = domain.RunPolling

	o.log.Debug().
		Str("sessionId", sessionID).
		Str("runId", run.ID).
		Str("assistant", asst.Name).
		Msg("run created")

	if err := o.await(ctx, sessionID, &out); err != nil {
		return out, err
	}

	if out.run.Status != StatusCompleted {
		out.state = domain.RunFailed
		o.log.Error().
			Str("sessionId", sessionID).
			Str("runId", out.run.ID).
			Str("status", string(out.run.Status)).
			Str("lastError", out.run.LastError).
			Msg("run ended without completing")
		out.answer = domain.AiResponse{Message: fmt.Sprintf("Error: Run status is %s", out.run.Status)}
		return out, nil
	}

	msg, ok, err := o.platform.LatestMessage(ctx, sessionID)
	if err != nil {
		return out, err
	}
	out.state = domain.RunCompleted
	out.answer = domain.AiResponse{Message: NoTextReply}
	if ok {
		if text, ok := msg.Text(); ok {
			out.answer.Message = text
		}
	}

	o.log.Trace().
		Str("sessionId", sessionID).
		Str("runId", out.run.ID).
		Str("message", out.answer.Message).
		Msg("assistant answered")
	return out, nil
}

// await polls the run until it leaves the queued/in_progress states. The
// first fetch happens right away, later ones PollInterval after the previous
// fetch returned.
func (o *Orchestrator) await(ctx context.Context, sessionID string, out *outcome) error {
	var deadline <-chan time.Time
	if o.cfg.MaxWait > 0 {
		t := time.NewTimer(o.cfg.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	for {
		run, err := o.platform.GetRun(ctx, sessionID, out.run.ID)
		out.polls++
		if err != nil {
			return err
		}
		out.run = run
		if !run.Status.Pending() {
			return nil
		}

		wait := time.NewTimer(o.cfg.PollInterval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return fmt.Errorf("waiting for run %s: %w", run.ID, ctx.Err())
		case <-deadline:
			wait.Stop()
			return errRunTimeout
		case <-wait.C:
		}
	}
}

// cancel asks the platform to stop a run we are no longer waiting for.
func (o *Orchestrator) cancel(ctx context.Context, sessionID, runID string) {
	if runID == "" {
		return
	}
	ctx, done := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer done()
	if err := o.platform.CancelRun(ctx, sessionID, runID); err != nil {
		o.log.Warn().Err(err).Str("runId", runID).Msg("failed to cancel run")
	}
}
