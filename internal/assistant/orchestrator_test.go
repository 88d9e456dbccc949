package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/mmassist/internal/domain"
	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPollInterval = 20 * time.Millisecond

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func newTestOrchestrator(p Platform, cfg OrchestratorConfig, hookMgr *hooks.Manager) *Orchestrator {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = testPollInterval
	}
	log := testLogger()
	return NewOrchestrator(cfg, p, NewAssistantCache(p, "asst_1", log), hookMgr, log)
}

func userMessage(text string) []domain.ChatMessage {
	return []domain.ChatMessage{{Role: domain.RoleUser, Name: "alice", Content: text}}
}

// statusSequence returns a GetRun func replaying statuses, repeating the last.
func statusSequence(statuses ...RunStatus) (func(context.Context, string, string) (Run, error), func() []time.Time) {
	var mu sync.Mutex
	var times []time.Time
	i := 0
	fn := func(_ context.Context, sessionID, runID string) (Run, error) {
		mu.Lock()
		defer mu.Unlock()
		times = append(times, time.Now())
		s := statuses[min(i, len(statuses)-1)]
		i++
		return Run{ID: runID, SessionID: sessionID, Status: s}, nil
	}
	return fn, func() []time.Time {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Time(nil), times...)
	}
}

func TestRun_PollsUntilCompleted(t *testing.T) {
	getRun, fetchTimes := statusSequence(StatusQueued, StatusInProgress, StatusCompleted)
	p := &MockPlatform{
		GetRunFunc: getRun,
		LatestMessageFunc: func(_ context.Context, _ string) (Message, bool, error) {
			return Message{Role: "assistant", Content: []ContentPart{{Type: "text", Text: "42"}}}, true, nil
		},
	}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	resp := o.Run(context.Background(), "thread_1", userMessage("what is the answer?"))

	assert.Equal(t, "42", resp.Message)
	assert.Equal(t, 3, p.Calls("GetRun"))
	assert.Equal(t, 1, p.Calls("LatestMessage"))
	assert.Equal(t, 0, p.Calls("CancelRun"))

	times := fetchTimes()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), testPollInterval)
	}
}

func TestRun_AppendsUserMessagesAndUsesSystemAsInstructions(t *testing.T) {
	var appended []string
	var gotReq RunRequest
	p := &MockPlatform{
		AppendMessageFunc: func(_ context.Context, sessionID, role, content string) error {
			assert.Equal(t, "thread_9", sessionID)
			assert.Equal(t, domain.RoleUser, role)
			appended = append(appended, content)
			return nil
		},
		CreateRunFunc: func(_ context.Context, sessionID string, req RunRequest) (Run, error) {
			gotReq = req
			return Run{ID: "run_7", SessionID: sessionID, Status: StatusQueued}, nil
		},
	}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	resp := o.Run(context.Background(), "thread_9", []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "Answer in French."},
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "ignored"},
		{Role: domain.RoleUser, Content: "again"},
	})

	assert.Equal(t, "mock response", resp.Message)
	assert.Equal(t, []string{"hello", "again"}, appended)
	assert.Equal(t, "asst_1", gotReq.AssistantID)
	assert.Equal(t, "Answer in French.", gotReq.Instructions)
}

func TestRun_FailedStatus(t *testing.T) {
	getRun, _ := statusSequence(StatusInProgress, StatusFailed)
	p := &MockPlatform{GetRunFunc: getRun}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	resp := o.Run(context.Background(), "thread_1", userMessage("hi"))

	assert.Equal(t, "Error: Run status is failed", resp.Message)
	assert.Equal(t, 2, p.Calls("GetRun"))
	assert.Equal(t, 1, p.Calls("CreateRun"), "failed runs are not retried")
	assert.Equal(t, 0, p.Calls("LatestMessage"))
}

func TestRun_OtherTerminalStatus(t *testing.T) {
	getRun, _ := statusSequence(RunStatus("requires_action"))
	p := &MockPlatform{GetRunFunc: getRun}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	resp := o.Run(context.Background(), "thread_1", userMessage("hi"))
	assert.Equal(t, "Error: Run status is requires_action", resp.Message)
}

func TestRun_NoTextResponse(t *testing.T) {
	tests := []struct {
		name   string
		latest func(context.Context, string) (Message, bool, error)
	}{
		{
			name: "image only",
			latest: func(_ context.Context, _ string) (Message, bool, error) {
				return Message{Content: []ContentPart{{Type: "image_file"}}}, true, nil
			},
		},
		{
			name: "empty content",
			latest: func(_ context.Context, _ string) (Message, bool, error) {
				return Message{}, true, nil
			},
		},
		{
			name: "no messages",
			latest: func(_ context.Context, _ string) (Message, bool, error) {
				return Message{}, false, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MockPlatform{LatestMessageFunc: tt.latest}
			o := newTestOrchestrator(p, OrchestratorConfig{}, nil)
			resp := o.Run(context.Background(), "thread_1", userMessage("draw a cat"))
			assert.Equal(t, NoTextReply, resp.Message)
		})
	}
}

func TestRun_AppendErrorBecomesApology(t *testing.T) {
	p := &MockPlatform{
		AppendMessageFunc: func(_ context.Context, _, _, _ string) error {
			return errors.New("429 rate limited")
		},
	}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	resp := o.Run(context.Background(), "thread_1", userMessage("hi"))

	assert.Equal(t, ErrorReply, resp.Message)
	assert.NotContains(t, resp.Message, "429")
	assert.Equal(t, 0, p.Calls("CreateRun"))
}

func TestRun_PollErrorCancelsRun(t *testing.T) {
	p := &MockPlatform{
		GetRunFunc: func(_ context.Context, _, _ string) (Run, error) {
			return Run{}, errors.New("connection reset")
		},
	}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	resp := o.Run(context.Background(), "thread_1", userMessage("hi"))

	assert.Equal(t, ErrorReply, resp.Message)
	assert.Equal(t, 1, p.Calls("GetRun"))
	assert.Equal(t, 1, p.Calls("CancelRun"))
}

func TestRun_TimesOut(t *testing.T) {
	getRun, _ := statusSequence(StatusInProgress)
	var cancelled string
	p := &MockPlatform{
		GetRunFunc: getRun,
		CancelRunFunc: func(_ context.Context, _, runID string) error {
			cancelled = runID
			return nil
		},
	}
	o := newTestOrchestrator(p, OrchestratorConfig{MaxWait: 5 * testPollInterval}, nil)

	start := time.Now()
	resp := o.Run(context.Background(), "thread_1", userMessage("hi"))

	assert.Equal(t, TimeoutReply, resp.Message)
	assert.Equal(t, "run_1", cancelled)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.GreaterOrEqual(t, p.Calls("GetRun"), 2)
}

func TestRun_ContextCancelled(t *testing.T) {
	getRun, _ := statusSequence(StatusQueued)
	p := &MockPlatform{GetRunFunc: getRun}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*testPollInterval)
	defer cancel()

	resp := o.Run(ctx, "thread_1", userMessage("hi"))
	assert.Equal(t, ErrorReply, resp.Message)
	assert.Equal(t, 1, p.Calls("CancelRun"))
}

func TestRun_RetrievesAssistantOnce(t *testing.T) {
	p := &MockPlatform{}
	o := newTestOrchestrator(p, OrchestratorConfig{}, nil)

	o.Run(context.Background(), "thread_1", userMessage("one"))
	o.Run(context.Background(), "thread_1", userMessage("two"))

	assert.Equal(t, 1, p.Calls("RetrieveAssistant"))
	assert.Equal(t, 2, p.Calls("CreateRun"))
}

func TestRun_MissingAssistantID(t *testing.T) {
	p := &MockPlatform{}
	log := testLogger()
	o := NewOrchestrator(OrchestratorConfig{PollInterval: testPollInterval}, p, NewAssistantCache(p, "", log), nil, log)

	resp := o.Run(context.Background(), "thread_1", userMessage("hi"))

	assert.Equal(t, ErrorReply, resp.Message)
	assert.Equal(t, 0, p.Calls("RetrieveAssistant"))
	assert.Equal(t, 0, p.Calls("AppendMessage"))
}

func TestRun_EmitsHooks(t *testing.T) {
	hookMgr := hooks.NewManager(testLogger())
	var events []hooks.Payload
	record := func(_ context.Context, p hooks.Payload) error {
		events = append(events, p)
		return nil
	}
	hookMgr.On(hooks.EventBeforeRun, "test", record)
	hookMgr.On(hooks.EventAfterRun, "test", record)

	o := newTestOrchestrator(&MockPlatform{}, OrchestratorConfig{}, hookMgr)
	o.Run(context.Background(), "thread_1", userMessage("hi"))

	require.Len(t, events, 2)
	assert.Equal(t, hooks.EventBeforeRun, events[0].Event)
	assert.Equal(t, "thread_1", events[0].String("sessionId"))

	after := events[1]
	assert.Equal(t, hooks.EventAfterRun, after.Event)
	assert.Equal(t, "run_1", after.String("runId"))
	assert.Equal(t, string(domain.RunCompleted), after.String("state"))
	assert.Equal(t, string(StatusCompleted), after.String("status"))
	assert.Equal(t, 1, after.Data["polls"])
}

func TestAssistantCache_ErrorNotCached(t *testing.T) {
	fail := true
	p := &MockPlatform{
		RetrieveAssistantFunc: func(_ context.Context, id string) (Assistant, error) {
			if fail {
				return Assistant{}, errors.New("401 invalid api key")
			}
			return Assistant{ID: id, Name: "Helper"}, nil
		},
	}
	c := NewAssistantCache(p, "asst_1", testLogger())

	_, err := c.Get(context.Background())
	require.Error(t, err)

	fail = false
	a, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Helper", a.Name)

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls("RetrieveAssistant"))
}

func TestAssistantCache_NoID(t *testing.T) {
	c := NewAssistantCache(&MockPlatform{}, "", testLogger())
	_, err := c.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoAssistantID)
}

func TestMessageText(t *testing.T) {
	m := Message{Content: []ContentPart{
		{Type: "image_file"},
		{Type: "text", Text: ""},
		{Type: "text", Text: "first"},
		{Type: "text", Text: "second"},
	}}
	text, ok := m.Text()
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	_, ok = Message{}.Text()
	assert.False(t, ok)
}

func TestRunStatusPending(t *testing.T) {
	assert.True(t, StatusQueued.Pending())
	assert.True(t, StatusInProgress.Pending())
	assert.False(t, StatusCompleted.Pending())
	assert.False(t, StatusFailed.Pending())
	assert.False(t, StatusCancelled.Pending())
	assert.False(t, StatusExpired.Pending())
}
