package assistant

import (
	"context"
	"fmt"
	"sync"
)

// MockPlatform is a test double for Platform. Unset funcs get canned
// behaviour: runs complete immediately and answer "mock response".
type MockPlatform struct {
	RetrieveAssistantFunc func(ctx context.Context, assistantID string) (Assistant, error)
	CreateSessionFunc     func(ctx context.Context) (string, error)
	AppendMessageFunc     func(ctx context.Context, sessionID, role, content string) error
	CreateRunFunc         func(ctx context.Context, sessionID string, req RunRequest) (Run, error)
	GetRunFunc            func(ctx context.Context, sessionID, runID string) (Run, error)
	CancelRunFunc         func(ctx context.Context, sessionID, runID string) error
	LatestMessageFunc     func(ctx context.Context, sessionID string) (Message, bool, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockPlatform) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (m *MockPlatform) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockPlatform) RetrieveAssistant(ctx context.Context, assistantID string) (Assistant, error) {
	m.record("RetrieveAssistant")
	if m.RetrieveAssistantFunc != nil {
		return m.RetrieveAssistantFunc(ctx, assistantID)
	}
	return Assistant{ID: assistantID, Name: "mock assistant", Model: "mock-model"}, nil
}

func (m *MockPlatform) CreateSession(ctx context.Context) (string, error) {
	m.record("CreateSession")
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx)
	}
	return fmt.Sprintf("thread_%d", m.Calls("CreateSession")), nil
}

func (m *MockPlatform) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	m.record("AppendMessage")
	if m.AppendMessageFunc != nil {
		return m.AppendMessageFunc(ctx, sessionID, role, content)
	}
	return nil
}

func (m *MockPlatform) CreateRun(ctx context.Context, sessionID string, req RunRequest) (Run, error) {
	m.record("CreateRun")
	if m.CreateRunFunc != nil {
		return m.CreateRunFunc(ctx, sessionID, req)
	}
	return Run{ID: "run_1", SessionID: sessionID, Status: StatusQueued}, nil
}

func (m *MockPlatform) GetRun(ctx context.Context, sessionID, runID string) (Run, error) {
	m.record("GetRun")
	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, sessionID, runID)
	}
	return Run{ID: runID, SessionID: sessionID, Status: StatusCompleted}, nil
}

func (m *MockPlatform) CancelRun(ctx context.Context, sessionID, runID string) error {
	m.record("CancelRun")
	if m.CancelRunFunc != nil {
		return m.CancelRunFunc(ctx, sessionID, runID)
	}
	return nil
}

func (m *MockPlatform) LatestMessage(ctx context.Context, sessionID string) (Message, bool, error) {
	m.record("LatestMessage")
	if m.LatestMessageFunc != nil {
		return m.LatestMessageFunc(ctx, sessionID)
	}
	return Message{
		ID:      "msg_1",
		Role:    "assistant",
		Content: []ContentPart{{Type: "text", Text: "mock response"}},
	}, true, nil
}
