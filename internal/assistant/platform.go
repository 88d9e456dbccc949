// Package assistant drives runs on a remote stateful assistant service.
package assistant

import "context"

// RunStatus is the lifecycle status reported for a remote run.
type RunStatus string

const (
	StatusQueued     RunStatus = "queued"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
	StatusCancelled  RunStatus = "cancelled"
	StatusExpired    RunStatus = "expired"
)

// Pending reports whether the run has not reached a terminal status yet.
func (s RunStatus) Pending() bool {
	return s == StatusQueued || s == StatusInProgress
}

// Assistant is a predefined assistant configuration.
type Assistant struct {
	ID    string
	Name  string
	Model string
}

// RunRequest starts a run against a session.
type RunRequest struct {
	AssistantID  string
	Instructions string
}

// Run is a single execution of the assistant over a session.
type Run struct {
	ID        string
	SessionID string
	Status    RunStatus
	LastError string
}

// ContentPart is one item of a message's content list.
type ContentPart struct {
	Type string // "text", "image_file", ...
	Text string
}

// Message is a message stored in a remote session.
type Message struct {
	ID      string
	Role    string
	Content []ContentPart
}

// Text returns the first non-empty text part of the message.
func (m Message) Text() (string, bool) {
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != "" {
			return part.Text, true
		}
	}
	return "", false
}

// Platform is the remote assistant service.
type Platform interface {
	RetrieveAssistant(ctx context.Context, assistantID string) (Assistant, error)
	CreateSession(ctx context.Context) (string, error)
	AppendMessage(ctx context.Context, sessionID, role, content string) error
	CreateRun(ctx context.Context, sessionID string, req RunRequest) (Run, error)
	GetRun(ctx context.Context, sessionID, runID string) (Run, error)
	CancelRun(ctx context.Context, sessionID, runID string) error
	// LatestMessage returns the most recent message of the session. The bool
	// is false when the session holds no messages.
	LatestMessage(ctx context.Context, sessionID string) (Message, bool, error)
}
