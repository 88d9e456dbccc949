package domain

import "time"

// ConversationSession binds a chat thread to a remote assistant session.
type ConversationSession struct {
	ThreadKey string    `json:"threadKey"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RunState is the lifecycle stage of one orchestration call.
type RunState string

const (
	RunSubmitted RunState = "submitted"
	RunPolling   RunState = "polling"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunTimedOut  RunState = "timed_out"
)
