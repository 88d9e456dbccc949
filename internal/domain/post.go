package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// EventPosted is the websocket event kind emitted when a post is created.
const EventPosted = "posted"

// Post is a single chat message as delivered by the chat platform.
type Post struct {
	ID        string         `json:"id,omitempty"`
	CreateAt  int64          `json:"create_at,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	ChannelID string         `json:"channel_id"`
	RootID    string         `json:"root_id,omitempty"`
	Message   string         `json:"message"`
	Type      string         `json:"type,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
	FileIDs   []string       `json:"file_ids,omitempty"`
}

// ThreadKey returns the id of the thread root: the post's own id when it
// starts a thread, otherwise its root id.
func (p Post) ThreadKey() string {
	if p.RootID != "" {
		return p.RootID
	}
	return p.ID
}

// EventData is the raw payload of a "posted" event. Mentions and Post are
// JSON documents encoded as strings.
type EventData struct {
	Mentions    string `json:"mentions,omitempty"`
	Post        string `json:"post"`
	SenderName  string `json:"sender_name,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
}

// Broadcast describes who an event was delivered to.
type Broadcast struct {
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
}

// InboundEvent is a notification received on the platform's event stream.
type InboundEvent struct {
	Event     string    `json:"event"`
	Data      EventData `json:"data"`
	Broadcast Broadcast `json:"broadcast"`
	Seq       int64     `json:"seq"`
}

// MessageData is the decoded form of EventData.
type MessageData struct {
	Mentions   []string
	Post       Post
	SenderName string
}

// ParseMessageData decodes the string-encoded JSON fields of an event.
// A missing mentions field decodes to an empty list.
func ParseMessageData(d EventData) (MessageData, error) {
	out := MessageData{SenderName: d.SenderName}

	if d.Mentions != "" {
		if err := json.Unmarshal([]byte(d.Mentions), &out.Mentions); err != nil {
			return MessageData{}, fmt.Errorf("decoding mentions: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(d.Post), &out.Post); err != nil {
		return MessageData{}, fmt.Errorf("decoding post: %w", err)
	}
	return out, nil
}

// MentionsUser reports whether userID is among the mentioned users.
func (m MessageData) MentionsUser(userID string) bool {
	return slices.Contains(m.Mentions, userID)
}
