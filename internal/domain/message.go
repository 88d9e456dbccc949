package domain

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message forwarded toward the assistant.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// AiResponse is the outcome of one orchestration call.
type AiResponse struct {
	Message      string            `json:"message"`
	Props        map[string]string `json:"props,omitempty"`
	FileID       string            `json:"fileId,omitempty"`
	Intermediate bool              `json:"intermediate,omitempty"`
}

// PostProps converts the response props to the map shape posts carry.
func (r AiResponse) PostProps() map[string]any {
	if len(r.Props) == 0 {
		return nil
	}
	props := make(map[string]any, len(r.Props))
	for k, v := range r.Props {
		props[k] = v
	}
	return props
}

// FileIDs returns the attachment list for a reply post.
func (r AiResponse) FileIDs() []string {
	if r.FileID == "" {
		return nil
	}
	return []string{r.FileID}
}
