package domain

// ChannelStatus reports the runtime state of the chat transport.
type ChannelStatus struct {
	Transport  string `json:"transport"`
	UserID     string `json:"userId,omitempty"`
	Connected  bool   `json:"connected"`
	Running    bool   `json:"running"`
	Reconnects int    `json:"reconnects,omitempty"`
	LastError  string `json:"lastError,omitempty"`
}
