package assistant

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI Assistants API client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional override, e.g. a proxy
}

// OpenAIPlatform implements Platform on the OpenAI Assistants API, where a
// session is a thread.
type OpenAIPlatform struct {
	client *openai.Client
}

// NewOpenAIPlatform creates an Assistants API client.
func NewOpenAIPlatform(cfg OpenAIConfig) *OpenAIPlatform {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	c.AssistantVersion = "v2"
	return &OpenAIPlatform{client: openai.NewClientWithConfig(c)}
}

func (p *OpenAIPlatform) RetrieveAssistant(ctx context.Context, assistantID string) (Assistant, error) {
	a, err := p.client.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return Assistant{}, fmt.Errorf("retrieve assistant %s: %w", assistantID, err)
	}
	out := Assistant{ID: a.ID, Model: a.Model}
	if a.Name != nil {
		out.Name = *a.Name
	}
	return out, nil
}

func (p *OpenAIPlatform) CreateSession(ctx context.Context) (string, error) {
	th, err := p.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return th.ID, nil
}

func (p *OpenAIPlatform) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := p.client.CreateMessage(ctx, sessionID, openai.MessageRequest{
		Role:    role,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("create message in %s: %w", sessionID, err)
	}
	return nil
}

func (p *OpenAIPlatform) CreateRun(ctx context.Context, sessionID string, req RunRequest) (Run, error) {
	r, err := p.client.CreateRun(ctx, sessionID, openai.RunRequest{
		AssistantID:  req.AssistantID,
		Instructions: req.Instructions,
	})
	if err != nil {
		return Run{}, fmt.Errorf("create run in %s: %w", sessionID, err)
	}
	return convertRun(r), nil
}

func (p *OpenAIPlatform) GetRun(ctx context.Context, sessionID, runID string) (Run, error) {
	r, err := p.client.RetrieveRun(ctx, sessionID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("retrieve run %s: %w", runID, err)
	}
	return convertRun(r), nil
}

func (p *OpenAIPlatform) CancelRun(ctx context.Context, sessionID, runID string) error {
	if _, err := p.client.CancelRun(ctx, sessionID, runID); err != nil {
		return fmt.Errorf("cancel run %s: %w", runID, err)
	}
	return nil
}

func (p *OpenAIPlatform) LatestMessage(ctx context.Context, sessionID string) (Message, bool, error) {
	limit := 1
	order := "desc"
	list, err := p.client.ListMessage(ctx, sessionID, &limit, &order, nil, nil, nil)
	if err != nil {
		return Message{}, false, fmt.Errorf("list messages in %s: %w", sessionID, err)
	}
	if len(list.Messages) == 0 {
		return Message{}, false, nil
	}

	m := list.Messages[0]
	out := Message{ID: m.ID, Role: m.Role}
	for _, c := range m.Content {
		part := ContentPart{Type: c.Type}
		if c.Text != nil {
			part.Text = c.Text.Value
		}
		out.Content = append(out.Content, part)
	}
	return out, true, nil
}

func convertRun(r openai.Run) Run {
	out := Run{
		ID:        r.ID,
		SessionID: r.ThreadID,
		Status:    RunStatus(r.Status),
	}
	if r.LastError != nil {
		out.LastError = r.LastError.Message
	}
	return out
}
