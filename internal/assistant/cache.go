package assistant

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/mmassist/internal/logging"
)

// ErrNoAssistantID is returned when no predefined assistant is configured.
var ErrNoAssistantID = errors.New("assistant id is not configured")

// AssistantCache retrieves the predefined assistant once and serves the
// cached copy afterwards. Failed retrievals are not cached.
type AssistantCache struct {
	platform Platform
	id       string
	log      *logging.Logger

	mu     sync.Mutex
	cached *Assistant
}

// NewAssistantCache creates a cache for the assistant with the given id.
func NewAssistantCache(platform Platform, id string, log *logging.Logger) *AssistantCache {
	return &AssistantCache{platform: platform, id: id, log: log}
}

// Get returns the assistant, retrieving it on first use.
func (c *AssistantCache) Get(ctx context.Context) (Assistant, error) {
	if c.id == "" {
		return Assistant{}, ErrNoAssistantID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		c.log.Trace().Str("assistant", c.cached.Name).Msg("using cached assistant")
		return *c.cached, nil
	}

	c.log.Info().Str("assistantId", c.id).Msg("retrieving assistant")
	a, err := c.platform.RetrieveAssistant(ctx, c.id)
	if err != nil {
		return Assistant{}, err
	}
	c.cached = &a
	c.log.Info().
		Str("assistantId", a.ID).
		Str("assistant", a.Name).
		Str("model", a.Model).
		Msg("retrieved assistant")
	return a, nil
}
