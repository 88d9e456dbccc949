// Package mattermost implements the chat transport for a Mattermost server:
// the WebSocket event stream, typing indicators and the REST calls the
// bridge needs.
package mattermost

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/mmassist/internal/config"
	"github.com/soyeahso/mmassist/internal/domain"
	"github.com/soyeahso/mmassist/internal/logging"
)

// ErrNotConnected is returned by Typing while no WebSocket is open.
var ErrNotConnected = errors.New("mattermost: not connected")

const eventBuffer = 64

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ID         string `json:"id"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("mattermost api: %d %s: %s", e.StatusCode, e.ID, e.Message)
	}
	return fmt.Sprintf("mattermost api: %d %s", e.StatusCode, e.Message)
}

// User is the subset of a Mattermost user the bridge reads.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Client talks to one Mattermost server as the bot user.
type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	log        *logging.Logger

	events chan domain.InboundEvent

	// writeMu serialises WebSocket writes; gorilla allows one writer.
	writeMu sync.Mutex

	mu         sync.RWMutex
	conn       *websocket.Conn
	userID     string
	running    bool
	reconnects int
	lastErr    string
	seq        int64
	cancel     func()
	done       chan struct{}
}

// New creates a client from configuration. Nothing is dialed until Start.
func New(cfg config.MattermostConfig, log *logging.Logger) *Client {
	minBackoff, maxBackoff := cfg.ReconnectBackoff()
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		http:       &http.Client{Timeout: timeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: timeout},
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		log:        log.Sub("mattermost"),
		events:     make(chan domain.InboundEvent, eventBuffer),
	}
}

// Events returns the stream of inbound events. It is closed after Stop.
func (c *Client) Events() <-chan domain.InboundEvent {
	return c.events
}

// Status returns the current runtime status.
func (c *Client) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		Transport:  "mattermost",
		UserID:     c.userID,
		Connected:  c.conn != nil,
		Running:    c.running,
		Reconnects: c.reconnects,
		LastError:  c.lastErr,
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.lastErr = ""
		return
	}
	c.lastErr = err.Error()
}
