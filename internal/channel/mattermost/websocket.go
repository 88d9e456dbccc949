package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/mmassist/internal/domain"
)

const writeTimeout = 10 * time.Second

// Client actions sent over the WebSocket.
const (
	actionAuthChallenge = "authentication_challenge"
	actionUserTyping    = "user_typing"
)

// wireEvent is a server frame: either an event or a reply to one of our
// actions (no event name, status and seq_reply set).
type wireEvent struct {
	Event     string           `json:"event"`
	Data      json.RawMessage  `json:"data"`
	Broadcast domain.Broadcast `json:"broadcast"`
	Seq       int64            `json:"seq"`
	Status    string           `json:"status"`
	SeqReply  int64            `json:"seq_reply"`
}

type wireAction struct {
	Seq    int64  `json:"seq"`
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// Start opens the event stream. The first connection must succeed; later
// disconnects are retried with exponential backoff until ctx is done or
// Stop is called. A client can be started once.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return errors.New("mattermost: already started")
	}
	c.done = make(chan struct{})
	c.mu.Unlock()

	conn, err := c.connect(ctx)
	if err != nil {
		c.setErr(err)
		close(c.done)
		close(c.events)
		return fmt.Errorf("mattermost connect: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, conn)
	return nil
}

// Stop closes the event stream and waits for the reader to exit.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	c.log.Info().Msg("disconnecting from mattermost")
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Typing sends a typing indicator for a channel thread.
func (c *Client) Typing(ctx context.Context, channelID, parentID string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.send(ctx, conn, actionUserTyping, map[string]string{
		"channel_id": channelID,
		"parent_id":  parentID,
	})
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + apiPrefix + "/websocket"
	return u.String(), nil
}

// connect dials the WebSocket and authenticates it.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := c.wsURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", wsURL, err)
	}

	if err := c.send(ctx, conn, actionAuthChallenge, map[string]string{"token": c.token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticating websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().Str("url", wsURL).Msg("connected to mattermost")
	return conn, nil
}

func (c *Client) send(ctx context.Context, conn *websocket.Conn, action string, data any) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteJSON(wireAction{Seq: seq, Action: action, Data: data})
}

// run reads events until ctx is done, reconnecting whenever the stream
// breaks. It owns the events channel and closes it on exit.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)
	defer close(c.events)
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		err := c.readLoop(ctx, conn)
		c.drop(conn)
		if ctx.Err() != nil {
			return
		}
		c.setErr(err)
		c.log.Warn().Err(err).Msg("event stream lost")

		conn = c.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

// reconnect retries connect with exponential backoff. It returns nil once
// ctx is done.
func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	delay := c.minBackoff
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := c.connect(ctx)
		if err == nil {
			c.mu.Lock()
			c.reconnects++
			c.mu.Unlock()
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}

		c.setErr(err)
		delay = min(delay*2, c.maxBackoff)
		c.log.Warn().Err(err).Dur("retryIn", delay).Msg("reconnect failed")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var w wireEvent
		if err := json.Unmarshal(data, &w); err != nil {
			c.log.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}
		if w.Event == "" {
			c.log.Trace().Str("status", w.Status).Int64("seqReply", w.SeqReply).Msg("action reply")
			continue
		}

		evt := domain.InboundEvent{Event: w.Event, Broadcast: w.Broadcast, Seq: w.Seq}
		if w.Event == domain.EventPosted {
			if err := json.Unmarshal(w.Data, &evt.Data); err != nil {
				c.log.Warn().Err(err).Int64("seq", w.Seq).Msg("malformed posted event")
				continue
			}
		}

		select {
		case c.events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}
