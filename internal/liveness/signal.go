// Package liveness keeps a "typing" indicator visible in a thread while an
// answer is being produced.
package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/mmassist/internal/logging"
)

// DefaultInterval is how often the indicator is re-sent. Chat clients drop
// it after a few seconds without a refresh.
const DefaultInterval = 2 * time.Second

// Typer sends one typing indicator to a channel thread.
type Typer interface {
	Typing(ctx context.Context, channelID, parentID string) error
}

// Handle stops an indicator started by Signal.Start.
type Handle interface {
	Stop()
}

// Signal starts typing indicators.
type Signal struct {
	typer    Typer
	interval time.Duration
	log      *logging.Logger
}

// New creates a Signal. A non-positive interval uses DefaultInterval.
func New(typer Typer, interval time.Duration, log *logging.Logger) *Signal {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Signal{typer: typer, interval: interval, log: log.Sub("liveness")}
}

// Start sends the indicator right away and keeps refreshing it until the
// returned handle is stopped or ctx is done.
func (s *Signal) Start(ctx context.Context, channelID, threadKey string) Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}

	s.emit(ctx, channelID, threadKey)

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.emit(ctx, channelID, threadKey)
			}
		}
	}()

	return h
}

func (s *Signal) emit(ctx context.Context, channelID, threadKey string) {
	if err := s.typer.Typing(ctx, channelID, threadKey); err != nil {
		s.log.Debug().
			Err(err).
			Str("channel", channelID).
			Str("thread", threadKey).
			Msg("typing indicator failed")
	}
}

type handle struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop ends the refresh loop and waits for it to exit. Safe to call twice.
func (h *handle) Stop() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}
