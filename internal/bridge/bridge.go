// Package bridge connects chat events to the assistant: it decides which
// posts to answer, runs them through the assistant and posts exactly one
// reply per answered post.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/mmassist/internal/domain"
	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/liveness"
	"github.com/soyeahso/mmassist/internal/logging"
)

// FallbackMessage is posted when an answer could not be produced or posted.
const FallbackMessage = "Sorry, but I encountered an internal error when trying to process your message"

// DefaultMaxConcurrent bounds how many events Serve handles at once.
const DefaultMaxConcurrent = 8

// replyTimeout bounds posting a reply once ctx no longer governs it.
const replyTimeout = 30 * time.Second

// Poster publishes a post to the chat platform.
type Poster interface {
	CreatePost(ctx context.Context, post domain.Post) (*domain.Post, error)
}

// IdentityResolver maps a user id to a display name usable by the assistant.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// SessionStore maps a thread key to its remote conversation session.
type SessionStore interface {
	GetOrCreate(ctx context.Context, threadKey string) (domain.ConversationSession, error)
}

// Runner produces the assistant's answer for a session.
type Runner interface {
	Run(ctx context.Context, sessionID string, messages []domain.ChatMessage) domain.AiResponse
}

// Liveness shows that an answer is in progress.
type Liveness interface {
	Start(ctx context.Context, channelID, threadKey string) liveness.Handle
}

// Deps are the collaborators a Bridge dispatches to. Hooks may be nil.
type Deps struct {
	Poster   Poster
	Identity IdentityResolver
	Sessions SessionStore
	Runner   Runner
	Liveness Liveness
	Hooks    *hooks.Manager
}

// Config configures a Bridge.
type Config struct {
	MaxConcurrent int
}

// Bridge dispatches inbound chat events to the assistant.
type Bridge struct {
	deps Deps
	cfg  Config
	log  *logging.Logger
}

// New creates a bridge.
func New(cfg Config, deps Deps, log *logging.Logger) *Bridge {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bridge{deps: deps, cfg: cfg, log: log.Sub("bridge")}
}

// HandleEvent answers evt if it is a post addressed to selfID. Every
// answered post gets exactly one reply: the assistant's answer, or
// FallbackMessage when anything on the way fails.
func (b *Bridge) HandleEvent(ctx context.Context, evt domain.InboundEvent, selfID string) {
	if evt.Event != domain.EventPosted {
		b.log.Debug().Str("event", evt.Event).Int64("seq", evt.Seq).Msg("ignoring event")
		return
	}
	if selfID == "" {
		b.log.Debug().Msg("own user id unknown, ignoring post")
		return
	}

	data, err := domain.ParseMessageData(evt.Data)
	if err != nil {
		b.log.Warn().Err(err).Int64("seq", evt.Seq).Msg("malformed posted event")
		return
	}
	if !Eligible(data, selfID) {
		b.log.Debug().
			Str("post", data.Post.ID).
			Str("user", data.Post.UserID).
			Msg("post not addressed to us")
		return
	}

	post := data.Post
	threadKey := post.ThreadKey()
	log := b.log.With("traceId", uuid.NewString())

	log.Info().
		Str("channel", post.ChannelID).
		Str("thread", threadKey).
		Str("user", post.UserID).
		Str("sender", data.SenderName).
		Msg("handling mention")

	b.deps.Hooks.Emit(ctx, hooks.EventMessageReceived, map[string]any{
		"postId":    post.ID,
		"channelId": post.ChannelID,
		"threadKey": threadKey,
		"userId":    post.UserID,
		"sender":    data.SenderName,
	})

	typing := b.deps.Liveness.Start(ctx, post.ChannelID, threadKey)
	defer typing.Stop()

	start := time.Now()
	resp, err := b.answer(ctx, post, threadKey)

	// The reply goes out even when ctx was cancelled mid-answer (shutdown),
	// so an answered post never ends up without one.
	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	if err == nil {
		err = b.reply(replyCtx, log, domain.Post{
			ChannelID: post.ChannelID,
			RootID:    threadKey,
			Message:   resp.Message,
			Props:     resp.PostProps(),
			FileIDs:   resp.FileIDs(),
		})
		if err == nil {
			log.Info().Str("thread", threadKey).Dur("duration", time.Since(start)).Msg("reply sent")
			return
		}
	}

	log.Error().Err(err).Str("thread", threadKey).Msg("answering mention failed, posting fallback")
	if err := b.reply(replyCtx, log, domain.Post{
		ChannelID: post.ChannelID,
		RootID:    threadKey,
		Message:   FallbackMessage,
	}); err != nil {
		log.Error().Err(err).Str("thread", threadKey).Msg("failed to post fallback")
	}
}

// answer resolves the author, finds the thread's session and runs the
// assistant. A panic is turned into an error.
func (b *Bridge) answer(ctx context.Context, post domain.Post, threadKey string) (resp domain.AiResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while answering: %v", r)
		}
	}()

	name, err := b.deps.Identity.Resolve(ctx, post.UserID)
	if err != nil {
		return resp, fmt.Errorf("resolving author: %w", err)
	}

	sess, err := b.deps.Sessions.GetOrCreate(ctx, threadKey)
	if err != nil {
		return resp, err
	}

	return b.deps.Runner.Run(ctx, sess.SessionID, []domain.ChatMessage{
		{Role: domain.RoleUser, Name: name, Content: post.Message},
	}), nil
}

func (b *Bridge) reply(ctx context.Context, log *logging.Logger, post domain.Post) error {
	b.deps.Hooks.Emit(ctx, hooks.EventMessageSending, map[string]any{
		"channelId": post.ChannelID,
		"threadKey": post.RootID,
		"message":   post.Message,
	})
	log.Trace().Str("thread", post.RootID).Str("message", post.Message).Msg("posting reply")

	created, err := b.deps.Poster.CreatePost(ctx, post)
	if err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	if created != nil {
		log.Trace().Str("post", created.ID).Msg("reply created")
	}
	return nil
}

// Serve handles events until the channel closes or ctx is done, with at
// most MaxConcurrent handlers in flight. It returns after every started
// handler has finished.
func (b *Bridge) Serve(ctx context.Context, events <-chan domain.InboundEvent, selfID string) {
	sem := make(chan struct{}, b.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				b.HandleEvent(ctx, evt, selfID)
			}()
		}
	}
}
