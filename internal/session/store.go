// Package session maps chat threads to remote assistant sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/soyeahso/mmassist/internal/domain"
	"github.com/soyeahso/mmassist/internal/logging"
)

// DefaultCacheSize bounds the number of threads remembered.
const DefaultCacheSize = 10000

// createTimeout bounds one remote session creation.
const createTimeout = 30 * time.Second

// ErrEmptyThreadKey is returned when GetOrCreate is called without a key.
var ErrEmptyThreadKey = errors.New("empty thread key")

// Creator opens a new session on the remote assistant platform.
type Creator interface {
	CreateSession(ctx context.Context) (string, error)
}

// Store hands out one remote session per thread key. Concurrent misses on
// the same key share a single creation call.
type Store struct {
	creator Creator
	cache   *lru.Cache[string, domain.ConversationSession]
	flight  singleflight.Group
	now     func() time.Time
	log     *logging.Logger
}

// NewStore creates a session store holding at most size threads.
func NewStore(creator Creator, size int, log *logging.Logger) (*Store, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, domain.ConversationSession](size)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &Store{
		creator: creator,
		cache:   cache,
		now:     time.Now,
		log:     log.Sub("session"),
	}, nil
}

// GetOrCreate returns the session bound to threadKey, creating it remotely
// on first use. The creation is shared by every caller waiting on the key
// and is not tied to any one caller's ctx; a caller whose ctx ends stops
// waiting while the others still get the session.
func (s *Store) GetOrCreate(ctx context.Context, threadKey string) (domain.ConversationSession, error) {
	if threadKey == "" {
		return domain.ConversationSession{}, ErrEmptyThreadKey
	}
	if sess, ok := s.cache.Get(threadKey); ok {
		return sess, nil
	}

	ch := s.flight.DoChan(threadKey, func() (any, error) {
		// A flight that finished just before this one may have stored it.
		if sess, ok := s.cache.Get(threadKey); ok {
			return sess, nil
		}

		createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createTimeout)
		defer cancel()

		id, err := s.creator.CreateSession(createCtx)
		if err != nil {
			return nil, fmt.Errorf("creating session for thread %s: %w", threadKey, err)
		}

		sess := domain.ConversationSession{
			ThreadKey: threadKey,
			SessionID: id,
			CreatedAt: s.now(),
		}
		if evicted := s.cache.Add(threadKey, sess); evicted {
			s.log.Debug().Msg("session cache full, evicted least recently used thread")
		}
		s.log.Info().
			Str("threadKey", threadKey).
			Str("sessionId", id).
			Msg("created session")
		return sess, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.ConversationSession{}, fmt.Errorf("waiting for session of thread %s: %w", threadKey, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return domain.ConversationSession{}, res.Err
	}
	if res.Shared {
		s.log.Debug().Str("threadKey", threadKey).Msg("joined in-flight session creation")
	}
	return res.Val.(domain.ConversationSession), nil
}

// Len returns the number of threads currently remembered.
func (s *Store) Len() int {
	return s.cache.Len()
}
