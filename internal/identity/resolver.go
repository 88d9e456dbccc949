// Package identity resolves chat user ids to display names safe to hand to
// the assistant.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soyeahso/mmassist/internal/logging"
)

const (
	// DefaultTTL is how long a resolved name is served from cache.
	DefaultTTL = 5 * time.Minute

	// DefaultCacheSize bounds the number of cached users.
	DefaultCacheSize = 4096

	maxNameLen = 64

	// unknownName replaces usernames with no usable characters at all.
	unknownName = "user"
)

var (
	validName    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	punctuation  = regexp.MustCompile(`[.@!?]`)
	invalidChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// UserLookup fetches a user's raw username from the chat platform.
type UserLookup interface {
	Username(ctx context.Context, userID string) (string, error)
}

// Config tunes the resolver cache.
type Config struct {
	TTL       time.Duration
	CacheSize int
}

type entry struct {
	name      string
	expiresAt time.Time
}

// Resolver maps user ids to sanitized names with a time-bounded cache.
type Resolver struct {
	lookup UserLookup
	ttl    time.Duration
	cache  *lru.Cache[string, entry]
	now    func() time.Time
	log    *logging.Logger
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup UserLookup, cfg Config, log *logging.Logger) (*Resolver, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, entry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating identity cache: %w", err)
	}
	return &Resolver{
		lookup: lookup,
		ttl:    cfg.TTL,
		cache:  cache,
		now:    time.Now,
		log:    log.Sub("identity"),
	}, nil
}

// Resolve returns the display name for userID. Entries are served from cache
// strictly before their expiry; at or after it the platform is asked again.
func (r *Resolver) Resolve(ctx context.Context, userID string) (string, error) {
	now := r.now()
	if e, ok := r.cache.Get(userID); ok && now.Before(e.expiresAt) {
		return e.name, nil
	}

	raw, err := r.lookup.Username(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up user %s: %w", userID, err)
	}

	name := Sanitize(raw)
	r.cache.Add(userID, entry{name: name, expiresAt: now.Add(r.ttl)})

	r.log.Debug().
		Str("userId", userID).
		Str("name", name).
		Bool("sanitized", name != raw).
		Msg("resolved user")
	return name, nil
}

// Sanitize turns a raw username into one matching ^[A-Za-z0-9_-]{1,64}$.
// The first pass maps . @ ! ? to underscores; the second drops whatever is
// still outside the allowed set.
func Sanitize(raw string) string {
	if validName.MatchString(raw) {
		return raw
	}

	name := truncate(punctuation.ReplaceAllString(raw, "_"))
	if validName.MatchString(name) {
		return name
	}

	name = truncate(invalidChars.ReplaceAllString(name, ""))
	if name == "" {
		return unknownName
	}
	return name
}

// truncate keeps the first maxNameLen characters of s.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxNameLen {
		return s
	}
	return string([]rune(s)[:maxNameLen])
}
