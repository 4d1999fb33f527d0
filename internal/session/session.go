// Package session maps opaque bearer tokens to user identities.
//
// Tokens are random UUIDs stored under "auth_<token>" with a fixed TTL.
// Resolving does not extend the lifetime of a session.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filesmanager-session")

const keyPrefix = "auth_"

// Cache is the key/value store sessions live in
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Store issues, resolves and revokes session tokens
type Store struct {
	cache    Cache
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
}

// NewStore returns a Store whose sessions live for ttl
func NewStore(cache Cache, ttl time.Duration) *Store {
	return &Store{
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
		newToken: func() string { return uuid.New().String() },
	}
}

// TTL is the lifetime of issued sessions
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue binds a fresh token to userID
func (s *Store) Issue(ctx context.Context, userID models.UserID) (string, error) {
	ctx, span := tracer.Start(ctx, "session.issue",
		trace.WithAttributes(attribute.Int64("user_id", int64(userID))),
	)
	defer span.End()

	token := s.newToken()
	value, err := json.Marshal(models.Session{
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.cache.Set(ctx, keyPrefix+token, string(value), s.ttl); err != nil {
		span.RecordError(err)
		return "", err
	}
	return token, nil
}

// Resolve returns the user bound to token. Missing, unknown and expired
// tokens yield common.ErrUnauthenticated; a failing cache yields
// common.ErrStoreUnavailable.
func (s *Store) Resolve(ctx context.Context, token string) (models.UserID, error) {
	if token == "" {
		return 0, common.ErrUnauthenticated
	}

	ctx, span := tracer.Start(ctx, "session.resolve")
	defer span.End()

	raw, ok, err := s.cache.Get(ctx, keyPrefix+token)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !ok {
		span.SetAttributes(attribute.Bool("found", false))
		return 0, common.ErrUnauthenticated
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.UserID <= 0 {
		span.SetAttributes(attribute.Bool("malformed", true))
		return 0, common.ErrUnauthenticated
	}
	if sess.Expired(s.now()) {
		span.SetAttributes(attribute.Bool("expired", true))
		return 0, common.ErrUnauthenticated
	}

	span.SetAttributes(attribute.Int64("user_id", int64(sess.UserID)))
	return sess.UserID, nil
}

// Revoke removes token; revoking an absent token is a no-op
func (s *Store) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "session.revoke")
	defer span.End()

	if err := s.cache.Del(ctx, keyPrefix+token); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
