// Package session holds the authenticated user's identity and bearer token
// for one sync client instance. The token is the single credential used for
// both REST and realtime calls.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/types"
)

// IdentityResolver fetches the authenticated user's identity from the REST
// gateway. Implemented by the gateway client.
type IdentityResolver interface {
	MyInfo(ctx context.Context) (types.UserInfo, error)
}

// Session is the session store for one authenticated user.
type Session struct {
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	token string
	user  types.UserInfo
}

// New creates a session around a bearer token. The identity is empty until
// Resolve is called.
func New(token string) *Session {
	return &Session{
		log:   logger.GetLogger().Named("session"),
		token: token,
	}
}

// Token returns the bearer token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the bearer token, e.g. after a refresh.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// UserID returns the resolved user id, or "" before Resolve.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID
}

// User returns the resolved identity.
func (s *Session) User() types.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Resolve fetches the user identity from the gateway and caches it.
func (s *Session) Resolve(ctx context.Context, resolver IdentityResolver) error {
	if s.Token() == "" {
		return errors.AuthenticationFailed("no auth token available")
	}

	info, err := resolver.MyInfo(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = info
	s.mu.Unlock()

	s.log.Infow("Session resolved", "userID", info.ID)
	return nil
}

// TokenExpiry introspects the bearer token's exp claim without verifying the
// signature; verification belongs to the backend. Returns the zero time when
// the token is opaque or carries no expiry.
func (s *Session) TokenExpiry() time.Time {
	token := s.Token()
	if token == "" {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		s.log.Debugw("Token is not a parseable JWT", "token", logger.MaskToken(token))
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// TokenExpired reports whether the token carries an expiry in the past.
func (s *Session) TokenExpired() bool {
	exp := s.TokenExpiry()
	return !exp.IsZero() && exp.Before(time.Now())
}
