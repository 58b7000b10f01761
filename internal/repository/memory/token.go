// Package memory provides cache-backed repositories for development and
// tests, where a database round-trip is unwanted.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/praxisdev/identity-api/internal/repository"
)

const (
	verificationPrefix = "verification"
	resetPrefix        = "reset"

	cleanupInterval = 10 * time.Minute
)

type tokenStore struct {
	tokens *cache.Cache
}

// NewTokenStore returns an in-memory TokenRepository. Entries expire with
// the token itself, so stale tokens vanish without a sweeper.
func NewTokenStore() repository.TokenRepository {
	return &tokenStore{
		tokens: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func tokenKey(tokenType, token string) string {
	return tokenType + ":" + token
}

func (s *tokenStore) store(key string, userID uuid.UUID, expiry time.Time) {
	ttl := time.Until(expiry)
	// go-cache treats non-positive durations as "never expires"; a token
	// born expired must simply never become visible.
	if ttl <= 0 {
		return
	}
	s.tokens.Set(key, userID, ttl)
}

func (s *tokenStore) lookup(key string) (uuid.UUID, error) {
	v, found := s.tokens.Get(key)
	if !found {
		return uuid.Nil, fmt.Errorf("invalid or expired token")
	}
	userID, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid or expired token")
	}
	return userID, nil
}

func (s *tokenStore) StoreVerificationToken(_ context.Context, userID uuid.UUID, token string, expiry time.Time) error {
	s.store(tokenKey(verificationPrefix, token), userID, expiry)
	return nil
}

func (s *tokenStore) ValidateVerificationToken(_ context.Context, token string) (uuid.UUID, error) {
	return s.lookup(tokenKey(verificationPrefix, token))
}

func (s *tokenStore) InvalidateVerificationToken(_ context.Context, token string) error {
	s.tokens.Delete(tokenKey(verificationPrefix, token))
	return nil
}

func (s *tokenStore) StoreResetToken(_ context.Context, userID uuid.UUID, token string, expiry time.Time) error {
	s.store(tokenKey(resetPrefix, token), userID, expiry)
	return nil
}

func (s *tokenStore) ValidateResetToken(_ context.Context, token string) (uuid.UUID, error) {
	return s.lookup(tokenKey(resetPrefix, token))
}

func (s *tokenStore) InvalidateResetToken(_ context.Context, token string) error {
	key := tokenKey(resetPrefix, token)
	if _, found := s.tokens.Get(key); !found {
		return fmt.Errorf("token not found or already used")
	}
	s.tokens.Delete(key)
	return nil
}
