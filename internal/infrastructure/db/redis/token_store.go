package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

// TokenStore persists the bearer token and the cached role list so a
// restarted agent can restore its session.
// Keys: marketplace:session:token, marketplace:session:userRoles
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a TokenStore wrapping the given Redis client.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

var _ ports.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) LoadToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key(ports.TokenKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

func (s *TokenStore) SaveToken(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key(ports.TokenKey), token, 0).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *TokenStore) LoadRoles(ctx context.Context) ([]domain.Role, error) {
	raw, err := s.client.Get(ctx, s.key(ports.RolesKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	var roles []domain.Role
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return roles, nil
}

func (s *TokenStore) SaveRoles(ctx context.Context, roles []domain.Role) error {
	raw, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	if err := s.client.Set(ctx, s.key(ports.RolesKey), raw, 0).Err(); err != nil {
		return fmt.Errorf("save roles: %w", err)
	}
	return nil
}

// Clear removes both keys.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(ports.TokenKey), s.key(ports.RolesKey)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *TokenStore) key(name string) string {
	return keyPrefix + "session:" + name
}
