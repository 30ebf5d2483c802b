package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cinecritic/internal/services"
	cinecritic_errors "cinecritic/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// Refresh token key pattern:
// - refresh:{sha256(token)} - TTL = refresh expiry, value = JSON RefreshSession

// RefreshStore keeps hashed refresh tokens in Redis so every API instance
// can rotate them.
type RefreshStore struct {
	client *goredis.Client
}

func NewRefreshStore(client *goredis.Client) *RefreshStore {
	return &RefreshStore{client: client}
}

func refreshKey(tokenHash string) string {
	return "refresh:" + tokenHash
}

func (s *RefreshStore) Save(ctx context.Context, tokenHash string, session services.RefreshSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal refresh session: %w", err)
	}
	return s.client.Set(ctx, refreshKey(tokenHash), data, ttl).Err()
}

// Consume reads and deletes the session in one GETDEL so a token can be
// exchanged only once, even across instances.
func (s *RefreshStore) Consume(ctx context.Context, tokenHash string) (services.RefreshSession, error) {
	data, err := s.client.GetDel(ctx, refreshKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return services.RefreshSession{}, fmt.Errorf("%w: unknown refresh token", cinecritic_errors.ErrUnauthorized)
		}
		return services.RefreshSession{}, err
	}
	var session services.RefreshSession
	if err := json.Unmarshal(data, &session); err != nil {
		return services.RefreshSession{}, fmt.Errorf("unmarshal refresh session: %w", err)
	}
	return session, nil
}

func (s *RefreshStore) Delete(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, refreshKey(tokenHash)).Err()
}
