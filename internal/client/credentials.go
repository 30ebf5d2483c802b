// Package client is the administrator-side half of the system: a session's
// credentials, the request pipeline that keeps them valid, and the hub
// client that listens for notifications.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	cinecritic_errors "cinecritic/pkg/errors"

	"go.uber.org/zap"
)

// TokenPair is the session's access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// TokenStore persists a TokenPair across process restarts. Load returns
// ErrNotFound when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (TokenPair, error)
	Save(ctx context.Context, pair TokenPair) error
	Delete(ctx context.Context) error
}

const storeTimeout = 2 * time.Second

// Credentials is the lock-guarded token pair of one logical session. It is
// mutated only by the request pipeline and by explicit login/logout.
type Credentials struct {
	mu     sync.RWMutex
	pair   TokenPair
	store  TokenStore
	logger *zap.Logger
}

// NewCredentials creates an empty credential holder. store may be nil.
func NewCredentials(store TokenStore, logger *zap.Logger) *Credentials {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Credentials{store: store, logger: logger}
}

// Restore loads the persisted pair, if any.
func (c *Credentials) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	pair, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, cinecritic_errors.ErrNotFound) {
			return nil
		}
		return err
	}
	c.mu.Lock()
	c.pair = pair
	c.mu.Unlock()
	return nil
}

func (c *Credentials) Get() TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pair
}

// Set replaces both tokens at once. A persistence failure is logged; the
// in-memory pair is still updated.
func (c *Credentials) Set(pair TokenPair) {
	c.mu.Lock()
	c.pair = pair
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.Save(ctx, pair); err != nil {
		c.logger.Warn("failed to persist session tokens", zap.Error(err))
	}
}

// Clear drops both tokens, which callers treat as logged out.
func (c *Credentials) Clear() {
	c.mu.Lock()
	c.pair = TokenPair{}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.Delete(ctx); err != nil {
		c.logger.Warn("failed to delete persisted session tokens", zap.Error(err))
	}
}
