package client

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// DefaultExpirySkew is how close to expiry a token may get before it is
	// refreshed ahead of use.
	DefaultExpirySkew = 30 * time.Second
	// DefaultRefreshTimeout bounds a single refresh call.
	DefaultRefreshTimeout = 10 * time.Second
)

// RefreshClient exchanges a refresh token for a new pair.
type RefreshClient interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RefreshMetrics is optional; result is "success", "failure" or "reused".
type RefreshMetrics interface {
	TokenRefresh(result string)
}

// Refresher is the single-flight token refresh coordinator. At most one
// refresh runs at a time across every caller sharing it; callers that waited
// reuse the winner's token instead of spending the single-use refresh token
// again.
type Refresher struct {
	creds   *Credentials
	client  RefreshClient
	lock    chan struct{}
	skew    time.Duration
	timeout time.Duration
	now     func() time.Time
	parser  *jwt.Parser
	logger  *zap.Logger
	metrics RefreshMetrics
}

func NewRefresher(creds *Credentials, client RefreshClient, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		creds:   creds,
		client:  client,
		lock:    make(chan struct{}, 1),
		skew:    DefaultExpirySkew,
		timeout: DefaultRefreshTimeout,
		now:     time.Now,
		parser:  jwt.NewParser(),
		logger:  logger,
	}
}

func (r *Refresher) WithTimeout(d time.Duration) *Refresher {
	if d > 0 {
		r.timeout = d
	}
	return r
}

func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

func (r *Refresher) WithMetrics(m RefreshMetrics) *Refresher {
	r.metrics = m
	return r
}

// Credentials returns the session the refresher maintains.
func (r *Refresher) Credentials() *Credentials {
	return r.creds
}

// EnsureToken returns an access token that is valid for more than the skew,
// refreshing if needed. An empty token with a nil error means the session has
// no usable credentials. The only errors returned come from ctx.
func (r *Refresher) EnsureToken(ctx context.Context) (string, error) {
	if token := r.creds.Get().AccessToken; token != "" && r.fresh(token) {
		return token, nil
	}
	return r.refresh(ctx, "")
}

// ForceRefresh refreshes after the server rejected stale. If another caller
// already replaced stale with a fresh token, that token is returned without a
// network call.
func (r *Refresher) ForceRefresh(ctx context.Context, stale string) (string, error) {
	return r.refresh(ctx, stale)
}

func (r *Refresher) refresh(ctx context.Context, stale string) (string, error) {
	select {
	case r.lock <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-r.lock }()

	pair := r.creds.Get()
	if pair.AccessToken != "" && pair.AccessToken != stale && r.fresh(pair.AccessToken) {
		r.observe("reused")
		return pair.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		return "", nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	next, err := r.client.Refresh(callCtx, pair.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up; the refresh token may still be good.
			return "", ctx.Err()
		}
		r.logger.Warn("token refresh failed, clearing session", zap.Error(err))
		r.observe("failure")
		r.creds.Clear()
		return "", nil
	}
	if next.AccessToken == "" {
		r.logger.Warn("token refresh returned no access token, clearing session")
		r.observe("failure")
		r.creds.Clear()
		return "", nil
	}

	r.creds.Set(next)
	r.observe("success")
	return next.AccessToken, nil
}

// fresh reports whether token expires more than skew from now. The claims
// are read without verification; the server is the one that verifies.
func (r *Refresher) fresh(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := r.parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Time.Sub(r.now()) > r.skew
}

func (r *Refresher) observe(result string) {
	if r.metrics != nil {
		r.metrics.TokenRefresh(result)
	}
}
