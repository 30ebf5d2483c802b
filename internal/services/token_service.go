package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cinecritic/config"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdministrator = "Administrator"
	RoleUser          = "User"
)

// RefreshSession is what a refresh token is exchanged for.
type RefreshSession struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshStore holds hashed refresh tokens. Consume must be atomic: a token
// handed to two concurrent Consume calls is returned to at most one of them.
type RefreshStore interface {
	Save(ctx context.Context, tokenHash string, session RefreshSession, ttl time.Duration) error
	Consume(ctx context.Context, tokenHash string) (RefreshSession, error)
	Delete(ctx context.Context, tokenHash string) error
}

type TokenService struct {
	store      RefreshStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(store RefreshStore, cfg *config.Config) *TokenService {
	return &TokenService{
		store:      store,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTExpiryMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshExpiry) * 24 * time.Hour,
		now:        time.Now,
	}
}

// WithClock overrides the time source for issued tokens.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AccessClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issue mints a fresh access/refresh pair for subject.
func (s *TokenService) Issue(ctx context.Context, subject, role string) (TokenPair, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return TokenPair{}, fmt.Errorf("%w: subject is required", cinecritic_errors.ErrValidation)
	}
	if role != RoleAdministrator && role != RoleUser {
		return TokenPair{}, fmt.Errorf("%w: unknown role %q", cinecritic_errors.ErrValidation, role)
	}

	refreshToken, err := generateToken(32)
	if err != nil {
		return TokenPair{}, err
	}
	session := RefreshSession{
		Subject:   subject,
		Role:      role,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.store.Save(ctx, hashRefreshToken(refreshToken), session, s.refreshTTL); err != nil {
		return TokenPair{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(subject, role)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

// Refresh rotates a refresh token. The presented token is consumed whether
// or not the rest of the exchange succeeds, so it can never be replayed.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, fmt.Errorf("%w: refresh token is required", cinecritic_errors.ErrValidation)
	}

	session, err := s.store.Consume(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		return TokenPair{}, err
	}
	if !s.now().Before(session.ExpiresAt) {
		return TokenPair{}, fmt.Errorf("%w: refresh token expired", cinecritic_errors.ErrUnauthorized)
	}
	return s.Issue(ctx, session.Subject, session.Role)
}

// Revoke drops a refresh token. Unknown tokens are not an error.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%w: refresh token is required", cinecritic_errors.ErrValidation)
	}
	return s.store.Delete(ctx, hashRefreshToken(refreshToken))
}

func (s *TokenService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, cinecritic_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, cinecritic_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return AccessClaims{}, cinecritic_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return AccessClaims{}, cinecritic_errors.ErrUnauthorized
	}

	return *claims, nil
}

func (s *TokenService) newAccessToken(subject, role string) (string, int64, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		UserID: subject,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MemoryRefreshStore is the single-instance RefreshStore used when Redis is
// not configured.
type MemoryRefreshStore struct {
	mu       sync.Mutex
	sessions map[string]RefreshSession
}

func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{sessions: make(map[string]RefreshSession)}
}

func (m *MemoryRefreshStore) Save(_ context.Context, tokenHash string, session RefreshSession, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = session
	return nil
}

func (m *MemoryRefreshStore) Consume(_ context.Context, tokenHash string) (RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok {
		return RefreshSession{}, fmt.Errorf("%w: unknown refresh token", cinecritic_errors.ErrUnauthorized)
	}
	delete(m.sessions, tokenHash)
	return session, nil
}

func (m *MemoryRefreshStore) Delete(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, cinecritic_errors.ErrValidation):
		return 400
	case errors.Is(err, cinecritic_errors.ErrUnauthorized), errors.Is(err, cinecritic_errors.ErrTokenRefresh):
		return 401
	case errors.Is(err, cinecritic_errors.ErrForbidden):
		return 403
	case errors.Is(err, cinecritic_errors.ErrNotFound):
		return 404
	case errors.Is(err, cinecritic_errors.ErrInvalidTransition), errors.Is(err, cinecritic_errors.ErrConflict):
		return 409
	case errors.Is(err, cinecritic_errors.ErrRateLimited):
		return 429
	case errors.Is(err, cinecritic_errors.ErrTransport):
		return 502
	case errors.Is(err, cinecritic_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var roleKey ctxKey = "role"

func WithIdentityContext(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok && role != ""
}
