package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cinecritic/internal/notifications"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ReconnectDelays is the wait before each reconnect attempt after the hub
// connection drops. After the last attempt fails the client gives up.
var ReconnectDelays = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second}

// Notification is the client-side view of any notification payload.
type Notification struct {
	Type           string    `json:"type"`
	ItemID         string    `json:"itemId"`
	ItemTitle      string    `json:"itemTitle,omitempty"`
	CommentID      string    `json:"commentId,omitempty"`
	CommentPreview string    `json:"commentPreview,omitempty"`
	AuthorID       string    `json:"authorId,omitempty"`
	NewStatus      string    `json:"newStatus,omitempty"`
	ReviewedBy     string    `json:"reviewedBy,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type frame struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// HubHandlers are optional callbacks for hub lifecycle and messages.
type HubHandlers struct {
	OnNotification func(Notification)
	OnReconnecting func(attempt int, err error)
	OnReconnected  func()
	OnClosed       func(err error)
}

// fixedSchedule replays a fixed list of delays, then stops.
type fixedSchedule struct {
	delays []time.Duration
	next   int
}

func newFixedSchedule(delays []time.Duration) *fixedSchedule {
	return &fixedSchedule{delays: delays}
}

func (s *fixedSchedule) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *fixedSchedule) Reset() {
	s.next = 0
}

// HubClient keeps one administrator session connected to the notification hub.
type HubClient struct {
	endpoint  string
	refresher *Refresher
	dialer    *websocket.Dialer
	handlers  HubHandlers
	schedule  backoff.BackOff
	logger    *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewHubClient builds a client for baseURL+hubPath. http(s) schemes are
// mapped to ws(s).
func NewHubClient(baseURL, hubPath string, refresher *Refresher, handlers HubHandlers, logger *zap.Logger) (*HubClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + hubPath)
	if err != nil {
		return nil, fmt.Errorf("%w: hub url: %v", cinecritic_errors.ErrValidation, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HubClient{
		endpoint:  u.String(),
		refresher: refresher,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		handlers:  handlers,
		schedule:  newFixedSchedule(ReconnectDelays),
		logger:    logger,
	}, nil
}

// WithSchedule replaces the reconnect schedule. Used by tests.
func (c *HubClient) WithSchedule(b backoff.BackOff) *HubClient {
	c.schedule = b
	return c
}

// Run connects and receives notifications until ctx is done or reconnecting
// gives up. The initial connect is not retried.
func (c *HubClient) Run(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	for {
		readErr := c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			c.closed(nil)
			return nil
		}
		c.logger.Warn("hub connection lost", zap.Error(readErr))

		conn, err = c.reconnect(ctx, readErr)
		if err != nil {
			c.closed(err)
			return err
		}
		if c.handlers.OnReconnected != nil {
			c.handlers.OnReconnected()
		}
	}
}

func (c *HubClient) reconnect(ctx context.Context, cause error) (*websocket.Conn, error) {
	c.schedule.Reset()
	attempt := 0
	lastErr := cause
	for {
		delay := c.schedule.NextBackOff()
		if delay == backoff.Stop {
			return nil, fmt.Errorf("%w: gave up reconnecting after %d attempts: %v", cinecritic_errors.ErrTransport, attempt, lastErr)
		}
		attempt++
		if c.handlers.OnReconnecting != nil {
			c.handlers.OnReconnecting(attempt, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Info("hub reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
}

// dial asks the token pipeline for a token on every attempt, so a reconnect
// after expiry uses a refreshed one.
func (c *HubClient) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.refresher.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no session", cinecritic_errors.ErrUnauthorized)
	}

	u, _ := url.Parse(c.endpoint)
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, fmt.Errorf("%w: hub rejected token", cinecritic_errors.ErrUnauthorized)
			case http.StatusForbidden:
				return nil, fmt.Errorf("%w: hub requires administrator role", cinecritic_errors.ErrForbidden)
			}
		}
		return nil, fmt.Errorf("%w: %v", cinecritic_errors.ErrTransport, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *HubClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("discarding malformed hub frame", zap.Error(err))
			continue
		}
		if f.Method != notifications.HubMethod {
			continue
		}
		var n Notification
		if err := json.Unmarshal(f.Payload, &n); err != nil {
			c.logger.Warn("discarding malformed notification", zap.Error(err))
			continue
		}
		if c.handlers.OnNotification != nil {
			c.handlers.OnNotification(n)
		}
	}
}

// Close drops the current connection. Run treats it as a lost connection
// unless its context is also cancelled.
func (c *HubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *HubClient) closed(err error) {
	if c.handlers.OnClosed != nil {
		c.handlers.OnClosed(err)
	}
}
