package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func sessionRefresher(t *testing.T) (*Refresher, string) {
	t.Helper()
	token := signToken(t, "admin", testNow.Add(time.Hour))
	r, _ := newTestRefresher(t, TokenPair{AccessToken: token, RefreshToken: "r1"}, &fakeRefreshClient{})
	return r, token
}

func TestFixedSchedule(t *testing.T) {
	s := newFixedSchedule(ReconnectDelays)
	var got []time.Duration
	for d := s.NextBackOff(); d != backoff.Stop; d = s.NextBackOff() {
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second}, got)

	s.Reset()
	assert.Equal(t, time.Duration(0), s.NextBackOff())
}

func TestHubClient_ReceivesNotifications(t *testing.T) {
	r, token := sessionRefresher(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, token, req.URL.Query().Get("access_token"))
		conn, err := testUpgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"Other","payload":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"ReceiveNotification","payload":{"type":"NewComment","itemId":"m1","itemTitle":"Inception","commentId":"c1","commentPreview":"Great film","authorId":"u1","timestamp":"2024-03-10T12:00:00Z"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	received := make(chan Notification, 1)
	hc, err := NewHubClient(srv.URL, "/hubs/notifications", r, HubHandlers{
		OnNotification: func(n Notification) { received <- n },
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hc.Run(ctx) }()

	select {
	case n := <-received:
		assert.Equal(t, "NewComment", n.Type)
		assert.Equal(t, "Inception", n.ItemTitle)
		assert.Equal(t, "Great film", n.CommentPreview)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestHubClient_GivesUpAfterSchedule(t *testing.T) {
	r, _ := sessionRefresher(t)
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if dials.Add(1) > 1 {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	var attempts []int
	var closedErr error
	hc, err := NewHubClient(srv.URL, "/hubs/notifications", r, HubHandlers{
		OnReconnecting: func(attempt int, err error) { attempts = append(attempts, attempt) },
		OnClosed:       func(err error) { closedErr = err },
	}, nil)
	require.NoError(t, err)
	hc.WithSchedule(newFixedSchedule([]time.Duration{0, time.Millisecond, time.Millisecond}))

	err = hc.Run(context.Background())
	assert.ErrorIs(t, err, cinecritic_errors.ErrTransport)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, int32(4), dials.Load())
	assert.ErrorIs(t, closedErr, cinecritic_errors.ErrTransport)
}

func TestHubClient_ReconnectsAfterDrop(t *testing.T) {
	r, _ := sessionRefresher(t)
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		n := dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if n == 1 {
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"method":  "ReceiveNotification",
			"payload": map[string]string{"type": "MovieCreated", "itemId": "m2", "itemTitle": "Heat"},
		})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	reconnected := make(chan struct{}, 1)
	received := make(chan Notification, 1)
	hc, err := NewHubClient(srv.URL, "/hubs/notifications", r, HubHandlers{
		OnNotification: func(n Notification) { received <- n },
		OnReconnected:  func() { reconnected <- struct{}{} },
	}, nil)
	require.NoError(t, err)
	hc.WithSchedule(newFixedSchedule([]time.Duration{0}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hc.Run(ctx) }()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not reconnect")
	}
	select {
	case n := <-received:
		assert.Equal(t, "Heat", n.ItemTitle)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received after reconnect")
	}
}

func TestHubClient_ForbiddenHandshake(t *testing.T) {
	r, _ := sessionRefresher(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "administrator role required", http.StatusForbidden)
	}))
	defer srv.Close()

	hc, err := NewHubClient(srv.URL, "/hubs/notifications", r, HubHandlers{}, nil)
	require.NoError(t, err)

	err = hc.Run(context.Background())
	assert.ErrorIs(t, err, cinecritic_errors.ErrForbidden)
}

func TestHubClient_NoSession(t *testing.T) {
	r, _ := newTestRefresher(t, TokenPair{}, &fakeRefreshClient{})
	hc, err := NewHubClient("http://localhost:1", "/hubs/notifications", r, HubHandlers{}, nil)
	require.NoError(t, err)

	err = hc.Run(context.Background())
	assert.ErrorIs(t, err, cinecritic_errors.ErrUnauthorized)
}
