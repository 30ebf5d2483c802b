package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cinecritic/internal/transport/httpdto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_RetriesOnceAfter401(t *testing.T) {
	revoked := signToken(t, "admin", testNow.Add(10*time.Minute))
	next := TokenPair{AccessToken: signToken(t, "admin", testNow.Add(time.Hour)), RefreshToken: "r2"}

	var hits atomic.Int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if r.Header.Get("Authorization") != "Bearer "+next.AccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rc := &fakeRefreshClient{issue: func() TokenPair { return next }}
	r, _ := newTestRefresher(t, TokenPair{AccessToken: revoked, RefreshToken: "r1"}, rc)
	httpClient := NewHTTPClient(r, nil, 5*time.Second)

	req, err := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader(`{"text":"hi"}`)))
	require.NoError(t, err)
	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), rc.calls.Load())
	assert.Equal(t, []string{`{"text":"hi"}`, `{"text":"hi"}`}, bodies)
}

func TestTransport_RetriesAtMostOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var n atomic.Int32
	rc := &fakeRefreshClient{issue: func() TokenPair {
		i := n.Add(1)
		return TokenPair{AccessToken: signToken(t, "admin", testNow.Add(time.Duration(i)*time.Hour)), RefreshToken: "r-next"}
	}}
	r, _ := newTestRefresher(t, TokenPair{AccessToken: signToken(t, "admin-initial", testNow.Add(time.Hour)), RefreshToken: "r1"}, rc)

	resp, err := NewHTTPClient(r, nil, 5*time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), rc.calls.Load())
}

func TestTransport_NoRefreshTokenReturns401Unchanged(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rc := &fakeRefreshClient{}
	r, _ := newTestRefresher(t, TokenPair{}, rc)

	resp, err := NewHTTPClient(r, nil, 5*time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.Zero(t, rc.calls.Load())
}

func TestTransport_PreemptiveRefreshBeforeFirstSend(t *testing.T) {
	next := TokenPair{AccessToken: signToken(t, "admin", testNow.Add(time.Hour)), RefreshToken: "r2"}
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rc := &fakeRefreshClient{issue: func() TokenPair { return next }}
	r, _ := newTestRefresher(t, TokenPair{AccessToken: signToken(t, "admin", testNow.Add(10*time.Second)), RefreshToken: "r1"}, rc)

	resp, err := NewHTTPClient(r, nil, 5*time.Second).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"Bearer " + next.AccessToken}, seen)
}

func TestHTTPRefreshClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/refresh", r.URL.Path)
		var req httpdto.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.RefreshToken != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(httpdto.NewErrorResponse("invalid refresh token", "UNAUTHORIZED"))
			return
		}
		_ = json.NewEncoder(w).Encode(httpdto.NewSuccessResponse(httpdto.TokenResponse{
			AccessToken:  "access",
			RefreshToken: "rotated",
			TokenType:    "Bearer",
			ExpiresIn:    900,
		}))
	}))
	defer srv.Close()

	rc := NewHTTPRefreshClient(srv.URL+"/", srv.Client())

	pair, err := rc.Refresh(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, TokenPair{AccessToken: "access", RefreshToken: "rotated"}, pair)

	_, err = rc.Refresh(context.Background(), "bad")
	assert.Error(t, err)
}
