package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cinecritic/internal/transport/httpdto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAccessToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestLoginThenModerate(t *testing.T) {
	access := fakeAccessToken(t)
	movieID, commentID := uuid.New(), uuid.New()
	var refreshes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		_ = json.NewEncoder(w).Encode(httpdto.NewSuccessResponse(httpdto.TokenResponse{
			AccessToken:  access,
			RefreshToken: "rotated",
			TokenType:    "Bearer",
		}))
	})
	mux.HandleFunc("/v1/movies/"+movieID.String()+"/comments/"+commentID.String()+"/approve", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+access {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			return
		}
		_ = json.NewEncoder(w).Encode(httpdto.NewSuccessResponse(httpdto.CommentDTO{
			ID:     commentID.String(),
			Status: "Approved",
		}))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "session.db")
	run := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--api", srv.URL, "--db", dbPath}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("login", "--refresh-token", "initial")
	require.NoError(t, err)
	assert.Contains(t, out, "Session stored.")
	assert.Equal(t, int32(1), refreshes.Load())

	out, err = run("moderate", "approve", movieID.String(), commentID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "is Approved")
	// The stored access token was still fresh.
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestModerate_RejectsBadIDs(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "s.db"), "moderate", "approve", "nope", "nope"})
	assert.Error(t, cmd.Execute())
}
