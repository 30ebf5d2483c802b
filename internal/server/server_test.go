package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinecritic/config"
	"cinecritic/internal/events"
	"cinecritic/internal/handler"
	"cinecritic/internal/metrics"
	"cinecritic/internal/repository"
	"cinecritic/internal/services"
	"cinecritic/internal/websocket"
	"cinecritic/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type ServerSuite struct {
	suite.Suite
	srv        *Server
	tokens     *services.TokenService
	adminToken string
	userToken  string
	published  []events.DomainEvent
}

func (s *ServerSuite) SetupTest() {
	cfg := &config.Config{AppPort: "0", AppMode: TestMode, JWTSecret: "test-secret", JWTExpiryMin: 15, RefreshExpiry: 1}
	s.published = nil

	bus := events.NewBus(nil)
	bus.SubscribeAll(events.HandlerFunc(func(ctx context.Context, e events.DomainEvent) error {
		s.published = append(s.published, e)
		return nil
	}))
	runner := repository.NewMemoryTxRunner(repository.NewMemoryStore(), bus.Publish)
	s.tokens = services.NewTokenService(services.NewMemoryRefreshStore(), cfg)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := websocket.NewHub(nil).WithMetrics(m)

	s.srv = New(cfg, logger.Nop())
	s.srv.SetupRoutes(&Handlers{
		Auth:     handler.NewAuthHandler(s.tokens),
		Movies:   handler.NewMovieHandler(services.NewCatalogService(runner)),
		Comments: handler.NewCommentHandler(services.NewModerationService(runner, nil)),
		Hub:      websocket.NewHandler(s.tokens, hub, nil),
	}, Dependencies{Tokens: s.tokens, Gatherer: reg})

	admin, err := s.tokens.Issue(context.Background(), "admin1", services.RoleAdministrator)
	s.Require().NoError(err)
	user, err := s.tokens.Issue(context.Background(), "u1", services.RoleUser)
	s.Require().NoError(err)
	s.adminToken = admin.AccessToken
	s.userToken = user.AccessToken
}

func (s *ServerSuite) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.srv.Engine().ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (s *ServerSuite) createMovie(title string) string {
	w, env := s.do(http.MethodPost, "/v1/movies", s.adminToken, map[string]any{"title": title, "release_year": 2010})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var movie struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &movie))
	return movie.ID
}

func (s *ServerSuite) addComment(movieID string) string {
	w, env := s.do(http.MethodPost, "/v1/movies/"+movieID+"/comments", s.userToken, map[string]any{"text": "Great film"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var comment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &comment))
	s.Equal("Pending", comment.Status)
	return comment.ID
}

func (s *ServerSuite) TestPingAndHealth() {
	w, _ := s.do(http.MethodGet, "/ping", "", nil)
	s.Equal(http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "cinecritic_hub_connections")
}

func (s *ServerSuite) TestModerationFlow() {
	movieID := s.createMovie("Inception")
	commentID := s.addComment(movieID)

	w, env := s.do(http.MethodPost, "/v1/movies/"+movieID+"/comments/"+commentID+"/approve", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var approved struct {
		Status     string  `json:"status"`
		ReviewedBy *string `json:"reviewed_by"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &approved))
	s.Equal("Approved", approved.Status)
	s.Require().NotNil(approved.ReviewedBy)
	s.Equal("admin1", *approved.ReviewedBy)

	// Approving again is an illegal transition.
	w, env = s.do(http.MethodPost, "/v1/movies/"+movieID+"/comments/"+commentID+"/approve", s.adminToken, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("CONFLICT", env.Code)

	w, env = s.do(http.MethodGet, "/v1/movies/"+movieID+"/comments/stats", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var stats struct {
		Approved int `json:"approved"`
		Total    int `json:"total"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &stats))
	s.Equal(1, stats.Approved)
	s.Equal(1, stats.Total)

	w, _ = s.do(http.MethodGet, "/v1/movies/"+movieID+"/comments?status=pending", "", nil)
	s.Equal(http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/v1/movies/"+movieID+"/comments?status=bogus", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	s.Require().Len(s.published, 3)
	s.Equal(events.EventMovieCreated, s.published[0].Type())
	s.Equal(events.EventCommentCreated, s.published[1].Type())
	s.Equal(events.EventCommentApproved, s.published[2].Type())
}

func (s *ServerSuite) TestModerationRequiresAdministrator() {
	movieID := s.createMovie("Heat")
	commentID := s.addComment(movieID)

	w, env := s.do(http.MethodPost, "/v1/movies/"+movieID+"/comments/"+commentID+"/reject", s.userToken, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("FORBIDDEN", env.Code)

	w, _ = s.do(http.MethodPost, "/v1/movies/"+movieID+"/comments/"+commentID+"/reject", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/movies", s.userToken, map[string]any{"title": "Nope"})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *ServerSuite) TestValidationErrors() {
	w, env := s.do(http.MethodPost, "/v1/movies", s.adminToken, map[string]any{"genre": "Drama"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_REQUEST", env.Code)
	s.Contains(env.Error, "title is required")

	movieID := s.createMovie("Alien")
	w, _ = s.do(http.MethodPost, "/v1/movies/"+movieID+"/comments", s.userToken, map[string]any{"text": ""})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/movies/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerSuite) TestDeleteMovie() {
	movieID := s.createMovie("Tenet")
	w, _ := s.do(http.MethodDelete, "/v1/movies/"+movieID, s.adminToken, nil)
	s.Equal(http.StatusOK, w.Code)
	w, env := s.do(http.MethodGet, "/v1/movies/"+movieID, "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", env.Code)
}

func (s *ServerSuite) TestRefreshRotatesToken() {
	pair, err := s.tokens.Issue(context.Background(), "admin1", services.RoleAdministrator)
	s.Require().NoError(err)

	w, env := s.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var rotated struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &rotated))
	s.NotEmpty(rotated.AccessToken)
	s.NotEqual(pair.RefreshToken, rotated.RefreshToken)

	// Single use.
	w, _ = s.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}
