package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cinecritic/internal/transport/httpdto"
	cinecritic_errors "cinecritic/pkg/errors"
)

// HTTPRefreshClient calls the API's token refresh endpoint. It uses a plain
// http.Client so refresh calls never go through the token pipeline.
type HTTPRefreshClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPRefreshClient(baseURL string, httpClient *http.Client) *HTTPRefreshClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPRefreshClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *HTTPRefreshClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	body, err := json.Marshal(httpdto.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return TokenPair{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", cinecritic_errors.ErrTransport, err)
	}
	defer resp.Body.Close()

	var out httpdto.Response[httpdto.TokenResponse]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TokenPair{}, fmt.Errorf("%w: decode refresh response: %v", cinecritic_errors.ErrTokenRefresh, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return TokenPair{}, fmt.Errorf("%w: status %d: %s", cinecritic_errors.ErrTokenRefresh, resp.StatusCode, out.Error)
	}
	return TokenPair{
		AccessToken:  out.Data.AccessToken,
		RefreshToken: out.Data.RefreshToken,
	}, nil
}
