package client

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transport attaches the session's bearer token to outgoing requests and
// retries exactly once after a 401, with a freshly refreshed token.
type Transport struct {
	Base      http.RoundTripper
	Refresher *Refresher
	Logger    *zap.Logger
}

// NewHTTPClient returns an *http.Client whose requests go through the
// token pipeline.
func NewHTTPClient(refresher *Refresher, logger *zap.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Base:      http.DefaultTransport,
			Refresher: refresher,
			Logger:    logger,
		},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	token, err := t.Refresher.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	first, err := cloneRequest(req, getBody, token)
	if err != nil {
		return nil, err
	}
	resp, err := t.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if t.Refresher.Credentials().Get().RefreshToken == "" {
		return resp, nil
	}

	fresh, err := t.Refresher.ForceRefresh(ctx, token)
	if err != nil || fresh == "" {
		return resp, nil
	}

	retry, err := cloneRequest(req, getBody, fresh)
	if err != nil {
		return resp, nil
	}
	second, err := t.base().RoundTrip(retry)
	if err != nil {
		t.logger().Warn("retry after token refresh failed",
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return resp, nil
	}
	drain(resp)
	return second, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// replayableBody returns a function producing a fresh copy of the request
// body, buffering it when the request cannot replay it itself.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func cloneRequest(req *http.Request, getBody func() (io.ReadCloser, error), token string) (*http.Request, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
		out.GetBody = getBody
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return out, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
