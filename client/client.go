// Package client is the Go SDK for the chat server's REST and realtime APIs.
// It attaches the bearer access token to every request and transparently
// refreshes it on 401 responses, coordinating concurrent refreshes so at most
// one refresh request is ever in flight.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/Azaz-Gori07/ChatApp/pkg/httpclient"
)

// APIError is an error response returned by the server.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// Options configures a Client.
type Options struct {
	// HTTPClient overrides the default client. A cookie jar is installed if
	// the client has none; the refresh token lives in an httpOnly cookie.
	HTTPClient *http.Client

	// Timeout for the default HTTP client. Ignored when HTTPClient is set.
	Timeout time.Duration

	// OnSessionExpired is called once per failed refresh, after the stored
	// access token has been cleared. The application typically prompts the
	// user to log in again.
	OnSessionExpired func()

	// Logger receives circuit breaker state changes from the direct-upload
	// transport. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a session-aware chat API client.
type Client struct {
	baseURL          string
	http             *http.Client
	uploads          *httpclient.CircuitBreakerClient
	onSessionExpired func()

	mu          sync.Mutex
	accessToken string
	refreshing  chan struct{}
	refreshErr  error
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	uploads := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("chat-client-upload"),
		logger,
	)

	return &Client{
		baseURL:          baseURL,
		http:             httpClient,
		uploads:          uploads,
		onSessionExpired: opts.OnSessionExpired,
	}, nil
}

// AccessToken returns the currently stored access token, or "" when logged out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// SetAccessToken installs a token obtained out of band.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// do performs an authenticated request and decodes the data envelope into out.
// On a 401 it refreshes the access token (joining an in-flight refresh if one
// exists) and replays the request exactly once.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token := c.AccessToken()

	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		drain(resp)

		newToken, err := c.refreshAccessToken(ctx)
		if err != nil {
			return err
		}

		resp, err = c.send(ctx, method, path, body, newToken)
		if err != nil {
			return err
		}
	}

	return decode(resp, out)
}

// doPublic performs an unauthenticated request (auth endpoints).
func (c *Client) doPublic(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.send(ctx, method, path, body, "")
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// refreshAccessToken obtains a fresh access token via the refresh cookie.
// At most one refresh request is in flight: the first caller performs it,
// concurrent callers block on its outcome and share the result.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if ch := c.refreshing; ch != nil {
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		c.mu.Lock()
		token, err := c.accessToken, c.refreshErr
		c.mu.Unlock()
		return token, err
	}

	ch := make(chan struct{})
	c.refreshing = ch
	c.mu.Unlock()

	token, err := c.requestRefresh(ctx)

	c.mu.Lock()
	if err != nil {
		c.accessToken = ""
		c.refreshErr = fmt.Errorf("session refresh failed: %w", err)
		err = c.refreshErr
	} else {
		c.accessToken = token
		c.refreshErr = nil
	}
	c.refreshing = nil
	c.mu.Unlock()
	close(ch)

	if err != nil && c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	return token, err
}

func (c *Client) requestRefresh(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/refresh", nil, "")
	if err != nil {
		return "", err
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := decode(resp, &result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if env.Error != nil {
		env.Error.StatusCode = resp.StatusCode
		return env.Error
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
