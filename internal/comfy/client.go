package comfy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vk/comfyrun/internal/ctxlog"
)

const (
	apiKeyHeader = "X-C3-API-KEY"
	apiKeyCookie = "c3_api_key"
	apiKeyParam  = "api_key"
)

// Config configures a Client.
type Config struct {
	// ServerURL is the engine's base URL, with or without trailing slash.
	ServerURL string
	// APIKey authenticates every request, as header and session cookie.
	APIKey string
	// RetryWait overrides the initial delay between submit attempts.
	// Defaults to two seconds; each retry doubles it.
	RetryWait time.Duration
	// Timeout bounds each individual HTTP round trip. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to one engine instance. It is safe for concurrent use; all
// mutable per-job state lives with the caller.
type Client struct {
	baseURL   string
	apiKey    string
	clientID  string
	session   *http.Client
	direct    *http.Client
	retryWait time.Duration

	sleep func(time.Duration)
}

// New builds a Client and negotiates a client id with the engine, falling
// back to a locally generated one when the endpoint is unavailable.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("comfy: ServerURL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("comfy: APIKey is required")
	}

	base := strings.TrimRight(cfg.ServerURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("comfy: invalid server URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait == 0 {
		retryWait = 2 * time.Second
	}

	// Artifact authorization is tied to cookies the server sets on first
	// contact, so the session client carries a jar seeded with the API key.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("comfy: cookie jar: %w", err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: apiKeyCookie, Value: cfg.APIKey}})

	c := &Client{
		baseURL:   base,
		apiKey:    cfg.APIKey,
		session:   &http.Client{Jar: jar, Timeout: timeout},
		direct:    &http.Client{Timeout: timeout},
		retryWait: retryWait,
		sleep:     time.Sleep,
	}
	c.clientID = c.negotiateClientID(ctx)
	return c, nil
}

// ClientID returns the session id sent alongside every submission.
func (c *Client) ClientID() string { return c.clientID }

// negotiateClientID asks the server for a client id and generates one
// locally when the endpoint does not exist or fails.
func (c *Client) negotiateClientID(ctx context.Context) string {
	logger := ctxlog.FromContext(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, "/prompt/get_client_id", nil)
	if err == nil {
		resp, err := c.session.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				var body struct {
					ClientID string `json:"client_id"`
				}
				if json.NewDecoder(resp.Body).Decode(&body) == nil && body.ClientID != "" {
					logger.Debug("Negotiated client id with server.", "clientID", body.ClientID)
					return body.ClientID
				}
			}
		}
	}

	id := uuid.NewString()
	logger.Debug("Falling back to locally generated client id.", "clientID", id)
	return id
}

// newRequest builds a request against the engine with the standard
// authentication header attached.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = strings.NewReader(string(data))
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
