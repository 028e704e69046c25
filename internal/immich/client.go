// Package immich talks to the Immich asset server REST API.
package immich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/memohai/immich-bridge/internal/config"
)

// ProbeTimeout bounds the ping and identity calls.
const ProbeTimeout = 5 * time.Second

// DeviceID tags every asset uploaded by the bridge.
const DeviceID = "telegram-bot-device"

// UnknownUser is reported when the identity lookup fails.
const UnknownUser = "Unknown user"

// Client is an Immich API client authenticated with an API key.
type Client struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger
	http    *http.Client
}

// NewClient creates a client for baseURL (e.g. https://photos.example.com/api).
// Uploads are bounded only by the caller's context.
func NewClient(log *slog.Logger, baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("immich client: base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("immich client: api key is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.With(slog.String("client", "immich")),
		http:    httpClient,
	}, nil
}

// NewClientFromConfig creates a client from the immich section of cfg.
func NewClientFromConfig(log *slog.Logger, cfg config.Config) (*Client, error) {
	return NewClient(log, cfg.Immich.APIURL, cfg.Immich.APIKey, nil)
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping calls GET /server/ping once. Any failure is reported as unreachable.
func (c *Client) Ping(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/server/ping")
	if err != nil {
		c.logger.Error("ping failed", slog.Any("error", err))
		return Status{Detail: fmt.Sprintf("Connection failed: %v", err)}
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ping rejected", slog.Int("status", resp.StatusCode))
		return Status{Detail: fmt.Sprintf("Server ping failed (HTTP %d)", resp.StatusCode)}
	}
	return Status{Reachable: true, Detail: fmt.Sprintf("Connected to Immich (%s)", c.baseURL)}
}

// WhoAmI calls GET /users/me. Failures yield the UnknownUser placeholder.
func (c *Client) WhoAmI(ctx context.Context) Identity {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/users/me")
	if err != nil {
		c.logger.Error("get user info failed", slog.Any("error", err))
		return Identity{Name: UnknownUser}
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("get user info rejected", slog.Int("status", resp.StatusCode))
		return Identity{Name: UnknownUser}
	}
	var body struct {
		Name    string `json:"name"`
		IsAdmin bool   `json:"isAdmin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Error("decode user info failed", slog.Any("error", err))
		return Identity{Name: UnknownUser}
	}
	if strings.TrimSpace(body.Name) == "" {
		body.Name = "Unknown"
	}
	return Identity{Name: body.Name, IsAdmin: body.IsAdmin, Known: true}
}

// Check pings the server and, when reachable, resolves the identity.
func (c *Client) Check(ctx context.Context) Report {
	report := Report{Status: c.Ping(ctx), Identity: Identity{Name: UnknownUser}}
	if report.Status.Reachable {
		report.Identity = c.WhoAmI(ctx)
	}
	return report
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
