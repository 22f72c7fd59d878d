// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/zulip/lib/netutil"
	"github.com/bureau-foundation/zulip/lib/secret"
	"github.com/bureau-foundation/zulip/lib/version"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Site is the base URL of the organization (e.g.,
	// "https://chat.example.com"). A trailing slash is accepted.
	Site string
	// Email is the account identifier used for HTTP basic auth.
	Email string
	// APIKey is the account's API key. The Client reads it on every
	// request but does not close it; the caller retains ownership and
	// must keep it open for the Client's lifetime.
	APIKey *secret.Buffer
	// HTTPClient is used for all requests. If nil, a client built by
	// netutil.NewHTTPClient is used, which accepts compressed responses.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// UserAgent overrides the default "zulip-go/<version>" User-Agent.
	UserAgent string
}

// Client is an authenticated API client for one account on one
// organization. It is safe for concurrent use: configuration is
// immutable after NewClient and the HTTP client is shared.
//
// A Client never retries. Each method performs exactly one round trip,
// except CreateStream which performs two.
type Client struct {
	baseURL    string
	email      string
	apiKey     *secret.Buffer
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client from config.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Site == "" {
		return nil, fmt.Errorf("zulip: Site is required")
	}
	if config.Email == "" {
		return nil, fmt.Errorf("zulip: Email is required")
	}
	if config.APIKey == nil {
		return nil, fmt.Errorf("zulip: APIKey is required")
	}

	// Request URLs are built by direct concatenation onto the trimmed
	// site string, so only validate here.
	parsed, err := url.Parse(config.Site)
	if err != nil {
		return nil, fmt.Errorf("zulip: invalid Site %q: %w", config.Site, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("zulip: Site %q must use http or https", config.Site)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = netutil.NewHTTPClient()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.Site, "/"),
		email:      config.Email,
		apiKey:     config.APIKey,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Site returns the normalized base URL (no trailing slash).
func (c *Client) Site() string {
	return c.baseURL
}

// Email returns the account identifier the client authenticates as.
func (c *Client) Email() string {
	return c.email
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Long-poll loops call this after a
// transport failure so the next request opens a fresh connection
// instead of reusing one that died with the network.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// endpoint joins the base URL and an API path with exactly one slash,
// regardless of whether either side carries its own.
func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// do performs one authenticated round trip. query is appended to the
// URL; form, when non-nil, is sent as an urlencoded body. Any status
// code is returned to the caller for envelope decoding, because the
// server reports rejections as 4xx responses carrying a normal
// envelope. Only a failure to complete the round trip is an error, and
// it is always a *TransportError.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values) (rawResponse, error) {
	response := rawResponse{method: method, path: path}

	requestURL := c.endpoint(path)
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return response, &TransportError{Method: method, Path: path, Err: err}
	}
	if form != nil {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	request.Header.Set("User-Agent", c.userAgent)
	// The key is converted to a string at the header boundary. The
	// heap copy lives only as long as the request.
	request.SetBasicAuth(c.email, c.apiKey.Reveal())

	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		return response, &TransportError{Method: method, Path: path, Err: err}
	}
	defer httpResponse.Body.Close()

	response.statusCode = httpResponse.StatusCode
	response.body, err = netutil.ReadResponse(httpResponse.Body)
	if err != nil {
		return response, &TransportError{Method: method, Path: path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.logger.Debug("zulip request complete",
		"method", method,
		"path", path,
		"status", response.statusCode,
		"bytes", len(response.body),
	)
	return response, nil
}
