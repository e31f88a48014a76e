// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-biometric.
//
// go-biometric is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package client provides the REST transport for the Anthony Sistem
// backend's WebAuthn endpoints. The backend owns all persistent state;
// this client only moves textually-encoded protocol data back and forth
// and splits failures into two categories the flows care about: the
// request never reached the server (ErrNetwork) or the server answered
// with a failure status (*ServerError carrying the detail field).
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNetwork is wrapped into every transport-level failure: DNS,
	// connect, TLS, or timeout errors where no HTTP response arrived.
	ErrNetwork = errors.New("network error")
)

// ServerError is a non-success HTTP response from the backend. Detail is
// the server's `detail` field verbatim when present, otherwise a generic
// message derived from the status code.
type ServerError struct {
	StatusCode int
	Detail     string
}

// Error returns the error message.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Detail)
}

// Config configures the backend client.
type Config struct {
	// Address is the backend base URL, e.g. https://host:port.
	// A bare host defaults to http:// unless TLSEnabled is set.
	Address string

	// APIPrefix is prepended to all endpoint paths (default: /api).
	APIPrefix string

	// Timeout bounds each request including body read (default: 30s).
	// The authenticator gesture is never covered by this timeout; it
	// happens between requests.
	Timeout time.Duration

	// TLSEnabled enables TLS when Address carries no scheme.
	TLSEnabled bool

	// TLSInsecureSkipVerify skips certificate verification (not recommended).
	TLSInsecureSkipVerify bool

	// TLSCAFile is the path to a CA certificate file.
	TLSCAFile string

	// TLSCertFile is the path to the client certificate file (for mTLS).
	TLSCertFile string

	// TLSKeyFile is the path to the client key file (for mTLS).
	TLSKeyFile string

	// Headers are additional HTTP headers to include in every request.
	Headers map[string]string
}

// Client talks to the backend's WebAuthn endpoints over HTTPS/JSON.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// New creates a backend client from the given configuration.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("server address is required")
	}

	baseURL := cfg.Address
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		if cfg.TLSEnabled {
			baseURL = "https://" + baseURL
		} else {
			baseURL = "http://" + baseURL
		}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:  cfg,
		baseURL: baseURL + strings.TrimSuffix(prefix, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func buildTLSConfig(cfg *Config) (*tls.Config, error) {
	needsTLS := cfg.TLSEnabled || strings.HasPrefix(cfg.Address, "https://") ||
		cfg.TLSCAFile != "" || cfg.TLSCertFile != ""
	if !needsTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// doRequest performs one HTTP round-trip. An empty bearer token omits the
// Authorization header (the auth/begin and auth/complete endpoints run
// pre-login). The caller receives either the response body, a wrapped
// ErrNetwork, or a *ServerError.
func (c *Client) doRequest(ctx context.Context, method, path, bearer string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		return nil, newServerError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// newServerError extracts the backend's `{detail}` error shape, falling
// back to a generic message when the body carries something else.
func newServerError(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
		return &ServerError{StatusCode: status, Detail: errResp.Detail}
	}
	return &ServerError{
		StatusCode: status,
		Detail:     fmt.Sprintf("server returned status %d", status),
	}
}
