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

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RegisterBegin requests fresh registration challenge options for the
// authenticated user. Each call issues a new challenge; the previous one
// is invalidated server-side.
func (c *Client) RegisterBegin(ctx context.Context, token string) (*RegistrationOptions, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/webauthn/register/begin", token, struct{}{})
	if err != nil {
		return nil, err
	}

	var opts RegistrationOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse registration options: %w", err)
	}
	return &opts, nil
}

// RegisterComplete submits the encoded attestation for verification.
func (c *Client) RegisterComplete(ctx context.Context, token string, attestation *AttestationPayload) (*MessageResponse, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/webauthn/register/complete", token, attestation)
	if err != nil {
		return nil, err
	}

	var resp MessageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// AuthBegin requests fresh authentication challenge options for the named
// user. No bearer token: this runs pre-login.
func (c *Client) AuthBegin(ctx context.Context, username string) (*AuthenticationOptions, error) {
	path := "/webauthn/auth/begin?username=" + url.QueryEscape(username)
	data, err := c.doRequest(ctx, http.MethodPost, path, "", nil)
	if err != nil {
		return nil, err
	}

	var opts AuthenticationOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse authentication options: %w", err)
	}
	return &opts, nil
}

// AuthComplete submits the encoded assertion and returns the issued
// session token on success.
func (c *Client) AuthComplete(ctx context.Context, username string, assertion *AssertionPayload) (*TokenResponse, error) {
	path := "/webauthn/auth/complete?username=" + url.QueryEscape(username)
	data, err := c.doRequest(ctx, http.MethodPost, path, "", assertion)
	if err != nil {
		return nil, err
	}

	var resp TokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &resp, nil
}

// HasCredentials reports whether the authenticated user has any enrolled
// credential. Errors propagate; the fail-closed interpretation belongs to
// the flow layer.
func (c *Client) HasCredentials(ctx context.Context, token string) (bool, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/webauthn/has-credentials", token, nil)
	if err != nil {
		return false, err
	}

	var resp HasCredentialsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.HasCredentials, nil
}

// DeleteCredentials removes all enrolled credentials for the authenticated
// user.
func (c *Client) DeleteCredentials(ctx context.Context, token string) (*MessageResponse, error) {
	data, err := c.doRequest(ctx, http.MethodDelete, "/webauthn/credentials", token, nil)
	if err != nil {
		return nil, err
	}

	var resp MessageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// Health checks the health of the backend.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}
