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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures the last request and serves a canned response.
type recordingHandler struct {
	lastMethod string
	lastPath   string
	lastQuery  string
	lastAuth   string
	lastHeader http.Header
	lastBody   []byte

	status int
	body   interface{}
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.lastMethod = r.Method
	h.lastPath = r.URL.Path
	h.lastQuery = r.URL.RawQuery
	h.lastAuth = r.Header.Get("Authorization")
	h.lastHeader = r.Header.Clone()

	h.lastBody, _ = io.ReadAll(r.Body)

	w.Header().Set("Content-Type", "application/json")
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(h.body)
}

func newTestClient(t *testing.T, handler http.Handler, mutate func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := &Config{Address: ts.URL}
	if mutate != nil {
		mutate(cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, ts
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)

	c, err := New(&Config{Address: "localhost:8443"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, "http://localhost:8443/api", c.baseURL)

	c, err = New(&Config{Address: "localhost:8443", TLSEnabled: true})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, "https://localhost:8443/api", c.baseURL)

	c, err = New(&Config{Address: "http://host/", APIPrefix: "v2"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, "http://host/v2", c.baseURL)
}

func TestRegisterBegin(t *testing.T) {
	handler := &recordingHandler{body: map[string]interface{}{
		"rp":               map[string]string{"id": "billing.example.com", "name": "Anthony Sistem"},
		"user":             map[string]string{"id": "dXNlci00Mg", "name": "admin", "displayName": "admin"},
		"challenge":        "Y2hhbGxlbmdl",
		"pubKeyCredParams": []map[string]interface{}{{"type": "public-key", "alg": -7}},
		"timeout":          60000,
	}}
	c, _ := newTestClient(t, handler, nil)

	opts, err := c.RegisterBegin(context.Background(), "my-token")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, handler.lastMethod)
	assert.Equal(t, "/api/webauthn/register/begin", handler.lastPath)
	assert.Equal(t, "Bearer my-token", handler.lastAuth)
	assert.Equal(t, "application/json", handler.lastHeader.Get("Content-Type"))
	assert.NotEmpty(t, handler.lastHeader.Get("X-Request-ID"))

	assert.Equal(t, "Y2hhbGxlbmdl", opts.Challenge)
	assert.Equal(t, "billing.example.com", opts.RP.ID)
	require.Len(t, opts.PubKeyCredParams, 1)
	assert.Equal(t, -7, opts.PubKeyCredParams[0].Algorithm)
}

func TestAuthBegin_QueryEscaping(t *testing.T) {
	handler := &recordingHandler{body: map[string]interface{}{
		"challenge": "Y2hhbGxlbmdl",
		"rpId":      "billing.example.com",
	}}
	c, _ := newTestClient(t, handler, nil)

	opts, err := c.AuthBegin(context.Background(), "user name+special")
	require.NoError(t, err)

	assert.Equal(t, "/api/webauthn/auth/begin", handler.lastPath)
	assert.Equal(t, "username=user+name%2Bspecial", handler.lastQuery)
	assert.Empty(t, handler.lastAuth)
	assert.Equal(t, "billing.example.com", opts.RPID)
}

func TestAuthComplete(t *testing.T) {
	handler := &recordingHandler{body: map[string]string{
		"access_token": "issued-token",
		"token_type":   "bearer",
	}}
	c, _ := newTestClient(t, handler, nil)

	userHandle := "dXNlci00Mg"
	resp, err := c.AuthComplete(context.Background(), "admin", &AssertionPayload{
		ID:    "AQID",
		RawID: "AQID",
		Type:  "public-key",
		Response: AssertionResponse{
			ClientDataJSON:    "e30",
			AuthenticatorData: "AQ",
			Signature:         "Ag",
			UserHandle:        &userHandle,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "issued-token", resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)

	// userHandle must serialize as a string, not be dropped.
	assert.Contains(t, string(handler.lastBody), `"userHandle":"dXNlci00Mg"`)
}

func TestAuthComplete_NullUserHandle(t *testing.T) {
	handler := &recordingHandler{body: map[string]string{
		"access_token": "issued-token",
		"token_type":   "bearer",
	}}
	c, _ := newTestClient(t, handler, nil)

	_, err := c.AuthComplete(context.Background(), "admin", &AssertionPayload{
		ID: "AQID", RawID: "AQID", Type: "public-key",
		Response: AssertionResponse{ClientDataJSON: "e30", AuthenticatorData: "AQ", Signature: "Ag"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(handler.lastBody), `"userHandle":null`)
}

func TestHasCredentials(t *testing.T) {
	handler := &recordingHandler{body: map[string]bool{"has_credentials": true}}
	c, _ := newTestClient(t, handler, nil)

	has, err := c.HasCredentials(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, http.MethodGet, handler.lastMethod)
	assert.Equal(t, "/api/webauthn/has-credentials", handler.lastPath)
}

func TestDeleteCredentials(t *testing.T) {
	handler := &recordingHandler{body: map[string]interface{}{"success": true, "message": "deleted"}}
	c, _ := newTestClient(t, handler, nil)

	resp, err := c.DeleteCredentials(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "deleted", resp.Message)
	assert.Equal(t, http.MethodDelete, handler.lastMethod)
	assert.Equal(t, "/api/webauthn/credentials", handler.lastPath)
}

func TestHealth(t *testing.T) {
	handler := &recordingHandler{body: map[string]string{"status": "healthy", "database": "connected"}}
	c, _ := newTestClient(t, handler, nil)

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "/api/health", handler.lastPath)
}

func TestServerError_DetailParsed(t *testing.T) {
	handler := &recordingHandler{status: http.StatusUnauthorized, body: map[string]string{"detail": "not authenticated"}}
	c, _ := newTestClient(t, handler, nil)

	_, err := c.RegisterBegin(context.Background(), "bad-token")
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusUnauthorized, serverErr.StatusCode)
	assert.Equal(t, "not authenticated", serverErr.Detail)
}

func TestServerError_NonJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(ts.Close)

	c, err := New(&Config{Address: ts.URL})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.RegisterBegin(context.Background(), "token")
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusBadGateway, serverErr.StatusCode)
	assert.Equal(t, "server returned status 502", serverErr.Detail)
}

func TestNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := ts.URL
	ts.Close()

	c, err := New(&Config{Address: addr})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.RegisterBegin(context.Background(), "token")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestCustomHeaders(t *testing.T) {
	handler := &recordingHandler{body: map[string]string{"status": "healthy"}}
	c, _ := newTestClient(t, handler, func(cfg *Config) {
		cfg.Headers = map[string]string{"X-Tenant": "acme"}
	})

	_, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme", handler.lastHeader.Get("X-Tenant"))
}
