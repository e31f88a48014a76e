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

// Package rptest runs an in-process relying party with the same wire
// contract as the production backend: the six WebAuthn endpoints, bearer
// authentication, and the `{detail}` error shape. Integration tests point
// the client at it to exercise full ceremonies without a deployed server.
package rptest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTTL = time.Hour

// Server is an in-process relying party bound to an httptest listener.
type Server struct {
	// URL is the base address, e.g. http://127.0.0.1:PORT.
	URL string

	// RPID is the relying party identifier the engine validates against.
	RPID string

	ts     *httptest.Server
	engine *webauthn.WebAuthn
	secret []byte

	mu       sync.Mutex
	users    map[string]*account
	sessions map[string]*webauthn.SessionData
}

// account is one enrolled user with their stored credentials.
type account struct {
	id          []byte
	name        string
	credentials []webauthn.Credential
}

func (a *account) WebAuthnID() []byte          { return a.id }
func (a *account) WebAuthnName() string        { return a.name }
func (a *account) WebAuthnDisplayName() string { return a.name }
func (a *account) WebAuthnCredentials() []webauthn.Credential {
	return a.credentials
}

// New starts a relying party server and registers its shutdown with the
// test cleanup. The engine trusts only the server's own origin.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		RPID:     "127.0.0.1",
		secret:   make([]byte, 32),
		users:    make(map[string]*account),
		sessions: make(map[string]*webauthn.SessionData),
	}
	if _, err := rand.Read(s.secret); err != nil {
		t.Fatalf("generate signing secret: %v", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/webauthn", func(r chi.Router) {
			r.Post("/auth/begin", s.handleAuthBegin)
			r.Post("/auth/complete", s.handleAuthComplete)
			r.Group(func(r chi.Router) {
				r.Use(s.requireBearer)
				r.Post("/register/begin", s.handleRegisterBegin)
				r.Post("/register/complete", s.handleRegisterComplete)
				r.Get("/has-credentials", s.handleHasCredentials)
				r.Delete("/credentials", s.handleDeleteCredentials)
			})
		})
	})

	s.ts = httptest.NewServer(router)
	t.Cleanup(s.ts.Close)
	s.URL = s.ts.URL

	engine, err := webauthn.New(&webauthn.Config{
		RPID:          s.RPID,
		RPDisplayName: "Anthony Sistem",
		RPOrigins:     []string{s.ts.URL},
	})
	if err != nil {
		t.Fatalf("create webauthn engine: %v", err)
	}
	s.engine = engine

	return s
}

// IssueToken mints a bearer token for the named user, standing in for the
// password login that precedes enrollment in production.
func (s *Server) IssueToken(t *testing.T, username string) string {
	t.Helper()
	token, err := s.signToken(username)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (s *Server) signToken(username string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// HasStoredCredentials reports server-side enrollment state directly,
// bypassing the HTTP surface.
func (s *Server) HasStoredCredentials(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	return ok && len(user.credentials) > 0
}

type ctxKey int

const usernameKey ctxKey = 0

func contextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

func usernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

// requireBearer validates the Authorization header and stashes the
// authenticated username in the request context.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		username, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := contextWithUsername(r.Context(), username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) parseToken(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("missing subject")
	}
	return claims.Subject, nil
}

// getOrCreate returns the account for username, creating it on first use.
// Callers must hold s.mu.
func (s *Server) getOrCreate(username string) *account {
	user, ok := s.users[username]
	if !ok {
		user = &account{id: []byte(uuid.NewString()), name: username}
		s.users[username] = user
	}
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

func (s *Server) handleRegisterBegin(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())

	s.mu.Lock()
	user := s.getOrCreate(username)

	excludeList := make([]protocol.CredentialDescriptor, len(user.credentials))
	for i, cred := range user.credentials {
		excludeList[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
		}
	}

	creation, session, err := s.engine.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("failed to begin registration: %v", err))
		return
	}
	// A fresh begin replaces any pending ceremony for this user.
	s.sessions["register:"+username] = session
	s.mu.Unlock()

	// Flat creation options, the shape the production backend emits.
	writeJSON(w, http.StatusOK, creation.Response)
}

func (s *Server) handleRegisterComplete(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())

	parsed, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid registration response: %v", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	session, sok := s.sessions["register:"+username]
	if !ok || !sok {
		writeDetail(w, http.StatusBadRequest, "no registration in progress")
		return
	}
	delete(s.sessions, "register:"+username)

	credential, err := s.engine.CreateCredential(user, *session, parsed)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("registration verification failed: %v", err))
		return
	}
	user.credentials = append(user.credentials, *credential)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "biometric credential registered successfully",
	})
}

func (s *Server) handleAuthBegin(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok || len(user.credentials) == 0 {
		writeDetail(w, http.StatusNotFound, "no biometric credentials registered for this user")
		return
	}

	assertion, session, err := s.engine.BeginLogin(user)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("failed to begin authentication: %v", err))
		return
	}
	s.sessions["auth:"+username] = session

	writeJSON(w, http.StatusOK, assertion.Response)
}

func (s *Server) handleAuthComplete(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username is required")
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid authentication response: %v", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	session, sok := s.sessions["auth:"+username]
	if !ok || !sok {
		writeDetail(w, http.StatusBadRequest, "no authentication in progress")
		return
	}
	delete(s.sessions, "auth:"+username)

	if _, err := s.engine.ValidateLogin(user, *session, parsed); err != nil {
		writeDetail(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	token, err := s.signToken(username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("sign token: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleHasCredentials(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	writeJSON(w, http.StatusOK, map[string]bool{
		"has_credentials": ok && len(user.credentials) > 0,
	})
}

func (s *Server) handleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[username]; ok {
		user.credentials = nil
	}
	delete(s.sessions, "register:"+username)
	delete(s.sessions, "auth:"+username)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "biometric credentials deleted",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
