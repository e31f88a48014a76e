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

package biometric

import (
	"context"

	"github.com/jeremyhahn/go-biometric/pkg/client"
)

// FlowState is the position of a flow inside its ceremony. Every flow is a
// linear sequence of suspension points; the only state with indefinite
// duration is StateAwaitingAuthenticator, where the user gesture happens.
type FlowState int

const (
	// StateIdle - flow created, nothing sent.
	StateIdle FlowState = iota

	// StateChallengeRequested - the begin request is in flight.
	StateChallengeRequested

	// StateAwaitingAuthenticator - suspended on the platform
	// authenticator; cancellable only by the user or platform.
	StateAwaitingAuthenticator

	// StateSubmitting - the complete request is in flight.
	StateSubmitting

	// StateCompleted - terminal success.
	StateCompleted

	// StateFailed - terminal failure; the FlowError carries the kind.
	StateFailed
)

// String returns the state name.
func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallengeRequested:
		return "challenge_requested"
	case StateAwaitingAuthenticator:
		return "awaiting_authenticator"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RegistrationResult is the outcome of a successful registration flow.
type RegistrationResult struct {
	// Message is the server's confirmation message.
	Message string `json:"message"`
}

// AuthenticationResult is the outcome of a successful authentication flow.
// The caller owns the token from here on; the service never stores it.
type AuthenticationResult struct {
	// Token is the opaque bearer token for subsequent API calls.
	Token string `json:"token"`

	// TokenType is the token scheme, typically "bearer".
	TokenType string `json:"token_type"`
}

// DeleteResult is the outcome of a successful credential deletion.
type DeleteResult struct {
	// Message is the server's confirmation message.
	Message string `json:"message"`
}

// API is the slice of the backend transport the flows consume.
// *client.Client satisfies it.
type API interface {
	// RegisterBegin fetches fresh registration challenge options.
	RegisterBegin(ctx context.Context, token string) (*client.RegistrationOptions, error)

	// RegisterComplete submits the encoded attestation.
	RegisterComplete(ctx context.Context, token string, attestation *client.AttestationPayload) (*client.MessageResponse, error)

	// AuthBegin fetches fresh authentication challenge options.
	AuthBegin(ctx context.Context, username string) (*client.AuthenticationOptions, error)

	// AuthComplete submits the encoded assertion.
	AuthComplete(ctx context.Context, username string, assertion *client.AssertionPayload) (*client.TokenResponse, error)

	// HasCredentials queries enrollment state.
	HasCredentials(ctx context.Context, token string) (bool, error)

	// DeleteCredentials removes all enrolled credentials.
	DeleteCredentials(ctx context.Context, token string) (*client.MessageResponse, error)
}
