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

// Package authenticator abstracts the platform credential store (Touch ID,
// Face ID, fingerprint sensors, security keys) behind a small interface with
// two suspending operations: create a credential during registration and
// produce an assertion during authentication. Cancellation of either
// operation belongs to the platform and the user, not to this code; the
// caller only observes the outcome as a classified error.
//
// The Virtual implementation in this package is a software authenticator
// backed by descope/virtualwebauthn. It produces cryptographically valid
// attestations and assertions and is intended for development and testing
// against a real relying party.
package authenticator

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
)

// AttestationResult is the outcome of a successful credential creation.
// All fields are raw bytes; encoding for the wire is the caller's concern.
// The result is sent to the relying party once and not retained.
type AttestationResult struct {
	// CredentialID is the identifier assigned by the authenticator.
	CredentialID []byte

	// ClientDataJSON is the serialized client data covering the challenge.
	ClientDataJSON []byte

	// AttestationObject is the CBOR attestation statement.
	AttestationObject []byte

	// Type is the credential type, always "public-key".
	Type string
}

// AssertionResult is the outcome of a successful authentication gesture.
// Same lifecycle as AttestationResult: serialized, shipped, discarded.
type AssertionResult struct {
	// CredentialID identifies which enrolled credential signed.
	CredentialID []byte

	// ClientDataJSON is the serialized client data covering the challenge.
	ClientDataJSON []byte

	// AuthenticatorData is the signed authenticator data.
	AuthenticatorData []byte

	// Signature is the assertion signature over authenticator data and
	// client data hash.
	Signature []byte

	// UserHandle is the user handle for discoverable credentials, nil
	// when the authenticator did not store one.
	UserHandle []byte

	// Type is the credential type, always "public-key".
	Type string
}

// Authenticator is the platform credential store. Create and Get suspend
// until the user completes a gesture, cancels, or the platform times out.
type Authenticator interface {
	// Supported reports whether a public-key credential API is exposed
	// at all. It must not panic or block.
	Supported() bool

	// Available reports whether a user-verifying platform authenticator
	// is usable right now. Probe failures report false, never an error.
	Available(ctx context.Context) bool

	// Create invokes the authenticator to mint a new credential for the
	// decoded creation options. This is the single blocking point of a
	// registration flow.
	Create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (*AttestationResult, error)

	// Get invokes the authenticator to sign the decoded request options
	// with an enrolled credential. This is the single blocking point of
	// an authentication flow.
	Get(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (*AssertionResult, error)
}

// CapabilityState is the result of a capability probe. It is recomputed on
// every probe and never cached across calls.
type CapabilityState struct {
	Supported                      bool `json:"supported"`
	PlatformAuthenticatorAvailable bool `json:"platform_authenticator_available"`
}

// ProbeCapabilities queries an authenticator for its capability state.
// A nil authenticator probes as entirely unsupported. The probe never
// returns an error; anything that goes wrong reads as unavailable.
func ProbeCapabilities(ctx context.Context, a Authenticator) CapabilityState {
	if a == nil {
		return CapabilityState{}
	}
	state := CapabilityState{Supported: a.Supported()}
	if state.Supported {
		state.PlatformAuthenticatorAvailable = a.Available(ctx)
	}
	return state
}
