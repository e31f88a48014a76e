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

package authenticator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
)

// Virtual is a software authenticator backed by descope/virtualwebauthn.
// It holds a single EC2 credential, honors exclude and allow lists, and
// produces attestations and assertions that verify against a real relying
// party. State lives in process memory only; a Virtual stands in for the
// platform sensor during development and testing, it is not a durable
// credential store.
type Virtual struct {
	mu       sync.Mutex
	rp       virtualwebauthn.RelyingParty
	auth     virtualwebauthn.Authenticator
	cred     virtualwebauthn.Credential
	enrolled bool

	// gesture simulates the user interaction. A nil gesture approves
	// immediately; a non-nil gesture may return a sentinel error to
	// simulate denial or timeout.
	gesture func(op string) error
}

// VirtualOption is a functional option for configuring a Virtual.
type VirtualOption func(*Virtual)

// WithUserHandle enrolls the credential as discoverable with the given
// user handle.
func WithUserHandle(handle []byte) VirtualOption {
	return func(v *Virtual) {
		v.auth = virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
			UserHandle: handle,
		})
	}
}

// WithGesture installs a hook invoked before each create/get operation.
// Returning a sentinel error from the hook simulates the user declining
// or the platform timing out.
func WithGesture(gesture func(op string) error) VirtualOption {
	return func(v *Virtual) {
		v.gesture = gesture
	}
}

// NewVirtual creates a software authenticator bound to the given relying
// party identity. The origin must match what the relying party expects in
// clientDataJSON.
func NewVirtual(rpID, rpName, origin string, opts ...VirtualOption) *Virtual {
	v := &Virtual{
		rp: virtualwebauthn.RelyingParty{
			ID:     rpID,
			Name:   rpName,
			Origin: origin,
		},
		auth: virtualwebauthn.NewAuthenticator(),
		cred: virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Supported always reports true; the software credential API is present by
// construction.
func (v *Virtual) Supported() bool {
	return true
}

// Available reports whether the software authenticator can verify a user
// right now. It is false only when the context is already done.
func (v *Virtual) Available(ctx context.Context) bool {
	return ctx.Err() == nil
}

// Create mints a new credential for the decoded creation options.
func (v *Virtual) Create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (*AttestationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.awaitGesture(ctx, "create"); err != nil {
		return nil, wrapOp("create", err)
	}

	if v.enrolled {
		for _, excluded := range opts.CredentialExcludeList {
			if bytes.Equal(excluded.CredentialID, v.cred.ID) {
				return nil, wrapOp("create", ErrInvalidState)
			}
		}
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, wrapOp("create", err)
	}
	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optsJSON))
	if err != nil {
		return nil, wrapOp("create", fmt.Errorf("parse creation options: %w", err))
	}

	attestation := virtualwebauthn.CreateAttestationResponse(v.rp, v.auth, v.cred, *parsed)

	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal([]byte(attestation), &ccr); err != nil {
		return nil, wrapOp("create", fmt.Errorf("parse attestation response: %w", err))
	}

	v.auth.AddCredential(v.cred)
	v.enrolled = true

	return &AttestationResult{
		CredentialID:      ccr.RawID,
		ClientDataJSON:    ccr.AttestationResponse.ClientDataJSON,
		AttestationObject: ccr.AttestationResponse.AttestationObject,
		Type:              string(protocol.PublicKeyCredentialType),
	}, nil
}

// Get signs the decoded request options with the enrolled credential.
func (v *Virtual) Get(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (*AssertionResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.awaitGesture(ctx, "get"); err != nil {
		return nil, wrapOp("get", err)
	}

	if !v.enrolled {
		return nil, wrapOp("get", ErrNoCredential)
	}
	if len(opts.AllowedCredentials) > 0 && !v.allowed(opts.AllowedCredentials) {
		return nil, wrapOp("get", ErrNoCredential)
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, wrapOp("get", err)
	}
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optsJSON))
	if err != nil {
		return nil, wrapOp("get", fmt.Errorf("parse request options: %w", err))
	}

	assertion := virtualwebauthn.CreateAssertionResponse(v.rp, v.auth, v.cred, *parsed)

	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal([]byte(assertion), &car); err != nil {
		return nil, wrapOp("get", fmt.Errorf("parse assertion response: %w", err))
	}

	var userHandle []byte
	if len(car.AssertionResponse.UserHandle) > 0 {
		userHandle = car.AssertionResponse.UserHandle
	}

	return &AssertionResult{
		CredentialID:      car.RawID,
		ClientDataJSON:    car.AssertionResponse.ClientDataJSON,
		AuthenticatorData: car.AssertionResponse.AuthenticatorData,
		Signature:         car.AssertionResponse.Signature,
		UserHandle:        userHandle,
		Type:              string(protocol.PublicKeyCredentialType),
	}, nil
}

// CredentialID returns the authenticator's credential identifier.
func (v *Virtual) CredentialID() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.cred.ID...)
}

// Enrolled reports whether Create has completed successfully.
func (v *Virtual) Enrolled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enrolled
}

func (v *Virtual) allowed(allowList []protocol.CredentialDescriptor) bool {
	for _, desc := range allowList {
		if bytes.Equal(desc.CredentialID, v.cred.ID) {
			return true
		}
	}
	return false
}

// awaitGesture runs the user-interaction hook. Context cancellation wins
// over the hook result so an abandoned flow reads as cancelled.
func (v *Virtual) awaitGesture(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	if v.gesture != nil {
		if err := v.gesture(op); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	return nil
}
