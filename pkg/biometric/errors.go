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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-biometric/pkg/authenticator"
	"github.com/jeremyhahn/go-biometric/pkg/client"
)

// FailureKind discriminates flow failures so callers can choose
// presentation without inspecting error text.
type FailureKind string

const (
	// KindPermissionDenied - the user declined the sensor prompt or the
	// platform blocked it during registration.
	KindPermissionDenied FailureKind = "permission_denied"

	// KindNotSupported - the device lacks a usable authenticator.
	KindNotSupported FailureKind = "not_supported"

	// KindAlreadyRegistered - a credential already exists for this
	// authenticator and account pairing.
	KindAlreadyRegistered FailureKind = "already_registered"

	// KindCancelled - the user declined or the gesture timed out during
	// authentication.
	KindCancelled FailureKind = "cancelled"

	// KindServerRejected - the server answered a failure status; the
	// message carries its detail field verbatim.
	KindServerRejected FailureKind = "server_rejected"

	// KindNetwork - a request never reached the server.
	KindNetwork FailureKind = "network"

	// KindFormat - the server sent data the codec could not decode.
	KindFormat FailureKind = "format"
)

// FlowError is the discriminated failure returned by every flow operation.
// Raw platform and transport errors never escape unclassified; they are
// caught once at the flow boundary and converted into a FlowError.
type FlowError struct {
	Kind    FailureKind
	Message string // human-actionable; server detail verbatim for KindServerRejected
	Err     error  // underlying cause, for logs and errors.Is/As
}

// Error returns the error message.
func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *FlowError) Unwrap() error {
	return e.Err
}

// AsFlowError extracts a *FlowError from an error chain.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	ok := errors.As(err, &fe)
	return fe, ok
}

// KindOf returns the failure kind of an error, or "" for nil and
// unclassified errors.
func KindOf(err error) FailureKind {
	if fe, ok := AsFlowError(err); ok {
		return fe.Kind
	}
	return ""
}

// Human-actionable message categories, mirroring what the web UI showed
// per platform error before this client replaced it.
const (
	msgPermissionDenied = "permission denied; allow access to the biometric sensor and try again"
	msgNotSupported     = "this device does not support biometric authentication"
	msgAlreadyEnrolled  = "a biometric credential is already registered for this device"
	msgCancelled        = "biometric authentication was cancelled or denied"
	msgNetwork          = "could not reach the server; check connectivity and retry"
	msgFormat           = "malformed data received from the server"
)

// ceremony distinguishes how authenticator errors map onto the taxonomy:
// during registration a decline is a permission problem, during
// authentication the same platform signal reads as a cancelled login.
type ceremony int

const (
	ceremonyRegister ceremony = iota
	ceremonyAuthenticate
)

// classifyAuthenticatorError converts a platform error into a FlowError.
func classifyAuthenticatorError(c ceremony, err error) *FlowError {
	switch {
	case errors.Is(err, authenticator.ErrNotSupported):
		return &FlowError{Kind: KindNotSupported, Message: msgNotSupported, Err: err}
	case errors.Is(err, authenticator.ErrInvalidState):
		return &FlowError{Kind: KindAlreadyRegistered, Message: msgAlreadyEnrolled, Err: err}
	}

	if c == ceremonyRegister {
		// Declines, timeouts, and aborts all read as the sensor prompt
		// being refused.
		return &FlowError{Kind: KindPermissionDenied, Message: msgPermissionDenied, Err: err}
	}
	return &FlowError{Kind: KindCancelled, Message: msgCancelled, Err: err}
}

// classifyTransportError converts a client error into a FlowError.
func classifyTransportError(err error) *FlowError {
	var serverErr *client.ServerError
	switch {
	case errors.As(err, &serverErr):
		return &FlowError{Kind: KindServerRejected, Message: serverErr.Detail, Err: err}
	case errors.Is(err, client.ErrNetwork):
		return &FlowError{Kind: KindNetwork, Message: msgNetwork, Err: err}
	default:
		// Response arrived but could not be parsed.
		return &FlowError{Kind: KindFormat, Message: msgFormat, Err: err}
	}
}

// formatError wraps a codec failure.
func formatError(err error) *FlowError {
	return &FlowError{Kind: KindFormat, Message: msgFormat, Err: err}
}
