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
	"errors"
	"fmt"
)

// Sentinel errors for authenticator operations. Implementations must signal
// failure through this set so that flows never branch on untyped platform
// error strings.
var (
	// ErrPermissionDenied is returned when the user declined the sensor
	// prompt or the platform blocked it.
	ErrPermissionDenied = errors.New("permission denied by user or platform")

	// ErrNotSupported is returned when the device lacks a usable
	// authenticator for the requested operation.
	ErrNotSupported = errors.New("authenticator not supported on this device")

	// ErrInvalidState is returned when a credential already exists for
	// this authenticator and account pairing.
	ErrInvalidState = errors.New("credential already registered on this authenticator")

	// ErrCancelled is returned when the operation was aborted before the
	// user completed a gesture.
	ErrCancelled = errors.New("authenticator operation cancelled")

	// ErrNoCredential is returned when no enrolled credential matches the
	// allow list of an assertion request.
	ErrNoCredential = errors.New("no matching credential enrolled")
)

// Error wraps an authenticator failure with the operation that produced it.
type Error struct {
	Op  string // "create" or "get"
	Err error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("authenticator %s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapOp wraps an error with the operation name if it's not nil.
func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// ClassifyDOMException maps a browser DOMException name onto the sentinel
// set. Boundary adapters that receive errors from an actual browser context
// (a WebView bridge, a remote agent) call this once at the edge; everything
// past the edge works with typed errors only. Unknown names map to
// ErrPermissionDenied, matching how browsers collapse most WebAuthn
// failures into NotAllowedError.
func ClassifyDOMException(name string) error {
	switch name {
	case "NotAllowedError", "SecurityError":
		return ErrPermissionDenied
	case "NotSupportedError":
		return ErrNotSupported
	case "InvalidStateError":
		return ErrInvalidState
	case "AbortError", "TimeoutError":
		return ErrCancelled
	default:
		return ErrPermissionDenied
	}
}
