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

// Package encoding implements the wire codec shared by all WebAuthn
// endpoints of the Anthony Sistem backend: URL-safe base64 without padding
// (RFC 4648 section 5, padding stripped). Every binary field on the wire -
// challenges, credential IDs, user handles, clientDataJSON, attestation
// objects, authenticator data, and signatures - uses exactly this variant.
package encoding

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// FormatError is returned when wire text is not valid unpadded URL-safe
// base64. A correct server never produces it, so a FormatError always
// indicates a broken or hostile peer rather than a recoverable condition.
type FormatError struct {
	Input string // offending input, possibly truncated
	Err   error  // underlying decode error, if any
}

// Error returns the error message.
func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid base64url data %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid base64url data %q", e.Input)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// maxErrInput bounds how much of the offending input is echoed in errors.
const maxErrInput = 64

func formatError(text string, err error) error {
	if len(text) > maxErrInput {
		text = text[:maxErrInput] + "..."
	}
	return &FormatError{Input: text, Err: err}
}

// EncodeBase64URL encodes raw bytes into the unpadded URL-safe alphabet.
// The output never contains '+', '/', or '='.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes unpadded URL-safe base64 text into raw bytes.
// Trailing '=' padding is tolerated since some servers emit the padded
// variant, but the standard alphabet ('+', '/') and impossible lengths
// are rejected with a *FormatError. DecodeBase64URL is the exact inverse
// of EncodeBase64URL for every valid input.
func DecodeBase64URL(text string) ([]byte, error) {
	if strings.ContainsAny(text, "+/") {
		return nil, formatError(text, fmt.Errorf("standard base64 alphabet not allowed on the wire"))
	}

	trimmed := strings.TrimRight(text, "=")
	if strings.Contains(trimmed, "=") {
		return nil, formatError(text, fmt.Errorf("padding in the middle of input"))
	}

	// A base64 quantum encodes 1-3 bytes into 2-4 characters; a remainder
	// of one character can never occur.
	if len(trimmed)%4 == 1 {
		return nil, formatError(text, fmt.Errorf("impossible input length %d", len(trimmed)))
	}

	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, formatError(text, err)
	}
	return data, nil
}
