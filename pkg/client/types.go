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

// Wire types for the backend's WebAuthn endpoints. All binary fields stay
// textual (unpadded base64url) at this layer; decoding to raw bytes is the
// codec's job in the flow layer, so the transport never guesses at content.

// RelyingPartyEntity mirrors the rp field of creation options.
type RelyingPartyEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserEntity mirrors the user field of creation options. ID is the
// textually encoded user handle.
type UserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// CredentialParameter is one accepted public-key algorithm.
type CredentialParameter struct {
	Type      string `json:"type"`
	Algorithm int    `json:"alg"`
}

// CredentialDescriptor references an existing credential in exclude and
// allow lists. ID is textually encoded.
type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

// AuthenticatorSelection mirrors the authenticatorSelection field of
// creation options.
type AuthenticatorSelection struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment,omitempty"`
	ResidentKey             string `json:"residentKey,omitempty"`
	RequireResidentKey      *bool  `json:"requireResidentKey,omitempty"`
	UserVerification        string `json:"userVerification,omitempty"`
}

// RegistrationOptions is the response of POST webauthn/register/begin:
// a PublicKeyCredentialCreationOptions JSON document as produced by the
// backend's WebAuthn library.
type RegistrationOptions struct {
	RP                     RelyingPartyEntity      `json:"rp"`
	User                   UserEntity              `json:"user"`
	Challenge              string                  `json:"challenge"`
	PubKeyCredParams       []CredentialParameter   `json:"pubKeyCredParams"`
	Timeout                int                     `json:"timeout,omitempty"`
	ExcludeCredentials     []CredentialDescriptor  `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection *AuthenticatorSelection `json:"authenticatorSelection,omitempty"`
	Attestation            string                  `json:"attestation,omitempty"`
}

// AuthenticationOptions is the response of POST webauthn/auth/begin:
// a PublicKeyCredentialRequestOptions JSON document.
type AuthenticationOptions struct {
	Challenge        string                 `json:"challenge"`
	Timeout          int                    `json:"timeout,omitempty"`
	RPID             string                 `json:"rpId,omitempty"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials,omitempty"`
	UserVerification string                 `json:"userVerification,omitempty"`
}

// AttestationPayload is the request body of POST webauthn/register/complete.
type AttestationPayload struct {
	ID       string              `json:"id"`
	RawID    string              `json:"rawId"`
	Type     string              `json:"type"`
	Response AttestationResponse `json:"response"`
}

// AttestationResponse carries the encoded authenticator output of a
// registration ceremony.
type AttestationResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AttestationObject string `json:"attestationObject"`
}

// AssertionPayload is the request body of POST webauthn/auth/complete.
type AssertionPayload struct {
	ID       string            `json:"id"`
	RawID    string            `json:"rawId"`
	Type     string            `json:"type"`
	Response AssertionResponse `json:"response"`
}

// AssertionResponse carries the encoded authenticator output of an
// authentication ceremony. UserHandle is null when the authenticator
// stored no handle, matching the browser payload shape.
type AssertionResponse struct {
	ClientDataJSON    string  `json:"clientDataJSON"`
	AuthenticatorData string  `json:"authenticatorData"`
	Signature         string  `json:"signature"`
	UserHandle        *string `json:"userHandle"`
}

// TokenResponse is the success response of POST webauthn/auth/complete.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MessageResponse is the success response of register/complete and
// credential deletion.
type MessageResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message"`
}

// HasCredentialsResponse is the response of GET webauthn/has-credentials.
type HasCredentialsResponse struct {
	HasCredentials bool `json:"has_credentials"`
}

// HealthResponse is the response of GET health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// ErrorResponse is the backend's error shape on failure statuses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
