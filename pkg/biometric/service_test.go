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
	"fmt"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-biometric/pkg/authenticator"
	"github.com/jeremyhahn/go-biometric/pkg/client"
	"github.com/jeremyhahn/go-biometric/pkg/encoding"
)

// fakeAPI counts calls and serves canned responses or injected errors.
type fakeAPI struct {
	beginCalls    int
	completeCalls int

	registerOptions *client.RegistrationOptions
	authOptions     *client.AuthenticationOptions

	beginErr    error
	completeErr error

	hasCredentials bool
	hasErr         error
	deleteErr      error

	lastAttestation *client.AttestationPayload
	lastAssertion   *client.AssertionPayload
}

func (f *fakeAPI) RegisterBegin(ctx context.Context, token string) (*client.RegistrationOptions, error) {
	f.beginCalls++
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	if f.registerOptions != nil {
		return f.registerOptions, nil
	}
	return registrationOptionsFixture(fmt.Sprintf("challenge-%d", f.beginCalls)), nil
}

func (f *fakeAPI) RegisterComplete(ctx context.Context, token string, attestation *client.AttestationPayload) (*client.MessageResponse, error) {
	f.completeCalls++
	f.lastAttestation = attestation
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &client.MessageResponse{Success: true, Message: "biometric credential registered"}, nil
}

func (f *fakeAPI) AuthBegin(ctx context.Context, username string) (*client.AuthenticationOptions, error) {
	f.beginCalls++
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	if f.authOptions != nil {
		return f.authOptions, nil
	}
	return authenticationOptionsFixture(fmt.Sprintf("challenge-%d", f.beginCalls)), nil
}

func (f *fakeAPI) AuthComplete(ctx context.Context, username string, assertion *client.AssertionPayload) (*client.TokenResponse, error) {
	f.completeCalls++
	f.lastAssertion = assertion
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &client.TokenResponse{AccessToken: "session-token", TokenType: "bearer"}, nil
}

func (f *fakeAPI) HasCredentials(ctx context.Context, token string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.hasCredentials, nil
}

func (f *fakeAPI) DeleteCredentials(ctx context.Context, token string) (*client.MessageResponse, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &client.MessageResponse{Success: true, Message: "credentials deleted"}, nil
}

// fakeAuthenticator returns canned results and remembers the challenges it
// was handed.
type fakeAuthenticator struct {
	supported  bool
	createErr  error
	getErr     error
	challenges [][]byte
}

func (f *fakeAuthenticator) Supported() bool                    { return f.supported }
func (f *fakeAuthenticator) Available(ctx context.Context) bool { return f.supported }

func (f *fakeAuthenticator) Create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (*authenticator.AttestationResult, error) {
	f.challenges = append(f.challenges, opts.Challenge)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &authenticator.AttestationResult{
		CredentialID:      []byte{0x01, 0x02, 0x03},
		ClientDataJSON:    []byte(`{"type":"webauthn.create"}`),
		AttestationObject: []byte{0xa1, 0x63},
		Type:              "public-key",
	}, nil
}

func (f *fakeAuthenticator) Get(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (*authenticator.AssertionResult, error) {
	f.challenges = append(f.challenges, opts.Challenge)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &authenticator.AssertionResult{
		CredentialID:      []byte{0x01, 0x02, 0x03},
		ClientDataJSON:    []byte(`{"type":"webauthn.get"}`),
		AuthenticatorData: []byte{0x04, 0x05},
		Signature:         []byte{0x06, 0x07},
		Type:              "public-key",
	}, nil
}

func registrationOptionsFixture(challenge string) *client.RegistrationOptions {
	return &client.RegistrationOptions{
		RP: client.RelyingPartyEntity{ID: "billing.example.com", Name: "Anthony Sistem"},
		User: client.UserEntity{
			ID:          encoding.EncodeBase64URL([]byte("user-42")),
			Name:        "admin",
			DisplayName: "admin",
		},
		Challenge: encoding.EncodeBase64URL([]byte(challenge)),
		PubKeyCredParams: []client.CredentialParameter{
			{Type: "public-key", Algorithm: -7},
			{Type: "public-key", Algorithm: -257},
		},
		Timeout: 60000,
		AuthenticatorSelection: &client.AuthenticatorSelection{
			AuthenticatorAttachment: "platform",
			UserVerification:        "required",
		},
		Attestation: "none",
	}
}

func authenticationOptionsFixture(challenge string) *client.AuthenticationOptions {
	return &client.AuthenticationOptions{
		Challenge: encoding.EncodeBase64URL([]byte(challenge)),
		Timeout:   60000,
		RPID:      "billing.example.com",
		AllowCredentials: []client.CredentialDescriptor{
			{Type: "public-key", ID: encoding.EncodeBase64URL([]byte{0x01, 0x02, 0x03})},
		},
		UserVerification: "required",
	}
}

func newTestService(t *testing.T, api API, auth authenticator.Authenticator, hook StateHook) *Service {
	t.Helper()
	svc, err := NewService(&ServiceParams{
		API:           api,
		Authenticator: auth,
		StateHook:     hook,
	})
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil)
	assert.ErrorIs(t, err, ErrMissingAPI)

	_, err = NewService(&ServiceParams{Authenticator: &fakeAuthenticator{supported: true}})
	assert.ErrorIs(t, err, ErrMissingAPI)

	_, err = NewService(&ServiceParams{API: &fakeAPI{}})
	assert.ErrorIs(t, err, ErrMissingAuthenticator)
}

func TestRegisterCredential_Success(t *testing.T) {
	api := &fakeAPI{}
	auth := &fakeAuthenticator{supported: true}

	var states []FlowState
	svc := newTestService(t, api, auth, func(flow string, state FlowState) {
		states = append(states, state)
	})

	result, err := svc.RegisterCredential(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "biometric credential registered", result.Message)

	assert.Equal(t, 1, api.beginCalls)
	assert.Equal(t, 1, api.completeCalls)
	assert.Equal(t, []FlowState{
		StateChallengeRequested,
		StateAwaitingAuthenticator,
		StateSubmitting,
		StateCompleted,
	}, states)

	// The attestation payload carries the credential ID twice and every
	// binary field textually encoded.
	require.NotNil(t, api.lastAttestation)
	assert.Equal(t, "AQID", api.lastAttestation.ID)
	assert.Equal(t, api.lastAttestation.ID, api.lastAttestation.RawID)
	assert.Equal(t, "public-key", api.lastAttestation.Type)
	assert.NotEmpty(t, api.lastAttestation.Response.ClientDataJSON)
	assert.NotEmpty(t, api.lastAttestation.Response.AttestationObject)
}

func TestRegisterCredential_UnsupportedMakesNoRequests(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, &fakeAuthenticator{supported: false}, nil)

	_, err := svc.RegisterCredential(context.Background(), "token")
	require.Error(t, err)
	assert.Equal(t, KindNotSupported, KindOf(err))
	assert.Equal(t, 0, api.beginCalls)
	assert.Equal(t, 0, api.completeCalls)
}

func TestRegisterCredential_PermissionDenied(t *testing.T) {
	api := &fakeAPI{}
	auth := &fakeAuthenticator{supported: true, createErr: authenticator.ErrPermissionDenied}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.RegisterCredential(context.Background(), "token")
	require.Error(t, err)
	assert.Equal(t, KindPermissionDenied, KindOf(err))

	// The gesture failed, so nothing was submitted.
	assert.Equal(t, 1, api.beginCalls)
	assert.Equal(t, 0, api.completeCalls)
}

func TestRegisterCredential_AlreadyRegistered(t *testing.T) {
	api := &fakeAPI{}
	auth := &fakeAuthenticator{supported: true, createErr: authenticator.ErrInvalidState}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.RegisterCredential(context.Background(), "token")
	require.Error(t, err)
	assert.Equal(t, KindAlreadyRegistered, KindOf(err))
	assert.Equal(t, 0, api.completeCalls)
}

func TestRegisterCredential_MalformedChallenge(t *testing.T) {
	opts := registrationOptionsFixture("challenge")
	opts.Challenge = "not+valid+base64url"
	api := &fakeAPI{registerOptions: opts}
	auth := &fakeAuthenticator{supported: true}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.RegisterCredential(context.Background(), "token")
	require.Error(t, err)
	assert.Equal(t, KindFormat, KindOf(err))

	// Decoding failed before the authenticator was invoked.
	assert.Empty(t, auth.challenges)
}

func TestRegisterCredential_FreshChallengePerAttempt(t *testing.T) {
	api := &fakeAPI{completeErr: &client.ServerError{StatusCode: 400, Detail: "challenge expired"}}
	auth := &fakeAuthenticator{supported: true}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.RegisterCredential(context.Background(), "token")
	require.Error(t, err)
	assert.Equal(t, KindServerRejected, KindOf(err))

	api.completeErr = nil
	_, err = svc.RegisterCredential(context.Background(), "token")
	require.NoError(t, err)

	// Each attempt fetched its own challenge; nothing was reused.
	require.Len(t, auth.challenges, 2)
	assert.NotEqual(t, auth.challenges[0], auth.challenges[1])
}

func TestAuthenticate_Success(t *testing.T) {
	api := &fakeAPI{}
	auth := &fakeAuthenticator{supported: true}

	var states []FlowState
	svc := newTestService(t, api, auth, func(flow string, state FlowState) {
		states = append(states, state)
	})

	result, err := svc.Authenticate(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "session-token", result.Token)
	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, []FlowState{
		StateChallengeRequested,
		StateAwaitingAuthenticator,
		StateSubmitting,
		StateCompleted,
	}, states)

	require.NotNil(t, api.lastAssertion)
	assert.Equal(t, "AQID", api.lastAssertion.ID)
	assert.Nil(t, api.lastAssertion.Response.UserHandle)
}

func TestAuthenticate_ServerDetailSurfacedVerbatim(t *testing.T) {
	api := &fakeAPI{completeErr: &client.ServerError{StatusCode: 401, Detail: "invalid signature"}}
	auth := &fakeAuthenticator{supported: true}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.Authenticate(context.Background(), "admin")
	require.Error(t, err)

	ferr, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, KindServerRejected, ferr.Kind)
	assert.Equal(t, "invalid signature", ferr.Message)
}

func TestAuthenticate_Cancelled(t *testing.T) {
	api := &fakeAPI{}
	auth := &fakeAuthenticator{supported: true, getErr: authenticator.ErrCancelled}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.Authenticate(context.Background(), "admin")
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, 0, api.completeCalls)
}

func TestAuthenticate_NetworkFailure(t *testing.T) {
	api := &fakeAPI{beginErr: fmt.Errorf("%w: connection refused", client.ErrNetwork)}
	auth := &fakeAuthenticator{supported: true}
	svc := newTestService(t, api, auth, nil)

	_, err := svc.Authenticate(context.Background(), "admin")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestAuthenticate_UnsupportedMakesNoRequests(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, &fakeAuthenticator{supported: false}, nil)

	_, err := svc.Authenticate(context.Background(), "admin")
	require.Error(t, err)
	assert.Equal(t, KindNotSupported, KindOf(err))
	assert.Equal(t, 0, api.beginCalls)
}

func TestHasCredentials(t *testing.T) {
	api := &fakeAPI{hasCredentials: true}
	svc := newTestService(t, api, &fakeAuthenticator{supported: true}, nil)

	assert.True(t, svc.HasCredentials(context.Background(), "token"))

	api.hasCredentials = false
	assert.False(t, svc.HasCredentials(context.Background(), "token"))
}

func TestHasCredentials_FailClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network failure", fmt.Errorf("%w: dial tcp", client.ErrNetwork)},
		{"server failure", &client.ServerError{StatusCode: 500, Detail: "internal error"}},
		{"unauthorized", &client.ServerError{StatusCode: 401, Detail: "not authenticated"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{hasCredentials: true, hasErr: tc.err}
			svc := newTestService(t, api, &fakeAuthenticator{supported: true}, nil)
			assert.False(t, svc.HasCredentials(context.Background(), "token"))
		})
	}
}

func TestDeleteCredentials(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, &fakeAuthenticator{supported: true}, nil)

	result, err := svc.DeleteCredentials(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "credentials deleted", result.Message)
}

func TestDeleteCredentials_ServerRejected(t *testing.T) {
	api := &fakeAPI{deleteErr: &client.ServerError{StatusCode: 401, Detail: "not authenticated"}}
	svc := newTestService(t, api, &fakeAuthenticator{supported: true}, nil)

	_, err := svc.DeleteCredentials(context.Background(), "token")
	require.Error(t, err)

	ferr, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, KindServerRejected, ferr.Kind)
	assert.Equal(t, "not authenticated", ferr.Message)
}

func TestCapabilities(t *testing.T) {
	svc := newTestService(t, &fakeAPI{}, &fakeAuthenticator{supported: true}, nil)
	state := svc.Capabilities(context.Background())
	assert.True(t, state.Supported)
	assert.True(t, state.PlatformAuthenticatorAvailable)

	svc = newTestService(t, &fakeAPI{}, &fakeAuthenticator{supported: false}, nil)
	state = svc.Capabilities(context.Background())
	assert.False(t, state.Supported)
	assert.False(t, state.PlatformAuthenticatorAvailable)
}
