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

// Package biometric implements the client-side WebAuthn ceremonies: the
// registration and authentication flows, enrollment queries, and credential
// deletion. Each flow is a fixed begin / decode / gesture / encode / complete
// sequence that classifies every failure into a FailureKind before it
// reaches the caller.
package biometric

import (
	"context"
	"errors"
	"time"

	"github.com/jeremyhahn/go-biometric/pkg/authenticator"
	"github.com/jeremyhahn/go-biometric/pkg/logging"
	"github.com/jeremyhahn/go-biometric/pkg/metrics"
)

var (
	// ErrMissingAPI is returned when no API transport is provided
	ErrMissingAPI = errors.New("biometric: API transport is required")

	// ErrMissingAuthenticator is returned when no authenticator is provided
	ErrMissingAuthenticator = errors.New("biometric: authenticator is required")
)

// StateHook observes flow state transitions. Called synchronously from the
// flow goroutine; implementations must not block.
type StateHook func(flow string, state FlowState)

// ServiceParams holds the dependencies for a Service.
type ServiceParams struct {
	// API is the backend transport. Required.
	API API

	// Authenticator performs the local credential ceremonies. Required.
	Authenticator authenticator.Authenticator

	// Logger receives flow lifecycle events. Optional; defaults to the
	// package default logger.
	Logger *logging.Logger

	// StateHook observes state transitions. Optional.
	StateHook StateHook
}

// Service drives the biometric flows against a backend and a local
// authenticator. Safe for concurrent use; each call runs an independent
// flow.
type Service struct {
	api       API
	auth      authenticator.Authenticator
	logger    *logging.Logger
	stateHook StateHook
}

// NewService creates a biometric flow service.
func NewService(params *ServiceParams) (*Service, error) {
	if params == nil || params.API == nil {
		return nil, ErrMissingAPI
	}
	if params.Authenticator == nil {
		return nil, ErrMissingAuthenticator
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Service{
		api:       params.API,
		auth:      params.Authenticator,
		logger:    logger,
		stateHook: params.StateHook,
	}, nil
}

// flow tracks one ceremony's progress through its states.
type flow struct {
	name    string
	state   FlowState
	svc     *Service
	started time.Time
}

func (s *Service) newFlow(name string) *flow {
	f := &flow{name: name, state: StateIdle, svc: s, started: time.Now()}
	s.logger.Debug("flow started", "flow", name)
	return f
}

func (f *flow) transition(state FlowState) {
	f.state = state
	f.svc.logger.Debug("flow state", "flow", f.name, "state", state.String())
	if f.svc.stateHook != nil {
		f.svc.stateHook(f.name, state)
	}
}

// fail marks the flow terminal with a classified error and records metrics.
func (f *flow) fail(ferr *FlowError) *FlowError {
	f.transition(StateFailed)
	f.svc.logger.Error("flow failed",
		"flow", f.name,
		"kind", string(ferr.Kind),
		"error", ferr.Err)
	metrics.RecordFlow(f.name, f.started, string(ferr.Kind))
	return ferr
}

func (f *flow) complete() {
	f.transition(StateCompleted)
	f.svc.logger.Info("flow completed", "flow", f.name,
		"duration", time.Since(f.started).String())
	metrics.RecordFlow(f.name, f.started, "")
}

// checkSupport gates a flow on authenticator support before any network
// traffic. An unsupported device fails immediately with zero requests.
func (f *flow) checkSupport() *FlowError {
	if f.svc.auth.Supported() {
		return nil
	}
	return f.fail(&FlowError{
		Kind:    KindNotSupported,
		Message: msgNotSupported,
		Err:     authenticator.ErrNotSupported,
	})
}

// RegisterCredential runs the registration ceremony: request a challenge,
// perform the local attestation gesture, and submit the attestation for
// verification. token authenticates the user whose credential is created.
func (s *Service) RegisterCredential(ctx context.Context, token string) (*RegistrationResult, error) {
	f := s.newFlow(metrics.FlowRegister)

	if ferr := f.checkSupport(); ferr != nil {
		return nil, ferr
	}

	f.transition(StateChallengeRequested)
	wireOpts, err := s.api.RegisterBegin(ctx, token)
	if err != nil {
		return nil, f.fail(classifyTransportError(err))
	}

	opts, err := decodeRegistrationOptions(wireOpts)
	if err != nil {
		return nil, f.fail(formatError(err))
	}

	f.transition(StateAwaitingAuthenticator)
	attestation, err := s.auth.Create(ctx, opts)
	if err != nil {
		return nil, f.fail(classifyAuthenticatorError(ceremonyRegister, err))
	}

	f.transition(StateSubmitting)
	resp, err := s.api.RegisterComplete(ctx, token, encodeAttestation(attestation))
	if err != nil {
		return nil, f.fail(classifyTransportError(err))
	}

	f.complete()
	return &RegistrationResult{Message: resp.Message}, nil
}

// Authenticate runs the authentication ceremony for the named user and
// returns the issued session token. No prior session is required.
func (s *Service) Authenticate(ctx context.Context, username string) (*AuthenticationResult, error) {
	f := s.newFlow(metrics.FlowAuth)

	if ferr := f.checkSupport(); ferr != nil {
		return nil, ferr
	}

	f.transition(StateChallengeRequested)
	wireOpts, err := s.api.AuthBegin(ctx, username)
	if err != nil {
		return nil, f.fail(classifyTransportError(err))
	}

	opts, err := decodeAuthenticationOptions(wireOpts)
	if err != nil {
		return nil, f.fail(formatError(err))
	}

	f.transition(StateAwaitingAuthenticator)
	assertion, err := s.auth.Get(ctx, opts)
	if err != nil {
		return nil, f.fail(classifyAuthenticatorError(ceremonyAuthenticate, err))
	}

	f.transition(StateSubmitting)
	resp, err := s.api.AuthComplete(ctx, username, encodeAssertion(assertion))
	if err != nil {
		return nil, f.fail(classifyTransportError(err))
	}

	f.complete()
	return &AuthenticationResult{Token: resp.AccessToken, TokenType: resp.TokenType}, nil
}

// HasCredentials reports whether the authenticated user has any enrolled
// credential. Fail-closed: any transport or server failure reads as "no
// credentials" so callers never offer a biometric prompt that cannot
// succeed. The underlying error is logged, not returned.
func (s *Service) HasCredentials(ctx context.Context, token string) bool {
	start := time.Now()
	has, err := s.api.HasCredentials(ctx, token)
	if err != nil {
		ferr := classifyTransportError(err)
		s.logger.Debug("enrollment query failed, reporting no credentials",
			"kind", string(ferr.Kind), "error", err)
		metrics.RecordFlow(metrics.FlowQuery, start, string(ferr.Kind))
		return false
	}
	metrics.RecordFlow(metrics.FlowQuery, start, "")
	return has
}

// DeleteCredentials removes all enrolled credentials for the authenticated
// user. The next enrollment query reflects the deletion immediately.
func (s *Service) DeleteCredentials(ctx context.Context, token string) (*DeleteResult, error) {
	start := time.Now()
	resp, err := s.api.DeleteCredentials(ctx, token)
	if err != nil {
		ferr := classifyTransportError(err)
		s.logger.Error("credential deletion failed",
			"kind", string(ferr.Kind), "error", err)
		metrics.RecordFlow(metrics.FlowDelete, start, string(ferr.Kind))
		return nil, ferr
	}
	s.logger.Info("credentials deleted")
	metrics.RecordFlow(metrics.FlowDelete, start, "")
	return &DeleteResult{Message: resp.Message}, nil
}

// Capabilities probes the local authenticator. Never fails.
func (s *Service) Capabilities(ctx context.Context) authenticator.CapabilityState {
	start := time.Now()
	state := authenticator.ProbeCapabilities(ctx, s.auth)
	metrics.RecordFlow(metrics.FlowProbe, start, "")
	return state
}
