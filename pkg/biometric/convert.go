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
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/jeremyhahn/go-biometric/pkg/authenticator"
	"github.com/jeremyhahn/go-biometric/pkg/client"
	"github.com/jeremyhahn/go-biometric/pkg/encoding"
)

// Conversion between the textual wire form and the decoded options handed
// to the authenticator. Every binary field passes through the codec
// exactly once in each direction; nothing here touches the network.

func decodeRegistrationOptions(o *client.RegistrationOptions) (*protocol.PublicKeyCredentialCreationOptions, error) {
	challenge, err := encoding.DecodeBase64URL(o.Challenge)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	userID, err := encoding.DecodeBase64URL(o.User.ID)
	if err != nil {
		return nil, fmt.Errorf("user handle: %w", err)
	}

	excludeList, err := decodeDescriptors(o.ExcludeCredentials)
	if err != nil {
		return nil, fmt.Errorf("exclude list: %w", err)
	}

	params := make([]protocol.CredentialParameter, len(o.PubKeyCredParams))
	for i, p := range o.PubKeyCredParams {
		params[i] = protocol.CredentialParameter{
			Type:      protocol.CredentialType(p.Type),
			Algorithm: webauthncose.COSEAlgorithmIdentifier(p.Algorithm),
		}
	}

	opts := &protocol.PublicKeyCredentialCreationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: o.RP.Name},
			ID:               o.RP.ID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: o.User.Name},
			DisplayName:      o.User.DisplayName,
			ID:               protocol.URLEncodedBase64(userID),
		},
		Challenge:             challenge,
		Parameters:            params,
		Timeout:               o.Timeout,
		CredentialExcludeList: excludeList,
		Attestation:           protocol.ConveyancePreference(o.Attestation),
	}

	if sel := o.AuthenticatorSelection; sel != nil {
		opts.AuthenticatorSelection = protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.AuthenticatorAttachment(sel.AuthenticatorAttachment),
			ResidentKey:             protocol.ResidentKeyRequirement(sel.ResidentKey),
			RequireResidentKey:      sel.RequireResidentKey,
			UserVerification:        protocol.UserVerificationRequirement(sel.UserVerification),
		}
	}

	return opts, nil
}

func decodeAuthenticationOptions(o *client.AuthenticationOptions) (*protocol.PublicKeyCredentialRequestOptions, error) {
	challenge, err := encoding.DecodeBase64URL(o.Challenge)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	allowList, err := decodeDescriptors(o.AllowCredentials)
	if err != nil {
		return nil, fmt.Errorf("allow list: %w", err)
	}

	return &protocol.PublicKeyCredentialRequestOptions{
		Challenge:          challenge,
		Timeout:            o.Timeout,
		RelyingPartyID:     o.RPID,
		AllowedCredentials: allowList,
		UserVerification:   protocol.UserVerificationRequirement(o.UserVerification),
	}, nil
}

func decodeDescriptors(descriptors []client.CredentialDescriptor) ([]protocol.CredentialDescriptor, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}

	decoded := make([]protocol.CredentialDescriptor, len(descriptors))
	for i, d := range descriptors {
		id, err := encoding.DecodeBase64URL(d.ID)
		if err != nil {
			return nil, fmt.Errorf("credential id %d: %w", i, err)
		}
		transports := make([]protocol.AuthenticatorTransport, len(d.Transports))
		for j, tr := range d.Transports {
			transports[j] = protocol.AuthenticatorTransport(tr)
		}
		decoded[i] = protocol.CredentialDescriptor{
			Type:         protocol.CredentialType(d.Type),
			CredentialID: id,
			Transport:    transports,
		}
	}
	return decoded, nil
}

func encodeAttestation(att *authenticator.AttestationResult) *client.AttestationPayload {
	credentialID := encoding.EncodeBase64URL(att.CredentialID)
	return &client.AttestationPayload{
		ID:    credentialID,
		RawID: credentialID,
		Type:  att.Type,
		Response: client.AttestationResponse{
			ClientDataJSON:    encoding.EncodeBase64URL(att.ClientDataJSON),
			AttestationObject: encoding.EncodeBase64URL(att.AttestationObject),
		},
	}
}

func encodeAssertion(assertion *authenticator.AssertionResult) *client.AssertionPayload {
	credentialID := encoding.EncodeBase64URL(assertion.CredentialID)

	var userHandle *string
	if assertion.UserHandle != nil {
		handle := encoding.EncodeBase64URL(assertion.UserHandle)
		userHandle = &handle
	}

	return &client.AssertionPayload{
		ID:    credentialID,
		RawID: credentialID,
		Type:  assertion.Type,
		Response: client.AssertionResponse{
			ClientDataJSON:    encoding.EncodeBase64URL(assertion.ClientDataJSON),
			AuthenticatorData: encoding.EncodeBase64URL(assertion.AuthenticatorData),
			Signature:         encoding.EncodeBase64URL(assertion.Signature),
			UserHandle:        userHandle,
		},
	}
}
