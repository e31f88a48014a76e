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

package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	registerToken  string
	registerVerify bool
)

// registerCmd enrolls a biometric credential for the authenticated user.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Enroll a biometric credential",
	Long: `Register runs the WebAuthn registration ceremony: it requests a
challenge from the backend, performs the local authenticator gesture, and
submits the attestation for verification.

A valid session token is required (from a previous login, --token, or
BIOMETRIC_TOKEN). With --verify, a full authentication ceremony runs
immediately after enrollment to prove the credential works.`,
	Run: func(cmd *cobra.Command, args []string) {
		token, err := resolveToken(registerToken)
		if err != nil {
			handleError(err)
		}

		svc, api, err := getConfig().CreateService()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = api.Close() }()

		result, err := svc.RegisterCredential(cmd.Context(), token)
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		_ = printer.PrintSuccess(result.Message)

		if registerVerify {
			// The credential only lives in this process, so the
			// verification authentication must run here too.
			info, err := inspectToken(token)
			if err != nil {
				handleError(err)
			}
			if _, err := svc.Authenticate(cmd.Context(), info.Subject); err != nil {
				handleError(err)
			}
			_ = printer.PrintSuccess("credential verified")
		}
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerToken, "token", "",
		"session token (defaults to the stored token)")
	registerCmd.Flags().BoolVar(&registerVerify, "verify", false,
		"authenticate with the new credential after enrolling")
}
