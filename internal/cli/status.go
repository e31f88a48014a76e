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
	statusToken string
)

// statusCmd reports authenticator capabilities, enrollment, and session
// state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show biometric capabilities and enrollment state",
	Long: `Status probes the local authenticator and, when a session token is
available, asks the backend whether a credential is enrolled. Enrollment
reads as false whenever the query cannot complete, so the answer is safe
to gate a login prompt on.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()

		svc, api, err := cfg.CreateService()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = api.Close() }()

		caps := svc.Capabilities(cmd.Context())

		backend := "unreachable"
		if health, err := api.Health(cmd.Context()); err == nil {
			backend = health.Status
		}

		// Enrollment and session are best-effort: no token means no
		// session line and an un-enrolled report.
		hasCredentials := false
		var session *tokenInfo
		if token, err := resolveToken(statusToken); err == nil {
			hasCredentials = svc.HasCredentials(cmd.Context(), token)
			if info, err := inspectToken(token); err == nil {
				session = info
			}
		}

		printer := NewPrinter(cfg.OutputFormat, os.Stdout)
		_ = printer.PrintStatus(caps, backend, hasCredentials, session)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusToken, "token", "",
		"session token (defaults to the stored token)")
}
