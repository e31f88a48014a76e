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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginNoSave   bool
)

// loginCmd authenticates with an enrolled biometric credential.
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Authenticate with an enrolled biometric credential",
	Long: `Login runs the WebAuthn authentication ceremony for the named user:
it requests a challenge, signs it with the local authenticator, and stores
the issued session token for subsequent commands.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := loginUsername
		if len(args) == 1 {
			username = args[0]
		}
		if username == "" {
			handleError(fmt.Errorf("username is required (argument or --username)"))
		}

		svc, api, err := getConfig().CreateService()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = api.Close() }()

		result, err := svc.Authenticate(cmd.Context(), username)
		if err != nil {
			handleError(err)
		}

		tokenPath, err := getConfig().TokenPath()
		if err != nil {
			handleError(err)
		}
		if !loginNoSave {
			if err := saveToken(tokenPath, result.Token); err != nil {
				handleError(err)
			}
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		_ = printer.PrintLogin(username, tokenPath, !loginNoSave, result)
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "",
		"account to authenticate as")
	loginCmd.Flags().BoolVar(&loginNoSave, "no-save", false,
		"print the token without storing it")
}
