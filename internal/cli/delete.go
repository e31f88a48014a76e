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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	deleteTokenFlag string
	deleteYes       bool
)

// deleteCmd removes all enrolled biometric credentials.
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove all enrolled biometric credentials",
	Long: `Delete removes every biometric credential enrolled for the
authenticated user. Biometric login stops working immediately; password
login is unaffected. Re-enroll with 'biometric register'.`,
	Run: func(cmd *cobra.Command, args []string) {
		token, err := resolveToken(deleteTokenFlag)
		if err != nil {
			handleError(err)
		}

		if !deleteYes && !confirm("Delete all biometric credentials? [y/N]: ") {
			fmt.Fprintln(os.Stderr, "Aborted")
			os.Exit(1)
		}

		svc, api, err := getConfig().CreateService()
		if err != nil {
			handleError(err)
		}
		defer func() { _ = api.Close() }()

		result, err := svc.DeleteCredentials(cmd.Context(), token)
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		_ = printer.PrintSuccess(result.Message)
	},
}

// confirm prompts on stderr and reads a yes/no answer from stdin.
func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	deleteCmd.Flags().StringVar(&deleteTokenFlag, "token", "",
		"session token (defaults to the stored token)")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false,
		"skip the confirmation prompt")
}
