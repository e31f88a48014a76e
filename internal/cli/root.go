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

// Package cli implements the biometric command line interface: register,
// login, status, delete and version commands driving the flow service
// against a configured backend.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "biometric",
	Short: "biometric CLI - WebAuthn credential management for Anthony Sistem",
	Long: `biometric CLI manages WebAuthn biometric credentials against the
Anthony Sistem billing backend. It drives the full registration and
authentication ceremonies with a local authenticator, stores the issued
session token, and reports enrollment state.

Commands:
  register:  enroll a biometric credential (requires a session token)
  login:     authenticate with an enrolled credential
  status:    show authenticator capabilities and enrollment state
  delete:    remove all enrolled credentials`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return globalConfig.Load()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Initialize global config
	globalConfig = NewConfig()

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (default is $HOME/.biometric.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.Server, "server", "s", "",
		"backend server URL (http://host:port or https://host:port)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.RPID, "rp-id", "",
		"relying party identifier (defaults to the server hostname)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.TokenFile, "token-file", "",
		"session token file (default is $HOME/.biometric/token)")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&globalConfig.TLSInsecure, "tls-insecure", false,
		"skip TLS certificate verification (not recommended)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.TLSCACert, "tls-ca", "",
		"CA certificate file")
	rootCmd.PersistentFlags().StringVar(&globalConfig.TLSCert, "tls-cert", "",
		"client certificate file (for mTLS)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.TLSKey, "tls-key", "",
		"client key file (for mTLS)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}
