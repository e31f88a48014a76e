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
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-biometric/pkg/authenticator"
	"github.com/jeremyhahn/go-biometric/pkg/biometric"
	"github.com/jeremyhahn/go-biometric/pkg/client"
	"github.com/jeremyhahn/go-biometric/pkg/logging"
)

// Config holds global CLI configuration. Values resolve in the usual
// precedence order: flags, then BIOMETRIC_* environment variables, then
// the config file.
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// Server is the backend base URL (http://host:port or https://host:port)
	Server string

	// RPID is the relying party identifier. Empty means derive it from
	// the server hostname.
	RPID string

	// RPName is the relying party display name
	RPName string

	// TokenFile is where the session token is stored between commands
	TokenFile string

	// OutputFormat controls output formatting (text, json)
	OutputFormat string

	// Verbose enables debug logging
	Verbose bool

	// TLSInsecure skips TLS certificate verification (not recommended)
	TLSInsecure bool

	// TLSCACert is the path to the CA certificate file
	TLSCACert string

	// TLSCert is the path to the client certificate file (for mTLS)
	TLSCert string

	// TLSKey is the path to the client key file (for mTLS)
	TLSKey string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		RPName:       "Anthony Sistem",
		OutputFormat: "text",
	}
}

// Load merges the config file and environment into unset fields. Flags
// already parsed into the struct win.
func (c *Config) Load() error {
	v := viper.New()
	v.SetEnvPrefix("BIOMETRIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigName(".biometric")
			v.SetConfigType("yaml")
		}
	}

	// A missing default config is fine; an explicit or broken one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.ConfigFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if c.Server == "" {
		c.Server = v.GetString("server")
	}
	if c.RPID == "" {
		c.RPID = v.GetString("rp_id")
	}
	if name := v.GetString("rp_name"); name != "" {
		c.RPName = name
	}
	if c.TokenFile == "" {
		c.TokenFile = v.GetString("token_file")
	}
	if c.TLSCACert == "" {
		c.TLSCACert = v.GetString("tls_ca")
	}
	if c.TLSCert == "" {
		c.TLSCert = v.GetString("tls_cert")
	}
	if c.TLSKey == "" {
		c.TLSKey = v.GetString("tls_key")
	}
	if !c.TLSInsecure {
		c.TLSInsecure = v.GetBool("tls_insecure")
	}
	if !c.Verbose {
		c.Verbose = v.GetBool("verbose")
	}

	return nil
}

// Logger builds the CLI logger honoring the verbose flag.
func (c *Config) Logger() *logging.Logger {
	return logging.NewLogger(c.Verbose)
}

// ServerURL returns the normalized backend URL.
func (c *Config) ServerURL() (string, error) {
	if c.Server == "" {
		return "", fmt.Errorf("server URL is required (--server, BIOMETRIC_SERVER, or config file)")
	}
	server := c.Server
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}
	return server, nil
}

// RelyingPartyID resolves the relying party identifier, deriving it from
// the server hostname when not set explicitly.
func (c *Config) RelyingPartyID() (string, error) {
	if c.RPID != "" {
		return c.RPID, nil
	}
	server, err := c.ServerURL()
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	return parsed.Hostname(), nil
}

// TokenPath resolves the session token file location.
func (c *Config) TokenPath() (string, error) {
	if c.TokenFile != "" {
		return c.TokenFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".biometric", "token"), nil
}

// CreateClient creates a backend client from the configuration.
func (c *Config) CreateClient() (*client.Client, error) {
	server, err := c.ServerURL()
	if err != nil {
		return nil, err
	}
	return client.New(&client.Config{
		Address:               server,
		TLSInsecureSkipVerify: c.TLSInsecure,
		TLSCAFile:             c.TLSCACert,
		TLSCertFile:           c.TLSCert,
		TLSKeyFile:            c.TLSKey,
	})
}

// CreateService wires a flow service with a software authenticator bound
// to the configured relying party. The caller closes the returned client.
func (c *Config) CreateService() (*biometric.Service, *client.Client, error) {
	api, err := c.CreateClient()
	if err != nil {
		return nil, nil, err
	}

	rpID, err := c.RelyingPartyID()
	if err != nil {
		_ = api.Close()
		return nil, nil, err
	}
	server, err := c.ServerURL()
	if err != nil {
		_ = api.Close()
		return nil, nil, err
	}

	svc, err := biometric.NewService(&biometric.ServiceParams{
		API:           api,
		Authenticator: authenticator.NewVirtual(rpID, c.RPName, server),
		Logger:        c.Logger(),
	})
	if err != nil {
		_ = api.Close()
		return nil, nil, err
	}
	return svc, api, nil
}
