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
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-biometric/pkg/authenticator"
	"github.com/jeremyhahn/go-biometric/pkg/biometric"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message. Flow failures include their kind so
// scripts can branch without parsing prose.
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		if ferr, ok := biometric.AsFlowError(err); ok {
			out["kind"] = string(ferr.Kind)
			out["error"] = ferr.Message
		}
		return p.printJSON(out)
	case OutputFormatText:
		if ferr, ok := biometric.AsFlowError(err); ok {
			fmt.Fprintf(p.writer, "Error: %s\n", ferr.Message)
			return nil
		}
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintLogin prints the outcome of an authentication flow. When the token
// was not persisted it is printed instead, for piping into other tools.
func (p *Printer) PrintLogin(username, tokenPath string, saved bool, result *biometric.AuthenticationResult) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]interface{}{
			"status":     "success",
			"username":   username,
			"token_type": result.TokenType,
		}
		if saved {
			out["token_file"] = tokenPath
		} else {
			out["token"] = result.Token
		}
		return p.printJSON(out)
	case OutputFormatText:
		if saved {
			fmt.Fprintf(p.writer, "Logged in as %s\n", username)
			fmt.Fprintf(p.writer, "Session token saved to %s\n", tokenPath)
		} else {
			fmt.Fprintln(p.writer, result.Token)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintStatus prints capabilities, backend health, enrollment, and
// session state.
func (p *Printer) PrintStatus(caps authenticator.CapabilityState, backend string, hasCredentials bool, token *tokenInfo) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]interface{}{
			"supported":                        caps.Supported,
			"platform_authenticator_available": caps.PlatformAuthenticatorAvailable,
			"backend":                          backend,
			"has_credentials":                  hasCredentials,
		}
		if token != nil {
			session := map[string]interface{}{
				"subject": token.Subject,
				"expired": token.Expired,
			}
			if !token.ExpiresAt.IsZero() {
				session["expires_at"] = token.ExpiresAt.Format(time.RFC3339)
			}
			out["session"] = session
		}
		return p.printJSON(out)
	case OutputFormatText:
		fmt.Fprintln(p.writer, "Biometric Status:")
		fmt.Fprintf(p.writer, "  Supported:     %t\n", caps.Supported)
		fmt.Fprintf(p.writer, "  Authenticator: %s\n", availabilityText(caps))
		fmt.Fprintf(p.writer, "  Backend:       %s\n", backend)
		fmt.Fprintf(p.writer, "  Enrolled:      %t\n", hasCredentials)
		if token != nil {
			fmt.Fprintf(p.writer, "  Session:       %s\n", sessionText(token))
		} else {
			fmt.Fprintln(p.writer, "  Session:       none")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func availabilityText(caps authenticator.CapabilityState) string {
	if caps.PlatformAuthenticatorAvailable {
		return "available"
	}
	return "unavailable"
}

func sessionText(token *tokenInfo) string {
	if token.Expired {
		return fmt.Sprintf("%s (expired, log in again)", token.Subject)
	}
	if token.ExpiresAt.IsZero() {
		return token.Subject
	}
	return fmt.Sprintf("%s (expires %s)", token.Subject, token.ExpiresAt.Format(time.RFC3339))
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
