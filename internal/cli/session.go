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
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// saveToken writes the session token with owner-only permissions.
func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// loadToken reads a previously saved session token. Returns an empty
// string when no token is stored.
func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// deleteToken removes the stored session token. Missing files are fine.
func deleteToken(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// tokenInfo is what we can read off a stored token without verifying it.
// The backend remains the authority on validity; this only drives display
// and the "expired, log in again" hint.
type tokenInfo struct {
	Subject   string
	ExpiresAt time.Time
	Expired   bool
}

// inspectToken parses the token without signature verification.
func inspectToken(token string) (*tokenInfo, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected token claims")
	}

	info := &tokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = time.Now().After(claims.ExpiresAt.Time)
	}
	return info, nil
}

// resolveToken returns the bearer token for authenticated commands:
// the --token flag, then BIOMETRIC_TOKEN, then the stored session token.
func resolveToken(flagToken string) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if token := os.Getenv("BIOMETRIC_TOKEN"); token != "" {
		return token, nil
	}
	path, err := getConfig().TokenPath()
	if err != nil {
		return "", err
	}
	token, err := loadToken(path)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("no session token; log in first or pass --token")
	}
	return token, nil
}
