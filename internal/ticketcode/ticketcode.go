// Package ticketcode generates and normalizes the public ticket codes
// patients use to look up their case.
package ticketcode

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Prefix opens every generated code.
const Prefix = "PQR"

const suffixBytes = 3

// Generate returns Prefix followed by six upper-case hex characters.
func Generate() (string, error) {
	buf := make([]byte, suffixBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return Prefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Normalize trims, upper-cases and strips hyphens from user input.
func Normalize(input string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(input)), "-", "")
}

// Candidates lists the stored forms a user-entered code may match.
// The normalized form comes first.
func Candidates(input string) []string {
	upper := strings.ToUpper(strings.TrimSpace(input))
	if upper == "" {
		return nil
	}
	normalized := Normalize(input)
	if normalized == upper {
		return []string{normalized}
	}
	return []string{normalized, upper}
}
