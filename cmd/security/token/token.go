package token

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// PassphraseEnvKey is the env var name for the file store passphrase.
	// #nosec G101 -- not a credential; it's an environment variable name.
	PassphraseEnvKey = "GLOWGUARD_STORE_PASSPHRASE"

	// MinPassphraseBytes is the minimum accepted passphrase length.
	MinPassphraseBytes = 12

	fingerprintLen = 12
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short digest of a credential suitable for logs.
// Empty input yields "".
func Fingerprint(credential string) string {
	if credential == "" {
		return ""
	}
	return HashSHA256Hex(credential)[:fingerprintLen]
}

// CheckPassphrase applies the passphrase policy to raw.
func CheckPassphrase(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", ErrPassphraseMissing
	}
	if len(p) < MinPassphraseBytes {
		return "", ErrPassphraseTooShort
	}
	return p, nil
}
