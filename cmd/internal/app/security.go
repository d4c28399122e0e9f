package app

import (
	"errors"
	"fmt"

	"glowguard/cmd/internal/session"
	"glowguard/cmd/security/token"
)

// ValidateSecurityConfig enforces the credential-at-rest policy at startup.
//
// A passphrase that is set but too weak is always an error; silently falling
// back to plaintext storage is not acceptable.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.Store.Backend != session.BackendFile {
		if cfg.RequireSealing {
			return fmt.Errorf("security policy: GLOWGUARD_REQUIRE_SEALING=true applies to the file store only (store=%s)", cfg.Store.Backend)
		}
		return nil
	}

	if cfg.Store.Passphrase == "" {
		if cfg.RequireSealing {
			return fmt.Errorf("security policy: GLOWGUARD_REQUIRE_SEALING=true but %s is missing", token.PassphraseEnvKey)
		}
		return nil
	}

	if _, err := token.CheckPassphrase(cfg.Store.Passphrase); err != nil {
		switch {
		case errors.Is(err, token.ErrPassphraseMissing):
			return fmt.Errorf("security policy: %s is blank", token.PassphraseEnvKey)
		case errors.Is(err, token.ErrPassphraseTooShort):
			return fmt.Errorf("security policy: %s is too short (min %d bytes)", token.PassphraseEnvKey, token.MinPassphraseBytes)
		default:
			return err
		}
	}
	return nil
}
