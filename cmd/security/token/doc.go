// Package token provides credential handling primitives for GlowGuard clients.
//
// It covers three concerns:
//   - sealing: passphrase-based encryption of credentials at rest
//     (Argon2id key derivation + XChaCha20-Poly1305),
//   - inspection: reading expiry and subject from a JWT access credential
//     without verifying its signature (the client never holds the key),
//   - fingerprinting: a short stable digest that lets logs correlate a
//     credential without printing it.
//
// Environment:
//   - GLOWGUARD_STORE_PASSPHRASE: when set, enables sealing of the file store.
//   - GLOWGUARD_ARGON2_MEMORY_KIB, GLOWGUARD_ARGON2_ITERATIONS: KDF cost overrides.
package token
