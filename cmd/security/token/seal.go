package token

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion = byte(1)
	saltLen     = 16
)

// Argon2idParams controls passphrase key derivation cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2idParams returns a baseline that stays interactive on a laptop.
func DefaultArgon2idParams() Argon2idParams {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
	}
}

// Argon2idParamsFromEnv applies GLOWGUARD_ARGON2_* overrides to the defaults.
func Argon2idParamsFromEnv() (Argon2idParams, error) {
	p := DefaultArgon2idParams()

	if v, ok := os.LookupEnv("GLOWGUARD_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024)
		if err != nil {
			return Argon2idParams{}, fmt.Errorf("GLOWGUARD_ARGON2_MEMORY_KIB: %w", err)
		}
		p.MemoryKiB = u
	}
	if v, ok := os.LookupEnv("GLOWGUARD_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Argon2idParams{}, fmt.Errorf("GLOWGUARD_ARGON2_ITERATIONS: %w", err)
		}
		p.Iterations = u
	}
	return p, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

// PassphraseSealer encrypts payloads with a key derived from a passphrase.
//
// Output layout: version(1) | salt(16) | nonce(24) | ciphertext+tag.
// The derived key for the most recent salt is cached, so repeated
// Open/Seal calls on one file only pay the KDF cost once.
type PassphraseSealer struct {
	passphrase []byte
	params     Argon2idParams

	mu        sync.Mutex
	cacheSalt []byte
	cacheKey  []byte
}

// NewPassphraseSealer validates passphrase and returns a sealer.
func NewPassphraseSealer(passphrase string, params Argon2idParams) (*PassphraseSealer, error) {
	p, err := CheckPassphrase(passphrase)
	if err != nil {
		return nil, err
	}
	if params.MemoryKiB == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		params = DefaultArgon2idParams()
	}
	return &PassphraseSealer{passphrase: []byte(p), params: params}, nil
}

func (s *PassphraseSealer) key(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cacheKey != nil && subtle.ConstantTimeCompare(s.cacheSalt, salt) == 1 {
		return s.cacheKey
	}
	k := argon2.IDKey(s.passphrase, salt, s.params.Iterations, s.params.MemoryKiB, s.params.Parallelism, chacha20poly1305.KeySize)
	s.cacheSalt = append([]byte(nil), salt...)
	s.cacheKey = k
	return k
}

// Seal encrypts plaintext under a fresh salt and nonce.
func (s *PassphraseSealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	header := make([]byte, 0, 1+saltLen+len(nonce))
	header = append(header, sealVersion)
	header = append(header, salt...)
	header = append(header, nonce...)

	// Version and salt are bound as associated data.
	ad := append([]byte{sealVersion}, salt...)
	return aead.Seal(header, nonce, plaintext, ad), nil
}

// Open decrypts a payload produced by Seal.
func (s *PassphraseSealer) Open(sealed []byte) ([]byte, error) {
	hdr := 1 + saltLen + chacha20poly1305.NonceSizeX
	if len(sealed) < hdr+chacha20poly1305.Overhead || sealed[0] != sealVersion {
		return nil, ErrSealedMalformed
	}

	salt := sealed[1 : 1+saltLen]
	nonce := sealed[1+saltLen : hdr]

	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, sealed[hdr:], sealed[:1+saltLen])
	if err != nil {
		return nil, ErrSealedAuth
	}
	return plain, nil
}
