package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessInfo is what a client can learn from an access credential without the signing key.
type AccessInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential is past its expiry at now, allowing skew.
// A credential without an exp claim never expires client-side.
func (a AccessInfo) Expired(now time.Time, skew time.Duration) bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return now.After(a.ExpiresAt.Add(skew))
}

// Remaining returns the time left until expiry (zero when expired or unknown).
func (a AccessInfo) Remaining(now time.Time) time.Duration {
	if a.ExpiresAt.IsZero() || !now.Before(a.ExpiresAt) {
		return 0
	}
	return a.ExpiresAt.Sub(now)
}

// InspectAccess decodes the registered claims of a JWT access credential.
//
// The signature is NOT verified; the result is advisory and only used for
// display and logging. Opaque credentials return ErrNotJWT.
func InspectAccess(raw string) (AccessInfo, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return AccessInfo{}, ErrNotJWT
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return AccessInfo{}, ErrNotJWT
	}

	var info AccessInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	return info, nil
}
