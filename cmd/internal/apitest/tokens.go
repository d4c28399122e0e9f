package apitest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const tokenTypeAccess = "access"

var errStaleEpoch = errors.New("access credential predates expiry")

type accessClaims struct {
	Type  string `json:"type"`
	Epoch int    `json:"epoch"`
	jwt.RegisteredClaims
}

// issueAccess must be called with b.mu held.
func (b *Backend) issueAccess(username string) (string, error) {
	now := b.now()
	c := accessClaims{
		Type:  tokenTypeAccess,
		Epoch: b.epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(b.secret)
}

// issueRefresh must be called with b.mu held.
func (b *Backend) issueRefresh(username string) string {
	rt := "rt_" + ulid.Make().String()
	b.refresh[rt] = username
	return rt
}

func (b *Backend) verifyAccess(raw string) (string, error) {
	var c accessClaims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
	if err != nil {
		return "", err
	}
	if c.Type != tokenTypeAccess || c.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}

	b.mu.Lock()
	epoch := b.epoch
	b.mu.Unlock()
	if c.Epoch != epoch {
		return "", errStaleEpoch
	}
	return c.Subject, nil
}

// requireUser resolves the bearer credential. A missing header is 403 and a
// bad or expired credential 401, matching the real backend's bearer guard.
func (b *Backend) requireUser(w http.ResponseWriter, r *http.Request) (*user, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		writeDetail(w, http.StatusForbidden, "Not authenticated")
		return nil, false
	}
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		writeDetail(w, http.StatusForbidden, "Invalid authentication scheme.")
		return nil, false
	}

	username, err := b.verifyAccess(strings.TrimSpace(raw))
	if err != nil {
		b.log.Debug("apitest.auth.reject", "err", err)
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil, false
	}

	b.mu.Lock()
	u, found := b.users[username]
	b.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return u, true
}
