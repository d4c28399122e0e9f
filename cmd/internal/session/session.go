package session

import (
	"context"
	"errors"
	"strings"
)

// Tokens is a snapshot of both slots. Empty strings mean absent.
type Tokens struct {
	Access  string
	Refresh string
}

// Session is the explicit credential holder shared by API clients.
//
// It is safe for concurrent use when its Store is.
type Session struct {
	store Store
}

// New wraps store in a Session.
func New(store Store) *Session {
	return &Session{store: store}
}

// AccessToken returns the stored access credential, or "" when none is stored.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	return s.read(ctx, SlotAccess)
}

// RefreshToken returns the stored refresh credential, or "" when none is stored.
func (s *Session) RefreshToken(ctx context.Context) (string, error) {
	return s.read(ctx, SlotRefresh)
}

// Tokens reads both slots.
func (s *Session) Tokens(ctx context.Context) (Tokens, error) {
	a, err := s.AccessToken(ctx)
	if err != nil {
		return Tokens{}, err
	}
	r, err := s.RefreshToken(ctx)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: a, Refresh: r}, nil
}

// Establish stores a freshly issued credential pair, replacing any previous one.
func (s *Session) Establish(ctx context.Context, access, refresh string) error {
	access = strings.TrimSpace(access)
	refresh = strings.TrimSpace(refresh)
	if access == "" || refresh == "" {
		return ErrEmptyCredential
	}
	return s.store.Set(ctx, map[Slot]string{
		SlotAccess:  access,
		SlotRefresh: refresh,
	})
}

// ReplaceAccess stores a refreshed access credential. The refresh slot is untouched.
func (s *Session) ReplaceAccess(ctx context.Context, access string) error {
	access = strings.TrimSpace(access)
	if access == "" {
		return ErrEmptyCredential
	}
	return s.store.Set(ctx, map[Slot]string{SlotAccess: access})
}

// Clear removes both credentials.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, Slots()...)
}

// Authenticated reports whether an access credential is stored.
// It does not check validity or expiry.
func (s *Session) Authenticated(ctx context.Context) (bool, error) {
	a, err := s.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return a != "", nil
}

// Close closes the underlying store.
func (s *Session) Close() error { return s.store.Close() }

func (s *Session) read(ctx context.Context, slot Slot) (string, error) {
	v, err := s.store.Get(ctx, slot)
	if errors.Is(err, ErrSlotEmpty) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
