package onboarding

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 50
	MinPasswordLen = 6
	MinAge         = 13
	MaxAge         = 120
)

// SkinTypes lists the accepted skin type identifiers in display order.
var SkinTypes = []string{"oily", "dry", "combination", "sensitive", "normal"}

// Concerns lists the selectable skin concerns in display order.
var Concerns = []string{
	"Acne & Breakouts",
	"Dark Spots",
	"Fine Lines",
	"Dryness",
	"Oily T-Zone",
	"Large Pores",
	"Redness",
	"Dullness",
	"Under-eye Circles",
	"Blackheads",
}

// ValidateLogin checks the login form the same way the sign-in screen does:
// username first, then password, only presence.
func ValidateLogin(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return FieldError{Field: "username", Kind: ErrRequired, Msg: "Please enter your username"}
	}
	if strings.TrimSpace(password) == "" {
		return FieldError{Field: "password", Kind: ErrRequired, Msg: "Please enter your password"}
	}
	return nil
}

func validateUsername(s string) error {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		return FieldError{Field: "username", Kind: ErrRequired, Msg: "Please choose a username"}
	case n < MinUsernameLen:
		return FieldError{Field: "username", Kind: ErrTooShort, Msg: "Username must be at least 3 characters"}
	case n > MaxUsernameLen:
		return FieldError{Field: "username", Kind: ErrTooLong, Msg: "Username must be at most 50 characters"}
	}
	return nil
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return FieldError{Field: "email", Kind: ErrRequired, Msg: "Please enter your email"}
	}
	addr, err := mail.ParseAddress(s)
	// Display-name forms ("Bob <bob@x>") parse fine but are not addresses.
	if err != nil || addr.Address != s {
		return FieldError{Field: "email", Kind: ErrInvalidInput, Msg: "Please enter a valid email address"}
	}
	return nil
}

func validatePassword(s string) error {
	switch {
	case strings.TrimSpace(s) == "":
		return FieldError{Field: "password", Kind: ErrRequired, Msg: "Please choose a password"}
	case utf8.RuneCountInString(s) < MinPasswordLen:
		return FieldError{Field: "password", Kind: ErrTooShort, Msg: "Password must be at least 6 characters"}
	}
	return nil
}

// parseAge accepts an empty string as "not given".
func parseAge(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, FieldError{Field: "age", Kind: ErrInvalidInput, Msg: "Age must be a whole number"}
	}
	if n < MinAge || n > MaxAge {
		return nil, FieldError{Field: "age", Kind: ErrOutOfRange, Msg: "Age must be between 13 and 120"}
	}
	return &n, nil
}

// NormalizeSkinType canonicalizes s; "" is returned unchanged.
func NormalizeSkinType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateSkinType(s string) error {
	for _, t := range SkinTypes {
		if s == t {
			return nil
		}
	}
	return FieldError{Field: "skin_type", Kind: ErrUnknownValue, Msg: "Please choose one of: " + strings.Join(SkinTypes, ", ")}
}

// canonicalConcern matches s against Concerns case-insensitively.
func canonicalConcern(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Concerns {
		if strings.EqualFold(s, c) {
			return c, true
		}
	}
	return "", false
}
