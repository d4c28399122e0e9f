package apitest

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	apiv1 "glowguard/shared/contracts/api/v1"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUsernameTaken = errors.New("username already registered")
	errEmailTaken    = errors.New("email already registered")
	errAgeRange      = errors.New("age out of range")
)

// detailFor maps store errors to the backend's detail text.
func detailFor(err error) string {
	switch {
	case errors.Is(err, errUsernameTaken):
		return "Username already registered"
	case errors.Is(err, errEmailTaken):
		return "Email already registered"
	case errors.Is(err, errAgeRange):
		return "Age must be between 13 and 120"
	default:
		return "Internal Server Error"
	}
}

type user struct {
	rec  apiv1.User
	hash []byte
}

// AddUser seeds an account directly, bypassing HTTP validation.
func (b *Backend) AddUser(username, email, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.createUserLocked(apiv1.RegisterRequest{Username: username, Email: email, Password: password})
	return err
}

// createUserLocked must be called with b.mu held.
func (b *Backend) createUserLocked(req apiv1.RegisterRequest) (*user, error) {
	if _, ok := b.users[req.Username]; ok {
		return nil, errUsernameTaken
	}
	for _, u := range b.users {
		if strings.EqualFold(u.rec.Email, req.Email) {
			return nil, errEmailTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	now := apiv1.Timestamp{Time: b.now().UTC()}
	created, updated := now, now
	u := &user{
		rec: apiv1.User{
			ID:              ulid.Make().String(),
			Username:        req.Username,
			Email:           req.Email,
			Age:             req.Age,
			SkinType:        req.SkinType,
			SkinConcerns:    req.SkinConcerns,
			CurrentProducts: req.CurrentProducts,
			Goals:           req.Goals,
			CreatedAt:       &created,
			UpdatedAt:       &updated,
		},
		hash: hash,
	}
	b.users[req.Username] = u
	return u, nil
}

// validateRegister mirrors the backend's request model constraints.
func validateRegister(req apiv1.RegisterRequest) []validationItem {
	var out []validationItem
	add := func(field, msg, typ string) {
		out = append(out, validationItem{Loc: []string{"body", field}, Msg: msg, Type: typ})
	}

	switch n := utf8.RuneCountInString(req.Username); {
	case n < 3:
		add("username", "ensure this value has at least 3 characters", "value_error.any_str.min_length")
	case n > 50:
		add("username", "ensure this value has at most 50 characters", "value_error.any_str.max_length")
	}
	if a, err := mail.ParseAddress(req.Email); err != nil || a.Address != req.Email {
		add("email", "value is not a valid email address", "value_error.email")
	}
	if utf8.RuneCountInString(req.Password) < 6 {
		add("password", "ensure this value has at least 6 characters", "value_error.any_str.min_length")
	}
	if req.Age != nil {
		if *req.Age < 13 {
			add("age", "ensure this value is greater than or equal to 13", "value_error.number.not_ge")
		} else if *req.Age > 120 {
			add("age", "ensure this value is less than or equal to 120", "value_error.number.not_le")
		}
	}
	return out
}

type profilePatch struct {
	Username        *string   `json:"username"`
	Age             *int      `json:"age"`
	SkinType        *string   `json:"skin_type"`
	SkinConcerns    *[]string `json:"skin_concerns"`
	CurrentProducts *string   `json:"current_products"`
	Goals           *string   `json:"goals"`
}

// applyPatchLocked must be called with b.mu held.
func (b *Backend) applyPatchLocked(u *user, p profilePatch) error {
	if p.Username != nil && *p.Username != u.rec.Username {
		if _, taken := b.users[*p.Username]; taken {
			return errUsernameTaken
		}
		delete(b.users, u.rec.Username)
		u.rec.Username = *p.Username
		b.users[u.rec.Username] = u
	}
	if p.Age != nil {
		if *p.Age < 13 || *p.Age > 120 {
			return errAgeRange
		}
		u.rec.Age = p.Age
	}
	if p.SkinType != nil {
		u.rec.SkinType = p.SkinType
	}
	if p.SkinConcerns != nil {
		u.rec.SkinConcerns = *p.SkinConcerns
	}
	if p.CurrentProducts != nil {
		u.rec.CurrentProducts = p.CurrentProducts
	}
	if p.Goals != nil {
		u.rec.Goals = p.Goals
	}
	u.rec.UpdatedAt = &apiv1.Timestamp{Time: b.now().UTC()}
	return nil
}
