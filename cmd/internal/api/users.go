package api

import (
	"context"
	"net/http"
	"strings"

	"glowguard/cmd/internal/apiclient"
	apiv1 "glowguard/shared/contracts/api/v1"
)

// Fields the backend refuses to update through PUT /users/me.
var forbiddenProfileFields = map[string]struct{}{
	"_id":             {},
	"id":              {},
	"email":           {},
	"hashed_password": {},
}

// Users reads and updates the authenticated profile.
type Users struct {
	c *apiclient.Client
}

// Me returns the current user's profile.
func (u *Users) Me(ctx context.Context) (apiv1.User, error) {
	var out apiv1.User
	_, err := u.c.Do(ctx, http.MethodGet, apiv1.PathMe, nil, &out)
	return out, err
}

// UpdateMe applies a partial profile update.
//
// Identity fields are dropped before sending; an update left with nothing
// to change fails locally with ErrEmptyUpdate.
func (u *Users) UpdateMe(ctx context.Context, upd apiv1.ProfileUpdate) (apiv1.User, error) {
	clean := SanitizeProfileUpdate(upd)
	if len(clean) == 0 {
		return apiv1.User{}, ErrEmptyUpdate
	}

	var out apiv1.User
	_, err := u.c.Do(ctx, http.MethodPut, apiv1.PathMe, clean, &out)
	return out, err
}

// SanitizeProfileUpdate returns upd without forbidden or blank-keyed fields.
func SanitizeProfileUpdate(upd apiv1.ProfileUpdate) apiv1.ProfileUpdate {
	out := make(apiv1.ProfileUpdate, len(upd))
	for k, v := range upd {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, forbidden := forbiddenProfileFields[k]; forbidden {
			continue
		}
		out[k] = v
	}
	return out
}
