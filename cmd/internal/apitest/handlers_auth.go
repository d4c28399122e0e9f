package apitest

import (
	"errors"
	"net/http"
	"strings"

	apiv1 "glowguard/shared/contracts/api/v1"

	"golang.org/x/crypto/bcrypt"
)

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apiv1.LoginRequest
	if err := decodeJSON(w, r, b.maxBody, &req); err != nil {
		writeValidation(w, validationItem{Loc: []string{"body"}, Msg: "invalid request body", Type: "value_error.jsondecode"})
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Username]
	b.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		b.log.Info("apitest.login.fail", "username", req.Username)
		writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	b.writeTokenPair(w, req.Username)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req apiv1.RegisterRequest
	if err := decodeJSON(w, r, b.maxBody, &req); err != nil {
		writeValidation(w, validationItem{Loc: []string{"body"}, Msg: "invalid request body", Type: "value_error.jsondecode"})
		return
	}
	if problems := validateRegister(req); len(problems) > 0 {
		writeValidation(w, problems...)
		return
	}

	b.mu.Lock()
	_, err := b.createUserLocked(req)
	b.mu.Unlock()
	switch {
	case errors.Is(err, errUsernameTaken), errors.Is(err, errEmailTaken):
		writeDetail(w, http.StatusBadRequest, detailFor(err))
		return
	case err != nil:
		b.log.Error("apitest.register.fail", "err", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	b.writeTokenPair(w, req.Username)
}

func (b *Backend) writeTokenPair(w http.ResponseWriter, username string) {
	b.mu.Lock()
	access, err := b.issueAccess(username)
	refresh := b.issueRefresh(username)
	b.mu.Unlock()
	if err != nil {
		b.log.Error("apitest.issue.fail", "err", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, apiv1.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    apiv1.TokenTypeBearer,
	})
}

// handleRefresh accepts the refresh credential in the JSON body or, like the
// real backend, as a refresh_token query parameter.
func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	forced := b.refreshStatus
	b.mu.Unlock()

	if forced != 0 {
		writeDetail(w, forced, "Refresh unavailable")
		return
	}

	rt := strings.TrimSpace(r.URL.Query().Get("refresh_token"))
	if rt == "" && r.ContentLength != 0 {
		var req apiv1.RefreshRequest
		if err := decodeJSON(w, r, b.maxBody, &req); err == nil {
			rt = strings.TrimSpace(req.RefreshToken)
		}
	}
	if rt == "" {
		writeValidation(w, validationItem{Loc: []string{"query", "refresh_token"}, Msg: "field required", Type: "value_error.missing"})
		return
	}

	b.mu.Lock()
	username, ok := b.refresh[rt]
	_, exists := b.users[username]
	var access string
	var err error
	if ok && exists {
		access, err = b.issueAccess(username)
	}
	b.mu.Unlock()

	switch {
	case !ok:
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
	case !exists:
		writeDetail(w, http.StatusUnauthorized, "User not found")
	case err != nil:
		b.log.Error("apitest.refresh.fail", "err", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
	default:
		writeJSON(w, http.StatusOK, apiv1.RefreshResponse{AccessToken: access, TokenType: apiv1.TokenTypeBearer})
	}
}

func (b *Backend) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}
