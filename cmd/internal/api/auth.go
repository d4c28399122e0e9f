package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"glowguard/cmd/internal/apiclient"
	apiv1 "glowguard/shared/contracts/api/v1"
)

// Auth issues and discards credentials.
type Auth struct {
	c   *apiclient.Client
	log *slog.Logger
}

// Login exchanges username/password for a credential pair and stores it.
func (a *Auth) Login(ctx context.Context, username, password string) (apiv1.TokenPair, error) {
	var out apiv1.TokenPair
	_, err := a.c.Do(ctx, http.MethodPost, apiv1.PathLogin,
		apiv1.LoginRequest{Username: username, Password: password}, &out,
		apiclient.WithoutRefresh(),
	)
	if apiclient.IsUnauthorized(err) {
		a.log.Info("auth.login.fail", "reason", "invalid_credentials")
		return apiv1.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if err != nil {
		a.log.Warn("auth.login.fail", "err", err)
		return apiv1.TokenPair{}, err
	}

	if err := a.establish(ctx, out); err != nil {
		return apiv1.TokenPair{}, err
	}
	a.log.Info("auth.login.ok")
	return out, nil
}

// Register creates an account and stores the issued credential pair.
func (a *Auth) Register(ctx context.Context, req apiv1.RegisterRequest) (apiv1.TokenPair, error) {
	var out apiv1.TokenPair
	if _, err := a.c.Do(ctx, http.MethodPost, apiv1.PathRegister, req, &out, apiclient.WithoutRefresh()); err != nil {
		a.log.Warn("auth.register.fail", "err", err)
		return apiv1.TokenPair{}, err
	}

	if err := a.establish(ctx, out); err != nil {
		return apiv1.TokenPair{}, err
	}
	a.log.Info("auth.register.ok")
	return out, nil
}

func (a *Auth) establish(ctx context.Context, p apiv1.TokenPair) error {
	if err := p.Validate(); err != nil {
		a.log.Warn("auth.issue.invalid_response", "err", err)
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return a.c.Session().Establish(ctx, p.AccessToken, p.RefreshToken)
}

// Logout tells the backend best-effort and always clears local credentials.
// Only a failure to clear local storage is returned.
func (a *Auth) Logout(ctx context.Context) error {
	if _, err := a.c.Do(ctx, http.MethodPost, apiv1.PathLogout, nil, nil, apiclient.WithoutRefresh()); err != nil {
		a.log.Warn("auth.logout.remote_fail", "err", err)
	}
	if err := a.c.Session().Clear(ctx); err != nil {
		a.log.Error("auth.logout.clear_fail", "err", err)
		return err
	}
	a.log.Info("auth.logout.ok")
	return nil
}

// IsAuthenticated reports whether an access credential is stored.
// It makes no network call.
func (a *Auth) IsAuthenticated(ctx context.Context) (bool, error) {
	return a.c.Session().Authenticated(ctx)
}
