package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"glowguard/cmd/security/token"
	apiv1 "glowguard/shared/contracts/api/v1"
)

// refresh obtains an access credential newer than sent, the one a 401 was received for.
//
// If the session already holds a different access credential (another
// goroutine refreshed while our request was in flight) no exchange is made.
// Otherwise callers presenting the same refresh credential share one
// POST /auth/refresh.
func (c *Client) refresh(ctx context.Context, sent string) (string, error) {
	rt, err := c.sess.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	if rt == "" {
		c.metrics.refresh(refreshNoToken)
		c.log.Warn("api.refresh.skip", "reason", "no_refresh_token")
		return "", ErrNoRefreshToken
	}

	cur, err := c.sess.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if cur != "" && cur != sent {
		c.metrics.refresh(refreshSkipped)
		c.log.Debug("api.refresh.skip", "reason", "already_refreshed", "access_fp", token.Fingerprint(cur))
		return cur, nil
	}

	// The exchange outlives any single caller: others may be waiting on it.
	fctx := context.WithoutCancel(ctx)
	v, err, shared := c.flights.Do(rt, func() (any, error) {
		// A flight that finished just before this one started may already have replaced it.
		if cur, err := c.sess.AccessToken(fctx); err == nil && cur != "" && cur != sent {
			c.metrics.refresh(refreshSkipped)
			return cur, nil
		}
		return c.exchange(fctx, rt)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.log.Debug("api.refresh.shared", "refresh_fp", token.Fingerprint(rt))
	}
	return v.(string), nil
}

// exchange performs the refresh call and applies its outcome to the session.
// It is the only place that clears the session on refresh failure.
func (c *Client) exchange(ctx context.Context, rt string) (string, error) {
	body, err := json.Marshal(apiv1.RefreshRequest{RefreshToken: rt})
	if err != nil {
		return "", err
	}

	// Sent without a bearer and never retried.
	resp, err := c.transmit(ctx, outbound{method: http.MethodPost, path: apiv1.PathRefresh, body: body}, "")
	if err != nil {
		return "", c.invalidate(ctx, &RefreshError{Err: err})
	}

	if resp.Status < 200 || resp.Status > 299 {
		return "", c.invalidate(ctx, &RefreshError{
			Status: resp.Status,
			Err: &APIError{
				Method:    http.MethodPost,
				Path:      apiv1.PathRefresh,
				Status:    resp.Status,
				Detail:    detailOf(resp.Body),
				Body:      resp.Body,
				RequestID: resp.RequestID,
			},
		})
	}

	var out apiv1.RefreshResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return "", c.invalidate(ctx, &RefreshError{Status: resp.Status, Err: fmt.Errorf("%w: %v", ErrInvalidRefreshResponse, err)})
	}
	if err := out.Validate(); err != nil {
		return "", c.invalidate(ctx, &RefreshError{Status: resp.Status, Err: fmt.Errorf("%w: %v", ErrInvalidRefreshResponse, err)})
	}

	// A storage failure here is not a credential problem, so the session is left alone.
	if err := c.sess.ReplaceAccess(ctx, out.AccessToken); err != nil {
		c.metrics.refresh(refreshFailure)
		c.log.Error("api.refresh.persist_fail", "err", err)
		return "", fmt.Errorf("store refreshed access token: %w", err)
	}

	c.metrics.refresh(refreshSuccess)
	c.log.Info("api.refresh.ok", "access_fp", token.Fingerprint(out.AccessToken))
	return out.AccessToken, nil
}

// invalidate clears both credentials, notifies the host and returns rerr.
func (c *Client) invalidate(ctx context.Context, rerr *RefreshError) error {
	c.metrics.refresh(refreshFailure)
	c.log.Warn("api.refresh.fail", "status", rerr.Status, "err", rerr.Err)

	if err := c.sess.Clear(ctx); err != nil {
		c.log.Error("api.session.clear_fail", "err", err)
	}
	if c.onInvalidated != nil {
		c.onInvalidated(rerr)
	}
	return rerr
}
