package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"glowguard/cmd/internal/apiclient"
	"glowguard/cmd/internal/apitest"
	"glowguard/cmd/internal/session"
	apiv1 "glowguard/shared/contracts/api/v1"
)

func newTestAPI(t *testing.T, baseURL string, opts ...apiclient.Option) (*Client, *session.Session) {
	t.Helper()
	sess := session.New(session.NewMemoryStore())
	c, err := apiclient.New(baseURL, sess, opts...)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return New(c, nil), sess
}

func startBackend(t *testing.T) (*apitest.Backend, string) {
	t.Helper()
	srv, b := apitest.NewServer()
	t.Cleanup(srv.Close)
	if err := b.AddUser("alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	return b, srv.URL
}

func TestAuth_LoginStoresTokens(t *testing.T) {
	t.Parallel()

	_, url := startBackend(t)
	a, sess := newTestAPI(t, url)
	ctx := context.Background()

	pair, err := a.Auth.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	toks, _ := sess.Tokens(ctx)
	if toks.Access != pair.AccessToken || toks.Refresh != pair.RefreshToken {
		t.Fatalf("stored tokens do not match issued pair")
	}
	if ok, _ := a.Auth.IsAuthenticated(ctx); !ok {
		t.Fatalf("expected authenticated after login")
	}

	me, err := a.Users.Me(ctx)
	if err != nil || me.Username != "alice" {
		t.Fatalf("Me: %+v err=%v", me, err)
	}
}

func TestAuth_LoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	b, url := startBackend(t)
	a, sess := newTestAPI(t, url)
	ctx := context.Background()

	// A stale session must not turn a bad password into a refresh attempt.
	_ = sess.Establish(ctx, "stale-access", "stale-refresh")

	_, err := a.Auth.Login(ctx, "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) || !apiclient.IsUnauthorized(err) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if b.RefreshCalls() != 0 {
		t.Fatalf("login 401 must not refresh, got %d calls", b.RefreshCalls())
	}
	if toks, _ := sess.Tokens(ctx); toks.Access != "stale-access" {
		t.Fatalf("failed login must not touch the session, got %+v", toks)
	}
}

func TestAuth_LoginRejectsResponseWithoutTokens(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"A1","token_type":"bearer"}`)
	}))
	defer srv.Close()

	a, sess := newTestAPI(t, srv.URL)
	_, err := a.Auth.Login(context.Background(), "alice", "secret1")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if ok, _ := sess.Authenticated(context.Background()); ok {
		t.Fatalf("partial pair must not be stored")
	}
}

func TestDecodesZonelessBackendTimestamps(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(apiv1.PathMe, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"_id":"u1","username":"alice","email":"alice@example.com",`+
			`"created_at":"2024-05-01T12:34:56.123000","updated_at":"2024-05-02T08:00:00"}`)
	})
	mux.HandleFunc(apiv1.PathHistory, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"_id":"a1","user_id":"u1","image_url":"","skin_score":81.5,`+
			`"detected_issues":{"redness":[],"dark_spots":[]},"analysis_date":"2024-05-01T12:34:56.123000"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, sess := newTestAPI(t, srv.URL)
	ctx := context.Background()
	_ = sess.Establish(ctx, "A1", "R1")

	me, err := a.Users.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	want := time.Date(2024, 5, 1, 12, 34, 56, 123000000, time.UTC)
	if me.CreatedAt == nil || !me.CreatedAt.Equal(want) {
		t.Fatalf("created_at: got %v want %v", me.CreatedAt, want)
	}
	if me.UpdatedAt == nil || me.UpdatedAt.Hour() != 8 {
		t.Fatalf("updated_at: got %v", me.UpdatedAt)
	}

	hist, err := a.Skin.History(ctx, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || !hist[0].AnalysisDate.Equal(want) {
		t.Fatalf("history: %+v", hist)
	}
}

func TestAuth_RegisterStoresTokens(t *testing.T) {
	t.Parallel()

	_, url := startBackend(t)
	a, _ := newTestAPI(t, url)
	ctx := context.Background()

	age := 27
	skin := "combination"
	_, err := a.Auth.Register(ctx, apiv1.RegisterRequest{
		Username:     "bob",
		Email:        "bob@example.com",
		Password:     "secret2",
		Age:          &age,
		SkinType:     &skin,
		SkinConcerns: []string{"Redness"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	me, err := a.Users.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Username != "bob" || me.SkinType == nil || *me.SkinType != "combination" || len(me.SkinConcerns) != 1 {
		t.Fatalf("unexpected profile: %+v", me)
	}

	_, err = a.Auth.Register(ctx, apiv1.RegisterRequest{Username: "bob", Email: "other@example.com", Password: "secret2"})
	var aerr *apiclient.APIError
	if !errors.As(err, &aerr) || aerr.Status != http.StatusBadRequest || aerr.Detail != "Username already registered" {
		t.Fatalf("expected duplicate username error, got %v", err)
	}
}

func TestAuth_LogoutAlwaysClears(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, sess := newTestAPI(t, srv.URL)
	ctx := context.Background()
	_ = sess.Establish(ctx, "A1", "R1")

	if err := a.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if ok, _ := a.Auth.IsAuthenticated(ctx); ok {
		t.Fatalf("expected cleared session after logout")
	}
}

func TestUsers_UpdateMe(t *testing.T) {
	t.Parallel()

	_, url := startBackend(t)
	a, _ := newTestAPI(t, url)
	ctx := context.Background()
	if _, err := a.Auth.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := a.Users.UpdateMe(ctx, apiv1.ProfileUpdate{"email": "x@example.com", "_id": "1"}); !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("expected ErrEmptyUpdate, got %v", err)
	}

	u, err := a.Users.UpdateMe(ctx, apiv1.ProfileUpdate{"goals": "clear skin", "email": "x@example.com"})
	if err != nil {
		t.Fatalf("UpdateMe: %v", err)
	}
	if u.Goals == nil || *u.Goals != "clear skin" || u.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", u)
	}
}

func TestSanitizeProfileUpdate(t *testing.T) {
	t.Parallel()

	got := SanitizeProfileUpdate(apiv1.ProfileUpdate{
		"_id": "x", "id": "x", "email": "x", "hashed_password": "x", " ": 1, "age": 30,
	})
	if len(got) != 1 || got["age"] != 30 {
		t.Fatalf("unexpected sanitized update: %v", got)
	}
}

func TestSkin_AnalyzeHistoryProgress(t *testing.T) {
	t.Parallel()

	b, url := startBackend(t)
	a, _ := newTestAPI(t, url)
	ctx := context.Background()
	if _, err := a.Auth.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	p, err := a.Skin.Progress(ctx, 0)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if !p.Empty() || p.Message == "" {
		t.Fatalf("expected empty progress with message, got %+v", p)
	}

	img := append([]byte("\xff\xd8\xff\xe0"), bytes.Repeat([]byte("selfie"), 40)...)
	for i := 0; i < 2; i++ {
		res, err := a.Skin.AnalyzeImage(ctx, bytes.NewReader(append(img, byte(i))))
		if err != nil {
			t.Fatalf("AnalyzeImage: %v", err)
		}
		if !res.Success || res.SkinScore <= 0 || !strings.HasPrefix(res.AnnotatedImage, "data:image/jpeg;base64,") {
			t.Fatalf("unexpected analysis: %+v", res)
		}
	}
	if b.AnalysisCount("alice") != 2 {
		t.Fatalf("expected 2 stored analyses, got %d", b.AnalysisCount("alice"))
	}

	hist, err := a.Skin.History(ctx, 1, 0)
	if err != nil || len(hist) != 1 {
		t.Fatalf("History(1,0): len=%d err=%v", len(hist), err)
	}
	hist, err = a.Skin.History(ctx, 0, -5)
	if err != nil || len(hist) != 2 {
		t.Fatalf("History(defaults): len=%d err=%v", len(hist), err)
	}

	p, err = a.Skin.Progress(ctx, 7)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(p.Dates) != 2 || len(p.SkinScores) != 2 || p.AverageScore <= 0 {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

func TestSkin_AnalyzeErrors(t *testing.T) {
	t.Parallel()

	_, url := startBackend(t)
	a, _ := newTestAPI(t, url)
	ctx := context.Background()
	if _, err := a.Auth.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := a.Skin.Analyze(ctx, "  "); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	if _, err := a.Skin.AnalyzeImage(ctx, strings.NewReader("")); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}

	_, err := a.Skin.AnalyzeImage(ctx, strings.NewReader("tiny"))
	var aerr *apiclient.APIError
	if !errors.As(err, &aerr) || aerr.Status != http.StatusBadRequest || aerr.Detail != "No face detected in the image" {
		t.Fatalf("expected no-face error, got %v", err)
	}
}

func TestEncodeImageDataURL(t *testing.T) {
	t.Parallel()

	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF")
	if got := EncodeImageDataURL(jpeg); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data url %q", got)
	}
}

func TestExpiredAccessRefreshesTransparently(t *testing.T) {
	t.Parallel()

	b, url := startBackend(t)
	a, sess := newTestAPI(t, url)
	ctx := context.Background()
	if _, err := a.Auth.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	before, _ := sess.Tokens(ctx)

	b.ExpireAccess()
	if _, err := a.Users.Me(ctx); err != nil {
		t.Fatalf("Me after expiry: %v", err)
	}
	after, _ := sess.Tokens(ctx)
	if after.Access == before.Access || after.Refresh != before.Refresh {
		t.Fatalf("expected new access and same refresh, before=%+v after=%+v", before, after)
	}
	if b.RefreshCalls() != 1 {
		t.Fatalf("expected one refresh, got %d", b.RefreshCalls())
	}
}

func TestRevokedRefreshInvalidatesSession(t *testing.T) {
	t.Parallel()

	b, url := startBackend(t)
	var invalidated error
	a, sess := newTestAPI(t, url, apiclient.OnSessionInvalidated(func(err error) { invalidated = err }))
	ctx := context.Background()
	if _, err := a.Auth.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	b.ExpireAccess()
	b.RevokeRefresh()

	_, err := a.Users.Me(ctx)
	if !errors.Is(err, apiclient.ErrSessionUnrecoverable) {
		t.Fatalf("expected unrecoverable session, got %v", err)
	}
	if invalidated == nil {
		t.Fatalf("expected invalidation callback")
	}
	if ok, _ := sess.Authenticated(ctx); ok {
		t.Fatalf("expected cleared session")
	}
}
