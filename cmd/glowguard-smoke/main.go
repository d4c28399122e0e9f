// Package main provides a CI-friendly smoke test for the GlowGuard API client.
//
// It validates, against a live backend or an in-process fake (-fake):
//   - register (or login) stores a credential pair
//   - authenticated profile read and update
//   - a rejected access credential is refreshed and the call retried once
//   - optional analysis upload, history and progress reads
//   - logout clears local credentials
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"glowguard/cmd/internal/api"
	"glowguard/cmd/internal/apiclient"
	"glowguard/cmd/internal/apitest"
	"glowguard/cmd/internal/session"
	apiv1 "glowguard/shared/contracts/api/v1"

	"github.com/oklog/ulid/v2"
)

const invalidAccess = "smoke.invalid.access"

func main() {
	var (
		baseURL = flag.String("url", apiclient.DefaultBaseURL, "API base URL")
		fake    = flag.Bool("fake", false, "run against an in-process fake backend (ignores -url)")
		user    = flag.String("user", "", "existing username to log in as (default: register a fresh account)")
		pass    = flag.String("pass", "smoke-secret", "password")
		image   = flag.String("image", "", "image file to analyze (skipped when empty, synthesized with -fake)")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if !*fake {
		if err := validateBaseURL(*baseURL); err != nil {
			fatalf("invalid -url: %v", err)
		}
	}

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var backend *apitest.Backend
	if *fake {
		srv, b := apitest.NewServer(apitest.WithLogger(log))
		defer srv.Close()
		*baseURL = srv.URL
		backend = b
	}

	var invalidated error
	sess := session.New(session.NewMemoryStore())
	client, err := apiclient.New(*baseURL, sess,
		apiclient.WithLogger(log),
		apiclient.WithTimeout(*timeout),
		apiclient.WithUserAgent("glowguard-smoke"),
		apiclient.OnSessionInvalidated(func(err error) { invalidated = err }),
	)
	if err != nil {
		fatalf("client: %v", err)
	}
	gg := api.New(client, log)
	root := context.Background()

	username := mustAuthenticate(root, gg, *user, *pass, *timeout)
	if *verbose {
		fmt.Printf("authenticated as %s\n", username)
	}

	mustProfileRoundTrip(root, gg, username, *timeout)
	mustRefreshOnRejectedAccess(root, gg, sess, backend, *timeout)

	img := *image
	if img == "" && *fake {
		img = "-"
	}
	analyzed := img != ""
	if analyzed {
		mustAnalyze(root, gg, img, *timeout)
	}
	mustReadTrends(root, gg, analyzed, *timeout)

	step(root, *timeout, "logout", func(ctx context.Context) error { return gg.Auth.Logout(ctx) })
	if ok, _ := sess.Authenticated(root); ok {
		fatalf("logout: session still holds an access credential")
	}
	if invalidated != nil {
		fatalf("session was invalidated during the run: %v", invalidated)
	}

	fmt.Printf("OK: user=%s url=%s analyzed=%t\n", username, *baseURL, analyzed)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func step(parent context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		fatalf("%s: %v", name, err)
	}
}

func mustAuthenticate(parent context.Context, gg *api.Client, user, pass string, timeout time.Duration) string {
	if user != "" {
		step(parent, timeout, "login", func(ctx context.Context) error {
			_, err := gg.Auth.Login(ctx, user, pass)
			return err
		})
		return user
	}

	// ULIDs are 26 chars; with the prefix the name stays within 3..50.
	username := "smoke_" + strings.ToLower(ulid.Make().String())
	step(parent, timeout, "register", func(ctx context.Context) error {
		_, err := gg.Auth.Register(ctx, apiv1.RegisterRequest{
			Username:     username,
			Email:        username + "@example.com",
			Password:     pass,
			SkinConcerns: []string{},
		})
		return err
	})
	return username
}

func mustProfileRoundTrip(parent context.Context, gg *api.Client, username string, timeout time.Duration) {
	step(parent, timeout, "me", func(ctx context.Context) error {
		me, err := gg.Users.Me(ctx)
		if err != nil {
			return err
		}
		if me.Username != username {
			return fmt.Errorf("username mismatch: got=%q want=%q", me.Username, username)
		}
		return nil
	})

	goal := "smoke " + time.Now().UTC().Format(time.RFC3339)
	step(parent, timeout, "update-profile", func(ctx context.Context) error {
		u, err := gg.Users.UpdateMe(ctx, apiv1.ProfileUpdate{"goals": goal})
		if err != nil {
			return err
		}
		if u.Goals == nil || *u.Goals != goal {
			return fmt.Errorf("goals not updated: %v", u.Goals)
		}
		return nil
	})
}

// mustRefreshOnRejectedAccess makes the backend reject the stored access
// credential and checks that the next call refreshes and succeeds.
// Against a live backend the credential is replaced with garbage; the fake
// can expire it for real.
func mustRefreshOnRejectedAccess(parent context.Context, gg *api.Client, sess *session.Session, fake *apitest.Backend, timeout time.Duration) {
	before, err := sess.Tokens(parent)
	if err != nil {
		fatalf("refresh: read tokens: %v", err)
	}

	if fake != nil {
		fake.ExpireAccess()
	} else if err := sess.ReplaceAccess(parent, invalidAccess); err != nil {
		fatalf("refresh: replace access: %v", err)
	}

	step(parent, timeout, "refresh", func(ctx context.Context) error {
		_, err := gg.Users.Me(ctx)
		return err
	})

	after, err := sess.Tokens(parent)
	if err != nil {
		fatalf("refresh: read tokens: %v", err)
	}
	if after.Access == "" || after.Access == before.Access || after.Access == invalidAccess {
		fatalf("refresh: access credential was not replaced")
	}
	if fake != nil && fake.RefreshCalls() != 1 {
		fatalf("refresh: expected 1 refresh call, got %d", fake.RefreshCalls())
	}
}

func mustAnalyze(parent context.Context, gg *api.Client, path string, timeout time.Duration) {
	var raw []byte
	if path == "-" {
		// JPEG magic followed by filler; the fake only needs bytes.
		raw = append([]byte("\xff\xd8\xff\xe0"), bytes.Repeat([]byte("smoke"), 64)...)
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			fatalf("analyze: %v", err)
		}
		raw = b
	}

	step(parent, timeout, "analyze", func(ctx context.Context) error {
		res, err := gg.Skin.AnalyzeImage(ctx, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		if !res.Success || res.SkinScore <= 0 {
			return fmt.Errorf("unexpected result: success=%t score=%v", res.Success, res.SkinScore)
		}
		return nil
	})
}

func mustReadTrends(parent context.Context, gg *api.Client, analyzed bool, timeout time.Duration) {
	step(parent, timeout, "history", func(ctx context.Context) error {
		hist, err := gg.Skin.History(ctx, 0, 0)
		if err != nil {
			return err
		}
		if analyzed && len(hist) == 0 {
			return errors.New("history is empty after analysis")
		}
		return nil
	})

	step(parent, timeout, "progress", func(ctx context.Context) error {
		p, err := gg.Skin.Progress(ctx, 0)
		if err != nil {
			return err
		}
		if analyzed && p.Empty() {
			return fmt.Errorf("progress is empty after analysis: %q", p.Message)
		}
		if p.Empty() && p.Message == "" {
			return errors.New("empty progress without message")
		}
		return nil
	})
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
