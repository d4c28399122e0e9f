package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"glowguard/cmd/internal/api"
	"glowguard/cmd/internal/apiclient"
	"glowguard/cmd/internal/onboarding"
	"glowguard/cmd/security/token"
	apiv1 "glowguard/shared/contracts/api/v1"

	"github.com/prometheus/common/expfmt"
)

const usage = `usage: glowguard [-api URL] [-v] [-metrics] <command> [flags]

commands:
  login            -u USER -p PASS
  register         -u USER -e EMAIL -p PASS [-age N] [-skin-type T] [-concern C]... [-products S] [-goals S]
  logout
  status
  me
  update-profile   -f KEY=VALUE...
  analyze          -image PATH
  history          [-limit N] [-skip N]
  progress         [-days N]
`

// command runs against a wired App and returns a value to print as JSON.
type command func(ctx context.Context, a *App, args []string) (any, error)

var commands = map[string]command{
	"login":          cmdLogin,
	"register":       cmdRegister,
	"logout":         cmdLogout,
	"status":         cmdStatus,
	"me":             cmdMe,
	"update-profile": cmdUpdateProfile,
	"analyze":        cmdAnalyze,
	"history":        cmdHistory,
	"progress":       cmdProgress,
}

// Main parses global flags, dispatches one command and prints its result.
// Results go to stdout as JSON; logs and errors go to stderr.
func Main(ctx context.Context, cfg Config, args []string, stdout, stderr io.Writer, opts ...Option) int {
	fs := flag.NewFlagSet("glowguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usage) }
	apiURL := fs.String("api", cfg.APIBaseURL, "API base URL")
	verbose := fs.Bool("v", false, "debug logging")
	dumpMetrics := fs.Bool("metrics", false, "print client metrics to stderr on exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	run, ok := commands[rest[0]]
	if !ok {
		writeLine(stderr, "glowguard: unknown command "+rest[0])
		fs.Usage()
		return 2
	}

	cfg.APIBaseURL = *apiURL
	if *verbose {
		cfg.LogLevel = "debug"
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, stderr)

	a, err := New(ctx, cfg, log, opts...)
	if err != nil {
		writeLine(stderr, "glowguard: "+err.Error())
		return 1
	}
	defer func() {
		if *dumpMetrics {
			writeMetrics(stderr, a)
		}
		if err := a.Close(); err != nil {
			log.Warn("app.close.fail", "err", err)
		}
	}()

	out, err := run(ctx, a, rest[1:])
	if err != nil {
		writeLine(stderr, "glowguard: "+UserMessage(err))
		return 1
	}
	if out != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			writeLine(stderr, "glowguard: "+err.Error())
			return 1
		}
	}
	return 0
}

// UserMessage maps an error to the text shown to the user.
func UserMessage(err error) string {
	var fe onboarding.FieldError
	var ae *apiclient.APIError
	var ne net.Error

	switch {
	case errors.As(err, &fe):
		return fe.Error()
	case errors.Is(err, api.ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, apiclient.ErrSessionUnrecoverable):
		return "session expired, please log in again"
	case errors.Is(err, api.ErrInvalidResponse):
		return "login failed: invalid response from server"
	case errors.As(err, &ae):
		if ae.Detail != "" {
			return ae.Detail
		}
		return fmt.Sprintf("request failed (%d %s)", ae.Status, strings.ToLower(http.StatusText(ae.Status)))
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne):
		return "could not reach the server, please try again"
	default:
		return err.Error()
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q", fs.Name(), fs.Arg(0))
	}
	return nil
}

// multiFlag collects repeated string flags.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func cmdLogin(ctx context.Context, a *App, args []string) (any, error) {
	fs := newFlags("login")
	user := fs.String("u", "", "username")
	pass := fs.String("p", os.Getenv("GLOWGUARD_PASSWORD"), "password")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if err := onboarding.ValidateLogin(*user, *pass); err != nil {
		return nil, err
	}

	if _, err := a.API().Auth.Login(ctx, strings.TrimSpace(*user), *pass); err != nil {
		return nil, err
	}
	return map[string]any{"authenticated": true, "username": strings.TrimSpace(*user)}, nil
}

func cmdRegister(ctx context.Context, a *App, args []string) (any, error) {
	fs := newFlags("register")
	user := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	pass := fs.String("p", os.Getenv("GLOWGUARD_PASSWORD"), "password")
	age := fs.String("age", "", "age")
	skinType := fs.String("skin-type", "", "oily|dry|combination|sensitive|normal")
	products := fs.String("products", "", "current products")
	goals := fs.String("goals", "", "skincare goals")
	var concerns multiFlag
	fs.Var(&concerns, "concern", "skin concern (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	flow := onboarding.NewFlow()
	flow.SetBasics(*user, *email, *pass, *age)
	flow.SetSkinType(*skinType)
	for _, c := range concerns {
		if err := flow.ToggleConcern(c); err != nil {
			return nil, err
		}
	}
	flow.SetRoutine(*products, *goals)
	for !flow.Complete() {
		if err := flow.Next(); err != nil {
			return nil, err
		}
	}
	req, err := flow.RegisterRequest()
	if err != nil {
		return nil, err
	}

	if _, err := a.API().Auth.Register(ctx, req); err != nil {
		return nil, err
	}
	return map[string]any{"authenticated": true, "username": req.Username}, nil
}

func cmdLogout(ctx context.Context, a *App, args []string) (any, error) {
	if err := parseFlags(newFlags("logout"), args); err != nil {
		return nil, err
	}
	if err := a.API().Auth.Logout(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"authenticated": false}, nil
}

// statusView describes stored credentials without revealing them.
type statusView struct {
	Authenticated bool       `json:"authenticated"`
	Store         string     `json:"store"`
	AccessFP      string     `json:"access_fingerprint,omitempty"`
	RefreshFP     string     `json:"refresh_fingerprint,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	ExpiresAt     *time.Time `json:"access_expires_at,omitempty"`
	Expired       *bool      `json:"access_expired,omitempty"`
	Remaining     string     `json:"access_remaining,omitempty"`
}

func cmdStatus(ctx context.Context, a *App, args []string) (any, error) {
	if err := parseFlags(newFlags("status"), args); err != nil {
		return nil, err
	}
	toks, err := a.Session().Tokens(ctx)
	if err != nil {
		return nil, err
	}

	v := statusView{
		Authenticated: toks.Access != "",
		Store:         string(a.cfg.Store.Backend),
		AccessFP:      token.Fingerprint(toks.Access),
		RefreshFP:     token.Fingerprint(toks.Refresh),
	}
	if info, err := token.InspectAccess(toks.Access); err == nil {
		now := time.Now()
		v.Subject = info.Subject
		if !info.ExpiresAt.IsZero() {
			exp := info.ExpiresAt.UTC()
			expired := info.Expired(now, 0)
			v.ExpiresAt = &exp
			v.Expired = &expired
			v.Remaining = info.Remaining(now).Round(time.Second).String()
		}
	}
	return v, nil
}

func cmdMe(ctx context.Context, a *App, args []string) (any, error) {
	if err := parseFlags(newFlags("me"), args); err != nil {
		return nil, err
	}
	return a.API().Users.Me(ctx)
}

func cmdUpdateProfile(ctx context.Context, a *App, args []string) (any, error) {
	fs := newFlags("update-profile")
	var fields multiFlag
	fs.Var(&fields, "f", "KEY=VALUE (repeatable); VALUE is parsed as JSON when possible")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	upd, err := parseProfileFields(fields)
	if err != nil {
		return nil, err
	}
	return a.API().Users.UpdateMe(ctx, upd)
}

// parseProfileFields turns KEY=VALUE pairs into an update. VALUE is decoded
// as JSON when it is valid JSON (numbers, lists, null) and kept as a string otherwise.
func parseProfileFields(fields []string) (apiv1.ProfileUpdate, error) {
	upd := make(apiv1.ProfileUpdate, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("update-profile: expected KEY=VALUE, got %q", f)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			upd[k] = decoded
			continue
		}
		upd[k] = v
	}
	return upd, nil
}

func cmdAnalyze(ctx context.Context, a *App, args []string) (any, error) {
	fs := newFlags("analyze")
	path := fs.String("image", "", "image file")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(*path) == "" {
		return nil, errors.New("analyze: -image is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := a.API().Skin.AnalyzeImage(ctx, f)
	if err != nil {
		return nil, err
	}
	// The annotated image is a large data URL; it is not useful on a terminal.
	res.AnnotatedImage = ""
	return res, nil
}

func cmdHistory(ctx context.Context, a *App, args []string) (any, error) {
	fs := newFlags("history")
	limit := fs.Int("limit", api.DefaultHistoryLimit, "max records")
	skip := fs.Int("skip", 0, "records to skip")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	return a.API().Skin.History(ctx, *limit, *skip)
}

func cmdProgress(ctx context.Context, a *App, args []string) (any, error) {
	fs := newFlags("progress")
	days := fs.Int("days", api.DefaultProgressDays, "period in days")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	return a.API().Skin.Progress(ctx, *days)
}

func writeMetrics(w io.Writer, a *App) {
	mfs, err := a.Registry().Gather()
	if err != nil {
		return
	}
	for _, mf := range mfs {
		_, _ = expfmt.MetricFamilyToText(w, mf)
	}
}
