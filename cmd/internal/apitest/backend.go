package apitest

import (
	"crypto/rand"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	apiv1 "glowguard/shared/contracts/api/v1"

	"github.com/gorilla/mux"
)

// Backend is an in-memory GlowGuard backend.
type Backend struct {
	log       *slog.Logger
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	maxBody   int64
	router    *mux.Router

	mu            sync.Mutex
	users         map[string]*user // by username
	refresh       map[string]string
	analyses      map[string][]apiv1.AnalysisRecord // by user id
	epoch         int
	refreshCalls  int
	refreshStatus int
}

// Option configures a Backend.
type Option func(*Backend)

// WithAccessTTL sets the lifetime of issued access credentials.
func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.accessTTL = d
		}
	}
}

// WithLogger sets the backend logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Backend) {
		if log != nil {
			b.log = log
		}
	}
}

// WithClock overrides the backend's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// New builds a Backend with a random signing secret.
func New(opts ...Option) *Backend {
	secret := make([]byte, 32)
	_, _ = io.ReadFull(rand.Reader, secret)

	b := &Backend{
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		secret:    secret,
		accessTTL: 30 * time.Minute,
		now:       time.Now,
		maxBody:   16 << 20,
		users:     make(map[string]*user),
		refresh:   make(map[string]string),
		analyses:  make(map[string][]apiv1.AnalysisRecord),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.router = b.routes()
	return b
}

// NewServer starts b on a loopback httptest.Server. Callers must Close it.
func NewServer(opts ...Option) (*httptest.Server, *Backend) {
	b := New(opts...)
	return httptest.NewServer(b), b
}

func (b *Backend) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(apiv1.PathLogin, b.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(apiv1.PathRegister, b.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(apiv1.PathRefresh, b.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc(apiv1.PathLogout, b.handleLogout).Methods(http.MethodPost)

	r.HandleFunc(apiv1.PathMe, b.handleMe).Methods(http.MethodGet)
	r.HandleFunc(apiv1.PathMe, b.handleUpdateMe).Methods(http.MethodPut)

	r.HandleFunc(apiv1.PathAnalyze, b.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc(apiv1.PathHistory, b.handleHistory).Methods(http.MethodGet)
	r.HandleFunc(apiv1.PathProgress, b.handleProgress).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// ExpireAccess invalidates every access credential issued so far.
// Refresh credentials stay valid.
func (b *Backend) ExpireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch++
}

// RevokeRefresh invalidates every refresh credential issued so far.
func (b *Backend) RevokeRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]string)
}

// FailRefresh makes /auth/refresh answer status (0 restores normal behavior).
func (b *Backend) FailRefresh(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshStatus = status
}

// RefreshCalls returns how many times /auth/refresh was hit.
func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// AnalysisCount returns the number of stored analyses for username.
func (b *Backend) AnalysisCount(username string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[username]
	if !ok {
		return 0
	}
	return len(b.analyses[u.rec.ID])
}
