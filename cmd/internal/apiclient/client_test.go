package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"glowguard/cmd/internal/session"
	apiv1 "glowguard/shared/contracts/api/v1"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// backend is a scripted server: /protected accepts only the "valid" bearer,
// /auth/refresh exchanges "R1" for newAccess.
type backend struct {
	mu         sync.Mutex
	valid      string
	newAccess  string
	refreshFn  func(w http.ResponseWriter, r *http.Request)
	authSeen   []string
	refreshHit int32
	refreshReq []string
	ids        []string
}

func (b *backend) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.authSeen = append(b.authSeen, r.Header.Get("Authorization"))
		b.ids = append(b.ids, r.Header.Get(HeaderRequestID))
		valid := b.valid
		b.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"q":"`+r.URL.Query().Get("q")+`"}`)
	})
	mux.HandleFunc(apiv1.PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshHit, 1)

		b.mu.Lock()
		b.refreshReq = append(b.refreshReq, r.Header.Get("Authorization"))
		b.ids = append(b.ids, r.Header.Get(HeaderRequestID))
		b.mu.Unlock()

		if b.refreshFn != nil {
			b.refreshFn(w, r)
			return
		}

		var in apiv1.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken != "R1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid refresh token"}`)
			return
		}
		b.mu.Lock()
		b.valid = b.newAccess
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(apiv1.RefreshResponse{AccessToken: b.newAccess, TokenType: "bearer"})
	})
	return mux
}

// snapshot returns copies of what the backend observed so far.
func (b *backend) snapshot() (auth, refreshAuth, ids []string, refreshHit int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authSeen...),
		append([]string(nil), b.refreshReq...),
		append([]string(nil), b.ids...),
		atomic.LoadInt32(&b.refreshHit)
}

func newSession(t *testing.T, access, refresh string) *session.Session {
	t.Helper()
	st := session.NewMemoryStore()
	vals := map[session.Slot]string{}
	if access != "" {
		vals[session.SlotAccess] = access
	}
	if refresh != "" {
		vals[session.SlotRefresh] = refresh
	}
	if err := st.Set(context.Background(), vals); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session.New(st)
}

func newTestClient(t *testing.T, url string, sess *session.Session, opts ...Option) *Client {
	t.Helper()
	c, err := New(url, sess, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

type okBody struct {
	OK bool   `json:"ok"`
	Q  string `json:"q"`
}

func TestDo_AttachesBearer(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A1"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newSession(t, "A1", "R1"))

	var out okBody
	resp, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, &out)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !out.OK || resp.Status != http.StatusOK || resp.Retried {
		t.Fatalf("unexpected response: status=%d retried=%v out=%+v", resp.Status, resp.Retried, out)
	}
	auth, _, _, hits := b.snapshot()
	if len(auth) != 1 || auth[0] != "Bearer A1" {
		t.Fatalf("expected single request with Bearer A1, got %q", auth)
	}
	if hits != 0 {
		t.Fatalf("expected no refresh, got %d", hits)
	}
}

func TestDo_NoAccessTokenOmitsHeader(t *testing.T) {
	t.Parallel()

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		if present {
			seen = append(seen, r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newSession(t, "", ""))
	if _, err := c.Do(context.Background(), http.MethodPost, apiv1.PathLogin, apiv1.LoginRequest{Username: "u", Password: "p"}, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected no Authorization header, got %q", seen)
	}
}

func TestDo_RefreshAndRetryOnce(t *testing.T) {
	t.Parallel()

	// Stored A1/R1, backend only accepts A2 and refreshes R1 -> A2.
	b := &backend{valid: "A2", newAccess: "A2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	sess := newSession(t, "A1", "R1")
	invalidated := 0
	c := newTestClient(t, srv.URL, sess, OnSessionInvalidated(func(error) { invalidated++ }))

	var out okBody
	resp, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, &out)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !out.OK || !resp.Retried {
		t.Fatalf("expected retried success, got retried=%v out=%+v", resp.Retried, out)
	}

	auth, refreshAuth, _, hits := b.snapshot()
	if want := []string{"Bearer A1", "Bearer A2"}; strings.Join(auth, ",") != strings.Join(want, ",") {
		t.Fatalf("auth sequence: got %q want %q", auth, want)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one refresh, got %d", hits)
	}
	if refreshAuth[0] != "" {
		t.Fatalf("refresh call must not carry a bearer, got %q", refreshAuth[0])
	}

	toks, _ := sess.Tokens(context.Background())
	if toks.Access != "A2" || toks.Refresh != "R1" {
		t.Fatalf("session after refresh: %+v", toks)
	}
	if invalidated != 0 {
		t.Fatalf("invalidation callback must not fire on success")
	}
}

func TestDo_NoRefreshTokenMakesNoNetworkCall(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "never"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	sess := newSession(t, "A1", "")
	invalidated := 0
	c := newTestClient(t, srv.URL, sess, OnSessionInvalidated(func(error) { invalidated++ }))

	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(err, ErrNoRefreshToken) || !errors.Is(err, ErrSessionUnrecoverable) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	auth, _, _, hits := b.snapshot()
	if hits != 0 {
		t.Fatalf("expected no refresh call, got %d", hits)
	}
	if len(auth) != 1 {
		t.Fatalf("expected no retry, got %d requests", len(auth))
	}

	// Storage is left as it was.
	if a, _ := sess.AccessToken(context.Background()); a != "A1" {
		t.Fatalf("expected access token untouched, got %q", a)
	}
	if invalidated != 0 {
		t.Fatalf("expected no invalidation callback, got %d", invalidated)
	}
}

func TestDo_RefreshFailureClearsSessionAndNotifies(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A2"}
	b.refreshFn = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Invalid refresh token"}`)
	}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	sess := newSession(t, "A1", "R1")
	var notified []error
	c := newTestClient(t, srv.URL, sess, OnSessionInvalidated(func(err error) { notified = append(notified, err) }))

	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)

	var rerr *RefreshError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RefreshError, got %T %v", err, err)
	}
	if rerr.Status != http.StatusUnauthorized || !errors.Is(err, ErrSessionUnrecoverable) {
		t.Fatalf("unexpected refresh error: %+v", rerr)
	}

	// The surfaced error is the refresh failure, not the original 401.
	var aerr *APIError
	if !errors.As(err, &aerr) || aerr.Path != apiv1.PathRefresh || aerr.Detail != "Invalid refresh token" {
		t.Fatalf("expected wrapped refresh APIError, got %+v", aerr)
	}

	toks, _ := sess.Tokens(context.Background())
	if toks != (session.Tokens{}) {
		t.Fatalf("expected cleared session, got %+v", toks)
	}
	if len(notified) != 1 || notified[0] != err {
		t.Fatalf("expected one notification with the returned error, got %v", notified)
	}
	if auth, _, _, _ := b.snapshot(); len(auth) != 1 {
		t.Fatalf("original request must not be re-sent, got %d", len(auth))
	}
}

func TestDo_RefreshResponseWithoutAccessTokenFails(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A2"}
	b.refreshFn = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"token_type":"bearer"}`)
	}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	sess := newSession(t, "A1", "R1")
	c := newTestClient(t, srv.URL, sess)

	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(err, ErrInvalidRefreshResponse) || !errors.Is(err, ErrSessionUnrecoverable) {
		t.Fatalf("expected invalid refresh response, got %v", err)
	}
	if ok, _ := sess.Authenticated(context.Background()); ok {
		t.Fatalf("expected cleared session")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDo_RefreshTransportErrorClearsSession(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == apiv1.PathRefresh {
			return nil, boom
		}
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{"detail":"expired"}`)),
			Request:    r,
		}, nil
	})

	sess := newSession(t, "A1", "R1")
	notified := 0
	c := newTestClient(t, "http://backend.test", sess,
		WithHTTPClient(&http.Client{Transport: rt}),
		OnSessionInvalidated(func(error) { notified++ }),
	)

	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	var rerr *RefreshError
	if !errors.As(err, &rerr) || rerr.Status != 0 || !errors.Is(err, boom) {
		t.Fatalf("expected transport RefreshError, got %v", err)
	}
	if ok, _ := sess.Authenticated(context.Background()); ok || notified != 1 {
		t.Fatalf("expected cleared session and one notification, ok=%v notified=%d", ok, notified)
	}
}

func TestDo_SecondUnauthorizedIsPropagated(t *testing.T) {
	t.Parallel()

	// Refresh succeeds but the backend still rejects the new credential.
	b := &backend{valid: "never", newAccess: "A2"}
	b.refreshFn = func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(apiv1.RefreshResponse{AccessToken: "A2"})
	}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	sess := newSession(t, "A1", "R1")
	c := newTestClient(t, srv.URL, sess)

	resp, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	var aerr *APIError
	if !errors.As(err, &aerr) || aerr.Status != http.StatusUnauthorized || aerr.Path != "/protected" {
		t.Fatalf("expected 401 APIError for /protected, got %v", err)
	}
	if aerr.Detail != "Could not validate credentials" {
		t.Fatalf("detail mismatch: %q", aerr.Detail)
	}
	if resp == nil || !resp.Retried {
		t.Fatalf("expected the retried response to be returned")
	}
	if auth, _, _, hits := b.snapshot(); hits != 1 || len(auth) != 2 {
		t.Fatalf("expected one refresh and two sends, got refresh=%d sends=%d", hits, len(auth))
	}
	if errors.Is(err, ErrSessionUnrecoverable) {
		t.Fatalf("a plain 401 must not be reported as unrecoverable")
	}
	if a, _ := sess.AccessToken(context.Background()); a != "A2" {
		t.Fatalf("expected refreshed token kept, got %q", a)
	}
}

func TestDo_OtherErrorsReturnedUnchanged(t *testing.T) {
	t.Parallel()

	var refreshHit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiv1.PathRefresh {
			atomic.AddInt32(&refreshHit, 1)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":[{"loc":["body","age"],"msg":"ensure this value is greater than or equal to 13","type":"value_error"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newSession(t, "A1", "R1"))
	_, err := c.Do(context.Background(), http.MethodPut, apiv1.PathMe, map[string]any{"age": 9}, nil)

	if StatusCode(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	var aerr *APIError
	_ = errors.As(err, &aerr)
	if !strings.Contains(aerr.Detail, "greater than or equal to 13") || len(aerr.Body) == 0 {
		t.Fatalf("unexpected APIError: %+v", aerr)
	}
	if atomic.LoadInt32(&refreshHit) != 0 {
		t.Fatalf("non-401 must not refresh")
	}
}

func TestDo_RetriesZeroDisablesRefresh(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A2", newAccess: "A2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newSession(t, "A1", "R1"), WithRetries(0))
	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	if _, _, _, hits := b.snapshot(); !IsUnauthorized(err) || hits != 0 {
		t.Fatalf("expected plain 401 without refresh, err=%v refresh=%d", err, hits)
	}
}

func TestDo_RetriesAreCappedAtOne(t *testing.T) {
	t.Parallel()

	// Every send is rejected; a larger budget must not buy extra refreshes.
	b := &backend{valid: "never", newAccess: "A2"}
	b.refreshFn = func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(apiv1.RefreshResponse{AccessToken: ulid.Make().String()})
	}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newSession(t, "A1", "R1"), WithRetries(3))
	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401 after the single retry, got %v", err)
	}
	if auth, _, _, hits := b.snapshot(); hits != 1 || len(auth) != 2 {
		t.Fatalf("expected one refresh and two sends, got refresh=%d sends=%d", hits, len(auth))
	}
}

func TestDo_WithoutRefreshSurfaces401(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A2", newAccess: "A2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	sess := newSession(t, "A1", "R1")
	c := newTestClient(t, srv.URL, sess)
	_, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil, WithoutRefresh())
	if _, _, _, hits := b.snapshot(); !IsUnauthorized(err) || hits != 0 {
		t.Fatalf("expected plain 401 without refresh, err=%v refresh=%d", err, hits)
	}
	if a, _ := sess.AccessToken(context.Background()); a != "A1" {
		t.Fatalf("session must be untouched, got %q", a)
	}
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	t.Parallel()

	const n = 8
	var unauthorized int32
	allRejected := make(chan struct{})
	var once sync.Once

	var mu sync.Mutex
	valid := "A2"
	var refreshHit int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiv1.PathRefresh:
			atomic.AddInt32(&refreshHit, 1)
			select {
			case <-allRejected:
			case <-time.After(5 * time.Second):
			}
			_ = json.NewEncoder(w).Encode(apiv1.RefreshResponse{AccessToken: "A2"})
		default:
			mu.Lock()
			ok := r.Header.Get("Authorization") == "Bearer "+valid
			mu.Unlock()
			if ok {
				_, _ = io.WriteString(w, `{"ok":true}`)
				return
			}
			if atomic.AddInt32(&unauthorized, 1) == n {
				once.Do(func() { close(allRejected) })
			}
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	sess := newSession(t, "A1", "R1")
	c := newTestClient(t, srv.URL, sess)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out okBody
			if _, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, &out); err != nil {
				errs <- err
				return
			}
			if !out.OK {
				errs <- errors.New("missing ok body")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent Do: %v", err)
	}
	if got := atomic.LoadInt32(&refreshHit); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if a, _ := sess.AccessToken(context.Background()); a != "A2" {
		t.Fatalf("expected A2 stored, got %q", a)
	}
}

func TestDo_StaleCredentialSkipsRefresh(t *testing.T) {
	t.Parallel()

	// The first send carries A1; by the time the 401 arrives another
	// caller has already stored A2.
	var refreshHit int32
	var sess *session.Session
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiv1.PathRefresh {
			atomic.AddInt32(&refreshHit, 1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Authorization") == "Bearer A2" {
			_, _ = io.WriteString(w, `{"ok":true}`)
			return
		}
		_ = sess.ReplaceAccess(context.Background(), "A2")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sess = newSession(t, "A1", "R1")
	c := newTestClient(t, srv.URL, sess)

	var out okBody
	if _, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if hits := atomic.LoadInt32(&refreshHit); !out.OK || hits != 0 {
		t.Fatalf("expected retry with A2 and no refresh, ok=%v refresh=%d", out.OK, hits)
	}
}

func TestDo_RequestIDsAreUniqueULIDs(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A2", newAccess: "A2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newSession(t, "A1", "R1"))
	for i := 0; i < 3; i++ {
		if _, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil); err != nil {
			t.Fatalf("Do #%d: %v", i, err)
		}
	}

	// 1 rejected send + 1 refresh + 3 accepted sends.
	_, _, ids, _ := b.snapshot()
	if len(ids) != 5 {
		t.Fatalf("expected 5 transmissions, got %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if _, err := ulid.Parse(id); err != nil {
			t.Fatalf("request id %q is not a ULID: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestDo_WithQuery(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A1"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", newSession(t, "A1", "R1"))
	var out okBody
	if _, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, &out, WithQuery(url.Values{"q": {"a b"}})); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out.Q != "a b" {
		t.Fatalf("query not delivered: %+v", out)
	}
}

func TestMetrics_CountRefreshOutcomes(t *testing.T) {
	t.Parallel()

	b := &backend{valid: "A2", newAccess: "A2"}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()

	m := NewMetrics(nil)
	c := newTestClient(t, srv.URL, newSession(t, "A1", "R1"), WithMetrics(m))
	if _, err := c.Do(context.Background(), http.MethodGet, "/protected", nil, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}

	if got := testutil.ToFloat64(m.Refresh.WithLabelValues(refreshSuccess)); got != 1 {
		t.Fatalf("refresh success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Retries); got != 1 {
		t.Fatalf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "4xx")); got != 1 {
		t.Fatalf("GET 4xx = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodPost, "2xx")); got != 1 {
		t.Fatalf("POST 2xx = %v, want 1", got)
	}
}

func TestNew_Config(t *testing.T) {
	t.Parallel()

	sess := newSession(t, "", "")
	if _, err := New("http://x", nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil session: expected ErrConfig, got %v", err)
	}
	if _, err := New("not a url", sess); !errors.Is(err, ErrConfig) {
		t.Fatalf("bad url: expected ErrConfig, got %v", err)
	}
	c, err := New("", sess)
	if err != nil {
		t.Fatalf("New default: %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("default base url = %q", c.BaseURL())
	}
}
