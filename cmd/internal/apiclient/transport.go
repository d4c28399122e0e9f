package apiclient

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// HeaderRequestID carries a per-transmission correlation id.
const HeaderRequestID = "X-Request-ID"

// NewRequestID returns a ULID string (lexicographically sortable, time-ordered).
func NewRequestID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

// loggingTransport stamps request IDs and logs/measures every round trip.
type loggingTransport struct {
	next    http.RoundTripper
	log     *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := t.now()

	if r.Header.Get(HeaderRequestID) == "" {
		r = r.Clone(r.Context())
		r.Header.Set(HeaderRequestID, NewRequestID(start))
	}
	reqID := r.Header.Get(HeaderRequestID)

	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start)

	if err != nil {
		t.metrics.observeRequest(r.Method, 0, elapsed)
		t.log.Warn("api.request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", elapsed.Milliseconds(),
			"result", "transport_error",
			"err", err,
		)
		return nil, err
	}

	t.metrics.observeRequest(r.Method, resp.StatusCode, elapsed)
	level, result := requestLogMeta(resp.StatusCode)
	t.log.Log(r.Context(), level, "api.request",
		"request_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"status_class", statusClass(resp.StatusCode),
		"duration_ms", elapsed.Milliseconds(),
		"result", result,
		"auth", r.Header.Get("Authorization") != "",
	)
	return resp, nil
}

// requestLogMeta maps a response status to a log level and a result label.
// 401 is logged at Info: it is the normal trigger for a refresh.
func requestLogMeta(status int) (slog.Level, string) {
	switch {
	case status >= 500:
		return slog.LevelError, "server_error"
	case status == http.StatusUnauthorized:
		return slog.LevelInfo, "unauthorized"
	case status >= 400:
		return slog.LevelWarn, "client_error"
	case status >= 300:
		return slog.LevelInfo, "redirect"
	default:
		return slog.LevelInfo, "success"
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
