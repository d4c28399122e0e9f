package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders records for a terminal. Request records lead with
// their call summary:
//
//	12:04:05.120 INFO  api.request GET /users/me 401 12ms rid=01J… auth=bearer result=unauthorized
//
// Credential-bearing attributes are redacted.
type prettyHandler struct {
	w      io.Writer
	level  slog.Leveler
	source bool
	color  bool
	prefix string
	attrs  []field
	mu     *sync.Mutex
}

// field is a flattened attribute; key carries its group prefix.
type field struct {
	key string
	val slog.Value
}

// summaryKeys lead a request line, in this order and without their keys.
var summaryKeys = []string{"method", "path", "status", "duration_ms"}

// redactedKeys never reach the output, whatever group they sit in.
var redactedKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"password":      true,
	"passphrase":    true,
	"authorization": true,
	"image_data":    true,
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{w: w, level: slog.LevelInfo, color: color, mu: &sync.Mutex{}}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]field{}, h.attrs...)
	for _, a := range attrs {
		cp.attrs = flatten(cp.attrs, h.prefix, a)
	}
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	fields := append([]field{}, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = flatten(fields, h.prefix, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(paint(ts.Format("15:04:05.000"), ansiDim, h.color))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level, h.color))
	b.WriteByte(' ')
	b.WriteString(paint(r.Message, ansiBright, h.color))

	used := make([]bool, len(fields))
	hasStatus := false
	for _, k := range summaryKeys {
		for i, f := range fields {
			if used[i] || f.key != k {
				continue
			}
			used[i] = true
			hasStatus = hasStatus || k == "status"
			b.WriteByte(' ')
			b.WriteString(h.render(f))
			break
		}
	}

	for i, f := range fields {
		if used[i] || (hasStatus && f.key == "status_class") {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(displayKey(f.key))
		b.WriteByte('=')
		b.WriteString(h.render(f))
	}

	if h.source && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			b.WriteString(" src=")
			b.WriteString(paint(fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line), ansiDim, h.color))
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func flatten(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if key != "" {
			inner = prefix + key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = flatten(dst, inner, ga)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	return append(dst, field{key: prefix + key, val: a.Value})
}

func leafKey(k string) string {
	if i := strings.LastIndexByte(k, '.'); i >= 0 {
		return k[i+1:]
	}
	return k
}

func displayKey(k string) string {
	switch k {
	case "request_id":
		return "rid"
	case "status_class":
		return "class"
	default:
		return k
	}
}

func (h *prettyHandler) render(f field) string {
	leaf := leafKey(f.key)
	if redactedKeys[strings.ToLower(leaf)] {
		return paint("[redacted]", ansiMagenta, h.color)
	}
	v := f.val

	switch leaf {
	case "method":
		return colorizeHTTPMethod(strings.ToUpper(v.String()), h.color)
	case "path":
		return paint(v.String(), ansiCyan, h.color)
	case "status":
		if n, ok := valueToInt64(v); ok {
			return colorizeStatusCode(int(n), h.color)
		}
	case "status_class":
		return colorizeStatusClass(v.String(), h.color)
	case "duration_ms":
		if n, ok := valueToInt64(v); ok {
			return colorizeDurationMS(n, h.color)
		}
	case "result":
		return colorizeResult(v.String(), h.color)
	case "auth":
		if v.Kind() == slog.KindBool {
			if v.Bool() {
				return paint("bearer", ansiGreen, h.color)
			}
			return paint("anon", ansiDim, h.color)
		}
	case "request_id", "access_fp", "refresh_fp":
		return paint(v.String(), ansiDim, h.color)
	case "reason":
		return paint(v.String(), ansiYellow, h.color)
	case "err":
		return paint(quoteIfNeeded(v.String()), ansiRed, h.color)
	}
	return quoteIfNeeded(valueString(v))
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// levelTag pads every level to the same width so messages line up.
func levelTag(level slog.Level, color bool) string {
	switch {
	case level >= slog.LevelError:
		return paint("ERROR", ansiRed, color)
	case level >= slog.LevelWarn:
		return paint("WARN ", ansiYellow, color)
	case level < slog.LevelInfo:
		return paint("DEBUG", ansiMagenta, color)
	default:
		return paint("INFO ", ansiBlue, color)
	}
}
