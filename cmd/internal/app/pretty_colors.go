package app

import (
	"strconv"
	"strings"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func paint(s, code string, color bool) string {
	if !color || s == "" {
		return s
	}
	return code + s + ansiReset
}

// colorizeHTTPMethod covers the verbs the client sends.
func colorizeHTTPMethod(m string, color bool) string {
	switch m {
	case "GET":
		return paint(m, ansiGreen, color)
	case "POST":
		return paint(m, ansiBlue, color)
	case "PUT":
		return paint(m, ansiYellow, color)
	default:
		return paint(m, ansiMagenta, color)
	}
}

func colorizeStatusCode(code int, color bool) string {
	s := strconv.Itoa(code)
	switch {
	case code >= 500:
		return paint(s, ansiRed, color)
	case code >= 400:
		return paint(s, ansiYellow, color)
	case code >= 300:
		return paint(s, ansiCyan, color)
	default:
		return paint(s, ansiGreen, color)
	}
}

func colorizeStatusClass(class string, color bool) string {
	switch {
	case strings.HasPrefix(class, "5"), class == "error":
		return paint(class, ansiRed, color)
	case strings.HasPrefix(class, "4"):
		return paint(class, ansiYellow, color)
	case strings.HasPrefix(class, "3"):
		return paint(class, ansiCyan, color)
	default:
		return paint(class, ansiGreen, color)
	}
}

// colorizeDurationMS renders a millisecond count with a unit; slow calls stand out.
func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 2000:
		return paint(s, ansiRed, color)
	case ms >= 500:
		return paint(s, ansiYellow, color)
	default:
		return paint(s, ansiDim, color)
	}
}

// colorizeResult matches the labels transport logging assigns per response.
func colorizeResult(r string, color bool) string {
	switch r {
	case "success", "redirect":
		return paint(r, ansiGreen, color)
	case "unauthorized", "client_error":
		return paint(r, ansiYellow, color)
	case "server_error", "transport_error":
		return paint(r, ansiRed, color)
	default:
		return r
	}
}
