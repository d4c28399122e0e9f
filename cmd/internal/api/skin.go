package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"glowguard/cmd/internal/apiclient"
	apiv1 "glowguard/shared/contracts/api/v1"
)

const (
	DefaultHistoryLimit = 10
	DefaultProgressDays = 30

	// maxImageBytes bounds images read by AnalyzeImage.
	maxImageBytes = 10 << 20
)

// Skin submits photos for analysis and reads results.
type Skin struct {
	c *apiclient.Client
}

// Analyze submits base64 image data (plain or as a data URL).
func (s *Skin) Analyze(ctx context.Context, imageData string) (apiv1.AnalysisResult, error) {
	imageData = strings.TrimSpace(imageData)
	if imageData == "" {
		return apiv1.AnalysisResult{}, ErrEmptyImage
	}

	var out apiv1.AnalysisResult
	_, err := s.c.Do(ctx, http.MethodPost, apiv1.PathAnalyze, apiv1.AnalyzeRequest{ImageData: imageData}, &out)
	return out, err
}

// AnalyzeImage reads raw image bytes from r, encodes them as a data URL and submits them.
func (s *Skin) AnalyzeImage(ctx context.Context, r io.Reader) (apiv1.AnalysisResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return apiv1.AnalysisResult{}, fmt.Errorf("read image: %w", err)
	}
	if len(raw) == 0 {
		return apiv1.AnalysisResult{}, ErrEmptyImage
	}
	if len(raw) > maxImageBytes {
		return apiv1.AnalysisResult{}, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return s.Analyze(ctx, EncodeImageDataURL(raw))
}

// EncodeImageDataURL returns raw as a "data:<mime>;base64,..." string.
func EncodeImageDataURL(raw []byte) string {
	mime := http.DetectContentType(raw)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// History lists past analyses, newest first. Non-positive limit and negative
// skip fall back to the defaults (10, 0).
func (s *Skin) History(ctx context.Context, limit, skip int) ([]apiv1.AnalysisRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if skip < 0 {
		skip = 0
	}
	q := url.Values{
		"limit": {strconv.Itoa(limit)},
		"skip":  {strconv.Itoa(skip)},
	}

	var out []apiv1.AnalysisRecord
	_, err := s.c.Do(ctx, http.MethodGet, apiv1.PathHistory, nil, &out, apiclient.WithQuery(q))
	return out, err
}

// Progress returns score trends over the last days (default 30).
// A period without analyses yields a Progress with only Message set.
func (s *Skin) Progress(ctx context.Context, days int) (apiv1.Progress, error) {
	if days <= 0 {
		days = DefaultProgressDays
	}
	q := url.Values{"days": {strconv.Itoa(days)}}

	var out apiv1.Progress
	_, err := s.c.Do(ctx, http.MethodGet, apiv1.PathProgress, nil, &out, apiclient.WithQuery(q))
	return out, err
}
