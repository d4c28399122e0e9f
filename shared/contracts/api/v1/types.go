// Package v1 defines the GlowGuard backend HTTP contract as seen by clients.
//
// This package is intentionally stable and dependency-light.
// It is shared between the client, the fake backend used in tests, and the
// smoke tool to keep the wire format authoritative in one place.
package v1

import (
	"encoding/json"
	"errors"
	"strings"
)

// Route paths (wire-stable, relative to the API base URL).
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathLogout   = "/auth/logout"
	PathRefresh  = "/auth/refresh"

	PathMe = "/users/me"

	PathAnalyze  = "/skin-analysis/analyze"
	PathHistory  = "/skin-analysis/history"
	PathProgress = "/skin-analysis/progress"
)

// TokenTypeBearer is the only token type the backend issues.
const TokenTypeBearer = "bearer"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	Age             *int     `json:"age"`
	SkinType        *string  `json:"skin_type"`
	SkinConcerns    []string `json:"skin_concerns"`
	CurrentProducts *string  `json:"current_products"`
	Goals           *string  `json:"goals"`
}

// TokenPair is returned by login and register.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// Validate reports whether both credentials are present.
func (p TokenPair) Validate() error {
	if strings.TrimSpace(p.AccessToken) == "" {
		return errors.New("missing field: access_token")
	}
	if strings.TrimSpace(p.RefreshToken) == "" {
		return errors.New("missing field: refresh_token")
	}
	return nil
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is returned by POST /auth/refresh.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Validate reports whether the refreshed access credential is present.
func (r RefreshResponse) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return errors.New("missing field: access_token")
	}
	return nil
}

// User mirrors the backend user profile.
type User struct {
	ID              string     `json:"_id,omitempty"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Age             *int       `json:"age,omitempty"`
	SkinType        *string    `json:"skin_type,omitempty"`
	SkinConcerns    []string   `json:"skin_concerns,omitempty"`
	CurrentProducts *string    `json:"current_products,omitempty"`
	Goals           *string    `json:"goals,omitempty"`
	CreatedAt       *Timestamp `json:"created_at,omitempty"`
	UpdatedAt       *Timestamp `json:"updated_at,omitempty"`
}

// ProfileUpdate is the body of PUT /users/me. Keys are backend field names.
type ProfileUpdate map[string]any

// AnalyzeRequest is the body of POST /skin-analysis/analyze.
type AnalyzeRequest struct {
	ImageData string `json:"image_data"`
}

// Area is a rectangle in image coordinates.
type Area struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectedIssues summarizes issue counts for one analysis.
type DetectedIssues struct {
	RednessCount   int `json:"redness_count"`
	DarkSpotsCount int `json:"dark_spots_count"`
}

// AnalysisResult is returned by POST /skin-analysis/analyze.
type AnalysisResult struct {
	Success         bool           `json:"success"`
	SkinScore       float64        `json:"skin_score"`
	DetectedIssues  DetectedIssues `json:"detected_issues"`
	RednessAreas    []Area         `json:"redness_areas,omitempty"`
	DarkSpotAreas   []Area         `json:"dark_spot_areas,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	AnnotatedImage  string         `json:"annotated_image"`
	FaceLocation    *Area          `json:"face_location,omitempty"`
}

// AnalysisRecord is one entry of GET /skin-analysis/history.
//
// DetectedIssues is kept raw: stored records and fresh results do not share a shape.
type AnalysisRecord struct {
	ID              string          `json:"_id,omitempty"`
	UserID          string          `json:"user_id"`
	ImageURL        string          `json:"image_url"`
	SkinScore       float64         `json:"skin_score"`
	DetectedIssues  json.RawMessage `json:"detected_issues,omitempty"`
	RednessAreas    []Area          `json:"redness_areas,omitempty"`
	DarkSpotAreas   []Area          `json:"dark_spot_areas,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	AnalysisDate    Timestamp       `json:"analysis_date"`
}

// Progress is returned by GET /skin-analysis/progress.
//
// When the period holds no analyses the backend returns only Message.
type Progress struct {
	Dates          []string  `json:"dates,omitempty"`
	SkinScores     []float64 `json:"skin_scores,omitempty"`
	RednessCounts  []int     `json:"redness_counts,omitempty"`
	DarkSpotCounts []int     `json:"dark_spot_counts,omitempty"`
	AverageScore   float64   `json:"average_score,omitempty"`
	Improvement    float64   `json:"improvement,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Empty reports whether the backend had no data for the requested period.
func (p Progress) Empty() bool {
	return len(p.Dates) == 0
}

// ErrorBody is the backend error envelope. Detail is either a string or a
// list of validation problems.
type ErrorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// ValidationProblem is one element of a list-shaped Detail.
type ValidationProblem struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// DetailText flattens Detail into a single human-readable string.
func (b ErrorBody) DetailText() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var problems []ValidationProblem
	if err := json.Unmarshal(b.Detail, &problems); err == nil {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			if m := strings.TrimSpace(p.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
