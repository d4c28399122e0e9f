package apitest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	apiv1 "glowguard/shared/contracts/api/v1"

	"github.com/oklog/ulid/v2"
)

// minImageBytes is the size below which the fake finds no face.
const minImageBytes = 64

func (b *Backend) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}

	var req apiv1.AnalyzeRequest
	if err := decodeJSON(w, r, b.maxBody, &req); err != nil {
		writeValidation(w, validationItem{Loc: []string{"body"}, Msg: "invalid request body", Type: "value_error.jsondecode"})
		return
	}

	data := req.ImageData
	if _, after, found := strings.Cut(data, ","); found {
		data = after
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil || len(img) == 0 {
		writeDetail(w, http.StatusBadRequest, "Invalid image data")
		return
	}
	if len(img) < minImageBytes {
		writeDetail(w, http.StatusBadRequest, "No face detected in the image")
		return
	}

	res := fakeAnalysis(img)
	issues, _ := json.Marshal(res.DetectedIssues)

	b.mu.Lock()
	b.analyses[u.rec.ID] = append(b.analyses[u.rec.ID], apiv1.AnalysisRecord{
		ID:              ulid.Make().String(),
		UserID:          u.rec.ID,
		ImageURL:        res.AnnotatedImage,
		SkinScore:       res.SkinScore,
		DetectedIssues:  issues,
		RednessAreas:    res.RednessAreas,
		DarkSpotAreas:   res.DarkSpotAreas,
		Recommendations: res.Recommendations,
		AnalysisDate:    apiv1.Timestamp{Time: b.now().UTC()},
	})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

// fakeAnalysis derives a stable result from the image bytes.
func fakeAnalysis(img []byte) apiv1.AnalysisResult {
	sum := sha256.Sum256(img)

	score := 55 + float64(sum[0]%45) + float64(sum[1]%10)/10
	redness := make([]apiv1.Area, int(sum[2]%4))
	for i := range redness {
		redness[i] = apiv1.Area{X: int(sum[3+i]), Y: int(sum[7+i]), Width: 12, Height: 12}
	}
	spots := make([]apiv1.Area, int(sum[11]%4))
	for i := range spots {
		spots[i] = apiv1.Area{X: int(sum[12+i]), Y: int(sum[16+i]), Width: 6, Height: 6}
	}

	var recs []string
	if len(redness) > 0 {
		recs = append(recs, "Use a gentle cleanser and moisturizer suitable for sensitive skin")
	}
	if len(spots) > 0 {
		recs = append(recs, "Use a daily SPF to prevent dark spots from worsening")
	}
	switch {
	case score >= 90:
		recs = append(recs, "Your skin looks great! Maintain your current routine")
	case score >= 70:
		recs = append(recs, "Focus on consistency with your skincare routine")
	default:
		recs = append(recs, "Consider consulting a dermatologist for personalized advice")
	}

	return apiv1.AnalysisResult{
		Success:   true,
		SkinScore: math.Round(score*10) / 10,
		DetectedIssues: apiv1.DetectedIssues{
			RednessCount:   len(redness),
			DarkSpotsCount: len(spots),
		},
		RednessAreas:    redness,
		DarkSpotAreas:   spots,
		Recommendations: recs,
		AnnotatedImage:  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
		FaceLocation:    &apiv1.Area{X: 0, Y: 0, Width: 256, Height: 256},
	}
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}

	limit, ok1 := queryInt(r, "limit", 10)
	skip, ok2 := queryInt(r, "skip", 0)
	if !ok1 || !ok2 {
		writeValidation(w, validationItem{Loc: []string{"query"}, Msg: "value is not a valid integer", Type: "type_error.integer"})
		return
	}

	b.mu.Lock()
	all := append([]apiv1.AnalysisRecord(nil), b.analyses[u.rec.ID]...)
	b.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].AnalysisDate.After(all[j].AnalysisDate.Time) })

	out := []apiv1.AnalysisRecord{}
	for i := skip; i < len(all) && len(out) < limit; i++ {
		if i >= 0 {
			out = append(out, all[i])
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleProgress(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}

	days, okDays := queryInt(r, "days", 30)
	if !okDays {
		writeValidation(w, validationItem{Loc: []string{"query", "days"}, Msg: "value is not a valid integer", Type: "type_error.integer"})
		return
	}
	from := b.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	b.mu.Lock()
	var in []apiv1.AnalysisRecord
	for _, a := range b.analyses[u.rec.ID] {
		if !a.AnalysisDate.Before(from) {
			in = append(in, a)
		}
	}
	b.mu.Unlock()

	if len(in) == 0 {
		writeJSON(w, http.StatusOK, apiv1.Progress{Message: "No analysis data available for the specified period"})
		return
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].AnalysisDate.Before(in[j].AnalysisDate.Time) })

	var p apiv1.Progress
	var total float64
	for _, a := range in {
		p.Dates = append(p.Dates, a.AnalysisDate.Format("2006-01-02T15:04:05.000000"))
		p.SkinScores = append(p.SkinScores, a.SkinScore)
		p.RednessCounts = append(p.RednessCounts, len(a.RednessAreas))
		p.DarkSpotCounts = append(p.DarkSpotCounts, len(a.DarkSpotAreas))
		total += a.SkinScore
	}
	p.AverageScore = total / float64(len(in))
	if len(in) > 1 {
		p.Improvement = in[len(in)-1].SkinScore - in[0].SkinScore
	}
	writeJSON(w, http.StatusOK, p)
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
