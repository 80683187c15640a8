package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Score bounds for analysis payloads
const (
	MaxFitPercentage = 100.0
	MaxRating        = 5.0
)

// ContactDetails holds candidate contact information
type ContactDetails struct {
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Dimension is one scored area of the detailed analysis
type Dimension struct {
	Title     string   `json:"title" yaml:"title"`
	Rating    float64  `json:"rating" yaml:"rating"` // 0-5
	Alignment string   `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	Details   string   `json:"details,omitempty" yaml:"details,omitempty"`
	KeyPoints []string `json:"key_points,omitempty" yaml:"key_points,omitempty"`
}

// Recommendation is the hiring decision attached to an analysis
type Recommendation struct {
	Decision   string   `json:"decision,omitempty" yaml:"decision,omitempty"` // RECOMMENDED / NOT RECOMMENDED / CONDITIONAL
	Reasoning  string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	IdealRoles []string `json:"ideal_roles,omitempty" yaml:"ideal_roles,omitempty"`
}

// AnalysisResult is the per-candidate payload returned by the analysis service.
// SubjectID links it back to the queue item that produced it.
type AnalysisResult struct {
	SubjectID            string               `json:"resume_id" yaml:"resume_id"`
	Rank                 int                  `json:"rank" yaml:"rank"`
	Sequence             uint64               `json:"-" yaml:"-"`
	Filename             string               `json:"filename,omitempty" yaml:"filename,omitempty"`
	Status               string               `json:"status,omitempty" yaml:"status,omitempty"`
	CandidateName        string               `json:"candidate_name,omitempty" yaml:"candidate_name,omitempty"`
	ContactDetails       ContactDetails       `json:"contact_details" yaml:"contact_details"`
	OverallFitPercentage float64              `json:"overall_fit_percentage" yaml:"overall_fit_percentage"`
	FitStatus            string               `json:"fit_status,omitempty" yaml:"fit_status,omitempty"`
	ProfileType          string               `json:"profile_type,omitempty" yaml:"profile_type,omitempty"`
	PrimaryBackground    string               `json:"primary_background,omitempty" yaml:"primary_background,omitempty"`
	PrimaryGap           string               `json:"primary_gap,omitempty" yaml:"primary_gap,omitempty"`
	DimensionAnalysis    map[string]Dimension `json:"dimension_analysis,omitempty" yaml:"dimension_analysis,omitempty"`
	Scorecard            map[string]float64   `json:"scorecard" yaml:"scorecard"`
	Strengths            []string             `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Weaknesses           []string             `json:"weaknesses,omitempty" yaml:"weaknesses,omitempty"`
	Risks                []string             `json:"risks,omitempty" yaml:"risks,omitempty"`
	RiskLevel            string               `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	Recommendation       Recommendation       `json:"recommendation" yaml:"recommendation"`
}

// wireResult mirrors AnalysisResult with lenient field types for decoding
type wireResult struct {
	ResumeID             flexibleString            `json:"resume_id"`
	Filename             string                    `json:"filename"`
	Status               string                    `json:"status"`
	CandidateName        string                    `json:"candidate_name"`
	ContactDetails       ContactDetails            `json:"contact_details"`
	OverallFitPercentage flexibleNumber            `json:"overall_fit_percentage"`
	FitStatus            string                    `json:"fit_status"`
	ProfileType          string                    `json:"profile_type"`
	PrimaryBackground    string                    `json:"primary_background"`
	PrimaryGap           string                    `json:"primary_gap"`
	DimensionAnalysis    map[string]wireDimension  `json:"dimension_analysis"`
	Scorecard            map[string]flexibleNumber `json:"scorecard"`
	Strengths            []string                  `json:"strengths"`
	Weaknesses           []string                  `json:"weaknesses"`
	Risks                []string                  `json:"risks"`
	RiskLevel            string                    `json:"risk_level"`
	Recommendation       Recommendation            `json:"recommendation"`
	Rank                 int                       `json:"rank"`
}

type wireDimension struct {
	Title     string         `json:"title"`
	Rating    flexibleNumber `json:"rating"`
	Alignment string         `json:"alignment"`
	Details   string         `json:"details"`
	KeyPoints []string       `json:"key_points"`
}

// UnmarshalJSON decodes a result and normalizes it: numbers may arrive as
// strings, missing scores default to zero and out-of-range scores are clamped.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = AnalysisResult{
		SubjectID:            string(w.ResumeID),
		Rank:                 w.Rank,
		Filename:             w.Filename,
		Status:               w.Status,
		CandidateName:        w.CandidateName,
		ContactDetails:       w.ContactDetails,
		OverallFitPercentage: clamp(float64(w.OverallFitPercentage), MaxFitPercentage),
		FitStatus:            w.FitStatus,
		ProfileType:          w.ProfileType,
		PrimaryBackground:    w.PrimaryBackground,
		PrimaryGap:           w.PrimaryGap,
		Strengths:            w.Strengths,
		Weaknesses:           w.Weaknesses,
		Risks:                w.Risks,
		RiskLevel:            w.RiskLevel,
		Recommendation:       w.Recommendation,
		Scorecard:            make(map[string]float64, len(w.Scorecard)),
	}

	for name, rating := range w.Scorecard {
		r.Scorecard[name] = clamp(float64(rating), MaxRating)
	}

	if len(w.DimensionAnalysis) > 0 {
		r.DimensionAnalysis = make(map[string]Dimension, len(w.DimensionAnalysis))
		for key, d := range w.DimensionAnalysis {
			r.DimensionAnalysis[key] = Dimension{
				Title:     d.Title,
				Rating:    clamp(float64(d.Rating), MaxRating),
				Alignment: d.Alignment,
				Details:   d.Details,
				KeyPoints: d.KeyPoints,
			}
		}
	}

	return nil
}

func clamp(v, upper float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > upper {
		return upper
	}
	return v
}

// flexibleNumber accepts JSON numbers, numeric strings and null
type flexibleNumber float64

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", s, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("invalid numeric value %q: not a finite number", s)
		}
		*n = flexibleNumber(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = flexibleNumber(f)
	return nil
}

// flexibleString accepts JSON strings, numbers and null
type flexibleString string

func (s *flexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexibleString(v)
		return nil
	}
	*s = flexibleString(string(data))
	return nil
}

// AnalyzeResponse is the success body of a single-file upload
type AnalyzeResponse struct {
	Results []AnalysisResult `json:"results"`
}

// ErrorResponse is the error body the analysis service and the session API return
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FailedResume describes one file the analysis could not process
type FailedResume struct {
	SubjectID string `json:"resume_id,omitempty" yaml:"resume_id,omitempty"`
	Filename  string `json:"filename" yaml:"filename"`
	Error     string `json:"error" yaml:"error"`
	Status    string `json:"status" yaml:"status"`
}

// UnmarshalJSON accepts numeric resume ids as the batch endpoint sends them
func (f *FailedResume) UnmarshalJSON(data []byte) error {
	var w struct {
		ResumeID flexibleString `json:"resume_id"`
		Filename string         `json:"filename"`
		Error    string         `json:"error"`
		Status   string         `json:"status"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*f = FailedResume{SubjectID: string(w.ResumeID), Filename: w.Filename, Error: w.Error, Status: w.Status}
	return nil
}

// BatchResponse is the legacy single-request response covering every file at once
type BatchResponse struct {
	TotalResumes  int              `json:"total_resumes"`
	Successful    int              `json:"successful"`
	Failed        int              `json:"failed"`
	Results       []AnalysisResult `json:"results"`
	Top5          []AnalysisResult `json:"top_5"`
	FailedResumes []FailedResume   `json:"failed_resumes,omitempty"`
}

// Summary is the aggregated, ranked outcome of one submission cycle
type Summary struct {
	Total        int              `json:"total_resumes" yaml:"total_resumes"`
	Succeeded    int              `json:"successful" yaml:"successful"`
	Failed       int              `json:"failed" yaml:"failed"`
	Inconsistent int              `json:"inconsistent,omitempty" yaml:"inconsistent,omitempty"`
	Ranked       []AnalysisResult `json:"results" yaml:"results"`
	TopN         []AnalysisResult `json:"top_5" yaml:"top_5"`
	FailedItems  []FailedResume   `json:"failed_resumes" yaml:"failed_resumes"`
}

// AllFailed reports the page-level failure state
func (s Summary) AllFailed() bool {
	return s.Succeeded == 0
}

// Rejection records why a file did not enter the queue
type Rejection struct {
	Filename string `json:"filename" yaml:"filename"`
	Code     string `json:"code" yaml:"code"`
	Reason   string `json:"reason" yaml:"reason"`
}

// AddReport summarizes one batch of files offered to the queue
type AddReport struct {
	Added     []string    `json:"added" yaml:"added"`
	Skipped   []string    `json:"skipped" yaml:"skipped"`
	Rejected  []Rejection `json:"rejected" yaml:"rejected"`
	QueueFull bool        `json:"queue_full" yaml:"queue_full"`
}

// FitClass buckets a fit percentage the way the results view colors it
func FitClass(percentage float64) string {
	switch {
	case percentage >= 70:
		return "high"
	case percentage >= 50:
		return "medium"
	default:
		return "low"
	}
}

// RecommendationClass normalizes a free-form decision string
func RecommendationClass(decision string) string {
	d := strings.ToUpper(decision)
	switch {
	case d == "":
		return "pending"
	case strings.Contains(d, "NOT RECOMMENDED"):
		return "not-recommended"
	case strings.Contains(d, "CONDITIONAL"):
		return "conditional"
	case strings.Contains(d, "RECOMMENDED"):
		return "recommended"
	default:
		return "pending"
	}
}

// RiskClass normalizes a risk level string
func RiskClass(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return "low"
	case "moderate", "medium":
		return "moderate"
	case "high":
		return "high"
	default:
		return "unknown"
	}
}
