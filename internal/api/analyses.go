package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kingrea/cv-review/internal/job"
)

// AnalysisRecord is one stored analysis as listed by the history endpoint.
type AnalysisRecord struct {
	ID                  string               `json:"id"`
	Filename            string               `json:"filename"`
	Timestamp           string               `json:"timestamp"`
	AnalysisTimeSeconds float64              `json:"analysis_time_seconds"`
	APICalls            int                  `json:"api_calls"`
	TotalTokens         int                  `json:"total_tokens"`
	ModelUsed           string               `json:"model_used"`
	MostFittedArea      job.Area             `json:"most_fitted_area"`
	AreaScores          map[job.Area]float64 `json:"area_scores"`
	CandidateSummary    string               `json:"candidate_summary"`
	HumanReviewMinutes  float64              `json:"human_review_minutes"`
	Result              *job.AnalysisResult  `json:"result,omitempty"`
}

// AnalysesList is one page of stored analyses.
type AnalysesList struct {
	Total int              `json:"total"`
	Items []AnalysisRecord `json:"items"`
}

// RecentTime is one point of the analysis time series.
type RecentTime struct {
	Timestamp           string  `json:"timestamp"`
	AnalysisTimeSeconds float64 `json:"analysis_time_seconds"`
	APICalls            int     `json:"api_calls"`
}

// Metrics aggregates usage across every stored analysis.
type Metrics struct {
	TotalAnalyses              int              `json:"total_analyses"`
	TotalAPICalls              int              `json:"total_api_calls"`
	TotalTokens                int              `json:"total_tokens"`
	AvgAnalysisTimeSeconds     float64          `json:"avg_analysis_time_seconds"`
	MinAnalysisTimeSeconds     float64          `json:"min_analysis_time_seconds"`
	MaxAnalysisTimeSeconds     float64          `json:"max_analysis_time_seconds"`
	TotalHumanTimeSavedMinutes float64          `json:"total_human_time_saved_minutes"`
	AvgHumanTimeSavedMinutes   float64          `json:"avg_human_time_saved_minutes"`
	HumanReviewMinutesPerCV    float64          `json:"human_review_minutes_per_cv"`
	AnalysesByArea             map[job.Area]int `json:"analyses_by_area"`
	AnalysesByModel            map[string]int   `json:"analyses_by_model"`
	RecentTimes                []RecentTime     `json:"recent_times"`
}

// BestCandidate is the top scoring analysis for one area.
type BestCandidate struct {
	ID                  string               `json:"id"`
	Filename            string               `json:"filename"`
	Timestamp           string               `json:"timestamp"`
	MostFittedArea      job.Area             `json:"most_fitted_area"`
	AreaScores          map[job.Area]float64 `json:"area_scores"`
	CandidateSummary    string               `json:"candidate_summary"`
	BestSpecializations []job.Specialization `json:"best_specializations"`
	EducationList       []string             `json:"education_list"`
	ScoreInArea         float64              `json:"score_in_area"`
}

// BestCandidates maps each area to its best candidate, nil when none exists.
type BestCandidates struct {
	BestByArea map[job.Area]*BestCandidate `json:"best_by_area"`
}

// ListAnalyses returns one page of the analysis history.
func (c *Client) ListAnalyses(ctx context.Context, limit, offset int) (AnalysesList, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	var out AnalysesList
	err := c.getJSON(ctx, "list-analyses", "/api/analyses", query, &out)
	return out, err
}

// GetAnalysis returns one stored analysis including its full result.
func (c *Client) GetAnalysis(ctx context.Context, id string) (AnalysisRecord, error) {
	var out AnalysisRecord
	err := c.getJSON(ctx, "get-analysis", "/api/analyses/"+url.PathEscape(id), nil, &out)
	return out, err
}

// DeleteAnalysis removes a stored analysis.
func (c *Client) DeleteAnalysis(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete-analysis", http.MethodDelete, "/api/analyses/"+url.PathEscape(id), nil, nil, "")
	return err
}

// Metrics returns the aggregated usage metrics.
func (c *Client) Metrics(ctx context.Context) (Metrics, error) {
	var out Metrics
	err := c.getJSON(ctx, "metrics", "/api/metrics", nil, &out)
	return out, err
}

// BestCandidates returns the best candidate per area.
func (c *Client) BestCandidates(ctx context.Context) (BestCandidates, error) {
	var out BestCandidates
	err := c.getJSON(ctx, "best-candidates", "/api/best-candidates", nil, &out)
	return out, err
}

// Health checks the liveness endpoint and returns its status field.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "health", "/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
