package job

// Area is one of the evaluation areas the service scores against.
type Area string

const (
	AreaInfrastructure Area = "Infrastructure"
	AreaNetworking     Area = "Networking"
	AreaPlatform       Area = "Platform"
	AreaData           Area = "Data"
	AreaOther          Area = "Other"
)

// Areas lists every area in display order.
var Areas = []Area{AreaInfrastructure, AreaNetworking, AreaPlatform, AreaData, AreaOther}

// HumanReviewMinutes is the manual review time one analysis replaces.
const HumanReviewMinutes = 45

// Specialization is a scored specialization inside an area.
type Specialization struct {
	Area           Area    `json:"area"`
	Specialization string  `json:"specialization"`
	Score          float64 `json:"score"`
	Level          string  `json:"level"`
}

// AnalysisMetrics records the model usage of one analysis.
type AnalysisMetrics struct {
	APICalls          int     `json:"api_calls"`
	TotalTokens       int     `json:"total_tokens"`
	AvgAPICallSeconds float64 `json:"avg_api_call_seconds"`
	ModelUsed         string  `json:"model_used"`
}

// AnalysisResult is received once, attached to exactly one job and never
// mutated afterwards.
type AnalysisResult struct {
	AreaScores           map[Area]float64 `json:"area_scores"`
	AreaDescriptions     map[Area]string  `json:"area_descriptions,omitempty"`
	Specializations      []Specialization `json:"specializations,omitempty"`
	MostFittedArea       Area             `json:"most_fitted_area"`
	BestSpecializations  []Specialization `json:"best_specializations,omitempty"`
	MostFittedReason     string           `json:"most_fitted_reason,omitempty"`
	EducationList        []string         `json:"education_list,omitempty"`
	SoftSkillsList       []string         `json:"soft_skills_list,omitempty"`
	PreviousJobsList     []string         `json:"previous_jobs_list,omitempty"`
	CandidateSummary     string           `json:"candidate_summary,omitempty"`
	RecommendedRole      string           `json:"recommended_role,omitempty"`
	RecommendationReason string           `json:"recommendation_reason,omitempty"`
	Metrics              AnalysisMetrics  `json:"metrics"`

	AnalysisID          string  `json:"analysis_id,omitempty"`
	AnalysisTimeSeconds float64 `json:"analysis_time_seconds,omitempty"`
	Filename            string  `json:"filename,omitempty"`
}

// Downloadable reports whether the server assigned an identifier that report
// downloads can refer to.
func (r AnalysisResult) Downloadable() bool {
	return r.AnalysisID != ""
}

// Score returns the score for an area, zero when absent.
func (r AnalysisResult) Score(area Area) float64 {
	if r.AreaScores == nil {
		return 0
	}
	return r.AreaScores[area]
}

// DownloadableIDs collects the analysis identifiers of results that have one,
// preserving order.
func DownloadableIDs(results []AnalysisResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r.Downloadable() {
			ids = append(ids, r.AnalysisID)
		}
	}
	return ids
}
