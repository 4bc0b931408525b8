// Package profile defines the master company profile golden record and its
// resolution, scoring, and persistence primitives.
package profile

import (
	"time"
)

// ValidationStatus tracks where a profile sits in the validation lifecycle.
type ValidationStatus string

// Validation statuses.
const (
	StatusUnvalidated ValidationStatus = "unvalidated"
	StatusPending     ValidationStatus = "pending"
	StatusValidated   ValidationStatus = "validated"
	StatusDisputed    ValidationStatus = "disputed"
)

// MasterProfile is the canonical, deduplicated record for one company,
// merged from independently produced competitor analyses.
type MasterProfile struct {
	ID             int64  `json:"id" db:"id"`
	CompanyName    string `json:"company_name" db:"company_name"`
	NormalizedName string `json:"normalized_name" db:"normalized_name"`
	WebsiteURL     string `json:"website_url,omitempty" db:"website_url"`

	// Descriptive fields
	Industry        string `json:"industry,omitempty" db:"industry"`
	Headquarters    string `json:"headquarters,omitempty" db:"headquarters"`
	FoundedYear     *int   `json:"founded_year,omitempty" db:"founded_year"`
	EmployeeCount   *int   `json:"employee_count,omitempty" db:"employee_count"`
	RevenueEstimate *int64 `json:"revenue_estimate,omitempty" db:"revenue_estimate"`
	BusinessModel   string `json:"business_model,omitempty" db:"business_model"`
	Description     string `json:"description,omitempty" db:"description"`

	// Structured sub-fields (versioned value objects, stored as JSONB)
	TechnologyStack  *TechStack        `json:"technology_stack,omitempty" db:"technology_stack"`
	KeyExecutives    []Executive       `json:"key_executives,omitempty" db:"key_executives"`
	FinancialMetrics *FinancialMetrics `json:"financial_metrics,omitempty" db:"financial_metrics"`
	FundingRounds    []FundingRound    `json:"funding_rounds,omitempty" db:"funding_rounds"`

	// Set-valued fields (ordered, not deduplicated automatically)
	CompetitiveAdvantages []string `json:"competitive_advantages,omitempty" db:"competitive_advantages"`
	TargetMarkets         []string `json:"target_markets,omitempty" db:"target_markets"`
	KeyProducts           []string `json:"key_products,omitempty" db:"key_products"`
	Partnerships          []string `json:"partnerships,omitempty" db:"partnerships"`
	Certifications        []string `json:"certifications,omitempty" db:"certifications"`

	// Scores, each in [0,100]
	OverallConfidenceScore float64 `json:"overall_confidence_score" db:"overall_confidence_score"`
	DataCompletenessScore  float64 `json:"data_completeness_score" db:"data_completeness_score"`
	DataQualityScore       float64 `json:"data_quality_score" db:"data_quality_score"`

	ValidationStatus ValidationStatus `json:"validation_status" db:"validation_status"`

	// Provenance: analysis ids that have contributed, kept as a set.
	SourceAnalyses []string `json:"source_analyses,omitempty" db:"source_analyses"`

	// Optimistic concurrency token; bumped on every update.
	Version int64 `json:"version" db:"version"`

	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
	LastValidationDate *time.Time `json:"last_validation_date,omitempty" db:"last_validation_date"`
}

// HasSourceAnalysis reports whether the analysis id already contributed.
func (p *MasterProfile) HasSourceAnalysis(analysisID string) bool {
	for _, id := range p.SourceAnalyses {
		if id == analysisID {
			return true
		}
	}
	return false
}

// AddSourceAnalysis records the analysis id, keeping the set semantics.
func (p *MasterProfile) AddSourceAnalysis(analysisID string) {
	if !p.HasSourceAnalysis(analysisID) {
		p.SourceAnalyses = append(p.SourceAnalyses, analysisID)
	}
}

// TechStack describes a company's technology footprint.
type TechStack struct {
	SchemaVersion  int      `json:"schema_version"`
	Languages      []string `json:"languages,omitempty"`
	Frameworks     []string `json:"frameworks,omitempty"`
	Infrastructure []string `json:"infrastructure,omitempty"`
	Tools          []string `json:"tools,omitempty"`
}

// Executive is one named person in a company's leadership.
type Executive struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// FinancialMetrics holds point-in-time financial figures.
type FinancialMetrics struct {
	SchemaVersion    int      `json:"schema_version"`
	Currency         string   `json:"currency,omitempty"`
	AnnualRevenueUSD *int64   `json:"annual_revenue_usd,omitempty"`
	GrossMarginPct   *float64 `json:"gross_margin_pct,omitempty"`
	FundingTotalUSD  *int64   `json:"funding_total_usd,omitempty"`
	AsOf             string   `json:"as_of,omitempty"`
}

// FundingRound is one financing event.
type FundingRound struct {
	Round     string   `json:"round"`
	AmountUSD *int64   `json:"amount_usd,omitempty"`
	Date      string   `json:"date,omitempty"`
	Investors []string `json:"investors,omitempty"`
}

// Contribution is a proposed field change from one analysis, recorded
// whether or not it was applied to the canonical profile.
type Contribution struct {
	ID          int64      `json:"id" db:"id"`
	ProfileID   int64      `json:"profile_id" db:"profile_id"`
	AnalysisID  string     `json:"analysis_id" db:"analysis_id"`
	Contributor string     `json:"contributor,omitempty" db:"contributor"`
	FieldName   string     `json:"field_name" db:"field_name"`
	OldValue    string     `json:"old_value,omitempty" db:"old_value"`
	NewValue    string     `json:"new_value" db:"new_value"`
	Confidence  float64    `json:"confidence" db:"confidence"`
	Applied     bool       `json:"applied" db:"applied"`
	IsVerified  bool       `json:"is_verified" db:"is_verified"`
	VerifiedBy  string     `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Merge is the append-only audit record for one consolidation event.
type Merge struct {
	ID                int64             `json:"id" db:"id"`
	ProfileID         int64             `json:"profile_id" db:"profile_id"`
	AnalysisID        string            `json:"analysis_id" db:"analysis_id"`
	MergedBy          string            `json:"merged_by,omitempty" db:"merged_by"`
	FieldsUpdated     []string          `json:"fields_updated,omitempty" db:"fields_updated"`
	ConflictsResolved int               `json:"conflicts_resolved" db:"conflicts_resolved"`
	ConfidenceBefore  float64           `json:"confidence_before" db:"confidence_before"`
	ConfidenceAfter   float64           `json:"confidence_after" db:"confidence_after"`
	QualityBefore     float64           `json:"quality_before" db:"quality_before"`
	QualityAfter      float64           `json:"quality_after" db:"quality_after"`
	RollbackPayload   map[string]string `json:"rollback_payload,omitempty" db:"rollback_payload"`
	RolledBack        bool              `json:"rolled_back" db:"rolled_back"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// ValidationLog is one append-only row per (profile, field, source)
// validation attempt. Immutable once written.
type ValidationLog struct {
	ID                int64     `json:"id" db:"id"`
	ProfileID         int64     `json:"profile_id" db:"profile_id"`
	BatchID           string    `json:"batch_id,omitempty" db:"batch_id"`
	FieldName         string    `json:"field_name" db:"field_name"`
	OriginalValue     string    `json:"original_value,omitempty" db:"original_value"`
	ValidatedValue    string    `json:"validated_value,omitempty" db:"validated_value"`
	ValidationSource  string    `json:"validation_source" db:"validation_source"`
	Method            string    `json:"method,omitempty" db:"method"`
	IsValid           bool      `json:"is_valid" db:"is_valid"`
	ConfidenceScore   float64   `json:"confidence_score" db:"confidence_score"`
	DiscrepancyReason string    `json:"discrepancy_reason,omitempty" db:"discrepancy_reason"`
	RawResponse       []byte    `json:"raw_response,omitempty" db:"raw_response"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// SourceContribution records one source's input to an aggregate score,
// kept for explainability.
type SourceContribution struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// ConfidenceSnapshot is one append-only confidence history entry. A snapshot
// with an empty FieldName is a profile-level aggregate; the profile's
// overall_confidence_score is always the most recent aggregate snapshot.
type ConfidenceSnapshot struct {
	ID                  int64                `json:"id" db:"id"`
	ProfileID           int64                `json:"profile_id" db:"profile_id"`
	FieldName           string               `json:"field_name,omitempty" db:"field_name"`
	ConfidenceScore     float64              `json:"confidence_score" db:"confidence_score"`
	ContributingSources []SourceContribution `json:"contributing_sources,omitempty" db:"contributing_sources"`
	CalculationMethod   string               `json:"calculation_method,omitempty" db:"calculation_method"`
	CreatedAt           time.Time            `json:"created_at" db:"created_at"`
}

// TrustedSource is configuration for one external validator. Maintained by
// an external administrative surface; this core only reads it, except for
// the observed telemetry columns which the orchestrator updates.
type TrustedSource struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	SourceType      string    `json:"source_type" db:"source_type"`
	AuthorityWeight float64   `json:"authority_weight" db:"authority_weight"`
	RateLimitPerMin int       `json:"rate_limit_per_min" db:"rate_limit_per_min"`
	Active          bool      `json:"active" db:"active"`
	Categories      []string  `json:"categories,omitempty" db:"categories"`
	ErrorRate       float64   `json:"error_rate" db:"error_rate"`
	AvgResponseMS   float64   `json:"avg_response_ms" db:"avg_response_ms"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// AppliesTo reports whether the source covers any of the requested categories.
func (s *TrustedSource) AppliesTo(categories []string) bool {
	if len(categories) == 0 || len(s.Categories) == 0 {
		return true
	}
	for _, want := range categories {
		for _, have := range s.Categories {
			if want == have {
				return true
			}
		}
	}
	return false
}

// ClampScore bounds a 0-100 score.
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
