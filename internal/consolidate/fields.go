package consolidate

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-consolidator/internal/profile"
)

// AnalysisData is the extracted company data from one competitor analysis,
// the input to consolidation.
type AnalysisData struct {
	CompanyName     string `json:"company_name"`
	WebsiteURL      string `json:"website_url,omitempty"`
	Description     string `json:"description,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Headquarters    string `json:"headquarters,omitempty"`
	FoundedYear     *int   `json:"founded_year,omitempty"`
	EmployeeCount   *int   `json:"employee_count,omitempty"`
	RevenueEstimate *int64 `json:"revenue_estimate,omitempty"`
	BusinessModel   string `json:"business_model,omitempty"`

	TechnologyStack  *profile.TechStack        `json:"technology_stack,omitempty"`
	KeyExecutives    []profile.Executive       `json:"key_executives,omitempty"`
	FinancialMetrics *profile.FinancialMetrics `json:"financial_metrics,omitempty"`
	FundingRounds    []profile.FundingRound    `json:"funding_rounds,omitempty"`

	CompetitiveAdvantages []string `json:"competitive_advantages,omitempty"`
	TargetMarkets         []string `json:"target_markets,omitempty"`
	KeyProducts           []string `json:"key_products,omitempty"`
	Partnerships          []string `json:"partnerships,omitempty"`
	Certifications        []string `json:"certifications,omitempty"`
}

// fieldMapping binds one profile field to its analysis source, its textual
// form for the audit tables, and its rollback restore. The package-level
// fieldMappings slice fixes the processing order; last-writer-wins semantics
// depend on it, so it never varies per invocation.
type fieldMapping struct {
	name     string
	proposed func(d *AnalysisData) any
	current  func(p *profile.MasterProfile) any
	apply    func(p *profile.MasterProfile, d *AnalysisData)
	restore  func(p *profile.MasterProfile, text string) error
}

var fieldMappings = []fieldMapping{
	{
		name:     "description",
		proposed: func(d *AnalysisData) any { return d.Description },
		current:  func(p *profile.MasterProfile) any { return p.Description },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.Description = d.Description },
		restore:  func(p *profile.MasterProfile, text string) error { p.Description = text; return nil },
	},
	{
		name:     "industry",
		proposed: func(d *AnalysisData) any { return d.Industry },
		current:  func(p *profile.MasterProfile) any { return p.Industry },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.Industry = d.Industry },
		restore:  func(p *profile.MasterProfile, text string) error { p.Industry = text; return nil },
	},
	{
		name:     "headquarters",
		proposed: func(d *AnalysisData) any { return d.Headquarters },
		current:  func(p *profile.MasterProfile) any { return p.Headquarters },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.Headquarters = d.Headquarters },
		restore:  func(p *profile.MasterProfile, text string) error { p.Headquarters = text; return nil },
	},
	{
		name:     "founded_year",
		proposed: func(d *AnalysisData) any { return d.FoundedYear },
		current:  func(p *profile.MasterProfile) any { return p.FoundedYear },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.FoundedYear = d.FoundedYear },
		restore: func(p *profile.MasterProfile, text string) error {
			v, err := restoreInt(text)
			p.FoundedYear = v
			return err
		},
	},
	{
		name:     "employee_count",
		proposed: func(d *AnalysisData) any { return d.EmployeeCount },
		current:  func(p *profile.MasterProfile) any { return p.EmployeeCount },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.EmployeeCount = d.EmployeeCount },
		restore: func(p *profile.MasterProfile, text string) error {
			v, err := restoreInt(text)
			p.EmployeeCount = v
			return err
		},
	},
	{
		name:     "revenue_estimate",
		proposed: func(d *AnalysisData) any { return d.RevenueEstimate },
		current:  func(p *profile.MasterProfile) any { return p.RevenueEstimate },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.RevenueEstimate = d.RevenueEstimate },
		restore: func(p *profile.MasterProfile, text string) error {
			v, err := restoreInt64(text)
			p.RevenueEstimate = v
			return err
		},
	},
	{
		name:     "business_model",
		proposed: func(d *AnalysisData) any { return d.BusinessModel },
		current:  func(p *profile.MasterProfile) any { return p.BusinessModel },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.BusinessModel = d.BusinessModel },
		restore:  func(p *profile.MasterProfile, text string) error { p.BusinessModel = text; return nil },
	},
	{
		name:     "website_url",
		proposed: func(d *AnalysisData) any { return d.WebsiteURL },
		current:  func(p *profile.MasterProfile) any { return p.WebsiteURL },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.WebsiteURL = d.WebsiteURL },
		restore:  func(p *profile.MasterProfile, text string) error { p.WebsiteURL = text; return nil },
	},
	{
		name:     "technology_stack",
		proposed: func(d *AnalysisData) any { return d.TechnologyStack },
		current:  func(p *profile.MasterProfile) any { return p.TechnologyStack },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.TechnologyStack = d.TechnologyStack },
		restore: func(p *profile.MasterProfile, text string) error {
			p.TechnologyStack = nil
			if text == "" {
				return nil
			}
			p.TechnologyStack = &profile.TechStack{}
			return json.Unmarshal([]byte(text), p.TechnologyStack)
		},
	},
	{
		name:     "key_executives",
		proposed: func(d *AnalysisData) any { return d.KeyExecutives },
		current:  func(p *profile.MasterProfile) any { return p.KeyExecutives },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.KeyExecutives = d.KeyExecutives },
		restore: func(p *profile.MasterProfile, text string) error {
			p.KeyExecutives = nil
			if text == "" {
				return nil
			}
			return json.Unmarshal([]byte(text), &p.KeyExecutives)
		},
	},
	{
		name:     "financial_metrics",
		proposed: func(d *AnalysisData) any { return d.FinancialMetrics },
		current:  func(p *profile.MasterProfile) any { return p.FinancialMetrics },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.FinancialMetrics = d.FinancialMetrics },
		restore: func(p *profile.MasterProfile, text string) error {
			p.FinancialMetrics = nil
			if text == "" {
				return nil
			}
			p.FinancialMetrics = &profile.FinancialMetrics{}
			return json.Unmarshal([]byte(text), p.FinancialMetrics)
		},
	},
	{
		name:     "funding_rounds",
		proposed: func(d *AnalysisData) any { return d.FundingRounds },
		current:  func(p *profile.MasterProfile) any { return p.FundingRounds },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.FundingRounds = d.FundingRounds },
		restore: func(p *profile.MasterProfile, text string) error {
			p.FundingRounds = nil
			if text == "" {
				return nil
			}
			return json.Unmarshal([]byte(text), &p.FundingRounds)
		},
	},
	{
		name:     "competitive_advantages",
		proposed: func(d *AnalysisData) any { return d.CompetitiveAdvantages },
		current:  func(p *profile.MasterProfile) any { return p.CompetitiveAdvantages },
		apply: func(p *profile.MasterProfile, d *AnalysisData) {
			p.CompetitiveAdvantages = d.CompetitiveAdvantages
		},
		restore: func(p *profile.MasterProfile, text string) error {
			return restoreStrings(&p.CompetitiveAdvantages, text)
		},
	},
	{
		name:     "target_markets",
		proposed: func(d *AnalysisData) any { return d.TargetMarkets },
		current:  func(p *profile.MasterProfile) any { return p.TargetMarkets },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.TargetMarkets = d.TargetMarkets },
		restore: func(p *profile.MasterProfile, text string) error {
			return restoreStrings(&p.TargetMarkets, text)
		},
	},
	{
		name:     "key_products",
		proposed: func(d *AnalysisData) any { return d.KeyProducts },
		current:  func(p *profile.MasterProfile) any { return p.KeyProducts },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.KeyProducts = d.KeyProducts },
		restore: func(p *profile.MasterProfile, text string) error {
			return restoreStrings(&p.KeyProducts, text)
		},
	},
	{
		name:     "partnerships",
		proposed: func(d *AnalysisData) any { return d.Partnerships },
		current:  func(p *profile.MasterProfile) any { return p.Partnerships },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.Partnerships = d.Partnerships },
		restore: func(p *profile.MasterProfile, text string) error {
			return restoreStrings(&p.Partnerships, text)
		},
	},
	{
		name:     "certifications",
		proposed: func(d *AnalysisData) any { return d.Certifications },
		current:  func(p *profile.MasterProfile) any { return p.Certifications },
		apply:    func(p *profile.MasterProfile, d *AnalysisData) { p.Certifications = d.Certifications },
		restore: func(p *profile.MasterProfile, text string) error {
			return restoreStrings(&p.Certifications, text)
		},
	},
}

// fieldText renders a field value as text for the contribution and rollback
// audit tables. Absent values render as "".
func fieldText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case *int:
		if t == nil {
			return "", nil
		}
		return strconv.Itoa(*t), nil
	case *int64:
		if t == nil {
			return "", nil
		}
		return strconv.FormatInt(*t, 10), nil
	case []string:
		if len(t) == 0 {
			return "", nil
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return "", eris.Wrap(err, "consolidate: marshal field text")
		}
		return string(raw), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", eris.Wrap(err, "consolidate: marshal field text")
		}
		s := string(raw)
		if s == "null" || s == "{}" || s == "[]" {
			return "", nil
		}
		return s, nil
	}
}

func restoreInt(text string) (*int, error) {
	if text == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return nil, eris.Wrapf(err, "consolidate: restore %q", text)
	}
	return &v, nil
}

func restoreInt64(text string) (*int64, error) {
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "consolidate: restore %q", text)
	}
	return &v, nil
}

func restoreStrings(dst *[]string, text string) error {
	*dst = nil
	if text == "" {
		return nil
	}
	return json.Unmarshal([]byte(text), dst)
}

// completenessScore is the percentage of checklist fields with a value.
// The checklist is the fixed field mapping, so the score is stable across
// releases unless the mapping itself changes.
func completenessScore(p *profile.MasterProfile) float64 {
	filled := 0
	for _, fm := range fieldMappings {
		text, err := fieldText(fm.current(p))
		if err == nil && text != "" {
			filled++
		}
	}
	return profile.ClampScore(float64(filled) / float64(len(fieldMappings)) * 100)
}
