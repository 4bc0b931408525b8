package validate

import (
	"context"
	"encoding/json"

	"github.com/sells-group/profile-consolidator/internal/profile"
	"github.com/sells-group/profile-consolidator/pkg/registry"
)

// Registry verdict confidences. A registry hit is authoritative for the
// legal name; a miss is weak evidence against, not proof of absence.
const (
	registryFoundConfidence    = 1.0
	registryNotFoundConfidence = 0.3
)

// RegistryValidator checks the company name against an official business
// registry.
type RegistryValidator struct {
	client registry.Client
}

// NewRegistryValidator creates a registry-backed validator.
func NewRegistryValidator(client registry.Client) *RegistryValidator {
	return &RegistryValidator{client: client}
}

func (v *RegistryValidator) Name() string { return "opencorporates" }

func (v *RegistryValidator) Categories() []string {
	return []string{CategoryBasicInfo}
}

func (v *RegistryValidator) Validate(ctx context.Context, p *profile.MasterProfile) ([]Verdict, error) {
	companies, err := v.client.SearchCompanies(ctx, p.NormalizedName)
	if err != nil {
		return nil, err
	}

	verdict := Verdict{
		FieldName:     "company_name",
		OriginalValue: p.CompanyName,
		Method:        "registry_lookup",
	}

	match := bestMatch(companies, p.NormalizedName)
	if match == nil {
		verdict.IsValid = false
		verdict.Confidence = registryNotFoundConfidence
		verdict.DiscrepancyReason = "not found in registry"
		return []Verdict{verdict}, nil
	}

	verdict.IsValid = true
	verdict.Confidence = registryFoundConfidence
	verdict.ValidatedValue = match.Name
	if raw, err := json.Marshal(match); err == nil {
		verdict.Raw = raw
	}
	return []Verdict{verdict}, nil
}

// bestMatch prefers an active record whose normalized name equals the
// profile's, falling back to the first active result.
func bestMatch(companies []registry.Company, normalized string) *registry.Company {
	var fallback *registry.Company
	for i := range companies {
		c := &companies[i]
		if c.Inactive {
			continue
		}
		if profile.Normalize(c.Name) == normalized {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}
