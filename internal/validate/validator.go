// Package validate checks master profile fields against external trusted
// sources and maintains the profile's aggregate confidence.
package validate

import (
	"context"

	"github.com/sells-group/profile-consolidator/internal/profile"
)

// Verdict is one field-level validation outcome from a single source.
// Confidence is on the 0-1 source scale; aggregation converts to 0-100.
type Verdict struct {
	FieldName         string
	OriginalValue     string
	ValidatedValue    string
	Method            string
	IsValid           bool
	Confidence        float64
	DiscrepancyReason string
	Raw               []byte
}

// SourceValidator validates profile fields against one external source.
// Implementations must respect the context deadline; the orchestrator
// converts an error return into a low-confidence failure verdict rather
// than failing the batch.
type SourceValidator interface {
	// Name matches a trusted_data_sources row, which supplies the
	// source's authority weight and telemetry.
	Name() string
	// Categories reports which validation categories the source covers.
	Categories() []string
	Validate(ctx context.Context, p *profile.MasterProfile) ([]Verdict, error)
}

// Validation categories. A validate request may narrow the batch to a
// subset; an empty request means all categories.
const (
	CategoryBasicInfo = "basic_info"
	CategoryFinancial = "financial"
	CategoryPersonnel = "personnel"
)

// categoryApplies reports whether a validator covering cats should run for
// the requested set. Empty on either side means no restriction.
func categoryApplies(cats, requested []string) bool {
	if len(cats) == 0 || len(requested) == 0 {
		return true
	}
	for _, want := range requested {
		for _, have := range cats {
			if want == have {
				return true
			}
		}
	}
	return false
}
