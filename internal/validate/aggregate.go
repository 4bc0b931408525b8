package validate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-consolidator/internal/config"
	"github.com/sells-group/profile-consolidator/internal/profile"
)

// disputeConfidence is the minimum confidence an invalid verdict needs to
// mark the profile disputed rather than merely pending.
const disputeConfidence = 0.5

// maxVersionRetries bounds profile re-reads when a concurrent writer races
// the aggregation update.
const maxVersionRetries = 3

// Aggregator folds a batch of verdicts into the profile's aggregate
// confidence score and validation status, appending confidence history.
type Aggregator struct {
	store profile.Store
	cfg   config.ValidationConfig
	log   *zap.Logger
}

// NewAggregator creates a confidence aggregator.
func NewAggregator(store profile.Store, cfg config.ValidationConfig) *Aggregator {
	return &Aggregator{
		store: store,
		cfg:   cfg,
		log:   zap.L().With(zap.String("component", "aggregate")),
	}
}

// Apply computes the authority-weighted aggregate for the batch, persists
// per-field and profile-level confidence snapshots, and updates the
// profile's score, status, and last validation date. An empty batch leaves
// the profile untouched.
func (a *Aggregator) Apply(ctx context.Context, p *profile.MasterProfile, batchID string, results []SourceResult) (float64, profile.ValidationStatus, error) {
	weighted := a.collect(ctx, results)
	if len(weighted) == 0 {
		return p.OverallConfidenceScore, p.ValidationStatus, nil
	}

	overall := weightedScore(weighted)
	status := a.statusFor(overall, weighted)

	for field, group := range groupByField(weighted) {
		snap := &profile.ConfidenceSnapshot{
			ProfileID:           p.ID,
			FieldName:           field,
			ConfidenceScore:     weightedScore(group),
			ContributingSources: contributions(group),
			CalculationMethod:   "weighted_average",
		}
		if err := a.store.InsertConfidenceSnapshot(ctx, snap); err != nil {
			return 0, "", eris.Wrapf(err, "validate: snapshot field %s", field)
		}
	}

	aggregate := &profile.ConfidenceSnapshot{
		ProfileID:           p.ID,
		ConfidenceScore:     overall,
		ContributingSources: contributions(weighted),
		CalculationMethod:   "weighted_average",
	}
	if err := a.store.InsertConfidenceSnapshot(ctx, aggregate); err != nil {
		return 0, "", eris.Wrap(err, "validate: aggregate snapshot")
	}

	if err := a.updateProfile(ctx, p, overall, status); err != nil {
		return 0, "", err
	}
	return overall, status, nil
}

// weightedVerdict pairs a verdict with its source and authority weight.
type weightedVerdict struct {
	Verdict
	source string
	weight float64
}

// collect flattens batch results into weighted verdicts, resolving each
// source's authority weight from its trusted-source row.
func (a *Aggregator) collect(ctx context.Context, results []SourceResult) []weightedVerdict {
	var out []weightedVerdict
	for _, r := range results {
		weight := a.cfg.DefaultAuthorityWeight
		src, err := a.store.GetSourceByName(ctx, r.Source)
		if err != nil {
			a.log.Warn("authority weight lookup failed",
				zap.String("source", r.Source), zap.Error(err))
		}
		if src != nil && src.AuthorityWeight > 0 {
			weight = src.AuthorityWeight
		}
		for _, v := range r.Verdicts {
			out = append(out, weightedVerdict{Verdict: v, source: r.Source, weight: weight})
		}
	}
	return out
}

// weightedScore is the authority-weighted mean of verdict confidences on
// the 0-100 scale, clamped.
func weightedScore(verdicts []weightedVerdict) float64 {
	var sum, weights float64
	for _, v := range verdicts {
		sum += v.Confidence * v.weight
		weights += v.weight
	}
	if weights == 0 {
		return 0
	}
	return profile.ClampScore(sum / weights * 100)
}

func groupByField(verdicts []weightedVerdict) map[string][]weightedVerdict {
	groups := map[string][]weightedVerdict{}
	for _, v := range verdicts {
		groups[v.FieldName] = append(groups[v.FieldName], v)
	}
	return groups
}

func contributions(verdicts []weightedVerdict) []profile.SourceContribution {
	out := make([]profile.SourceContribution, 0, len(verdicts))
	for _, v := range verdicts {
		out = append(out, profile.SourceContribution{
			Source:     v.source,
			Confidence: v.Confidence,
			Weight:     v.weight,
		})
	}
	return out
}

// statusFor applies the lifecycle rule: a confidently-invalid verdict
// disputes the profile, a clean batch above the threshold validates it,
// anything else stays pending.
func (a *Aggregator) statusFor(overall float64, verdicts []weightedVerdict) profile.ValidationStatus {
	anyInvalid := false
	for _, v := range verdicts {
		if v.IsValid {
			continue
		}
		anyInvalid = true
		if v.Confidence >= disputeConfidence {
			return profile.StatusDisputed
		}
	}
	if !anyInvalid && overall >= a.cfg.ValidatedThreshold {
		return profile.StatusValidated
	}
	return profile.StatusPending
}

func (a *Aggregator) updateProfile(ctx context.Context, p *profile.MasterProfile, overall float64, status profile.ValidationStatus) error {
	now := time.Now().UTC()
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		p.OverallConfidenceScore = overall
		p.ValidationStatus = status
		p.LastValidationDate = &now

		err := a.store.UpdateProfile(ctx, p)
		if err == nil {
			return nil
		}
		if !eris.Is(err, profile.ErrVersionConflict) {
			return err
		}

		fresh, rerr := a.store.GetProfile(ctx, p.ID)
		if rerr != nil {
			return rerr
		}
		if fresh == nil {
			return eris.Errorf("validate: profile %d disappeared", p.ID)
		}
		*p = *fresh
	}
	return eris.Errorf("validate: profile %d contention not resolved", p.ID)
}
