package validate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/profile-consolidator/internal/config"
	"github.com/sells-group/profile-consolidator/internal/profile"
)

// failureConfidence is the verdict confidence recorded when a validator
// errors, times out, or is cancelled. The attempt is logged either way so
// the validation history stays complete.
const failureConfidence = 0.1

// telemetryAlpha is the EWMA smoothing factor for source telemetry.
const telemetryAlpha = 0.3

// SourceResult is the outcome of one validator in a batch.
type SourceResult struct {
	Source   string
	Verdicts []Verdict
	Err      error
	Duration time.Duration
}

// BatchResult summarizes one validation batch.
type BatchResult struct {
	BatchID           string
	ProfileID         int64
	Results           []SourceResult
	OverallConfidence float64
	Status            profile.ValidationStatus
}

// Orchestrator fans a profile out to all applicable source validators,
// persists every verdict, and folds the results into the profile's
// aggregate confidence.
type Orchestrator struct {
	store      profile.Store
	validators []SourceValidator
	aggregator *Aggregator
	cfg        config.ValidationConfig
	log        *zap.Logger
}

// NewOrchestrator creates a validation orchestrator over the given
// validators.
func NewOrchestrator(store profile.Store, validators []SourceValidator, cfg config.ValidationConfig) *Orchestrator {
	return &Orchestrator{
		store:      store,
		validators: validators,
		aggregator: NewAggregator(store, cfg),
		cfg:        cfg,
		log:        zap.L().With(zap.String("component", "validate")),
	}
}

// Validate runs every validator covering the requested categories against
// the profile. Validators run concurrently, each under its own timeout; a
// validator failure produces a low-confidence logged verdict, never an
// aborted batch.
func (o *Orchestrator) Validate(ctx context.Context, profileID int64, categories []string) (*BatchResult, error) {
	p, err := o.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Errorf("validate: profile %d not found", profileID)
	}

	selected := o.selectValidators(ctx, categories)
	batchID := uuid.New().String()

	results := make([]SourceResult, len(selected))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range selected {
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, o.cfg.ValidatorTimeout())
			defer cancel()

			start := time.Now()
			verdicts, verr := v.Validate(vctx, p)
			elapsed := time.Since(start)

			if verr != nil {
				o.log.Warn("validator failed",
					zap.String("source", v.Name()),
					zap.Int64("profile_id", p.ID),
					zap.Error(verr),
				)
				verdicts = []Verdict{{
					FieldName:         "company_name",
					OriginalValue:     p.CompanyName,
					Method:            "source_error",
					IsValid:           false,
					Confidence:        failureConfidence,
					DiscrepancyReason: verr.Error(),
				}}
			}

			mu.Lock()
			results[i] = SourceResult{
				Source:   v.Name(),
				Verdicts: verdicts,
				Err:      verr,
				Duration: elapsed,
			}
			mu.Unlock()
			return nil
		})
	}
	// Validators never return errors through the group; Wait only
	// observes context cancellation.
	_ = g.Wait()

	// Persist on a cancellation-immune context: even when the caller gave
	// up and every validator was cut off, the failure verdicts and the
	// aggregate still land in the history.
	pctx := context.WithoutCancel(ctx)
	for _, r := range results {
		o.persistResult(pctx, p, batchID, r)
	}

	overall, status, err := o.aggregator.Apply(pctx, p, batchID, results)
	if err != nil {
		return nil, err
	}

	o.log.Info("validation batch complete",
		zap.String("batch_id", batchID),
		zap.Int64("profile_id", p.ID),
		zap.Int("sources", len(results)),
		zap.Float64("overall_confidence", overall),
		zap.String("status", string(status)),
	)

	return &BatchResult{
		BatchID:           batchID,
		ProfileID:         p.ID,
		Results:           results,
		OverallConfidence: overall,
		Status:            status,
	}, nil
}

// selectValidators filters registered validators by the requested
// categories and by the active flag on their trusted-source row. A
// validator with no configured source row runs by default.
func (o *Orchestrator) selectValidators(ctx context.Context, categories []string) []SourceValidator {
	var out []SourceValidator
	for _, v := range o.validators {
		if !categoryApplies(v.Categories(), categories) {
			continue
		}
		src, err := o.store.GetSourceByName(ctx, v.Name())
		if err != nil {
			o.log.Warn("trusted source lookup failed",
				zap.String("source", v.Name()), zap.Error(err))
		}
		if src != nil && !src.Active {
			continue
		}
		out = append(out, v)
	}
	return out
}

// persistResult writes one log row per verdict and updates the source's
// observed telemetry. Logging failures are reported but do not fail the
// batch; the aggregate still reflects the in-memory verdicts.
func (o *Orchestrator) persistResult(ctx context.Context, p *profile.MasterProfile, batchID string, r SourceResult) {
	for _, verdict := range r.Verdicts {
		l := &profile.ValidationLog{
			ProfileID:         p.ID,
			BatchID:           batchID,
			FieldName:         verdict.FieldName,
			OriginalValue:     verdict.OriginalValue,
			ValidatedValue:    verdict.ValidatedValue,
			ValidationSource:  r.Source,
			Method:            verdict.Method,
			IsValid:           verdict.IsValid,
			ConfidenceScore:   verdict.Confidence,
			DiscrepancyReason: verdict.DiscrepancyReason,
			RawResponse:       verdict.Raw,
		}
		if err := o.store.InsertValidationLog(ctx, l); err != nil {
			o.log.Error("persist validation log",
				zap.String("source", r.Source), zap.Error(err))
		}
	}

	src, err := o.store.GetSourceByName(ctx, r.Source)
	if err != nil || src == nil {
		return
	}
	failed := 0.0
	if r.Err != nil {
		failed = 1.0
	}
	errorRate := telemetryAlpha*failed + (1-telemetryAlpha)*src.ErrorRate
	avgMS := telemetryAlpha*float64(r.Duration.Milliseconds()) + (1-telemetryAlpha)*src.AvgResponseMS
	if err := o.store.UpdateSourceTelemetry(ctx, r.Source, errorRate, avgMS); err != nil {
		o.log.Warn("update source telemetry",
			zap.String("source", r.Source), zap.Error(err))
	}
}
