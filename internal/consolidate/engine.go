// Package consolidate merges extracted analysis data into master company
// profiles under a confidence-gated, last-writer-wins merge policy.
package consolidate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-consolidator/internal/config"
	"github.com/sells-group/profile-consolidator/internal/profile"
)

// ErrNotAuthenticated is returned when a consolidation request carries no
// acting user. Nothing is written in that case.
var ErrNotAuthenticated = eris.New("consolidate: authentication required")

// maxVersionRetries bounds re-reads when concurrent writers race on the
// same profile row.
const maxVersionRetries = 3

// Request is one consolidation invocation.
type Request struct {
	AnalysisID string       `json:"analysis_id"`
	UserID     string       `json:"user_id"`
	Data       AnalysisData `json:"data"`
}

// Result reports what consolidation did.
type Result struct {
	ProfileID         int64    `json:"profile_id"`
	Created           bool     `json:"created"`
	MergeID           int64    `json:"merge_id"`
	FieldsUpdated     []string `json:"fields_updated,omitempty"`
	ConflictsResolved int      `json:"conflicts_resolved"`
	Candidates        []int64  `json:"candidates,omitempty"`
}

// Engine runs the consolidation algorithm.
type Engine struct {
	store    profile.Store
	resolver *profile.Resolver
	cfg      config.ConsolidateConfig
	log      *zap.Logger
}

// NewEngine creates a consolidation engine.
func NewEngine(store profile.Store, cfg config.ConsolidateConfig) *Engine {
	return &Engine{
		store:    store,
		resolver: profile.NewResolver(store),
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "consolidate")),
	}
}

// Consolidate resolves (or creates) the master profile for the analysis and
// merges each mapped field under the threshold policy: fields estimated
// below the drop threshold are skipped, fields at or above the auto-apply
// threshold overwrite the canonical value, everything in between is recorded
// as an unapplied contribution for human review.
//
// Re-running with the same analysis id is idempotent: source_analyses is a
// set, and identical applied values do not count as updates.
func (e *Engine) Consolidate(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	if req.AnalysisID == "" {
		return nil, eris.New("consolidate: analysis id is required")
	}
	if req.Data.CompanyName == "" {
		return nil, eris.New("consolidate: company name is required")
	}

	var lastErr error
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		res, err := e.consolidateOnce(ctx, req)
		if err == nil {
			return res, nil
		}
		if !eris.Is(err, profile.ErrVersionConflict) {
			// Ambiguous resolution carries ranked candidates in res; the
			// caller surfaces them alongside the error.
			return res, err
		}
		lastErr = err
		e.log.Warn("version conflict, retrying",
			zap.String("analysis_id", req.AnalysisID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, eris.Wrap(lastErr, "consolidate: profile contention not resolved")
}

func (e *Engine) consolidateOnce(ctx context.Context, req Request) (*Result, error) {
	p, created, candidates, err := e.resolveOrCreate(ctx, req)
	if err != nil {
		if len(candidates) > 0 {
			ids := make([]int64, len(candidates))
			for i := range candidates {
				ids[i] = candidates[i].ID
			}
			return &Result{Candidates: ids}, err
		}
		return nil, err
	}

	qualityBefore := p.DataQualityScore
	confidenceBefore := p.OverallConfidenceScore

	var (
		contributions []profile.Contribution
		fieldsUpdated []string
		conflicts     int
		rollback      = map[string]string{}
		appliedSum    float64
		appliedCount  int
	)

	for _, fm := range fieldMappings {
		newText, err := fieldText(fm.proposed(&req.Data))
		if err != nil || newText == "" {
			// A malformed field never aborts the whole consolidation.
			if err != nil {
				e.log.Warn("skipping malformed field",
					zap.String("field", fm.name), zap.Error(err))
			}
			continue
		}

		score := profile.EstimateFieldConfidence(fm.proposed(&req.Data))
		if score < e.cfg.DropThreshold {
			continue
		}

		oldText, err := fieldText(fm.current(p))
		if err != nil {
			e.log.Warn("skipping field with unreadable canonical value",
				zap.String("field", fm.name), zap.Error(err))
			continue
		}

		applied := score >= e.cfg.AutoApplyThreshold
		contributions = append(contributions, profile.Contribution{
			AnalysisID:  req.AnalysisID,
			Contributor: req.UserID,
			FieldName:   fm.name,
			OldValue:    oldText,
			NewValue:    newText,
			Confidence:  score,
			Applied:     applied,
		})

		if applied {
			appliedSum += score
			appliedCount++
			if newText != oldText {
				fm.apply(p, &req.Data)
				rollback[fm.name] = oldText
				fieldsUpdated = append(fieldsUpdated, fm.name)
				conflicts++
			}
		}
	}

	p.AddSourceAnalysis(req.AnalysisID)
	p.DataCompletenessScore = completenessScore(p)
	p.DataQualityScore = qualityScore(p.DataCompletenessScore, appliedSum, appliedCount)

	if err := e.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}

	for i := range contributions {
		contributions[i].ProfileID = p.ID
		if err := e.store.InsertContribution(ctx, &contributions[i]); err != nil {
			return nil, err
		}
	}

	merge := &profile.Merge{
		ProfileID:         p.ID,
		AnalysisID:        req.AnalysisID,
		MergedBy:          req.UserID,
		FieldsUpdated:     fieldsUpdated,
		ConflictsResolved: conflicts,
		ConfidenceBefore:  confidenceBefore,
		ConfidenceAfter:   p.OverallConfidenceScore,
		QualityBefore:     qualityBefore,
		QualityAfter:      p.DataQualityScore,
		RollbackPayload:   rollback,
	}
	if err := e.store.InsertMerge(ctx, merge); err != nil {
		return nil, err
	}

	e.log.Info("consolidated analysis",
		zap.String("analysis_id", req.AnalysisID),
		zap.Int64("profile_id", p.ID),
		zap.Bool("created", created),
		zap.Int("contributions", len(contributions)),
		zap.Strings("fields_updated", fieldsUpdated),
	)

	return &Result{
		ProfileID:         p.ID,
		Created:           created,
		MergeID:           merge.ID,
		FieldsUpdated:     fieldsUpdated,
		ConflictsResolved: conflicts,
	}, nil
}

// resolveOrCreate finds the target profile or creates one seeded with the
// identity fields only. Descriptive fields flow exclusively through the
// threshold-gated contribution path so a brand-new profile is held to the
// same merge policy as an existing one.
func (e *Engine) resolveOrCreate(ctx context.Context, req Request) (*profile.MasterProfile, bool, []profile.MasterProfile, error) {
	p, candidates, err := e.resolver.Resolve(ctx, req.Data.CompanyName, req.Data.WebsiteURL)
	if err == nil {
		return p, false, nil, nil
	}
	if eris.Is(err, profile.ErrAmbiguous) {
		return nil, false, candidates, err
	}
	if !eris.Is(err, profile.ErrNotFound) {
		return nil, false, nil, err
	}

	p = &profile.MasterProfile{
		CompanyName:      req.Data.CompanyName,
		NormalizedName:   profile.Normalize(req.Data.CompanyName),
		WebsiteURL:       req.Data.WebsiteURL,
		ValidationStatus: profile.StatusUnvalidated,
	}
	if err := e.store.CreateProfile(ctx, p); err != nil {
		return nil, false, nil, err
	}
	e.log.Info("created profile",
		zap.Int64("profile_id", p.ID),
		zap.String("normalized_name", p.NormalizedName),
	)
	return p, true, nil, nil
}

// Rollback reverses a previous merge by restoring the captured pre-merge
// values, then records the reversal as its own merge row.
func (e *Engine) Rollback(ctx context.Context, mergeID int64, userID string) (*Result, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	m, err := e.store.GetMerge(ctx, mergeID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, eris.Errorf("consolidate: merge %d not found", mergeID)
	}
	if m.RolledBack {
		return nil, eris.Errorf("consolidate: merge %d already rolled back", mergeID)
	}
	if len(m.RollbackPayload) == 0 {
		return nil, eris.Errorf("consolidate: merge %d changed no fields", mergeID)
	}

	var lastErr error
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		res, err := e.rollbackOnce(ctx, m, userID)
		if err == nil {
			return res, nil
		}
		if !eris.Is(err, profile.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, eris.Wrap(lastErr, "consolidate: rollback contention not resolved")
}

func (e *Engine) rollbackOnce(ctx context.Context, m *profile.Merge, userID string) (*Result, error) {
	p, err := e.store.GetProfile(ctx, m.ProfileID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Errorf("consolidate: profile %d not found", m.ProfileID)
	}

	qualityBefore := p.DataQualityScore
	var restored []string
	for _, fm := range fieldMappings {
		text, ok := m.RollbackPayload[fm.name]
		if !ok {
			continue
		}
		if err := fm.restore(p, text); err != nil {
			return nil, eris.Wrapf(err, "consolidate: restore field %s", fm.name)
		}
		restored = append(restored, fm.name)
	}

	p.DataCompletenessScore = completenessScore(p)
	p.DataQualityScore = qualityScore(p.DataCompletenessScore, 0, 0)

	if err := e.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	if err := e.store.MarkMergeRolledBack(ctx, m.ID); err != nil {
		return nil, err
	}

	reversal := &profile.Merge{
		ProfileID:         p.ID,
		AnalysisID:        m.AnalysisID,
		MergedBy:          userID,
		FieldsUpdated:     restored,
		ConflictsResolved: len(restored),
		ConfidenceBefore:  p.OverallConfidenceScore,
		ConfidenceAfter:   p.OverallConfidenceScore,
		QualityBefore:     qualityBefore,
		QualityAfter:      p.DataQualityScore,
	}
	if err := e.store.InsertMerge(ctx, reversal); err != nil {
		return nil, err
	}

	e.log.Info("rolled back merge",
		zap.Int64("merge_id", m.ID),
		zap.Int64("profile_id", p.ID),
		zap.Strings("restored_fields", restored),
	)

	return &Result{
		ProfileID:     p.ID,
		MergeID:       reversal.ID,
		FieldsUpdated: restored,
	}, nil
}

// qualityScore blends completeness with the average confidence of the
// contributions applied in this merge. With no applied contributions the
// quality tracks completeness alone.
func qualityScore(completeness, appliedSum float64, appliedCount int) float64 {
	if appliedCount == 0 {
		return profile.ClampScore(completeness)
	}
	avg := appliedSum / float64(appliedCount)
	return profile.ClampScore((completeness + avg) / 2)
}
