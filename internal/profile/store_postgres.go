package profile

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-consolidator/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// CreateProfile inserts a new profile and sets its ID, version and timestamps.
func (s *PostgresStore) CreateProfile(ctx context.Context, p *MasterProfile) error {
	techStack, keyExecs, finMetrics, funding, err := marshalStructured(p)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO master_company_profiles (
			company_name, normalized_name, website_url,
			industry, headquarters, founded_year, employee_count, revenue_estimate,
			business_model, description,
			technology_stack, key_executives, financial_metrics, funding_rounds,
			competitive_advantages, target_markets, key_products, partnerships, certifications,
			overall_confidence_score, data_completeness_score, data_quality_score,
			validation_status, source_analyses, last_validation_date
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22,
			$23, $24, $25
		) RETURNING id, version, created_at, updated_at`,
		p.CompanyName, p.NormalizedName, p.WebsiteURL,
		p.Industry, p.Headquarters, p.FoundedYear, p.EmployeeCount, p.RevenueEstimate,
		p.BusinessModel, p.Description,
		techStack, keyExecs, finMetrics, funding,
		textArray(p.CompetitiveAdvantages), textArray(p.TargetMarkets), textArray(p.KeyProducts),
		textArray(p.Partnerships), textArray(p.Certifications),
		p.OverallConfidenceScore, p.DataCompletenessScore, p.DataQualityScore,
		string(p.ValidationStatus), textArray(p.SourceAnalyses), p.LastValidationDate,
	).Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "profile: create")
	}
	return nil
}

// UpdateProfile persists the profile guarded by its optimistic version
// token. A stale version returns ErrVersionConflict with no row changed.
func (s *PostgresStore) UpdateProfile(ctx context.Context, p *MasterProfile) error {
	techStack, keyExecs, finMetrics, funding, err := marshalStructured(p)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE master_company_profiles SET
			company_name=$3, normalized_name=$4, website_url=$5,
			industry=$6, headquarters=$7, founded_year=$8, employee_count=$9, revenue_estimate=$10,
			business_model=$11, description=$12,
			technology_stack=$13, key_executives=$14, financial_metrics=$15, funding_rounds=$16,
			competitive_advantages=$17, target_markets=$18, key_products=$19, partnerships=$20, certifications=$21,
			overall_confidence_score=$22, data_completeness_score=$23, data_quality_score=$24,
			validation_status=$25, source_analyses=$26, last_validation_date=$27,
			version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`,
		p.ID, p.Version,
		p.CompanyName, p.NormalizedName, p.WebsiteURL,
		p.Industry, p.Headquarters, p.FoundedYear, p.EmployeeCount, p.RevenueEstimate,
		p.BusinessModel, p.Description,
		techStack, keyExecs, finMetrics, funding,
		textArray(p.CompetitiveAdvantages), textArray(p.TargetMarkets), textArray(p.KeyProducts),
		textArray(p.Partnerships), textArray(p.Certifications),
		p.OverallConfidenceScore, p.DataCompletenessScore, p.DataQualityScore,
		string(p.ValidationStatus), textArray(p.SourceAnalyses), p.LastValidationDate,
	)
	if err != nil {
		return eris.Wrapf(err, "profile: update %d", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	p.Version++
	return nil
}

// GetProfile fetches a profile by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetProfile(ctx context.Context, id int64) (*MasterProfile, error) {
	return s.queryProfile(ctx, `SELECT `+profileColumns+` FROM master_company_profiles WHERE id=$1`, id)
}

// GetProfileByNormalizedName fetches a profile by its normalized name.
func (s *PostgresStore) GetProfileByNormalizedName(ctx context.Context, normalized string) (*MasterProfile, error) {
	return s.queryProfile(ctx, `
		SELECT `+profileColumns+`
		FROM master_company_profiles WHERE normalized_name=$1
		ORDER BY id LIMIT 1`, normalized)
}

// SearchProfiles finds profiles whose normalized or display name contains
// the query, case-insensitively.
func (s *PostgresStore) SearchProfiles(ctx context.Context, query string, limit int) ([]MasterProfile, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM master_company_profiles
		WHERE normalized_name ILIKE '%' || $1 || '%'
		   OR company_name ILIKE '%' || $1 || '%'
		   OR $1 ILIKE '%' || normalized_name || '%'
		ORDER BY length(normalized_name) ASC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "profile: search by name")
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (s *PostgresStore) queryProfile(ctx context.Context, sql string, args ...any) (*MasterProfile, error) {
	p := &MasterProfile{}
	raw := newProfileRaw()
	err := s.pool.QueryRow(ctx, sql, args...).Scan(profileDests(p, raw)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "profile: get")
	}
	if err := raw.apply(p); err != nil {
		return nil, err
	}
	return p, nil
}

// InsertContribution inserts a proposed field change.
func (s *PostgresStore) InsertContribution(ctx context.Context, c *Contribution) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO master_profile_contributions
			(profile_id, analysis_id, contributor, field_name, old_value, new_value, confidence, applied)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		c.ProfileID, c.AnalysisID, c.Contributor, c.FieldName,
		c.OldValue, c.NewValue, c.Confidence, c.Applied,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "profile: insert contribution")
	}
	return nil
}

// GetContribution fetches one contribution by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetContribution(ctx context.Context, id int64) (*Contribution, error) {
	c := &Contribution{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, profile_id, analysis_id, contributor, field_name, old_value, new_value,
			confidence, applied, is_verified, verified_by, verified_at, created_at
		FROM master_profile_contributions WHERE id=$1`, id).
		Scan(&c.ID, &c.ProfileID, &c.AnalysisID, &c.Contributor, &c.FieldName,
			&c.OldValue, &c.NewValue, &c.Confidence, &c.Applied,
			&c.IsVerified, &c.VerifiedBy, &c.VerifiedAt, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "profile: get contribution %d", id)
	}
	return c, nil
}

// ListContributions returns all contributions for a profile, newest first.
func (s *PostgresStore) ListContributions(ctx context.Context, profileID int64) ([]Contribution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, analysis_id, contributor, field_name, old_value, new_value,
			confidence, applied, is_verified, verified_by, verified_at, created_at
		FROM master_profile_contributions WHERE profile_id=$1 ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list contributions")
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.AnalysisID, &c.Contributor, &c.FieldName,
			&c.OldValue, &c.NewValue, &c.Confidence, &c.Applied,
			&c.IsVerified, &c.VerifiedBy, &c.VerifiedAt, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "profile: scan contribution")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VerifyContribution marks a contribution as human-verified. This never
// touches the canonical profile; it only flags the contribution as trusted
// for future scoring.
func (s *PostgresStore) VerifyContribution(ctx context.Context, id int64, verifiedBy string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE master_profile_contributions
		SET is_verified=true, verified_by=$2, verified_at=now()
		WHERE id=$1`, id, verifiedBy)
	if err != nil {
		return eris.Wrapf(err, "profile: verify contribution %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("profile: contribution %d not found", id)
	}
	return nil
}

// InsertMerge appends one consolidation audit record.
func (s *PostgresStore) InsertMerge(ctx context.Context, m *Merge) error {
	payload, err := json.Marshal(m.RollbackPayload)
	if err != nil {
		return eris.Wrap(err, "profile: marshal rollback payload")
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO master_profile_merges
			(profile_id, analysis_id, merged_by, fields_updated, conflicts_resolved,
			 confidence_before, confidence_after, quality_before, quality_after, rollback_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		m.ProfileID, m.AnalysisID, m.MergedBy, textArray(m.FieldsUpdated), m.ConflictsResolved,
		m.ConfidenceBefore, m.ConfidenceAfter, m.QualityBefore, m.QualityAfter, payload,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "profile: insert merge")
	}
	return nil
}

// GetMerge fetches one merge record by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetMerge(ctx context.Context, id int64) (*Merge, error) {
	m := &Merge{}
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, profile_id, analysis_id, merged_by, fields_updated, conflicts_resolved,
			confidence_before, confidence_after, quality_before, quality_after,
			rollback_payload, rolled_back, created_at
		FROM master_profile_merges WHERE id=$1`, id).
		Scan(&m.ID, &m.ProfileID, &m.AnalysisID, &m.MergedBy, &m.FieldsUpdated, &m.ConflictsResolved,
			&m.ConfidenceBefore, &m.ConfidenceAfter, &m.QualityBefore, &m.QualityAfter,
			&payload, &m.RolledBack, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "profile: get merge %d", id)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &m.RollbackPayload); err != nil {
			return nil, eris.Wrapf(err, "profile: unmarshal rollback payload for merge %d", id)
		}
	}
	return m, nil
}

// ListMerges returns all merge records for a profile, newest first.
func (s *PostgresStore) ListMerges(ctx context.Context, profileID int64) ([]Merge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, analysis_id, merged_by, fields_updated, conflicts_resolved,
			confidence_before, confidence_after, quality_before, quality_after,
			rollback_payload, rolled_back, created_at
		FROM master_profile_merges WHERE profile_id=$1 ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list merges")
	}
	defer rows.Close()

	var out []Merge
	for rows.Next() {
		var m Merge
		var payload []byte
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.AnalysisID, &m.MergedBy, &m.FieldsUpdated,
			&m.ConflictsResolved, &m.ConfidenceBefore, &m.ConfidenceAfter,
			&m.QualityBefore, &m.QualityAfter, &payload, &m.RolledBack, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "profile: scan merge")
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &m.RollbackPayload); err != nil {
				return nil, eris.Wrap(err, "profile: unmarshal rollback payload")
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMergeRolledBack flags a merge as reversed.
func (s *PostgresStore) MarkMergeRolledBack(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE master_profile_merges SET rolled_back=true WHERE id=$1 AND rolled_back=false`, id)
	if err != nil {
		return eris.Wrapf(err, "profile: mark merge %d rolled back", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("profile: merge %d not found or already rolled back", id)
	}
	return nil
}

// InsertValidationLog appends one validation attempt row.
func (s *PostgresStore) InsertValidationLog(ctx context.Context, l *ValidationLog) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO data_validation_logs
			(profile_id, batch_id, field_name, original_value, validated_value,
			 validation_source, method, is_valid, confidence_score, discrepancy_reason, raw_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		l.ProfileID, l.BatchID, l.FieldName, l.OriginalValue, l.ValidatedValue,
		l.ValidationSource, l.Method, l.IsValid, l.ConfidenceScore, l.DiscrepancyReason, l.RawResponse,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "profile: insert validation log")
	}
	return nil
}

// ListValidationLogs returns all validation logs for a profile, newest first.
func (s *PostgresStore) ListValidationLogs(ctx context.Context, profileID int64) ([]ValidationLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, batch_id, field_name, original_value, validated_value,
			validation_source, method, is_valid, confidence_score, discrepancy_reason,
			raw_response, created_at
		FROM data_validation_logs WHERE profile_id=$1 ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list validation logs")
	}
	defer rows.Close()

	var out []ValidationLog
	for rows.Next() {
		var l ValidationLog
		if err := rows.Scan(&l.ID, &l.ProfileID, &l.BatchID, &l.FieldName,
			&l.OriginalValue, &l.ValidatedValue, &l.ValidationSource, &l.Method,
			&l.IsValid, &l.ConfidenceScore, &l.DiscrepancyReason,
			&l.RawResponse, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "profile: scan validation log")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertConfidenceSnapshot appends one confidence history row.
func (s *PostgresStore) InsertConfidenceSnapshot(ctx context.Context, snap *ConfidenceSnapshot) error {
	sources, err := json.Marshal(snap.ContributingSources)
	if err != nil {
		return eris.Wrap(err, "profile: marshal contributing sources")
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO confidence_history
			(profile_id, field_name, confidence_score, contributing_sources, calculation_method)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		snap.ProfileID, snap.FieldName, snap.ConfidenceScore, sources, snap.CalculationMethod,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "profile: insert confidence snapshot")
	}
	return nil
}

// ListConfidenceHistory returns the confidence time series for a profile,
// newest first.
func (s *PostgresStore) ListConfidenceHistory(ctx context.Context, profileID int64) ([]ConfidenceSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, field_name, confidence_score, contributing_sources,
			calculation_method, created_at
		FROM confidence_history WHERE profile_id=$1 ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list confidence history")
	}
	defer rows.Close()

	var out []ConfidenceSnapshot
	for rows.Next() {
		var snap ConfidenceSnapshot
		var sources []byte
		if err := rows.Scan(&snap.ID, &snap.ProfileID, &snap.FieldName, &snap.ConfidenceScore,
			&sources, &snap.CalculationMethod, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "profile: scan confidence snapshot")
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &snap.ContributingSources); err != nil {
				return nil, eris.Wrap(err, "profile: unmarshal contributing sources")
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListActiveSources returns all active trusted data sources.
func (s *PostgresStore) ListActiveSources(ctx context.Context) ([]TrustedSource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, source_type, authority_weight, rate_limit_per_min, active,
			categories, error_rate, avg_response_ms, created_at, updated_at
		FROM trusted_data_sources WHERE active=true ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list active sources")
	}
	defer rows.Close()

	var out []TrustedSource
	for rows.Next() {
		var src TrustedSource
		if err := rows.Scan(&src.ID, &src.Name, &src.SourceType, &src.AuthorityWeight,
			&src.RateLimitPerMin, &src.Active, &src.Categories,
			&src.ErrorRate, &src.AvgResponseMS, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "profile: scan trusted source")
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// GetSourceByName fetches one trusted source. Returns (nil, nil) when absent.
func (s *PostgresStore) GetSourceByName(ctx context.Context, name string) (*TrustedSource, error) {
	src := &TrustedSource{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, source_type, authority_weight, rate_limit_per_min, active,
			categories, error_rate, avg_response_ms, created_at, updated_at
		FROM trusted_data_sources WHERE name=$1`, name).
		Scan(&src.ID, &src.Name, &src.SourceType, &src.AuthorityWeight,
			&src.RateLimitPerMin, &src.Active, &src.Categories,
			&src.ErrorRate, &src.AvgResponseMS, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "profile: get source %s", name)
	}
	return src, nil
}

// UpsertSource inserts or updates a trusted data source by name.
func (s *PostgresStore) UpsertSource(ctx context.Context, src *TrustedSource) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trusted_data_sources
			(name, source_type, authority_weight, rate_limit_per_min, active, categories)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			source_type=EXCLUDED.source_type,
			authority_weight=EXCLUDED.authority_weight,
			rate_limit_per_min=EXCLUDED.rate_limit_per_min,
			active=EXCLUDED.active,
			categories=EXCLUDED.categories,
			updated_at=now()
		RETURNING id, created_at, updated_at`,
		src.Name, src.SourceType, src.AuthorityWeight, src.RateLimitPerMin,
		src.Active, textArray(src.Categories),
	).Scan(&src.ID, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "profile: upsert source %s", src.Name)
	}
	return nil
}

// UpdateSourceTelemetry records observed error rate and response time.
func (s *PostgresStore) UpdateSourceTelemetry(ctx context.Context, name string, errorRate, avgResponseMS float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE trusted_data_sources
		SET error_rate=$2, avg_response_ms=$3, updated_at=now()
		WHERE name=$1`, name, errorRate, avgResponseMS)
	if err != nil {
		return eris.Wrapf(err, "profile: update telemetry for %s", name)
	}
	return nil
}

// profileColumns is the standard column list for profile queries.
const profileColumns = `id, company_name, normalized_name, website_url,
	industry, headquarters, founded_year, employee_count, revenue_estimate,
	business_model, description,
	technology_stack, key_executives, financial_metrics, funding_rounds,
	competitive_advantages, target_markets, key_products, partnerships, certifications,
	overall_confidence_score, data_completeness_score, data_quality_score,
	validation_status, source_analyses, version,
	created_at, updated_at, last_validation_date`

// profileRaw holds JSONB columns that need a post-scan unmarshal.
type profileRaw struct {
	techStack  []byte
	keyExecs   []byte
	finMetrics []byte
	funding    []byte
	status     string
}

func newProfileRaw() *profileRaw { return &profileRaw{} }

func (r *profileRaw) apply(p *MasterProfile) error {
	p.ValidationStatus = ValidationStatus(r.status)
	if len(r.techStack) > 0 {
		if err := json.Unmarshal(r.techStack, &p.TechnologyStack); err != nil {
			return eris.Wrap(err, "profile: unmarshal technology_stack")
		}
	}
	if len(r.keyExecs) > 0 {
		if err := json.Unmarshal(r.keyExecs, &p.KeyExecutives); err != nil {
			return eris.Wrap(err, "profile: unmarshal key_executives")
		}
	}
	if len(r.finMetrics) > 0 {
		if err := json.Unmarshal(r.finMetrics, &p.FinancialMetrics); err != nil {
			return eris.Wrap(err, "profile: unmarshal financial_metrics")
		}
	}
	if len(r.funding) > 0 {
		if err := json.Unmarshal(r.funding, &p.FundingRounds); err != nil {
			return eris.Wrap(err, "profile: unmarshal funding_rounds")
		}
	}
	return nil
}

// profileDests returns scan destinations for a MasterProfile.
func profileDests(p *MasterProfile, raw *profileRaw) []any {
	return []any{
		&p.ID, &p.CompanyName, &p.NormalizedName, &p.WebsiteURL,
		&p.Industry, &p.Headquarters, &p.FoundedYear, &p.EmployeeCount, &p.RevenueEstimate,
		&p.BusinessModel, &p.Description,
		&raw.techStack, &raw.keyExecs, &raw.finMetrics, &raw.funding,
		&p.CompetitiveAdvantages, &p.TargetMarkets, &p.KeyProducts, &p.Partnerships, &p.Certifications,
		&p.OverallConfidenceScore, &p.DataCompletenessScore, &p.DataQualityScore,
		&raw.status, &p.SourceAnalyses, &p.Version,
		&p.CreatedAt, &p.UpdatedAt, &p.LastValidationDate,
	}
}

func scanProfiles(rows pgx.Rows) ([]MasterProfile, error) {
	var profiles []MasterProfile
	for rows.Next() {
		var p MasterProfile
		raw := newProfileRaw()
		if err := rows.Scan(profileDests(&p, raw)...); err != nil {
			return nil, eris.Wrap(err, "profile: scan")
		}
		if err := raw.apply(&p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// marshalStructured serializes the JSONB value objects, passing NULL for
// absent ones.
func marshalStructured(p *MasterProfile) (techStack, keyExecs, finMetrics, funding []byte, err error) {
	if p.TechnologyStack != nil {
		if techStack, err = json.Marshal(p.TechnologyStack); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "profile: marshal technology_stack")
		}
	}
	if len(p.KeyExecutives) > 0 {
		if keyExecs, err = json.Marshal(p.KeyExecutives); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "profile: marshal key_executives")
		}
	}
	if p.FinancialMetrics != nil {
		if finMetrics, err = json.Marshal(p.FinancialMetrics); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "profile: marshal financial_metrics")
		}
	}
	if len(p.FundingRounds) > 0 {
		if funding, err = json.Marshal(p.FundingRounds); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "profile: marshal funding_rounds")
		}
	}
	return techStack, keyExecs, finMetrics, funding, nil
}

// textArray normalizes nil slices to empty so NOT NULL array columns accept them.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
