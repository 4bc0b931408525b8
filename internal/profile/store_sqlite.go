package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and tests; the serialization guarantees match the Postgres
// store via the same optimistic version column.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS master_company_profiles (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name           TEXT NOT NULL,
	normalized_name        TEXT NOT NULL,
	website_url            TEXT NOT NULL DEFAULT '',
	industry               TEXT NOT NULL DEFAULT '',
	headquarters           TEXT NOT NULL DEFAULT '',
	founded_year           INTEGER,
	employee_count         INTEGER,
	revenue_estimate       INTEGER,
	business_model         TEXT NOT NULL DEFAULT '',
	description            TEXT NOT NULL DEFAULT '',
	technology_stack       TEXT,
	key_executives         TEXT,
	financial_metrics      TEXT,
	funding_rounds         TEXT,
	competitive_advantages TEXT NOT NULL DEFAULT '[]',
	target_markets         TEXT NOT NULL DEFAULT '[]',
	key_products           TEXT NOT NULL DEFAULT '[]',
	partnerships           TEXT NOT NULL DEFAULT '[]',
	certifications         TEXT NOT NULL DEFAULT '[]',
	overall_confidence_score REAL NOT NULL DEFAULT 0,
	data_completeness_score  REAL NOT NULL DEFAULT 0,
	data_quality_score       REAL NOT NULL DEFAULT 0,
	validation_status      TEXT NOT NULL DEFAULT 'unvalidated',
	source_analyses        TEXT NOT NULL DEFAULT '[]',
	version                INTEGER NOT NULL DEFAULT 1,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	last_validation_date   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_profiles_normalized_name ON master_company_profiles(normalized_name);

CREATE TABLE IF NOT EXISTS data_validation_logs (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id         INTEGER NOT NULL REFERENCES master_company_profiles(id),
	batch_id           TEXT NOT NULL DEFAULT '',
	field_name         TEXT NOT NULL,
	original_value     TEXT NOT NULL DEFAULT '',
	validated_value    TEXT NOT NULL DEFAULT '',
	validation_source  TEXT NOT NULL,
	method             TEXT NOT NULL DEFAULT '',
	is_valid           INTEGER NOT NULL,
	confidence_score   REAL NOT NULL,
	discrepancy_reason TEXT NOT NULL DEFAULT '',
	raw_response       TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_validation_logs_profile ON data_validation_logs(profile_id);

CREATE TABLE IF NOT EXISTS master_profile_merges (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id         INTEGER NOT NULL REFERENCES master_company_profiles(id),
	analysis_id        TEXT NOT NULL,
	merged_by          TEXT NOT NULL DEFAULT '',
	fields_updated     TEXT NOT NULL DEFAULT '[]',
	conflicts_resolved INTEGER NOT NULL DEFAULT 0,
	confidence_before  REAL NOT NULL DEFAULT 0,
	confidence_after   REAL NOT NULL DEFAULT 0,
	quality_before     REAL NOT NULL DEFAULT 0,
	quality_after      REAL NOT NULL DEFAULT 0,
	rollback_payload   TEXT,
	rolled_back        INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_merges_profile ON master_profile_merges(profile_id);

CREATE TABLE IF NOT EXISTS confidence_history (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id           INTEGER NOT NULL REFERENCES master_company_profiles(id),
	field_name           TEXT NOT NULL DEFAULT '',
	confidence_score     REAL NOT NULL,
	contributing_sources TEXT,
	calculation_method   TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_confidence_history_profile ON confidence_history(profile_id);

CREATE TABLE IF NOT EXISTS master_profile_contributions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id  INTEGER NOT NULL REFERENCES master_company_profiles(id),
	analysis_id TEXT NOT NULL,
	contributor TEXT NOT NULL DEFAULT '',
	field_name  TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	confidence  REAL NOT NULL,
	applied     INTEGER NOT NULL DEFAULT 0,
	is_verified INTEGER NOT NULL DEFAULT 0,
	verified_by TEXT NOT NULL DEFAULT '',
	verified_at DATETIME,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contributions_profile ON master_profile_contributions(profile_id);

CREATE TABLE IF NOT EXISTS trusted_data_sources (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	name               TEXT NOT NULL UNIQUE,
	source_type        TEXT NOT NULL,
	authority_weight   REAL NOT NULL DEFAULT 0.5,
	rate_limit_per_min INTEGER NOT NULL DEFAULT 60,
	active             INTEGER NOT NULL DEFAULT 1,
	categories         TEXT NOT NULL DEFAULT '[]',
	error_rate         REAL NOT NULL DEFAULT 0,
	avg_response_ms    REAL NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProfile inserts a new profile and sets its ID, version and timestamps.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *MasterProfile) error {
	now := time.Now().UTC()
	enc, err := encodeProfileJSON(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO master_company_profiles (
			company_name, normalized_name, website_url,
			industry, headquarters, founded_year, employee_count, revenue_estimate,
			business_model, description,
			technology_stack, key_executives, financial_metrics, funding_rounds,
			competitive_advantages, target_markets, key_products, partnerships, certifications,
			overall_confidence_score, data_completeness_score, data_quality_score,
			validation_status, source_analyses, version, created_at, updated_at, last_validation_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		p.CompanyName, p.NormalizedName, p.WebsiteURL,
		p.Industry, p.Headquarters, p.FoundedYear, p.EmployeeCount, p.RevenueEstimate,
		p.BusinessModel, p.Description,
		enc.techStack, enc.keyExecs, enc.finMetrics, enc.funding,
		enc.advantages, enc.markets, enc.products, enc.partnerships, enc.certifications,
		p.OverallConfidenceScore, p.DataCompletenessScore, p.DataQualityScore,
		string(p.ValidationStatus), enc.sourceAnalyses, now, now, p.LastValidationDate,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert profile")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: profile last insert id")
	}
	p.ID = id
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProfile persists the profile guarded by its version token.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, p *MasterProfile) error {
	enc, err := encodeProfileJSON(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE master_company_profiles SET
			company_name=?, normalized_name=?, website_url=?,
			industry=?, headquarters=?, founded_year=?, employee_count=?, revenue_estimate=?,
			business_model=?, description=?,
			technology_stack=?, key_executives=?, financial_metrics=?, funding_rounds=?,
			competitive_advantages=?, target_markets=?, key_products=?, partnerships=?, certifications=?,
			overall_confidence_score=?, data_completeness_score=?, data_quality_score=?,
			validation_status=?, source_analyses=?, last_validation_date=?,
			version=version+1, updated_at=?
		WHERE id=? AND version=?`,
		p.CompanyName, p.NormalizedName, p.WebsiteURL,
		p.Industry, p.Headquarters, p.FoundedYear, p.EmployeeCount, p.RevenueEstimate,
		p.BusinessModel, p.Description,
		enc.techStack, enc.keyExecs, enc.finMetrics, enc.funding,
		enc.advantages, enc.markets, enc.products, enc.partnerships, enc.certifications,
		p.OverallConfidenceScore, p.DataCompletenessScore, p.DataQualityScore,
		string(p.ValidationStatus), enc.sourceAnalyses, p.LastValidationDate,
		now, p.ID, p.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update profile %d", p.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: update profile rows affected")
	}
	if n == 0 {
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

const sqliteProfileColumns = `id, company_name, normalized_name, website_url,
	industry, headquarters, founded_year, employee_count, revenue_estimate,
	business_model, description,
	technology_stack, key_executives, financial_metrics, funding_rounds,
	competitive_advantages, target_markets, key_products, partnerships, certifications,
	overall_confidence_score, data_completeness_score, data_quality_score,
	validation_status, source_analyses, version, created_at, updated_at, last_validation_date`

// GetProfile fetches a profile by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetProfile(ctx context.Context, id int64) (*MasterProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteProfileColumns+` FROM master_company_profiles WHERE id=?`, id)
	return scanSQLiteProfile(row)
}

// GetProfileByNormalizedName fetches a profile by its normalized name.
func (s *SQLiteStore) GetProfileByNormalizedName(ctx context.Context, normalized string) (*MasterProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteProfileColumns+` FROM master_company_profiles
		 WHERE normalized_name=? ORDER BY id LIMIT 1`, normalized)
	return scanSQLiteProfile(row)
}

// SearchProfiles finds profiles whose normalized or display name contains
// the query, case-insensitively.
func (s *SQLiteStore) SearchProfiles(ctx context.Context, query string, limit int) ([]MasterProfile, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteProfileColumns+`
		FROM master_company_profiles
		WHERE normalized_name LIKE '%' || ? || '%'
		   OR lower(company_name) LIKE '%' || lower(?) || '%'
		   OR ? LIKE '%' || normalized_name || '%'
		ORDER BY length(normalized_name) ASC
		LIMIT ?`, query, query, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search profiles")
	}
	defer rows.Close()

	var out []MasterProfile
	for rows.Next() {
		p, err := scanSQLiteProfileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// InsertContribution inserts a proposed field change.
func (s *SQLiteStore) InsertContribution(ctx context.Context, c *Contribution) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO master_profile_contributions
			(profile_id, analysis_id, contributor, field_name, old_value, new_value, confidence, applied, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProfileID, c.AnalysisID, c.Contributor, c.FieldName,
		c.OldValue, c.NewValue, c.Confidence, c.Applied, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert contribution")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: contribution last insert id")
	}
	c.ID = id
	c.CreatedAt = now
	return nil
}

// GetContribution fetches one contribution by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetContribution(ctx context.Context, id int64) (*Contribution, error) {
	c := &Contribution{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, analysis_id, contributor, field_name, old_value, new_value,
			confidence, applied, is_verified, verified_by, verified_at, created_at
		FROM master_profile_contributions WHERE id=?`, id).
		Scan(&c.ID, &c.ProfileID, &c.AnalysisID, &c.Contributor, &c.FieldName,
			&c.OldValue, &c.NewValue, &c.Confidence, &c.Applied,
			&c.IsVerified, &c.VerifiedBy, &c.VerifiedAt, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get contribution %d", id)
	}
	return c, nil
}

// ListContributions returns all contributions for a profile, newest first.
func (s *SQLiteStore) ListContributions(ctx context.Context, profileID int64) ([]Contribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, analysis_id, contributor, field_name, old_value, new_value,
			confidence, applied, is_verified, verified_by, verified_at, created_at
		FROM master_profile_contributions WHERE profile_id=? ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contributions")
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.AnalysisID, &c.Contributor, &c.FieldName,
			&c.OldValue, &c.NewValue, &c.Confidence, &c.Applied,
			&c.IsVerified, &c.VerifiedBy, &c.VerifiedAt, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contribution")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VerifyContribution marks a contribution as human-verified.
func (s *SQLiteStore) VerifyContribution(ctx context.Context, id int64, verifiedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE master_profile_contributions
		SET is_verified=1, verified_by=?, verified_at=?
		WHERE id=?`, verifiedBy, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: verify contribution %d", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return eris.Errorf("sqlite: contribution %d not found", id)
	}
	return nil
}

// InsertMerge appends one consolidation audit record.
func (s *SQLiteStore) InsertMerge(ctx context.Context, m *Merge) error {
	now := time.Now().UTC()
	fields, err := json.Marshal(textArray(m.FieldsUpdated))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields_updated")
	}
	payload, err := json.Marshal(m.RollbackPayload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rollback payload")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO master_profile_merges
			(profile_id, analysis_id, merged_by, fields_updated, conflicts_resolved,
			 confidence_before, confidence_after, quality_before, quality_after,
			 rollback_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ProfileID, m.AnalysisID, m.MergedBy, string(fields), m.ConflictsResolved,
		m.ConfidenceBefore, m.ConfidenceAfter, m.QualityBefore, m.QualityAfter,
		string(payload), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert merge")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: merge last insert id")
	}
	m.ID = id
	m.CreatedAt = now
	return nil
}

// GetMerge fetches one merge record by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetMerge(ctx context.Context, id int64) (*Merge, error) {
	m := &Merge{}
	var fields, payload sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, analysis_id, merged_by, fields_updated, conflicts_resolved,
			confidence_before, confidence_after, quality_before, quality_after,
			rollback_payload, rolled_back, created_at
		FROM master_profile_merges WHERE id=?`, id).
		Scan(&m.ID, &m.ProfileID, &m.AnalysisID, &m.MergedBy, &fields, &m.ConflictsResolved,
			&m.ConfidenceBefore, &m.ConfidenceAfter, &m.QualityBefore, &m.QualityAfter,
			&payload, &m.RolledBack, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get merge %d", id)
	}
	if err := decodeMergeJSON(m, fields, payload); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMerges returns all merge records for a profile, newest first.
func (s *SQLiteStore) ListMerges(ctx context.Context, profileID int64) ([]Merge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, analysis_id, merged_by, fields_updated, conflicts_resolved,
			confidence_before, confidence_after, quality_before, quality_after,
			rollback_payload, rolled_back, created_at
		FROM master_profile_merges WHERE profile_id=? ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list merges")
	}
	defer rows.Close()

	var out []Merge
	for rows.Next() {
		var m Merge
		var fields, payload sql.NullString
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.AnalysisID, &m.MergedBy, &fields,
			&m.ConflictsResolved, &m.ConfidenceBefore, &m.ConfidenceAfter,
			&m.QualityBefore, &m.QualityAfter, &payload, &m.RolledBack, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan merge")
		}
		if err := decodeMergeJSON(&m, fields, payload); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMergeRolledBack flags a merge as reversed.
func (s *SQLiteStore) MarkMergeRolledBack(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE master_profile_merges SET rolled_back=1 WHERE id=? AND rolled_back=0`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark merge %d rolled back", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return eris.Errorf("sqlite: merge %d not found or already rolled back", id)
	}
	return nil
}

// InsertValidationLog appends one validation attempt row.
func (s *SQLiteStore) InsertValidationLog(ctx context.Context, l *ValidationLog) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO data_validation_logs
			(profile_id, batch_id, field_name, original_value, validated_value,
			 validation_source, method, is_valid, confidence_score, discrepancy_reason,
			 raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ProfileID, l.BatchID, l.FieldName, l.OriginalValue, l.ValidatedValue,
		l.ValidationSource, l.Method, l.IsValid, l.ConfidenceScore, l.DiscrepancyReason,
		nullableBytes(l.RawResponse), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert validation log")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: validation log last insert id")
	}
	l.ID = id
	l.CreatedAt = now
	return nil
}

// ListValidationLogs returns all validation logs for a profile, newest first.
func (s *SQLiteStore) ListValidationLogs(ctx context.Context, profileID int64) ([]ValidationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, batch_id, field_name, original_value, validated_value,
			validation_source, method, is_valid, confidence_score, discrepancy_reason,
			raw_response, created_at
		FROM data_validation_logs WHERE profile_id=? ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validation logs")
	}
	defer rows.Close()

	var out []ValidationLog
	for rows.Next() {
		var l ValidationLog
		var raw sql.NullString
		if err := rows.Scan(&l.ID, &l.ProfileID, &l.BatchID, &l.FieldName,
			&l.OriginalValue, &l.ValidatedValue, &l.ValidationSource, &l.Method,
			&l.IsValid, &l.ConfidenceScore, &l.DiscrepancyReason, &raw, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation log")
		}
		if raw.Valid {
			l.RawResponse = []byte(raw.String)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertConfidenceSnapshot appends one confidence history row.
func (s *SQLiteStore) InsertConfidenceSnapshot(ctx context.Context, snap *ConfidenceSnapshot) error {
	now := time.Now().UTC()
	sources, err := json.Marshal(snap.ContributingSources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contributing sources")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO confidence_history
			(profile_id, field_name, confidence_score, contributing_sources, calculation_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ProfileID, snap.FieldName, snap.ConfidenceScore, string(sources),
		snap.CalculationMethod, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert confidence snapshot")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: snapshot last insert id")
	}
	snap.ID = id
	snap.CreatedAt = now
	return nil
}

// ListConfidenceHistory returns the confidence time series, newest first.
func (s *SQLiteStore) ListConfidenceHistory(ctx context.Context, profileID int64) ([]ConfidenceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, field_name, confidence_score, contributing_sources,
			calculation_method, created_at
		FROM confidence_history WHERE profile_id=? ORDER BY id DESC`, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list confidence history")
	}
	defer rows.Close()

	var out []ConfidenceSnapshot
	for rows.Next() {
		var snap ConfidenceSnapshot
		var sources sql.NullString
		if err := rows.Scan(&snap.ID, &snap.ProfileID, &snap.FieldName, &snap.ConfidenceScore,
			&sources, &snap.CalculationMethod, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan confidence snapshot")
		}
		if sources.Valid && sources.String != "" && sources.String != "null" {
			if err := json.Unmarshal([]byte(sources.String), &snap.ContributingSources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal contributing sources")
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListActiveSources returns all active trusted data sources.
func (s *SQLiteStore) ListActiveSources(ctx context.Context) ([]TrustedSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_type, authority_weight, rate_limit_per_min, active,
			categories, error_rate, avg_response_ms, created_at, updated_at
		FROM trusted_data_sources WHERE active=1 ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active sources")
	}
	defer rows.Close()

	var out []TrustedSource
	for rows.Next() {
		src, err := scanSQLiteSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// GetSourceByName fetches one trusted source. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetSourceByName(ctx context.Context, name string) (*TrustedSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_type, authority_weight, rate_limit_per_min, active,
			categories, error_rate, avg_response_ms, created_at, updated_at
		FROM trusted_data_sources WHERE name=?`, name)
	src, err := scanSQLiteSource(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return src, nil
}

// UpsertSource inserts or updates a trusted data source by name.
func (s *SQLiteStore) UpsertSource(ctx context.Context, src *TrustedSource) error {
	now := time.Now().UTC()
	cats, err := json.Marshal(textArray(src.Categories))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trusted_data_sources
			(name, source_type, authority_weight, rate_limit_per_min, active, categories, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_type=excluded.source_type,
			authority_weight=excluded.authority_weight,
			rate_limit_per_min=excluded.rate_limit_per_min,
			active=excluded.active,
			categories=excluded.categories,
			updated_at=excluded.updated_at`,
		src.Name, src.SourceType, src.AuthorityWeight, src.RateLimitPerMin,
		src.Active, string(cats), now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert source %s", src.Name)
	}

	stored, err := s.GetSourceByName(ctx, src.Name)
	if err != nil {
		return err
	}
	if stored != nil {
		*src = *stored
	}
	return nil
}

// UpdateSourceTelemetry records observed error rate and response time.
func (s *SQLiteStore) UpdateSourceTelemetry(ctx context.Context, name string, errorRate, avgResponseMS float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trusted_data_sources
		SET error_rate=?, avg_response_ms=?, updated_at=?
		WHERE name=?`, errorRate, avgResponseMS, time.Now().UTC(), name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update telemetry for %s", name)
	}
	return nil
}

// --- encode/scan helpers ---

type encodedProfile struct {
	techStack, keyExecs, finMetrics, funding    any
	advantages, markets, products, partnerships string
	certifications, sourceAnalyses              string
}

func encodeProfileJSON(p *MasterProfile) (*encodedProfile, error) {
	enc := &encodedProfile{}

	jsonOrNil := func(v any, present bool) (any, error) {
		if !present {
			return nil, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal structured field")
		}
		return string(raw), nil
	}

	var err error
	if enc.techStack, err = jsonOrNil(p.TechnologyStack, p.TechnologyStack != nil); err != nil {
		return nil, err
	}
	if enc.keyExecs, err = jsonOrNil(p.KeyExecutives, len(p.KeyExecutives) > 0); err != nil {
		return nil, err
	}
	if enc.finMetrics, err = jsonOrNil(p.FinancialMetrics, p.FinancialMetrics != nil); err != nil {
		return nil, err
	}
	if enc.funding, err = jsonOrNil(p.FundingRounds, len(p.FundingRounds) > 0); err != nil {
		return nil, err
	}

	mustJSON := func(v []string) string {
		raw, _ := json.Marshal(textArray(v))
		return string(raw)
	}
	enc.advantages = mustJSON(p.CompetitiveAdvantages)
	enc.markets = mustJSON(p.TargetMarkets)
	enc.products = mustJSON(p.KeyProducts)
	enc.partnerships = mustJSON(p.Partnerships)
	enc.certifications = mustJSON(p.Certifications)
	enc.sourceAnalyses = mustJSON(p.SourceAnalyses)
	return enc, nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProfileRow(row sqliteScanner) (*MasterProfile, error) {
	p := &MasterProfile{}
	var status string
	var techStack, keyExecs, finMetrics, funding sql.NullString
	var advantages, markets, products, partnerships, certs, analyses string

	err := row.Scan(
		&p.ID, &p.CompanyName, &p.NormalizedName, &p.WebsiteURL,
		&p.Industry, &p.Headquarters, &p.FoundedYear, &p.EmployeeCount, &p.RevenueEstimate,
		&p.BusinessModel, &p.Description,
		&techStack, &keyExecs, &finMetrics, &funding,
		&advantages, &markets, &products, &partnerships, &certs,
		&p.OverallConfidenceScore, &p.DataCompletenessScore, &p.DataQualityScore,
		&status, &analyses, &p.Version,
		&p.CreatedAt, &p.UpdatedAt, &p.LastValidationDate,
	)
	if err != nil {
		return nil, err
	}

	p.ValidationStatus = ValidationStatus(status)

	unmarshalNullable := func(src sql.NullString, dst any) error {
		if !src.Valid || src.String == "" || src.String == "null" {
			return nil
		}
		return json.Unmarshal([]byte(src.String), dst)
	}
	if err := unmarshalNullable(techStack, &p.TechnologyStack); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal technology_stack")
	}
	if err := unmarshalNullable(keyExecs, &p.KeyExecutives); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal key_executives")
	}
	if err := unmarshalNullable(finMetrics, &p.FinancialMetrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal financial_metrics")
	}
	if err := unmarshalNullable(funding, &p.FundingRounds); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal funding_rounds")
	}

	for _, pair := range []struct {
		raw string
		dst *[]string
	}{
		{advantages, &p.CompetitiveAdvantages},
		{markets, &p.TargetMarkets},
		{products, &p.KeyProducts},
		{partnerships, &p.Partnerships},
		{certs, &p.Certifications},
		{analyses, &p.SourceAnalyses},
	} {
		if pair.raw == "" || pair.raw == "[]" {
			continue
		}
		if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal string array")
		}
	}

	return p, nil
}

func scanSQLiteProfile(row *sql.Row) (*MasterProfile, error) {
	p, err := scanSQLiteProfileRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get profile")
	}
	return p, nil
}

func scanSQLiteSource(row sqliteScanner) (*TrustedSource, error) {
	src := &TrustedSource{}
	var cats string
	err := row.Scan(&src.ID, &src.Name, &src.SourceType, &src.AuthorityWeight,
		&src.RateLimitPerMin, &src.Active, &cats,
		&src.ErrorRate, &src.AvgResponseMS, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: source not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan trusted source")
	}
	if cats != "" && cats != "[]" {
		if err := json.Unmarshal([]byte(cats), &src.Categories); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal categories")
		}
	}
	return src, nil
}

func decodeMergeJSON(m *Merge, fields, payload sql.NullString) error {
	if fields.Valid && fields.String != "" && fields.String != "[]" {
		if err := json.Unmarshal([]byte(fields.String), &m.FieldsUpdated); err != nil {
			return eris.Wrap(err, "sqlite: unmarshal fields_updated")
		}
	}
	if payload.Valid && payload.String != "" && payload.String != "null" {
		if err := json.Unmarshal([]byte(payload.String), &m.RollbackPayload); err != nil {
			return eris.Wrap(err, "sqlite: unmarshal rollback payload")
		}
	}
	return nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
