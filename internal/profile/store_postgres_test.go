package profile

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

// anyArgs builds n pgxmock.AnyArg matchers for wide statements where only
// a few leading arguments are worth pinning.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func profileRowColumns() []string {
	return []string{
		"id", "company_name", "normalized_name", "website_url",
		"industry", "headquarters", "founded_year", "employee_count", "revenue_estimate",
		"business_model", "description",
		"technology_stack", "key_executives", "financial_metrics", "funding_rounds",
		"competitive_advantages", "target_markets", "key_products", "partnerships", "certifications",
		"overall_confidence_score", "data_completeness_score", "data_quality_score",
		"validation_status", "source_analyses", "version",
		"created_at", "updated_at", "last_validation_date",
	}
}

func TestPostgresStore_GetProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM master_company_profiles WHERE id=\$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	result, err := s.GetProfile(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfile_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(profileRowColumns()).AddRow(
		int64(7), "Acme, Inc.", "acme", "https://acme.com",
		"SaaS", "Austin, TX", nil, nil, nil,
		"B2B", "Roadrunner deterrence platform.",
		[]byte(nil), []byte(nil), []byte(nil), []byte(nil),
		[]string{}, []string{}, []string{}, []string{}, []string{},
		72.5, 40.0, 55.0,
		"pending", []string{"analysis-1"}, int64(3),
		now, now, nil,
	)
	mock.ExpectQuery(`SELECT .+ FROM master_company_profiles WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	p, err := s.GetProfile(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "acme", p.NormalizedName)
	assert.Equal(t, StatusPending, p.ValidationStatus)
	assert.Equal(t, int64(3), p.Version)
	assert.True(t, p.HasSourceAnalysis("analysis-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfileByNormalizedName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE normalized_name=\$1`).
		WithArgs("ghost corp").
		WillReturnError(pgx.ErrNoRows)

	result, err := s.GetProfileByNormalizedName(context.Background(), "ghost corp")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO master_company_profiles`).
		WithArgs(append([]any{"Acme, Inc.", "acme", "https://acme.com"}, anyArgs(22)...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow(int64(11), int64(1), now, now))

	p := &MasterProfile{
		CompanyName:      "Acme, Inc.",
		NormalizedName:   "acme",
		WebsiteURL:       "https://acme.com",
		ValidationStatus: StatusUnvalidated,
	}
	err := s.CreateProfile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.ID)
	assert.Equal(t, int64(1), p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_VersionConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE master_company_profiles SET`).
		WithArgs(append([]any{int64(5), int64(2)}, anyArgs(25)...)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	p := &MasterProfile{ID: 5, Version: 2, CompanyName: "Acme", NormalizedName: "acme"}
	err := s.UpdateProfile(context.Background(), p)
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(2), p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_BumpsVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE master_company_profiles SET`).
		WithArgs(append([]any{int64(5), int64(2)}, anyArgs(25)...)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p := &MasterProfile{ID: 5, Version: 2, CompanyName: "Acme", NormalizedName: "acme"}
	err := s.UpdateProfile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertContribution(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO master_profile_contributions`).
		WithArgs(int64(5), "analysis-1", "website_research", "industry",
			"", "SaaS", 65.0, true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(99), now))

	c := &Contribution{
		ProfileID:   5,
		AnalysisID:  "analysis-1",
		Contributor: "website_research",
		FieldName:   "industry",
		NewValue:    "SaaS",
		Confidence:  65.0,
		Applied:     true,
	}
	err := s.InsertContribution(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(99), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_VerifyContribution_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE master_profile_contributions`).
		WithArgs(int64(404), "reviewer@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.VerifyContribution(context.Background(), 404, "reviewer@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMerge_RoundTripsRollbackPayload(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO master_profile_merges`).
		WithArgs(append([]any{int64(5), "analysis-1", "consolidator"}, anyArgs(7)...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	m := &Merge{
		ProfileID:       5,
		AnalysisID:      "analysis-1",
		MergedBy:        "consolidator",
		FieldsUpdated:   []string{"industry", "description"},
		RollbackPayload: map[string]string{"industry": "", "description": "old text"},
	}
	err := s.InsertMerge(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.ID)

	payload := []byte(`{"description":"old text","industry":""}`)
	mock.ExpectQuery(`FROM master_profile_merges WHERE id=\$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "profile_id", "analysis_id", "merged_by", "fields_updated", "conflicts_resolved",
			"confidence_before", "confidence_after", "quality_before", "quality_after",
			"rollback_payload", "rolled_back", "created_at",
		}).AddRow(int64(3), int64(5), "analysis-1", "consolidator",
			[]string{"industry", "description"}, 1,
			40.0, 62.0, 30.0, 50.0, payload, false, now))

	got, err := s.GetMerge(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "old text", got.RollbackPayload["description"])
	assert.False(t, got.RolledBack)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkMergeRolledBack_AlreadyRolledBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE master_profile_merges SET rolled_back=true`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkMergeRolledBack(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already rolled back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSourceByName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM trusted_data_sources WHERE name=\$1`).
		WithArgs("unknown_registry").
		WillReturnError(pgx.ErrNoRows)

	src, err := s.GetSourceByName(context.Background(), "unknown_registry")
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSource(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO trusted_data_sources`).
		WithArgs("opencorporates", "registry", 0.9, 60, true, []string{"basic_info"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))

	src := &TrustedSource{
		Name:            "opencorporates",
		SourceType:      "registry",
		AuthorityWeight: 0.9,
		RateLimitPerMin: 60,
		Active:          true,
		Categories:      []string{"basic_info"},
	}
	err := s.UpsertSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertValidationLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO data_validation_logs`).
		WithArgs(append([]any{int64(5), "batch-1", "company_name"}, anyArgs(8)...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(21), now))

	l := &ValidationLog{
		ProfileID:        5,
		BatchID:          "batch-1",
		FieldName:        "company_name",
		OriginalValue:    "Acme",
		ValidationSource: "opencorporates",
		Method:           "registry_lookup",
		IsValid:          true,
		ConfidenceScore:  1.0,
	}
	err := s.InsertValidationLog(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, int64(21), l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
