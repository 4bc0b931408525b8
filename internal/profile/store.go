package profile

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrVersionConflict is returned by UpdateProfile when the optimistic
// concurrency token no longer matches; callers re-read and retry.
var ErrVersionConflict = eris.New("profile: version conflict")

// Store defines persistence for the master profile data model. All writes
// to the audit tables are append-only; nothing in this interface mutates a
// validation log, merge, or confidence snapshot after insert.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *MasterProfile) error
	// UpdateProfile persists p guarded by its Version; on success the
	// Version is bumped. Returns ErrVersionConflict if another writer won.
	UpdateProfile(ctx context.Context, p *MasterProfile) error
	GetProfile(ctx context.Context, id int64) (*MasterProfile, error)
	GetProfileByNormalizedName(ctx context.Context, normalized string) (*MasterProfile, error)
	SearchProfiles(ctx context.Context, query string, limit int) ([]MasterProfile, error)

	// Contributions
	InsertContribution(ctx context.Context, c *Contribution) error
	GetContribution(ctx context.Context, id int64) (*Contribution, error)
	ListContributions(ctx context.Context, profileID int64) ([]Contribution, error)
	VerifyContribution(ctx context.Context, id int64, verifiedBy string) error

	// Merges
	InsertMerge(ctx context.Context, m *Merge) error
	GetMerge(ctx context.Context, id int64) (*Merge, error)
	ListMerges(ctx context.Context, profileID int64) ([]Merge, error)
	MarkMergeRolledBack(ctx context.Context, id int64) error

	// Validation logs
	InsertValidationLog(ctx context.Context, l *ValidationLog) error
	ListValidationLogs(ctx context.Context, profileID int64) ([]ValidationLog, error)

	// Confidence history
	InsertConfidenceSnapshot(ctx context.Context, s *ConfidenceSnapshot) error
	ListConfidenceHistory(ctx context.Context, profileID int64) ([]ConfidenceSnapshot, error)

	// Trusted sources (configuration; telemetry columns are the only writes)
	ListActiveSources(ctx context.Context) ([]TrustedSource, error)
	GetSourceByName(ctx context.Context, name string) (*TrustedSource, error)
	UpsertSource(ctx context.Context, s *TrustedSource) error
	UpdateSourceTelemetry(ctx context.Context, name string, errorRate, avgResponseMS float64) error

	Close() error
}
