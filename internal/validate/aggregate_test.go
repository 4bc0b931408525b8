package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-consolidator/internal/profile"
)

func TestWeightedScore(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []weightedVerdict
		want     float64
	}{
		{
			name: "agreeing sources cancel to midpoint",
			verdicts: []weightedVerdict{
				{Verdict: Verdict{Confidence: 1.0}, weight: 0.7},
				{Verdict: Verdict{Confidence: 0.0}, weight: 0.7},
			},
			want: 50,
		},
		{
			name: "higher authority pulls the mean",
			verdicts: []weightedVerdict{
				{Verdict: Verdict{Confidence: 1.0}, weight: 0.9},
				{Verdict: Verdict{Confidence: 0.0}, weight: 0.1},
			},
			want: 90,
		},
		{
			name: "single verdict",
			verdicts: []weightedVerdict{
				{Verdict: Verdict{Confidence: 0.65}, weight: 0.5},
			},
			want: 65,
		},
		{
			name:     "no verdicts",
			verdicts: nil,
			want:     0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, weightedScore(tc.verdicts), 0.001)
		})
	}
}

func TestStatusFor(t *testing.T) {
	a := NewAggregator(nil, validationConfig())

	t.Run("clean batch above threshold validates", func(t *testing.T) {
		verdicts := []weightedVerdict{
			{Verdict: Verdict{IsValid: true, Confidence: 0.9}, weight: 0.5},
		}
		assert.Equal(t, profile.StatusValidated, a.statusFor(90, verdicts))
	})

	t.Run("clean batch below threshold stays pending", func(t *testing.T) {
		verdicts := []weightedVerdict{
			{Verdict: Verdict{IsValid: true, Confidence: 0.6}, weight: 0.5},
		}
		assert.Equal(t, profile.StatusPending, a.statusFor(60, verdicts))
	})

	t.Run("confident invalid verdict disputes", func(t *testing.T) {
		verdicts := []weightedVerdict{
			{Verdict: Verdict{IsValid: true, Confidence: 1.0}, weight: 0.9},
			{Verdict: Verdict{IsValid: false, Confidence: 0.8}, weight: 0.1},
		}
		assert.Equal(t, profile.StatusDisputed, a.statusFor(98, verdicts))
	})

	t.Run("weak invalid verdict only blocks validation", func(t *testing.T) {
		verdicts := []weightedVerdict{
			{Verdict: Verdict{IsValid: true, Confidence: 1.0}, weight: 0.9},
			{Verdict: Verdict{IsValid: false, Confidence: 0.3}, weight: 0.1},
		}
		assert.Equal(t, profile.StatusPending, a.statusFor(93, verdicts))
	})
}

func TestApply_EmptyBatchNoChange(t *testing.T) {
	store, profileID := newValidationStore(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)
	before := p.Version

	a := NewAggregator(store, validationConfig())
	overall, status, err := a.Apply(ctx, p, "batch-empty", nil)
	require.NoError(t, err)
	assert.Zero(t, overall)
	assert.Equal(t, profile.StatusUnvalidated, status)

	fresh, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)
	assert.Equal(t, before, fresh.Version)
	assert.Nil(t, fresh.LastValidationDate)

	history, err := store.ListConfidenceHistory(ctx, profileID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApply_DefaultWeightWithoutSourceRow(t *testing.T) {
	store, profileID := newValidationStore(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)

	a := NewAggregator(store, validationConfig())
	results := []SourceResult{{
		Source: "unregistered",
		Verdicts: []Verdict{
			{FieldName: "company_name", IsValid: true, Confidence: 0.8},
		},
	}}
	overall, _, err := a.Apply(ctx, p, "batch-1", results)
	require.NoError(t, err)
	assert.InDelta(t, 80, overall, 0.001)

	history, err := store.ListConfidenceHistory(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, snap := range history {
		require.Len(t, snap.ContributingSources, 1)
		assert.Equal(t, "unregistered", snap.ContributingSources[0].Source)
		assert.InDelta(t, 0.5, snap.ContributingSources[0].Weight, 0.001)
	}
}

func TestApply_PerFieldSnapshots(t *testing.T) {
	store, profileID := newValidationStore(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)

	a := NewAggregator(store, validationConfig())
	results := []SourceResult{
		{Source: "registry", Verdicts: []Verdict{
			{FieldName: "company_name", IsValid: true, Confidence: 1.0},
		}},
		{Source: "website", Verdicts: []Verdict{
			{FieldName: "company_name", IsValid: true, Confidence: 0.8},
			{FieldName: "website_url", IsValid: true, Confidence: 0.6},
		}},
	}
	_, _, err = a.Apply(ctx, p, "batch-1", results)
	require.NoError(t, err)

	history, err := store.ListConfidenceHistory(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	byField := map[string]profile.ConfidenceSnapshot{}
	for _, snap := range history {
		byField[snap.FieldName] = snap
	}
	assert.InDelta(t, 90, byField["company_name"].ConfidenceScore, 0.001)
	assert.InDelta(t, 60, byField["website_url"].ConfidenceScore, 0.001)
	// Aggregate snapshot carries no field name and covers all verdicts.
	aggregate, ok := byField[""]
	require.True(t, ok)
	assert.InDelta(t, 80, aggregate.ConfidenceScore, 0.001)
	assert.Len(t, aggregate.ContributingSources, 3)
}

func TestApply_RetriesOnVersionConflict(t *testing.T) {
	store, profileID := newValidationStore(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)

	// Concurrent writer bumps the version after our read.
	racer, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)
	racer.Industry = "Software"
	require.NoError(t, store.UpdateProfile(ctx, racer))

	a := NewAggregator(store, validationConfig())
	results := []SourceResult{{
		Source: "registry",
		Verdicts: []Verdict{
			{FieldName: "company_name", IsValid: true, Confidence: 1.0},
		},
	}}
	overall, status, err := a.Apply(ctx, p, "batch-1", results)
	require.NoError(t, err)
	assert.InDelta(t, 100, overall, 0.001)
	assert.Equal(t, profile.StatusValidated, status)

	fresh, err := store.GetProfile(ctx, profileID)
	require.NoError(t, err)
	// The racer's write survives alongside the aggregation update.
	assert.Equal(t, "Software", fresh.Industry)
	assert.InDelta(t, 100, fresh.OverallConfidenceScore, 0.001)
}
