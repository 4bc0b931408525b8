package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore implements the two Store methods Resolve depends on; the rest
// panic via the embedded nil interface if touched.
type stubStore struct {
	Store
	byNormalized  map[string]*MasterProfile
	searchResults []MasterProfile
}

func (s *stubStore) GetProfileByNormalizedName(_ context.Context, normalized string) (*MasterProfile, error) {
	return s.byNormalized[normalized], nil
}

func (s *stubStore) SearchProfiles(_ context.Context, _ string, _ int) ([]MasterProfile, error) {
	return s.searchResults, nil
}

func TestResolve_ExactNormalizedMatch(t *testing.T) {
	store := &stubStore{
		byNormalized: map[string]*MasterProfile{
			"acme": {ID: 1, CompanyName: "Acme, Inc.", NormalizedName: "acme"},
		},
	}
	r := NewResolver(store)

	// All spellings of the same legal name resolve to the same profile.
	for _, name := range []string{"Acme, Inc.", "ACME INC", "acme"} {
		p, candidates, err := r.Resolve(context.Background(), name, "")
		require.NoError(t, err, "resolving %q", name)
		require.NotNil(t, p)
		assert.Equal(t, int64(1), p.ID)
		assert.Nil(t, candidates)
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(&stubStore{byNormalized: map[string]*MasterProfile{}})

	p, candidates, err := r.Resolve(context.Background(), "Ghost Corp", "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, p)
	assert.Nil(t, candidates)
}

func TestResolve_EmptyName(t *testing.T) {
	r := NewResolver(&stubStore{})

	_, _, err := r.Resolve(context.Background(), "   ", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company name is required")
}

func TestResolve_SubstringMatch(t *testing.T) {
	store := &stubStore{
		byNormalized: map[string]*MasterProfile{},
		searchResults: []MasterProfile{
			{ID: 2, CompanyName: "Acme Robotics Holdings", NormalizedName: "acme robotics holdings"},
		},
	}
	r := NewResolver(store)

	p, candidates, err := r.Resolve(context.Background(), "Acme Robotics", "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(2), p.ID)
	assert.Nil(t, candidates)
}

func TestResolve_AmbiguousReturnsCandidates(t *testing.T) {
	store := &stubStore{
		byNormalized: map[string]*MasterProfile{},
		searchResults: []MasterProfile{
			{ID: 2, CompanyName: "Acme Robotics", NormalizedName: "acme robotics"},
			{ID: 3, CompanyName: "Acme Robotics Europe", NormalizedName: "acme robotics europe"},
		},
	}
	r := NewResolver(store)

	p, candidates, err := r.Resolve(context.Background(), "Acme Robotics Group", "")
	require.ErrorIs(t, err, ErrAmbiguous)
	assert.Nil(t, p)
	assert.Len(t, candidates, 2)
}

func TestResolve_WebsiteNarrowsAmbiguity(t *testing.T) {
	store := &stubStore{
		byNormalized: map[string]*MasterProfile{},
		searchResults: []MasterProfile{
			{ID: 2, CompanyName: "Acme Robotics", NormalizedName: "acme robotics", WebsiteURL: "https://acme-robotics.com"},
			{ID: 3, CompanyName: "Acme Robotics Europe", NormalizedName: "acme robotics europe", WebsiteURL: "https://acme.eu"},
		},
	}
	r := NewResolver(store)

	p, candidates, err := r.Resolve(context.Background(), "Acme Robotics Group", "acme.eu")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(3), p.ID)
	assert.Nil(t, candidates)
}

func TestRankCandidates_ExactBeforeSubstring(t *testing.T) {
	results := []MasterProfile{
		{ID: 1, CompanyName: "Acme Robotics Europe", NormalizedName: "acme robotics europe"},
		{ID: 2, CompanyName: "Acme Robotics", NormalizedName: "acme robotics"},
		{ID: 3, CompanyName: "Unrelated", NormalizedName: "unrelated"},
	}

	ranked := rankCandidates(results, "acme robotics", "Acme Robotics")
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].ID)
	assert.Equal(t, int64(1), ranked[1].ID)
}

func TestRankCandidates_TokenOverlapKeepsNearDuplicates(t *testing.T) {
	// Neither candidate name contains the query or vice versa; both share
	// tokens with it and must stay in the ranked list.
	results := []MasterProfile{
		{ID: 1, CompanyName: "Acme Robotics Europe", NormalizedName: "acme robotics europe"},
		{ID: 2, CompanyName: "Acme Robotics", NormalizedName: "acme robotics"},
		{ID: 3, CompanyName: "Beta Logistics", NormalizedName: "beta logistics"},
	}

	ranked := rankCandidates(results, "acme robotics group", "Acme Robotics Group")
	require.Len(t, ranked, 2)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{ranked[0].ID, ranked[1].ID})
}
