package profile

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Resolution errors surfaced to callers.
var (
	// ErrNotFound means no existing profile matches the candidate name.
	ErrNotFound = eris.New("profile: not found")
	// ErrAmbiguous means several plausible profiles match and the caller
	// must disambiguate; Resolve returns the ranked candidates alongside it.
	ErrAmbiguous = eris.New("profile: ambiguous match")
)

// Resolver finds the master profile for a candidate company name, or
// signals not-found / ambiguity. The matching policy is deliberately
// simple and deterministic, not probabilistic record linkage:
//
//  1. Exact match on normalized_name.
//  2. Leading-token search, ranked by shared-token overlap, narrowed by
//     exact website equality when a domain is supplied.
//
// Ambiguity is surfaced, never silently resolved.
type Resolver struct {
	store Store
}

// NewResolver creates a profile resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the matching profile, or (nil, candidates, ErrAmbiguous)
// when several plausible matches exist, or (nil, nil, ErrNotFound).
func (r *Resolver) Resolve(ctx context.Context, companyName, domain string) (*MasterProfile, []MasterProfile, error) {
	normalized := Normalize(companyName)
	if normalized == "" {
		return nil, nil, eris.New("profile: company name is required for resolve")
	}

	// Pass 1: exact normalized-name match.
	existing, err := r.store.GetProfileByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, nil, eris.Wrap(err, "profile: resolve by normalized name")
	}
	if existing != nil {
		zap.L().Debug("resolve: matched by normalized name",
			zap.String("normalized_name", normalized),
			zap.Int64("profile_id", existing.ID),
		)
		return existing, nil, nil
	}

	// Pass 2: substring match, optionally narrowed by website. Searching
	// on the leading token pulls back near-duplicates that neither
	// contain nor are contained by the full query; ranking filters the
	// noise by token overlap.
	searchTerm := normalized
	if i := strings.IndexByte(normalized, ' '); i > 0 {
		searchTerm = normalized[:i]
	}
	results, err := r.store.SearchProfiles(ctx, searchTerm, 10)
	if err != nil {
		return nil, nil, eris.Wrap(err, "profile: search by name")
	}

	candidates := rankCandidates(results, normalized, companyName)

	if domain != "" {
		wantHost := NormalizeDomain(domain)
		for i := range candidates {
			if NormalizeDomain(candidates[i].WebsiteURL) == wantHost {
				zap.L().Debug("resolve: matched by name substring + website",
					zap.String("domain", wantHost),
					zap.Int64("profile_id", candidates[i].ID),
				)
				return &candidates[i], nil, nil
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil, ErrNotFound
	case 1:
		zap.L().Debug("resolve: matched by name substring",
			zap.String("normalized_name", normalized),
			zap.Int64("profile_id", candidates[0].ID),
		)
		return &candidates[0], nil, nil
	default:
		// Duplicate-detection case: hand the ranked list back to the caller.
		zap.L().Info("resolve: ambiguous match",
			zap.String("normalized_name", normalized),
			zap.Int("candidates", len(candidates)),
		)
		return nil, candidates, ErrAmbiguous
	}
}

// rankCandidates keeps profiles whose names share tokens with the query,
// exact normalized matches first, then by descending overlap. Token
// overlap keeps near-duplicates like "acme robotics" and "acme robotics
// europe" both in play for a query of "acme robotics group", where a
// containment check would silently drop one of them.
func rankCandidates(results []MasterProfile, normalized, companyName string) []MasterProfile {
	lowerName := strings.ToLower(companyName)
	queryTokens := strings.Fields(normalized)

	type ranked struct {
		p       MasterProfile
		exact   bool
		overlap int
	}
	var kept []ranked
	for _, p := range results {
		pn := p.NormalizedName
		dn := strings.ToLower(p.CompanyName)
		if pn == normalized {
			kept = append(kept, ranked{p: p, exact: true, overlap: len(queryTokens)})
			continue
		}
		overlap := tokenOverlap(queryTokens, strings.Fields(pn))
		if overlap == 0 {
			// Single-token names without a space boundary still match by
			// containment ("acmesoft" for "acme").
			if !strings.Contains(pn, normalized) && !strings.Contains(normalized, pn) &&
				!strings.Contains(dn, lowerName) && !strings.Contains(lowerName, dn) {
				continue
			}
			overlap = 1
		}
		kept = append(kept, ranked{p: p, overlap: overlap})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].exact != kept[j].exact {
			return kept[i].exact
		}
		return kept[i].overlap > kept[j].overlap
	})

	out := make([]MasterProfile, len(kept))
	for i := range kept {
		out[i] = kept[i].p
	}
	return out
}

func tokenOverlap(query, candidate []string) int {
	set := make(map[string]struct{}, len(query))
	for _, tok := range query {
		set[tok] = struct{}{}
	}
	n := 0
	for _, tok := range candidate {
		if _, ok := set[tok]; ok {
			n++
		}
	}
	return n
}
