package orchestrator

import "sort"

// mergeRerank collapses duplicate hits, orders candidates by hybrid score,
// and applies the diversity caps. It is applied once per context assembly
// over all accumulated candidates.
//
// Duplicates (same fallback id) keep the higher-scoring copy. Provenance and
// boost are backfilled from the losing copy when the winner lacks them; score
// components are not, so the winner keeps the score of the single pass that
// ranked it highest.
func mergeRerank(cands []*candidate, maxResults, maxPerParent, maxPerCanon int) []*candidate {
	byID := make(map[string]*candidate, len(cands))
	order := make([]string, 0, len(cands))

	for _, c := range cands {
		key := c.record.FallbackID()
		prev, ok := byID[key]
		if !ok {
			byID[key] = c
			order = append(order, key)
			continue
		}

		winner, loser := prev, c
		if c.hybridScore() > prev.hybridScore() {
			winner, loser = c, prev
		}
		if winner.origin == "" {
			winner.origin = loser.origin
			winner.rank = loser.rank
		}
		if winner.boost == 0 && loser.boost != 0 {
			winner.boost = loser.boost
			winner.boostWhy = loser.boostWhy
		}
		byID[key] = winner
	}

	merged := make([]*candidate, 0, len(order))
	for _, key := range order {
		merged = append(merged, byID[key])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.hybridScore() != b.hybridScore() {
			return a.hybridScore() > b.hybridScore()
		}
		if pa, pb := originPriority(a.origin), originPriority(b.origin); pa != pb {
			return pa > pb
		}
		return a.rank < b.rank
	})

	// Diversity caps: first per parent, then per canonical URL.
	perParent := make(map[string]int)
	kept := merged[:0]
	for _, c := range merged {
		key := parentKey(c)
		if perParent[key] >= maxPerParent {
			continue
		}
		perParent[key]++
		kept = append(kept, c)
	}

	perCanon := make(map[string]int)
	final := make([]*candidate, 0, len(kept))
	for _, c := range kept {
		key := canonicalURL(c.record.Url)
		if perCanon[key] >= maxPerCanon {
			continue
		}
		perCanon[key]++
		final = append(final, c)
	}

	if len(final) > maxResults {
		final = final[:maxResults]
	}
	return final
}

// parentKey groups sibling chunks of one source page: the chunker's parent
// id when present, else the URL.
func parentKey(c *candidate) string {
	if c.record.Metadata.ParentId != "" {
		return c.record.Metadata.ParentId
	}
	return c.record.Url
}
