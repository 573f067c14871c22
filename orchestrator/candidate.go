package orchestrator

import "github.com/poiesic/websage/core"

// Provenance tags carried on candidates. Priority at rerank time: direct
// passes beat rewrites beat expansions beat everything else.
const (
	originInitial      = "initial"
	originAfterRecrawl = "initial-after-recrawl"
	originFollowup     = "followup"
	originRewrite      = "rewrite"
	originGraphAnchor  = "graph-anchor"
	originSection      = "section"
	bm25Suffix         = "-bm25"
)

const (
	boostAnchor  = float32(0.10)
	boostSection = float32(0.05)
)

// candidate is one retrieval hit flowing through merge, rerank, and context
// assembly. A chunk surfaced by several passes appears as several candidates
// until the merge collapses them by fallback id.
type candidate struct {
	record *core.StoredRecord
	id     core.ID

	scoreVec  float32 // cosine similarity, dense pass
	scoreBM25 float32 // BM25 score, lexical pass
	boost     float32
	boostWhy  string // "anchor" or "section"

	origin string // pass tag
	rank   int    // in-pass rank, ascending
}

// hybridScore is the rerank ordering key.
func (c *candidate) hybridScore() float64 {
	return 0.75*float64(c.scoreVec) + 0.25*float64(c.scoreBM25) + float64(c.boost)
}

func originPriority(origin string) int {
	switch origin {
	case originInitial, originAfterRecrawl:
		return 3
	case originRewrite:
		return 2
	case originGraphAnchor, originSection:
		return 1
	default:
		return 0
	}
}

// toSearchResults converts candidates for the planner's coverage and
// follow-up interfaces.
func toSearchResults(cands []*candidate) []*core.SearchResult {
	out := make([]*core.SearchResult, len(cands))
	for i, c := range cands {
		out[i] = &core.SearchResult{
			Record: c.record,
			Id:     c.id,
			Score:  float32(c.hybridScore()),
		}
	}
	return out
}
