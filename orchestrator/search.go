package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/websage/lexical"
)

const (
	lexicalKFloor = 8

	graphSeedLimit   = 12
	graphLinkLimit   = 5
	graphK           = 3
	sectionSeedLimit = 10
	sectionK         = 3
)

// lexicalIndex returns the shared BM25 index, building it from the current
// store contents on first use. The index is not rebuilt automatically when
// the store mutates afterwards; call InvalidateLexical after ingest.
func (o *Orchestrator) lexicalIndex() *lexical.Index {
	o.lexMu.RLock()
	ix := o.lex
	o.lexMu.RUnlock()
	if ix != nil {
		return ix
	}

	o.lexMu.Lock()
	defer o.lexMu.Unlock()
	if o.lex == nil {
		o.lex = lexical.NewIndex(o.store.Records(), o.logger)
	}
	return o.lex
}

// InvalidateLexical drops the cached BM25 index so the next search rebuilds
// it from the current store contents.
func (o *Orchestrator) InvalidateLexical() {
	o.lexMu.Lock()
	o.lex = nil
	o.lexMu.Unlock()
}

// searchPass runs one combined retrieval pass for a query string: a dense
// search tagged with the pass tag, plus a BM25 search tagged "<tag>-bm25".
// The two hit lists are concatenated without dedup; the merge collapses
// duplicates later. An empty query or a failed embedding yields no hits.
func (o *Orchestrator) searchPass(ctx context.Context, logger *slog.Logger, query, tag string, k int) []*candidate {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil
	}

	var cands []*candidate

	callCtx, cancel := o.callContext(ctx)
	vector, err := o.embedder.EmbedText(callCtx, query)
	cancel()
	if err != nil {
		logger.Warn("query embedding failed", "tag", tag, "err", err)
	} else if len(vector) > 0 {
		hits, err := o.store.Search(vector, k)
		if err != nil {
			logger.Warn("vector search failed", "tag", tag, "err", err)
		} else {
			for rank, hit := range hits {
				cands = append(cands, &candidate{
					record:   hit.Record,
					id:       hit.Id,
					scoreVec: hit.Score,
					origin:   tag,
					rank:     rank,
				})
			}
		}
	}

	lexK := k
	if lexK < lexicalKFloor {
		lexK = lexicalKFloor
	}
	for rank, hit := range o.lexicalIndex().Search(query, lexK) {
		cands = append(cands, &candidate{
			record:    hit.Record,
			id:        hit.Id,
			scoreBM25: hit.Score,
			origin:    tag + bm25Suffix,
			rank:      rank,
		})
	}

	logger.Debug("search pass", "tag", tag, "query", query, "hits", len(cands))
	return cands
}

// vectorSearch is the dense-only pass used by the expansions.
func (o *Orchestrator) vectorSearch(ctx context.Context, logger *slog.Logger, query, tag string, k int, boost float32, boostWhy string) []*candidate {
	callCtx, cancel := o.callContext(ctx)
	vector, err := o.embedder.EmbedText(callCtx, query)
	cancel()
	if err != nil {
		logger.Warn("expansion embedding failed", "tag", tag, "err", err)
		return nil
	}

	hits, err := o.store.Search(vector, k)
	if err != nil {
		logger.Warn("expansion search failed", "tag", tag, "err", err)
		return nil
	}

	cands := make([]*candidate, 0, len(hits))
	for rank, hit := range hits {
		cands = append(cands, &candidate{
			record:   hit.Record,
			id:       hit.Id,
			scoreVec: hit.Score,
			boost:    boost,
			boostWhy: boostWhy,
			origin:   tag,
			rank:     rank,
		})
	}
	return cands
}

// expandGraph follows incoming link anchors of the strongest initial hits:
// each anchor text seeds a small dense search combined with the question.
// Hits carry the anchor boost.
func (o *Orchestrator) expandGraph(ctx context.Context, logger *slog.Logger, question string, seeds []*candidate) []*candidate {
	limit := graphSeedLimit
	if limit > len(seeds) {
		limit = len(seeds)
	}

	seenAnchors := make(map[string]bool)
	var out []*candidate
	for _, seed := range seeds[:limit] {
		links := seed.record.Metadata.IncomingLinks
		if len(links) > graphLinkLimit {
			links = links[:graphLinkLimit]
		}
		for _, link := range links {
			anchor := strings.TrimSpace(link.AnchorText)
			if anchor == "" || seenAnchors[anchor] {
				continue
			}
			seenAnchors[anchor] = true
			query := anchor + " " + question
			out = append(out, o.vectorSearch(ctx, logger, query, originGraphAnchor, graphK, boostAnchor, "anchor")...)
		}
	}
	if len(out) > 0 {
		logger.Debug("graph expansion", "anchors", len(seenAnchors), "hits", len(out))
	}
	return out
}

// expandSections searches the question against the top-level headings of the
// strongest initial hits. Hits carry the section boost.
func (o *Orchestrator) expandSections(ctx context.Context, logger *slog.Logger, question string, seeds []*candidate) []*candidate {
	limit := sectionSeedLimit
	if limit > len(seeds) {
		limit = len(seeds)
	}

	seenHeadings := make(map[string]bool)
	var out []*candidate
	for _, seed := range seeds[:limit] {
		heading := seed.record.TopHeading()
		if heading == "" || seenHeadings[heading] {
			continue
		}
		seenHeadings[heading] = true
		query := question + " " + heading
		out = append(out, o.vectorSearch(ctx, logger, query, originSection, sectionK, boostSection, "section")...)
	}
	if len(out) > 0 {
		logger.Debug("section expansion", "headings", len(seenHeadings), "hits", len(out))
	}
	return out
}
