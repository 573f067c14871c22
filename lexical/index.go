// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package lexical provides a BM25 keyword index over stored chunk records.
// It complements vector search in hybrid retrieval: exact terms the
// embedding model smooths over (product names, error codes, identifiers)
// still rank.
package lexical

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/poiesic/websage/core"
)

// BM25 term saturation and length normalization parameters.
const (
	k1 = 1.5
	b  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]{2,}`)

// Tokenize lowercases text and extracts word tokens of at least two
// characters. Single characters and punctuation carry no lexical signal.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

type posting struct {
	doc  int
	freq int
}

// Index is an immutable BM25 index over a snapshot of stored records.
// Rebuild it after the underlying store changes.
type Index struct {
	records  []*core.StoredRecord
	docLens  []int
	avgLen   float64
	postings map[string][]posting
}

// NewIndex builds an index over the given records, scoring each record by
// its text.
func NewIndex(records []*core.StoredRecord, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Index{
		records:  records,
		docLens:  make([]int, len(records)),
		postings: make(map[string][]posting),
	}

	var totalLen int
	for doc, rec := range records {
		tokens := Tokenize(rec.Text)
		ix.docLens[doc] = len(tokens)
		totalLen += len(tokens)

		counts := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[tok]++
		}
		for term, freq := range counts {
			ix.postings[term] = append(ix.postings[term], posting{doc: doc, freq: freq})
		}
	}
	if len(records) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(records))
	}

	logger.Debug("built lexical index", "docs", len(records), "terms", len(ix.postings))
	return ix
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Search scores records against the query and returns up to k results in
// descending score order. Only records with a positive score are returned;
// a record sharing no token with the query never appears.
func (ix *Index) Search(query string, k int) []*core.SearchResult {
	if k <= 0 || len(ix.records) == 0 {
		return nil
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	n := float64(len(ix.records))
	scores := make(map[int]float64)
	for _, term := range terms {
		plist, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range plist {
			tf := float64(p.freq)
			norm := 1 - b + b*float64(ix.docLens[p.doc])/ix.avgLen
			scores[p.doc] += idf * (tf * (k1 + 1)) / (tf + k1*norm)
		}
	}

	type scoredDoc struct {
		doc   int
		score float64
	}
	ranked := make([]scoredDoc, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			ranked = append(ranked, scoredDoc{doc: doc, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].doc < ranked[j].doc
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	results := make([]*core.SearchResult, len(ranked))
	for i, r := range ranked {
		rec := ix.records[r.doc]
		results[i] = &core.SearchResult{
			Record: rec,
			Id:     core.IDFromKey(rec.Key),
			Score:  float32(r.score),
		}
	}
	return results
}
