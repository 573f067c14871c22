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


package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/websage/ai"
	"github.com/poiesic/websage/answer"
	"github.com/poiesic/websage/lexical"
	"github.com/poiesic/websage/planner"
	"github.com/poiesic/websage/vectorstore"
)

// User-facing fallback strings. These are returned, never wrapped in errors:
// data absence is an answer, not a failure.
const (
	// NothingFoundMessage is returned when retrieval yields nothing at all.
	NothingFoundMessage = "I couldn't find anything on this site related to your question."

	noMemoryMessage = "There's no earlier answer to work from. Ask me something about the site first."

	readMoreLabel     = "Read more:"
	helpfulPagesLabel = "These pages may help:"
)

const (
	maxLinks          = 3
	fallbackResultCap = 8
	fallbackCharCap   = 8000
	rewriteHops       = 2
)

// Orchestrator answers questions about one site by running multi-pass hybrid
// retrieval over the vector store and lexical index, then gating generation
// on answerability. Safe for concurrent queries; store mutations must be
// serialized externally and followed by InvalidateLexical.
type Orchestrator struct {
	store    *vectorstore.Store
	embedder ai.Embedder
	planner  *planner.Planner
	agent    *answer.Agent

	topK            int
	maxRounds       int
	maxContextChars int
	maxResults      int
	maxPerParent    int
	maxPerCanon     int
	contextWindow   int
	poolSize        int

	strategy         Strategy
	callTimeout      time.Duration
	recrawl          RecrawlFunc
	graphExpansion   bool
	sectionExpansion bool

	pool *ants.Pool

	lexMu sync.RWMutex
	lex   *lexical.Index

	logger *slog.Logger
}

// New creates an orchestrator over a populated vector store and an AI
// provider supplying the embedder and the chat generator.
func New(store *vectorstore.Store, provider ai.AIProvider, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if provider == nil {
		return nil, ErrNilProvider
	}

	o := &Orchestrator{
		store:            store,
		embedder:         provider.Embedder(),
		topK:             defaultTopK,
		maxRounds:        defaultMaxRounds,
		maxContextChars:  defaultMaxContextChars,
		maxResults:       defaultMaxResults,
		maxPerParent:     defaultMaxPerParent,
		maxPerCanon:      defaultMaxPerCanon,
		poolSize:         defaultPoolSize,
		strategy:         StrategyPlanner,
		callTimeout:      defaultCallTimeout,
		graphExpansion:   true,
		sectionExpansion: true,
		logger:           slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	pl, err := planner.NewPlanner(provider.Generator(), planner.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	o.planner = pl

	agent, err := answer.NewAgent(provider.Generator(),
		answer.WithContextWindow(o.contextWindow),
		answer.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	o.agent = agent

	pool, err := ants.NewPool(o.poolSize)
	if err != nil {
		return nil, err
	}
	o.pool = pool

	return o, nil
}

// Close releases the follow-up search worker pool.
func (o *Orchestrator) Close() error {
	o.pool.Release()
	return nil
}

// callContext bounds one external call. Expiry behaves like a failed call
// at the call site.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout > 0 {
		return context.WithTimeout(ctx, o.callTimeout)
	}
	return ctx, func() {}
}

// Query answers a question about the site. memoryContext carries the prior
// conversation (empty for a fresh question); retryOnEmpty allows a single
// recrawl when initial retrieval comes up empty. The return value is always
// a user-facing string, a fallback message in the worst case.
func (o *Orchestrator) Query(ctx context.Context, question string, retryOnEmpty bool, memoryContext string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return NothingFoundMessage
	}

	qlog := o.logger.With("query_id", uuid.NewString())
	qlog.Info("query started", "strategy", string(o.strategy))

	if o.strategy == StrategyClassic {
		return o.classicQuery(ctx, qlog, question, retryOnEmpty, memoryContext)
	}

	callCtx, cancel := o.callContext(ctx)
	route := o.planner.PlanInitialRoute(callCtx, question, memoryContext)
	cancel()
	qlog.Info("route planned", "mode", string(route.Mode), "standalone", route.StandaloneQuery, "concepts", len(route.Concepts))

	searchQuery := question
	answerQuestion := question

	switch route.Mode {
	case planner.ModeTransformOnly:
		if strings.TrimSpace(memoryContext) == "" {
			return noMemoryMessage
		}
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		return o.agent.Transform(callCtx, question, memoryContext)

	case planner.ModeRetrieveFollowup:
		if route.StandaloneQuery != "" {
			searchQuery = route.StandaloneQuery
		}
		if strings.TrimSpace(memoryContext) != "" {
			answerQuestion = fmt.Sprintf("Earlier conversation:\n%s\n\nQuestion: %s", memoryContext, question)
		}

	case planner.ModeRetrieveNew:
		// Memory is ignored for a fresh topic.
	}

	return o.retrieveAndAnswer(ctx, qlog, searchQuery, answerQuestion, route.Concepts, retryOnEmpty)
}

// retrieveAndAnswer is the planner-strategy retrieval loop.
func (o *Orchestrator) retrieveAndAnswer(ctx context.Context, qlog *slog.Logger, searchQuery, answerQuestion string, concepts []string, retryOnEmpty bool) string {
	kFirst := max(o.topK, 8)

	all := o.searchPass(ctx, qlog, searchQuery, originInitial, kFirst)
	if len(all) == 0 && o.recrawl != nil && retryOnEmpty {
		qlog.Info("no results, triggering recrawl")
		if err := o.recrawl(ctx); err != nil {
			qlog.Warn("recrawl failed", "err", err)
		} else {
			o.InvalidateLexical()
			all = o.searchPass(ctx, qlog, searchQuery, originAfterRecrawl, kFirst)
		}
	}
	if len(all) == 0 {
		qlog.Info("nothing retrieved")
		return NothingFoundMessage
	}

	seeds := all
	if o.graphExpansion {
		all = append(all, o.expandGraph(ctx, qlog, searchQuery, seeds)...)
	}
	if o.sectionExpansion {
		all = append(all, o.expandSections(ctx, qlog, searchQuery, seeds)...)
	}

	if len(concepts) == 0 {
		callCtx, cancel := o.callContext(ctx)
		concepts = o.planner.ExtractConcepts(callCtx, searchQuery)
		cancel()
	}

	var missing []string
	for round := 0; round < o.maxRounds; round++ {
		ranked := mergeRerank(all, o.maxResults, o.maxPerParent, o.maxPerCanon)
		cov := o.planner.CoverageReport(concepts, toSearchResults(ranked))
		missing = cov.Missing
		if len(missing) == 0 {
			break
		}
		qlog.Info("coverage incomplete", "round", round, "missing", missing)

		callCtx, cancel := o.callContext(ctx)
		followups := o.planner.DecideFollowups(callCtx, searchQuery, missing, toSearchResults(ranked))
		cancel()

		if len(followups.DropIds) > 0 {
			all = dropCandidates(all, followups.DropIds)
		}
		if len(followups.Queries) == 0 {
			break
		}

		kSecond := max(o.topK, 10)
		all = append(all, o.concurrentSearches(ctx, qlog, followups.Queries, originFollowup, kSecond)...)
	}

	final := mergeRerank(all, o.maxResults, o.maxPerParent, o.maxPerCanon)
	budget := contextBudget(o.maxContextChars, o.agent.ContextWindowTokens(), o.agent.ModelName())
	contextBlock, used := assembleContext(final, budget)

	cov := o.planner.CoverageReport(concepts, toSearchResults(final))
	missing = cov.Missing

	callCtx, cancel := o.callContext(ctx)
	answerable := o.agent.JudgeAnswerability(callCtx, answerQuestion, contextBlock)
	cancel()
	if answerable {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		qlog.Info("answering directly", "results", len(final), "context_chars", len(contextBlock))
		return o.agent.Answer(callCtx, answerQuestion, contextBlock)
	}

	qlog.Info("not directly answerable, attempting best effort", "missing", missing)
	return o.bestEffort(ctx, qlog, answerQuestion, contextBlock, missing, used, final)
}

// bestEffort answers from an incomplete context, naming the gaps. The
// caveated answer is returned either way; the support verdict gates only
// the further-reading links. Only a flat refusal degrades to the fallback.
func (o *Orchestrator) bestEffort(ctx context.Context, qlog *slog.Logger, question, contextBlock string, missing []string, used []UsedSource, final []*candidate) string {
	if len(final) == 0 {
		return NothingFoundMessage
	}

	guided := question
	if len(missing) > 0 {
		guided = fmt.Sprintf("%s (If the pages don't fully cover %s, explain what they do cover.)",
			question, strings.Join(missing, ", "))
	}

	callCtx, cancel := o.callContext(ctx)
	attempt, supported := o.agent.AnswerWithSupport(callCtx, guided, contextBlock)
	cancel()

	if attempt == answer.Apology {
		return o.fallback(ctx, qlog, question, final)
	}
	if supported != "Y" {
		qlog.Info("best effort unsupported, omitting links")
		return attempt
	}

	links := distinctURLs(used, maxLinks)
	if len(links) == 0 {
		return attempt
	}
	var sb strings.Builder
	sb.WriteString(attempt)
	sb.WriteString("\n\n")
	sb.WriteString(readMoreLabel)
	for _, link := range links {
		sb.WriteString("\n- ")
		sb.WriteString(link)
	}
	return sb.String()
}

// fallback is the last resort: the support check over a small context acts
// purely as a gate deciding whether the apology carries pointers to related
// pages. The checked answer text is never surfaced.
func (o *Orchestrator) fallback(ctx context.Context, qlog *slog.Logger, question string, final []*candidate) string {
	if len(final) == 0 {
		return NothingFoundMessage
	}

	small := final
	if len(small) > fallbackResultCap {
		small = small[:fallbackResultCap]
	}
	budget := o.maxContextChars
	if budget > fallbackCharCap {
		budget = fallbackCharCap
	}
	block, used := assembleContext(small, budget)

	callCtx, cancel := o.callContext(ctx)
	_, supported := o.agent.AnswerWithSupport(callCtx, question, block)
	cancel()

	if supported != "Y" {
		qlog.Info("fallback unsupported, apologizing")
		return answer.Apology
	}

	var sb strings.Builder
	sb.WriteString(answer.Apology)
	seen := make(map[string]bool)
	links := 0
	for _, src := range used {
		if seen[src.Url] || links >= maxLinks {
			continue
		}
		seen[src.Url] = true
		if links == 0 {
			sb.WriteString("\n\n")
			sb.WriteString(helpfulPagesLabel)
		}
		fmt.Fprintf(&sb, "\n- %s: %s", src.Section, src.Url)
		links++
	}
	return sb.String()
}

// classicQuery is the rewrite-hop loop: assemble, gate on answerability,
// rewrite the query, search again, for up to two extra hops. Prior
// conversation is prepended to the question so both retrieval and answering
// see it.
func (o *Orchestrator) classicQuery(ctx context.Context, qlog *slog.Logger, question string, retryOnEmpty bool, memoryContext string) string {
	if m := strings.TrimSpace(memoryContext); m != "" {
		question = m + "\n\n" + question
	}

	kFirst := max(o.topK, 8)

	all := o.searchPass(ctx, qlog, question, originInitial, kFirst)
	if len(all) == 0 && o.recrawl != nil && retryOnEmpty {
		qlog.Info("no results, triggering recrawl")
		if err := o.recrawl(ctx); err != nil {
			qlog.Warn("recrawl failed", "err", err)
		} else {
			o.InvalidateLexical()
			all = o.searchPass(ctx, qlog, question, originAfterRecrawl, kFirst)
		}
	}
	if len(all) == 0 {
		return NothingFoundMessage
	}

	budget := contextBudget(o.maxContextChars, o.agent.ContextWindowTokens(), o.agent.ModelName())

	for hop := 0; ; hop++ {
		final := mergeRerank(all, o.maxResults, o.maxPerParent, o.maxPerCanon)
		contextBlock, _ := assembleContext(final, budget)

		callCtx, cancel := o.callContext(ctx)
		answerable := o.agent.JudgeAnswerability(callCtx, question, contextBlock)
		cancel()
		if answerable {
			callCtx, cancel := o.callContext(ctx)
			defer cancel()
			qlog.Info("answering directly", "hop", hop, "results", len(final))
			return o.agent.Answer(callCtx, question, contextBlock)
		}
		if hop >= rewriteHops {
			break
		}

		callCtx, cancel = o.callContext(ctx)
		rewritten := o.agent.RewriteQuery(callCtx, question, resultHints(final))
		cancel()
		if rewritten == "" {
			break
		}

		kSecond := max(o.topK, 10)
		queries := strings.Split(rewritten, " || ")
		qlog.Info("rewrite hop", "hop", hop, "queries", len(queries))
		all = append(all, o.concurrentSearches(ctx, qlog, queries, originRewrite, kSecond)...)
	}

	final := mergeRerank(all, o.maxResults, o.maxPerParent, o.maxPerCanon)
	contextBlock, used := assembleContext(final, budget)
	return o.bestEffort(ctx, qlog, question, contextBlock, nil, used, final)
}

// concurrentSearches fans search passes out over the worker pool. Each pass
// keeps its own in-pass rank, so merge order does not depend on completion
// order. Falls back to inline execution when the pool rejects a task.
func (o *Orchestrator) concurrentSearches(ctx context.Context, qlog *slog.Logger, queries []string, tag string, k int) []*candidate {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []*candidate
	)
	for _, q := range queries {
		query := strings.TrimSpace(q)
		if query == "" {
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			cands := o.searchPass(ctx, qlog, query, tag, k)
			mu.Lock()
			out = append(out, cands...)
			mu.Unlock()
		}
		if err := o.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return out
}

func dropCandidates(cands []*candidate, ids []string) []*candidate {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := cands[:0]
	for _, c := range cands {
		if drop[c.record.FallbackID()] {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func distinctURLs(used []UsedSource, limit int) []string {
	seen := make(map[string]bool, len(used))
	var out []string
	for _, src := range used {
		if src.Url == "" || seen[src.Url] {
			continue
		}
		seen[src.Url] = true
		out = append(out, src.Url)
		if len(out) == limit {
			break
		}
	}
	return out
}

// resultHints summarizes current results for the rewrite prompt.
func resultHints(final []*candidate) string {
	limit := 5
	if limit > len(final) {
		limit = len(final)
	}
	var sb strings.Builder
	for _, c := range final[:limit] {
		text := c.record.Text
		if runes := []rune(text); len(runes) > 100 {
			text = string(runes[:100])
		}
		fmt.Fprintf(&sb, "- %s: %s\n", c.record.Url, text)
	}
	return sb.String()
}
