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


// Package planner holds the LLM collaborators that steer retrieval: initial
// route classification, concept extraction, coverage accounting, and
// follow-up query planning. Every model-facing call degrades to a safe
// default on error, so a dead or rambling model never blocks retrieval.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/websage/ai"
	"github.com/poiesic/websage/core"
)

// ErrNilGenerator is returned when NewPlanner is called without a generator.
var ErrNilGenerator = errors.New("planner requires a generator")

// Mode classifies how a question should be handled.
type Mode string

const (
	// ModeTransformOnly reworks the previous answer without retrieval.
	ModeTransformOnly Mode = "transform_only"
	// ModeRetrieveFollowup continues the previous topic with fresh retrieval.
	ModeRetrieveFollowup Mode = "retrieve_followup"
	// ModeRetrieveNew starts a new topic; conversation memory is ignored.
	ModeRetrieveNew Mode = "retrieve_new"
)

const (
	maxConcepts      = 6
	minConceptLen    = 3
	maxFollowQueries = 4
	maxDropIds       = 8
	memoryPreview    = 1800
	resultPreviewLen = 220
	coverageDepth    = 10
	previewedResults = 8
)

// Route is the planner's initial decision for a question.
type Route struct {
	Mode            Mode
	StandaloneQuery string
	Concepts        []string
}

// Coverage reports which expected concepts the current results mention.
type Coverage struct {
	Covered []string
	Missing []string
}

// Followups is the planner's mid-loop refinement decision.
type Followups struct {
	Queries []string
	DropIds []string
}

// Planner drives retrieval decisions through the chat model.
// Safe for concurrent use.
type Planner struct {
	generator ai.Generator
	logger    *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPlanner creates a planner over the given generator.
func NewPlanner(generator ai.Generator, opts ...Option) (*Planner, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	p := &Planner{
		generator: generator,
		logger:    slog.Default().With("component", "planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type routeReply struct {
	Route           string   `json:"route"`
	StandaloneQuery string   `json:"standalone_query"`
	Concepts        []string `json:"concepts"`
}

// PlanInitialRoute classifies the question given the conversation memory.
// Any model error or unparseable reply defaults to ModeRetrieveNew with no
// standalone query and no concepts.
func (p *Planner) PlanInitialRoute(ctx context.Context, question, memory string) Route {
	fallback := Route{Mode: ModeRetrieveNew}

	preview := memory
	if runes := []rune(preview); len(runes) > memoryPreview {
		preview = string(runes[:memoryPreview])
	}
	if strings.TrimSpace(preview) == "" {
		preview = "(none)"
	}

	user := fmt.Sprintf(routePromptTemplate, preview, question)
	response, err := p.generator.Generate(ctx, routeSystemPrompt, user)
	if err != nil {
		p.logger.Warn("route planning failed, defaulting to retrieve_new", "err", err)
		return fallback
	}

	var reply routeReply
	if err := unmarshalObject(response, &reply); err != nil {
		p.logger.Warn("unparseable route reply, defaulting to retrieve_new", "response", response, "err", err)
		return fallback
	}

	mode := Mode(strings.TrimSpace(reply.Route))
	switch mode {
	case ModeTransformOnly, ModeRetrieveFollowup, ModeRetrieveNew:
	default:
		p.logger.Warn("unknown route, defaulting to retrieve_new", "route", reply.Route)
		return fallback
	}

	return Route{
		Mode:            mode,
		StandaloneQuery: strings.TrimSpace(reply.StandaloneQuery),
		Concepts:        cleanConcepts(reply.Concepts),
	}
}

type conceptsReply struct {
	Concepts []string `json:"concepts"`
}

// ExtractConcepts asks the model for the concepts an answer must cover.
// Returns nil on any error.
func (p *Planner) ExtractConcepts(ctx context.Context, question string) []string {
	response, err := p.generator.Generate(ctx, conceptsSystemPrompt, question)
	if err != nil {
		p.logger.Warn("concept extraction failed", "err", err)
		return nil
	}

	var reply conceptsReply
	if err := unmarshalObject(response, &reply); err != nil {
		p.logger.Warn("unparseable concepts reply", "response", response, "err", err)
		return nil
	}
	return cleanConcepts(reply.Concepts)
}

// CoverageReport checks each concept for a substring match against the
// concatenated lower-cased text of the first 10 results. No model call.
func (p *Planner) CoverageReport(concepts []string, results []*core.SearchResult) Coverage {
	depth := coverageDepth
	if depth > len(results) {
		depth = len(results)
	}
	var sb strings.Builder
	for _, r := range results[:depth] {
		sb.WriteString(strings.ToLower(r.Record.Text))
		sb.WriteString(" ")
	}
	haystack := sb.String()

	var cov Coverage
	for _, concept := range concepts {
		if strings.Contains(haystack, strings.ToLower(concept)) {
			cov.Covered = append(cov.Covered, concept)
		} else {
			cov.Missing = append(cov.Missing, concept)
		}
	}
	return cov
}

type followupReply struct {
	Queries []string `json:"queries"`
	DropIds []string `json:"drop_ids"`
}

// DecideFollowups asks the model for follow-up queries targeting the missing
// concepts and for result ids to discard. The model sees previews of up to 8
// results. Returns an empty decision on any error.
func (p *Planner) DecideFollowups(ctx context.Context, question string, missing []string, results []*core.SearchResult) Followups {
	shown := previewedResults
	if shown > len(results) {
		shown = len(results)
	}
	var sb strings.Builder
	for _, r := range results[:shown] {
		text := r.Record.Text
		if runes := []rune(text); len(runes) > resultPreviewLen {
			text = string(runes[:resultPreviewLen])
		}
		fmt.Fprintf(&sb, "- id: %s | url: %s | text: %s\n", r.Record.FallbackID(), r.Record.Url, text)
	}

	user := fmt.Sprintf(followupPromptTemplate, question, strings.Join(missing, ", "), sb.String())
	response, err := p.generator.Generate(ctx, followupSystemPrompt, user)
	if err != nil {
		p.logger.Warn("follow-up planning failed", "err", err)
		return Followups{}
	}

	var reply followupReply
	if err := unmarshalObject(response, &reply); err != nil {
		p.logger.Warn("unparseable follow-up reply", "response", response, "err", err)
		return Followups{}
	}

	var decision Followups
	for _, q := range reply.Queries {
		q = strings.TrimSpace(q)
		if q == "" || len(decision.Queries) >= maxFollowQueries {
			continue
		}
		decision.Queries = append(decision.Queries, q)
	}
	for _, id := range reply.DropIds {
		id = strings.TrimSpace(id)
		if id == "" || len(decision.DropIds) >= maxDropIds {
			continue
		}
		decision.DropIds = append(decision.DropIds, id)
	}
	return decision
}

// cleanConcepts lowercases, trims, drops short entries, dedupes preserving
// order, and caps the list.
func cleanConcepts(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if len([]rune(c)) < minConceptLen || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == maxConcepts {
			break
		}
	}
	return out
}

// unmarshalObject parses a model reply: strict parse of the cleaned response
// first, then the first {...} blob it contains.
func unmarshalObject(response string, v any) error {
	cleaned := ai.CleanJSONResponse(response)
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(cleaned[start:end+1]), v)
}
