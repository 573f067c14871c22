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


// Package answer wraps the chat generator with the prompting surface used by
// the query orchestrator: grounded answering, answerability judgment, and
// query rewriting. Every method defaults conservatively when the model errs
// or returns something unusable; callers never see an exception-shaped
// failure where a fallback string will do.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/websage/ai"
)

// ErrNilGenerator is returned when NewAgent is called without a generator.
var ErrNilGenerator = errors.New("answer agent requires a generator")

// Apology is returned when retrieval found material but the model cannot
// ground an answer in it.
const Apology = "I couldn't find enough information on this site to answer that directly."

const (
	// noAnswerSentinel is the single-character reply the answer prompt
	// reserves for "not answerable from the excerpts".
	noAnswerSentinel = "N"

	// sameSentinel is the rewrite prompt's reply for "query is fine as is".
	sameSentinel = "SAME"

	// judgePreviewChars bounds the context shown to the answerability probe.
	judgePreviewChars = 6000
)

// Agent is the answering collaborator. Safe for concurrent use.
type Agent struct {
	generator ai.Generator
	window    int
	logger    *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithContextWindow declares the chat model's context window in tokens.
// Zero leaves the window unknown.
func WithContextWindow(tokens int) Option {
	return func(a *Agent) {
		a.window = tokens
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAgent creates an answering agent over the given generator.
func NewAgent(generator ai.Generator, opts ...Option) (*Agent, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	a := &Agent{
		generator: generator,
		logger:    slog.Default().With("component", "answer-agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ModelName returns the underlying chat model identifier.
func (a *Agent) ModelName() string {
	return a.generator.ModelName()
}

// ContextWindowTokens returns the configured context window, or zero when
// unknown. Budget math falls back to a model-name heuristic in that case.
func (a *Agent) ContextWindowTokens() int {
	return a.window
}

// Answer generates a grounded answer to the question from the context block.
// Empty context, a model error, or the not-answerable sentinel all yield the
// apology string.
func (a *Agent) Answer(ctx context.Context, question, contextBlock string) string {
	if strings.TrimSpace(contextBlock) == "" {
		return Apology
	}

	user := fmt.Sprintf(answerPromptTemplate, contextBlock, question)
	response, err := a.generator.Generate(ctx, answerSystemPrompt, user)
	if err != nil {
		a.logger.Error("answer generation failed", "err", err)
		return Apology
	}

	response = strings.TrimSpace(response)
	if response == "" || response == noAnswerSentinel {
		return Apology
	}
	return response
}

// supportedAnswer is the dual-output JSON shape requested from the model.
type supportedAnswer struct {
	Answer    string `json:"answer"`
	Supported string `json:"supported"`
}

// AnswerWithSupport generates an answer along with the model's own judgment
// of whether the context supports it. Supported is always "Y" or "N". When
// the JSON reply cannot be parsed, it falls back to a plain Answer plus an
// independent answerability probe.
func (a *Agent) AnswerWithSupport(ctx context.Context, question, contextBlock string) (string, string) {
	user := fmt.Sprintf(answerPromptTemplate, contextBlock, question)
	response, err := a.generator.Generate(ctx, answerWithSupportSystemPrompt, user)
	if err == nil {
		var parsed supportedAnswer
		cleaned := ai.CleanJSONResponse(response)
		if jsonErr := json.Unmarshal([]byte(cleaned), &parsed); jsonErr == nil && strings.TrimSpace(parsed.Answer) != "" {
			supported := "N"
			if strings.EqualFold(strings.TrimSpace(parsed.Supported), "Y") {
				supported = "Y"
			}
			return strings.TrimSpace(parsed.Answer), supported
		}
		a.logger.Warn("unparseable dual-output reply, falling back to plain answer", "response", response)
	} else {
		a.logger.Error("dual-output generation failed", "err", err)
	}

	plain := a.Answer(ctx, question, contextBlock)
	supported := "N"
	if plain != Apology && a.JudgeAnswerability(ctx, question, contextBlock) {
		supported = "Y"
	}
	return plain, supported
}

// JudgeAnswerability asks the model whether the question is answerable from
// the context. The context is previewed to its first 6000 characters. Any
// error counts as not answerable.
func (a *Agent) JudgeAnswerability(ctx context.Context, question, contextBlock string) bool {
	preview := contextBlock
	if runes := []rune(preview); len(runes) > judgePreviewChars {
		preview = string(runes[:judgePreviewChars])
	}

	user := fmt.Sprintf(judgePromptTemplate, preview, question)
	response, err := a.generator.Generate(ctx, judgeSystemPrompt, user)
	if err != nil {
		a.logger.Warn("answerability probe failed", "err", err)
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(response)), "YES")
}

// Transform reworks a previous answer per the visitor's instruction without
// retrieval. On error or an empty reply the previous answer is returned
// unchanged.
func (a *Agent) Transform(ctx context.Context, instruction, previous string) string {
	user := fmt.Sprintf(transformPromptTemplate, previous, instruction)
	response, err := a.generator.Generate(ctx, transformSystemPrompt, user)
	if err != nil {
		a.logger.Warn("transform failed, returning previous answer", "err", err)
		return previous
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return previous
	}
	return response
}

// RewriteQuery asks the model for alternative search queries for the
// question, given hints about what retrieval found so far. Multi-line output
// is normalized and joined with " || ". Returns "" when the model says the
// query is fine as is, or on any error.
func (a *Agent) RewriteQuery(ctx context.Context, question, hints string) string {
	if hints == "" {
		hints = "(nothing yet)"
	}
	user := fmt.Sprintf(rewritePromptTemplate, question, hints)
	response, err := a.generator.Generate(ctx, rewriteSystemPrompt, user)
	if err != nil {
		a.logger.Warn("query rewrite failed", "err", err)
		return ""
	}

	response = strings.TrimSpace(response)
	if response == "" || strings.EqualFold(response, sameSentinel) {
		return ""
	}

	var queries []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. \t"))
		if line == "" || strings.EqualFold(line, sameSentinel) {
			continue
		}
		queries = append(queries, line)
	}
	return strings.Join(queries, " || ")
}
