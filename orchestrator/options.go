package orchestrator

import (
	"context"
	"log/slog"
	"time"
)

// Strategy selects the retrieval control loop.
type Strategy string

const (
	// StrategyPlanner routes each question through the LLM planner and
	// refines retrieval with coverage-driven follow-up searches.
	StrategyPlanner Strategy = "planner"
	// StrategyClassic runs the older rewrite-hop loop: answerability gating
	// after each assembly, with query rewrites driving extra hops.
	StrategyClassic Strategy = "classic"
)

// RecrawlFunc triggers a site recrawl when initial retrieval comes up empty.
type RecrawlFunc func(ctx context.Context) error

const (
	defaultTopK            = 8
	defaultMaxRounds       = 2
	defaultMaxContextChars = 12000
	defaultMaxResults      = 40
	defaultMaxPerParent    = 2
	defaultMaxPerCanon     = 1
	defaultPoolSize        = 4
	defaultCallTimeout     = 30 * time.Second
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets the base result count per search pass. Initial passes use at
// least 8, follow-up passes at least 10.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMaxRounds bounds the coverage-driven refinement loop.
func WithMaxRounds(rounds int) Option {
	return func(o *Orchestrator) {
		if rounds >= 0 {
			o.maxRounds = rounds
		}
	}
}

// WithMaxContextChars sets the caller's context size preference. The
// effective budget never drops below 8000 characters and may grow when the
// model's context window allows it.
func WithMaxContextChars(chars int) Option {
	return func(o *Orchestrator) {
		if chars > 0 {
			o.maxContextChars = chars
		}
	}
}

// WithMaxResultsToConsider caps how many reranked results feed context
// assembly. Values below 40 are raised to 40.
func WithMaxResultsToConsider(n int) Option {
	return func(o *Orchestrator) {
		if n < defaultMaxResults {
			n = defaultMaxResults
		}
		o.maxResults = n
	}
}

// WithStrategy selects the retrieval control loop.
func WithStrategy(s Strategy) Option {
	return func(o *Orchestrator) {
		if s == StrategyPlanner || s == StrategyClassic {
			o.strategy = s
		}
	}
}

// WithRecrawlFunc installs a hook fired once when initial retrieval is empty
// and the caller allowed a retry.
func WithRecrawlFunc(fn RecrawlFunc) Option {
	return func(o *Orchestrator) {
		o.recrawl = fn
	}
}

// WithCallTimeout bounds each external call (embedding, generation). Expiry
// behaves like a failed call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.callTimeout = d
		}
	}
}

// WithGraphExpansion toggles link-anchor expansion of initial results.
// Enabled by default.
func WithGraphExpansion(enabled bool) Option {
	return func(o *Orchestrator) {
		o.graphExpansion = enabled
	}
}

// WithSectionExpansion toggles heading-based expansion of initial results.
// Enabled by default.
func WithSectionExpansion(enabled bool) Option {
	return func(o *Orchestrator) {
		o.sectionExpansion = enabled
	}
}

// WithPoolSize sets the worker pool size for concurrent follow-up searches.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) {
		if size > 0 {
			o.poolSize = size
		}
	}
}

// WithContextWindow declares the chat model's context window in tokens for
// budget math.
func WithContextWindow(tokens int) Option {
	return func(o *Orchestrator) {
		if tokens > 0 {
			o.contextWindow = tokens
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}
