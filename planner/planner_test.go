package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websage/ai/mock"
	"github.com/poiesic/websage/core"
)

func newTestPlanner(t *testing.T, gen *mock.MockGenerator) *Planner {
	t.Helper()
	p, err := NewPlanner(gen)
	require.NoError(t, err)
	return p
}

func result(id, url, text string) *core.SearchResult {
	return &core.SearchResult{
		Record: &core.StoredRecord{Id: id, Url: url, Text: text, Key: url},
		Id:     core.IDFromKey(url),
		Score:  0.5,
	}
}

func TestNewPlanner_NilGenerator(t *testing.T) {
	_, err := NewPlanner(nil)
	assert.ErrorIs(t, err, ErrNilGenerator)
}

func TestPlanInitialRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("parses full route", func(t *testing.T) {
		gen := mock.NewMockGenerator(`{"route": "retrieve_followup", "standalone_query": "shipping costs to canada", "concepts": ["Shipping", "CANADA", "costs"]}`)
		p := newTestPlanner(t, gen)

		route := p.PlanInitialRoute(ctx, "what about canada?", "user asked about shipping")
		assert.Equal(t, ModeRetrieveFollowup, route.Mode)
		assert.Equal(t, "shipping costs to canada", route.StandaloneQuery)
		assert.Equal(t, []string{"shipping", "canada", "costs"}, route.Concepts)
	})

	t.Run("fenced reply", func(t *testing.T) {
		gen := mock.NewMockGenerator("```json\n{\"route\": \"transform_only\", \"standalone_query\": \"\", \"concepts\": []}\n```")
		p := newTestPlanner(t, gen)

		route := p.PlanInitialRoute(ctx, "make it shorter", "previous answer text")
		assert.Equal(t, ModeTransformOnly, route.Mode)
	})

	t.Run("model error defaults to retrieve_new", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("unreachable")
		}
		p := newTestPlanner(t, gen)

		route := p.PlanInitialRoute(ctx, "question", "")
		assert.Equal(t, ModeRetrieveNew, route.Mode)
		assert.Empty(t, route.StandaloneQuery)
		assert.Empty(t, route.Concepts)
	})

	t.Run("garbage reply defaults to retrieve_new", func(t *testing.T) {
		gen := mock.NewMockGenerator("I think you should search for shipping")
		p := newTestPlanner(t, gen)

		route := p.PlanInitialRoute(ctx, "question", "memory")
		assert.Equal(t, ModeRetrieveNew, route.Mode)
	})

	t.Run("unknown route value defaults to retrieve_new", func(t *testing.T) {
		gen := mock.NewMockGenerator(`{"route": "retrieve_everything", "standalone_query": "", "concepts": []}`)
		p := newTestPlanner(t, gen)

		route := p.PlanInitialRoute(ctx, "question", "memory")
		assert.Equal(t, ModeRetrieveNew, route.Mode)
	})

	t.Run("long memory is previewed in the prompt", func(t *testing.T) {
		var seen string
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
			seen = user
			return `{"route": "retrieve_new", "standalone_query": "", "concepts": []}`, nil
		}
		p := newTestPlanner(t, gen)

		long := make([]byte, 10000)
		for i := range long {
			long[i] = 'm'
		}
		p.PlanInitialRoute(ctx, "q", string(long))
		assert.Less(t, len(seen), 2500)
	})
}

func TestExtractConcepts(t *testing.T) {
	ctx := context.Background()

	t.Run("cleans and caps", func(t *testing.T) {
		gen := mock.NewMockGenerator(`{"concepts": ["Pricing", "pricing", "a", "Free Tier", "limits", "api", "sdk", "docs", "extra one"]}`)
		p := newTestPlanner(t, gen)

		got := p.ExtractConcepts(ctx, "what does the free tier include?")
		assert.Equal(t, []string{"pricing", "free tier", "limits", "api", "sdk", "docs"}, got)
	})

	t.Run("error yields nil", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("boom")
		}
		p := newTestPlanner(t, gen)
		assert.Nil(t, p.ExtractConcepts(ctx, "question"))
	})
}

func TestCoverageReport(t *testing.T) {
	p := newTestPlanner(t, mock.NewMockGenerator())

	results := []*core.SearchResult{
		result("1", "https://example.com/pricing", "Our PRICING starts at ten dollars."),
		result("2", "https://example.com/limits", "Rate limits apply to the free tier."),
	}

	cov := p.CoverageReport([]string{"pricing", "free tier", "webhooks"}, results)
	assert.Equal(t, []string{"pricing", "free tier"}, cov.Covered)
	assert.Equal(t, []string{"webhooks"}, cov.Missing)

	t.Run("only the first ten results count", func(t *testing.T) {
		var many []*core.SearchResult
		for i := 0; i < 12; i++ {
			many = append(many, result(fmt.Sprintf("%d", i), fmt.Sprintf("https://example.com/%d", i), "filler text"))
		}
		many[11].Record.Text = "the webhooks page"

		cov := p.CoverageReport([]string{"webhooks"}, many)
		assert.Equal(t, []string{"webhooks"}, cov.Missing)
	})

	t.Run("no concepts", func(t *testing.T) {
		cov := p.CoverageReport(nil, results)
		assert.Empty(t, cov.Covered)
		assert.Empty(t, cov.Missing)
	})
}

func TestDecideFollowups(t *testing.T) {
	ctx := context.Background()

	t.Run("parses and caps", func(t *testing.T) {
		gen := mock.NewMockGenerator(`{"queries": ["q1", "q2", "q3", "q4", "q5"], "drop_ids": ["a", "b"]}`)
		p := newTestPlanner(t, gen)

		got := p.DecideFollowups(ctx, "question", []string{"webhooks"}, []*core.SearchResult{
			result("1", "https://example.com/a", "some text"),
		})
		assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, got.Queries)
		assert.Equal(t, []string{"a", "b"}, got.DropIds)
	})

	t.Run("error yields empty decision", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("boom")
		}
		p := newTestPlanner(t, gen)

		got := p.DecideFollowups(ctx, "question", nil, nil)
		assert.Empty(t, got.Queries)
		assert.Empty(t, got.DropIds)
	})

	t.Run("previews are bounded", func(t *testing.T) {
		var seen string
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
			seen = user
			return `{"queries": [], "drop_ids": []}`, nil
		}
		p := newTestPlanner(t, gen)

		long := make([]byte, 5000)
		for i := range long {
			long[i] = 't'
		}
		var many []*core.SearchResult
		for i := 0; i < 20; i++ {
			many = append(many, result(fmt.Sprintf("%d", i), fmt.Sprintf("https://example.com/%d", i), string(long)))
		}
		p.DecideFollowups(ctx, "q", nil, many)
		assert.Less(t, len(seen), 8*400, "at most 8 results with 220-char previews")
	})
}

func TestCleanConcepts(t *testing.T) {
	got := cleanConcepts([]string{"  Alpha ", "alpha", "ab", "Beta Gamma", ""})
	assert.Equal(t, []string{"alpha", "beta gamma"}, got)
}
