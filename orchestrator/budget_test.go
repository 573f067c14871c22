package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextBudget(t *testing.T) {
	tests := []struct {
		name      string
		maxChars  int
		window    int
		modelName string
		want      int
	}{
		{
			name:      "known window converts to characters",
			maxChars:  12000,
			window:    16000,
			modelName: "qwen2.5:3b",
			// reserve 2400, usable 13600, 4 chars per token
			want: 54400,
		},
		{
			name:      "tiny window falls back to base",
			maxChars:  12000,
			window:    1000,
			modelName: "qwen2.5:3b",
			want:      12000,
		},
		{
			name:      "huge window is capped",
			maxChars:  12000,
			window:    1000000,
			modelName: "qwen2.5:3b",
			want:      180000,
		},
		{
			name:      "no window, small model, base wins",
			maxChars:  12000,
			window:    0,
			modelName: "qwen2.5:3b",
			want:      12000,
		},
		{
			name:      "base floor",
			maxChars:  1000,
			window:    0,
			modelName: "qwen2.5:3b",
			want:      8000,
		},
		{
			name:      "large-window model name expands base",
			maxChars:  12000,
			window:    0,
			modelName: "gpt-4o-mini",
			want:      60000,
		},
		{
			name:      "large-window expansion is capped",
			maxChars:  30000,
			window:    0,
			modelName: "gpt-4.1",
			want:      100000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contextBudget(tt.maxChars, tt.window, tt.modelName))
		})
	}
}
