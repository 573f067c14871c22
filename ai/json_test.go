package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain json untouched",
			input: `{"route": "retrieve_new"}`,
			want:  `{"route": "retrieve_new"}`,
		},
		{
			name:  "strips json code fence",
			input: "```json\n{\"route\": \"transform_only\"}\n```",
			want:  `{"route": "transform_only"}`,
		},
		{
			name:  "strips bare code fence",
			input: "```\n{\"answer\": \"yes\"}\n```",
			want:  `{"answer": "yes"}`,
		},
		{
			name:  "repairs missing opening quote on key",
			input: `{route": "retrieve_new", queries": []}`,
			want:  `{"route": "retrieve_new", "queries": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONResponse(tt.input))
		})
	}
}

func TestCleanJSONResponse_RepairedOutputParses(t *testing.T) {
	raw := "```json\n{answer\": \"It works.\", supported\": \"Y\"}\n```"

	var parsed struct {
		Answer    string `json:"answer"`
		Supported string `json:"supported"`
	}
	err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "It works.", parsed.Answer)
	assert.Equal(t, "Y", parsed.Supported)
}
