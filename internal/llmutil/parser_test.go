package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type region struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
}

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []region
	}{
		{
			name:     "plain array",
			response: `[{"label":"Email","x":10}]`,
			want:     []region{{Label: "Email", X: 10}},
		},
		{
			name:     "fenced array",
			response: "```json\n[{\"label\":\"Phone\",\"x\":5}]\n```",
			want:     []region{{Label: "Phone", X: 5}},
		},
		{
			name:     "conversational wrapper",
			response: `Here are the fields I found: [{"label":"Name","x":1}, {"label":"City","x":2}] Let me know!`,
			want:     []region{{Label: "Name", X: 1}, {Label: "City", X: 2}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSONResponse[[]region](tc.response)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestParseJSONResponse_Object(t *testing.T) {
	type wrapper struct {
		Fields []region `json:"fields"`
	}
	got, err := ParseJSONResponse[wrapper]("Sure.\n```\n{\"fields\":[{\"label\":\"Email\",\"x\":3}]}\n```")
	require.NoError(t, err)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "Email", got.Fields[0].Label)
}

func TestParseJSONResponse_Invalid(t *testing.T) {
	_, err := ParseJSONResponse[[]region]("no structured content here")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal model JSON response")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "", truncateString("abc", 0))
}
