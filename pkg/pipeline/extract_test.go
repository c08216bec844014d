package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	type verdictShape struct {
		Agrees     bool    `json:"agrees"`
		Confidence float64 `json:"confidence"`
	}

	cases := []struct {
		name     string
		response string
		wantErr  bool
		agrees   bool
	}{
		{
			name:     "clean object",
			response: `{"agrees": true, "confidence": 0.9}`,
			agrees:   true,
		},
		{
			name:     "markdown fenced",
			response: "```json\n{\"agrees\": true, \"confidence\": 0.9}\n```",
			agrees:   true,
		},
		{
			name:     "wrapped in prose",
			response: "Here is my assessment:\n{\"agrees\": false, \"confidence\": 0.8}\nLet me know if you need more.",
			agrees:   false,
		},
		{
			name:     "no object",
			response: "I agree with the answer.",
			wantErr:  true,
		},
		{
			name:     "empty",
			response: "",
			wantErr:  true,
		},
		{
			name:     "malformed object",
			response: `{"agrees": tru`,
			wantErr:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out verdictShape
			err := ExtractJSON(tc.response, &out)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.agrees, out.Agrees)
		})
	}
}
