package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qs3c/clone_gen_server/config"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	_, err = NewClient(&config.ModelConfig{Name: "gpt-4o"})
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	client, err := NewClient(&config.ModelConfig{Name: "gpt-4o", APIKey: "sk-test"})
	assert.NoError(t, err)
	assert.NotNil(t, client)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounding prose",
			input: "Here is the result:\n{\"a\": 1}\nHope that helps.",
			want:  `{"a": 1}`,
		},
		{
			name:  "nested braces",
			input: `prefix {"outer": {"inner": 2}} suffix`,
			want:  `{"outer": {"inner": 2}}`,
		},
		{
			name:  "no object at all",
			input: "nothing here",
			want:  "nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}
