package jsonutils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`},
		{"unlabelled fence", "```\n{\"a\": 2}\n```", `{"a": 2}`},
		{"bare object", `Sure! {"a": [1, 2]} done`, `{"a": [1, 2]}`},
		{"trailing comma", `{"a": [1, 2,], "b": 3,}`, `{"a": [1, 2], "b": 3}`},
		{"zero width", "\u200B{\"a\": 1}\uFEFF", `{"a": 1}`},
		{"no object", "  ## Key Points\n- x  ", "## Key Points\n- x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestExtractJSON_KeepsEscapedQuotes(t *testing.T) {
	out := ExtractJSON(`{"text": "she said \"ship it\""}`)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, `she said "ship it"`, v["text"])
}

func TestToJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", ToJSON(map[string]int{"a": 1}))
	assert.Empty(t, ToJSON(make(chan int)))
}
