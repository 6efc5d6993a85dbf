package jsonutils

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSON    = regexp.MustCompile("(?s)```(?:json)?(.*?)```")
	bareObject    = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ExtractJSON pulls a JSON object out of model output. A fenced block wins
// over a bare {...} span. Trailing commas and zero-width characters are
// removed. Input with no object comes back trimmed.
func ExtractJSON(input string) string {
	input = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\uFEFF' || r == '\u200B' || r == '\u200C' || r == '\u200D' {
			return -1
		}
		return r
	}, input))

	if m := fencedJSON.FindStringSubmatch(input); len(m) > 1 && strings.Contains(m[1], "{") {
		input = strings.TrimSpace(m[1])
	} else if m := bareObject.FindString(input); m != "" {
		input = m
	}

	input = trailingComma.ReplaceAllString(input, "$1")
	return strings.TrimSpace(input)
}

// ToJSON pretty prints v with two space indentation, or returns "" if v
// does not serialize.
func ToJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
