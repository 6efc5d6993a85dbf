package summary

import (
	"encoding/json"
	"regexp"
	"strings"

	"scribe/scribe/utils/jsonutils"
)

// Sections is a completion split into the four summary parts.
type Sections struct {
	KeyPoints   string
	Decisions   string
	ActionItems []string
	FollowUps   string
}

func (s Sections) empty() bool {
	return s.KeyPoints == "" && s.Decisions == "" && len(s.ActionItems) == 0 && s.FollowUps == ""
}

type sectionKey int

const (
	sectionNone sectionKey = iota
	sectionKeyPoints
	sectionDecisions
	sectionActionItems
	sectionFollowUps
)

var headingAliases = map[string]sectionKey{
	"key points":     sectionKeyPoints,
	"key point":      sectionKeyPoints,
	"main points":    sectionKeyPoints,
	"decisions":      sectionDecisions,
	"decision":       sectionDecisions,
	"decisions made": sectionDecisions,
	"action items":   sectionActionItems,
	"action item":    sectionActionItems,
	"actions":        sectionActionItems,
	"follow-ups":     sectionFollowUps,
	"follow ups":     sectionFollowUps,
	"followups":      sectionFollowUps,
	"follow-up":      sectionFollowUps,
	"follow up":      sectionFollowUps,
	"next steps":     sectionFollowUps,
}

var (
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	checkboxRe = regexp.MustCompile(`^\[[ xX]?\]\s*`)
)

// Parse splits a completion into sections. Markdown headings are the normal
// shape; a JSON object with the same keys is accepted too. Missing sections
// stay empty and unknown headings are ignored.
func Parse(text string) Sections {
	if looksLikeJSON(text) {
		if s, ok := parseJSON(text); ok {
			return s
		}
	}
	return parseHeadings(text)
}

func looksLikeJSON(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, "{") || strings.Contains(t, "```json")
}

// textOrList accepts either a string or a list of strings.
type textOrList []string

func (t *textOrList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			*t = []string{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*t = list
	return nil
}

func parseJSON(text string) (Sections, bool) {
	var raw struct {
		KeyPoints   textOrList `json:"key_points"`
		Decisions   textOrList `json:"decisions"`
		ActionItems textOrList `json:"action_items"`
		FollowUps   textOrList `json:"follow_ups"`
	}
	if err := json.Unmarshal([]byte(jsonutils.ExtractJSON(text)), &raw); err != nil {
		return Sections{}, false
	}
	s := Sections{
		KeyPoints: joinBullets(raw.KeyPoints),
		Decisions: joinBullets(raw.Decisions),
		FollowUps: joinBullets(raw.FollowUps),
	}
	for _, item := range raw.ActionItems {
		if item = cleanItem(item); item != "" {
			s.ActionItems = append(s.ActionItems, item)
		}
	}
	return s, !s.empty()
}

func joinBullets(items []string) string {
	if len(items) == 1 {
		return items[0]
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			lines = append(lines, "- "+it)
		}
	}
	return strings.Join(lines, "\n")
}

func parseHeadings(text string) Sections {
	var (
		current sectionKey
		body    = map[sectionKey][]string{}
		items   []string
	)
	for _, line := range strings.Split(text, "\n") {
		if key, ok := heading(line); ok {
			current = key
			continue
		}
		switch current {
		case sectionNone:
		case sectionActionItems:
			if bulletRe.MatchString(line) {
				if item := cleanItem(line); item != "" {
					items = append(items, item)
				}
			}
		default:
			body[current] = append(body[current], strings.TrimRight(line, " \t\r"))
		}
	}
	return Sections{
		KeyPoints:   strings.TrimSpace(strings.Join(body[sectionKeyPoints], "\n")),
		Decisions:   strings.TrimSpace(strings.Join(body[sectionDecisions], "\n")),
		ActionItems: items,
		FollowUps:   strings.TrimSpace(strings.Join(body[sectionFollowUps], "\n")),
	}
}

// heading recognizes "## Key Points", "**Decisions:**" and bare "Action Items:".
// It returns sectionNone for a markdown heading it does not know, which ends
// the previous section.
func heading(line string) (sectionKey, bool) {
	t := strings.TrimSpace(line)
	if t == "" || bulletRe.MatchString(t) {
		return sectionNone, false
	}
	isMarkdown := strings.HasPrefix(t, "#")
	norm := strings.TrimLeft(t, "#")
	norm = strings.Trim(norm, " *_:")
	norm = strings.ToLower(strings.TrimSpace(norm))

	if key, ok := headingAliases[norm]; ok {
		return key, true
	}
	if isMarkdown {
		return sectionNone, true
	}
	return sectionNone, false
}

func cleanItem(line string) string {
	item := bulletRe.ReplaceAllString(line, "")
	item = checkboxRe.ReplaceAllString(strings.TrimSpace(item), "")
	return strings.TrimSpace(item)
}
