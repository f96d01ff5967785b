package summarization

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFence   = regexp.MustCompile("(?i)```json")
	bulletSplit = regexp.MustCompile(`[\n.]`)
)

// Result is a parsed summary. Degraded is set when the model response was not a JSON
// object and Summary holds a best-effort bullet list of the raw text.
type Result struct {
	Summary     []string
	KeyPoints   []string
	Assignments []string
	Degraded    bool
}

// StripFences removes markdown code fences around a model response.
func StripFences(content string) string {
	content = jsonFence.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

// Bulletize splits text on newlines and periods into trimmed, non-empty lines.
func Bulletize(text string) []string {
	return cleanLines(bulletSplit.Split(text, -1))
}

// Parse decodes a model response into a Result. It never fails: content that is not a
// JSON object degrades to a bulletized summary of the whole response.
func Parse(raw string) Result {
	content := StripFences(raw)

	var payload struct {
		Summary     json.RawMessage `json:"summary"`
		KeyPoints   json.RawMessage `json:"keyPoints"`
		Assignments json.RawMessage `json:"assignments"`
	}
	// null decodes into the struct without error, so require an object explicitly.
	if err := json.Unmarshal([]byte(content), &payload); err != nil || !strings.HasPrefix(content, "{") {
		return Result{
			Summary:     Bulletize(content),
			KeyPoints:   []string{},
			Assignments: []string{},
			Degraded:    true,
		}
	}

	return Result{
		Summary:     bulletizeField(payload.Summary),
		KeyPoints:   bulletizeField(payload.KeyPoints),
		Assignments: bulletizeField(payload.Assignments),
	}
}

// bulletizeField accepts a JSON array (elements trimmed, empties dropped) or a JSON
// string (split like Bulletize). Anything else, including null, yields an empty list.
func bulletizeField(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Bulletize(text)
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err == nil {
		lines := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case nil:
			case string:
				lines = append(lines, v)
			default:
				lines = append(lines, fmt.Sprint(v))
			}
		}
		return cleanLines(lines)
	}

	return []string{}
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
