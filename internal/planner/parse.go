package planner

import (
	"encoding/json"
	"strings"
)

// clarifyReply is the structured verdict the clarify stage expects from
// the generator.
type clarifyReply struct {
	ClarificationNeeded bool           `json:"clarification_needed"`
	Questions           []string       `json:"questions"`
	Preferences         map[string]any `json:"preferences"`
	Message             string         `json:"message"`
}

// validateReply is the normalized preference set the validate stage
// expects from the generator.
type validateReply struct {
	ValidatedPreferences map[string]any `json:"validated_preferences"`
	SuccessCriteria      []string       `json:"success_criteria"`
	DataQuality          []string       `json:"data_quality_requirements"`
}

// extractJSON pulls the first JSON object out of generator text,
// tolerating markdown code fences and surrounding prose. It reports false
// when no parsable object is present.
func extractJSON(text string, v any) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	if stripped, ok := stripCodeFence(text); ok {
		text = stripped
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return false
	}

	return json.Unmarshal([]byte(text[start:end+1]), v) == nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return text, false
	}

	body := strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body), true
}

// containsAnyFold reports whether text contains any keyword,
// case-insensitively.
func containsAnyFold(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
