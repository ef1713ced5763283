package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResult reads the model's message content. It never fails: content
// that isn't a JSON object yields an OutcomeDegraded result with every field
// at its fallback, and fields of the wrong type fall back individually.
func ParseResult(content string) *AnalysisResult {
	result := &AnalysisResult{
		Brand:      UnknownValue,
		Country:    UnknownValue,
		Confidence: ConfidenceUnknown,
		IsAmerican: NationalityIndeterminate,
		Reasoning:  NoReasoningValue,
		Outcome:    OutcomeDegraded,
		Content:    content,
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil || fields == nil {
		return result
	}
	result.Outcome = OutcomeParsed

	if v := stringField(fields, "brand"); v != "" {
		result.Brand = v
	}
	if v := stringField(fields, "country"); v != "" {
		result.Country = v
	}
	if v := stringField(fields, "reasoning"); v != "" {
		result.Reasoning = v
	}
	result.Confidence = ParseConfidence(stringField(fields, "confidence"))
	result.IsAmerican = nationalityField(fields, "is_american")

	return result
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// nationalityField only accepts JSON booleans. The string "true" is as
// indeterminate as "unknown".
func nationalityField(fields map[string]json.RawMessage, key string) Nationality {
	raw, ok := fields[key]
	if !ok {
		return NationalityIndeterminate
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil || string(raw) == "null" {
		return NationalityIndeterminate
	}
	if b {
		return NationalityAmerican
	}
	return NationalityForeign
}

// extractJSONObject trims any prose or code fences around the first JSON
// object in text.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}
