package engine

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// ValidationResult is the outcome of the condition linter. A valid result is
// not a guarantee that the condition evaluates usefully, only that it clears
// the basic syntax checks.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	ErrorPosition *int     `json:"error_position,omitempty"`
	Suggestions   []string `json:"suggestions"`
}

// FieldSuggestion is one autocomplete candidate sampled from loaded events.
type FieldSuggestion struct {
	FieldPath   string `json:"field_path"`
	FieldType   string `json:"field_type"`
	SampleValue string `json:"sample_value"`
	Frequency   int    `json:"frequency"`
}

const (
	suggestionSampleSize = 100
	suggestionSampleLen  = 50
	suggestionLimit      = 20
)

// ValidateSyntax lints a condition string: empty input, unbalanced quotes,
// missing operator, and empty AND/OR segments are rejected.
func ValidateSyntax(condition string) ValidationResult {
	condition = strings.TrimSpace(condition)

	if condition == "" {
		pos := 0
		return ValidationResult{
			Valid:         false,
			ErrorMessage:  "Condition cannot be empty",
			ErrorPosition: &pos,
			Suggestions:   []string{"Example: eventName = 'AssumeRole'"},
		}
	}

	if strings.Count(condition, "'")%2 != 0 {
		pos := strings.LastIndex(condition, "'")
		return ValidationResult{
			Valid:         false,
			ErrorMessage:  "Unmatched single quote (')",
			ErrorPosition: &pos,
			Suggestions:   []string{"Add closing single quote"},
		}
	}

	if strings.Count(condition, `"`)%2 != 0 {
		pos := strings.LastIndex(condition, `"`)
		return ValidationResult{
			Valid:         false,
			ErrorMessage:  `Unmatched double quote (")`,
			ErrorPosition: &pos,
			Suggestions:   []string{"Add closing double quote"},
		}
	}

	upper := strings.ToUpper(condition)
	hasOperator := strings.Contains(condition, "=") ||
		strings.Contains(condition, "<>") ||
		strings.Contains(upper, " CONTAINS ") ||
		strings.Contains(upper, " IN ") ||
		strings.Contains(upper, " STARTSWITH ") ||
		strings.Contains(upper, " ENDSWITH ") ||
		strings.Contains(upper, " MATCH ")

	if !hasOperator {
		return ValidationResult{
			Valid:        false,
			ErrorMessage: "No operator found. Use =, IN, CONTAINS, STARTSWITH, etc.",
			Suggestions: []string{
				"Example: field = 'value'",
				"Example: field CONTAINS 'text'",
				"Example: field IN ('a', 'b')",
			},
		}
	}

	if strings.Contains(upper, " AND ") || strings.Contains(upper, " OR ") {
		keyword := "AND"
		if !strings.Contains(upper, " AND ") {
			keyword = "OR"
		}
		for _, part := range splitKeyword(condition, keyword) {
			if strings.TrimSpace(part) == "" {
				return ValidationResult{
					Valid:        false,
					ErrorMessage: "Empty condition part in AND/OR",
					Suggestions:  []string{"Each part of AND/OR must have a condition"},
				}
			}
		}
	}

	return ValidationResult{Valid: true, Suggestions: []string{}}
}

type fieldInfo struct {
	fieldType string
	sample    string
	frequency int
}

// SuggestFields samples the first 100 events, flattens nested objects into
// dot-paths (descending into the first element only of any array), filters by
// case-insensitive path prefix, and returns the top 20 suggestions by
// descending frequency.
func SuggestFields(events []Event, prefix string) []FieldSuggestion {
	fields := map[string]*fieldInfo{}

	sample := events
	if len(sample) > suggestionSampleSize {
		sample = sample[:suggestionSampleSize]
	}
	for _, ev := range sample {
		collectFields(map[string]interface{}(ev), "", fields)
	}

	lowerPrefix := strings.ToLower(prefix)
	suggestions := make([]FieldSuggestion, 0, len(fields))
	for path, info := range fields {
		if !strings.HasPrefix(strings.ToLower(path), lowerPrefix) {
			continue
		}
		suggestions = append(suggestions, FieldSuggestion{
			FieldPath:   path,
			FieldType:   info.fieldType,
			SampleValue: info.sample,
			Frequency:   info.frequency,
		})
	}

	// Most frequent first; ties by path so the order is stable across calls.
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Frequency != suggestions[j].Frequency {
			return suggestions[i].Frequency > suggestions[j].Frequency
		}
		return suggestions[i].FieldPath < suggestions[j].FieldPath
	})

	if len(suggestions) > suggestionLimit {
		suggestions = suggestions[:suggestionLimit]
	}
	return suggestions
}

func collectFields(value interface{}, prefix string, fields map[string]*fieldInfo) {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return
	}

	for key, val := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := val.(type) {
		case string:
			recordField(fields, path, "string", truncateSample(v))
		case json.Number:
			recordField(fields, path, "number", v.String())
		case float64:
			recordField(fields, path, "number", strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			recordField(fields, path, "boolean", strconv.FormatBool(v))
		case map[string]interface{}:
			collectFields(v, path, fields)
		case []interface{}:
			if len(v) > 0 {
				collectFields(v[0], path, fields)
			}
		}
	}
}

func recordField(fields map[string]*fieldInfo, path, fieldType, sample string) {
	info, ok := fields[path]
	if !ok {
		info = &fieldInfo{fieldType: fieldType, sample: sample}
		fields[path] = info
	}
	info.frequency++
}

func truncateSample(s string) string {
	runes := []rune(s)
	if len(runes) > suggestionSampleLen {
		return string(runes[:suggestionSampleLen])
	}
	return s
}
