package rules

import (
	"fmt"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
)

// ImportSigmaRule converts a Sigma YAML rule into the native rule schema.
//
// The conversion is approximate: every search of the detection block is
// joined with OR, regardless of the rule's condition expression, and the
// fields within one matcher are joined with AND. Keyword searches and the
// 're' modifier have no native equivalent and are rejected.
//
// Multi-value fields become a parenthesized OR group rather than an IN list,
// so the generated condition still composes with AND/OR grouping.
func ImportSigmaRule(data []byte) (RuleFile, error) {
	rule, err := sigma.ParseRule(data)
	if err != nil {
		return RuleFile{}, fmt.Errorf("parsing sigma rule: %w", err)
	}
	if rule.Title == "" {
		return RuleFile{}, fmt.Errorf("sigma rule has no title")
	}

	var searchParts []string
	for name, search := range rule.Detection.Searches {
		part, err := convertSearch(name, search)
		if err != nil {
			return RuleFile{}, err
		}
		searchParts = append(searchParts, part)
	}
	if len(searchParts) == 0 {
		return RuleFile{}, fmt.Errorf("sigma rule '%s' has no searches", rule.Title)
	}

	condition := searchParts[0]
	if len(searchParts) > 1 {
		for i, p := range searchParts {
			searchParts[i] = "(" + p + ")"
		}
		condition = strings.Join(searchParts, " OR ")
	}

	return RuleFile{
		ID:          rule.ID,
		Title:       rule.Title,
		Description: rule.Description,
		Author:      rule.Author,
		Status:      convertStatus(rule.Status),
		Tags:        rule.Tags,
		Detection: Detection{
			Severity:  convertLevel(rule.Level),
			Condition: condition,
		},
	}, nil
}

func convertSearch(name string, search sigma.Search) (string, error) {
	if len(search.Keywords) > 0 {
		return "", fmt.Errorf("search '%s': keyword searches are not supported", name)
	}
	if len(search.EventMatchers) == 0 {
		return "", fmt.Errorf("search '%s' has no event matchers", name)
	}

	var matcherParts []string
	for _, matcher := range search.EventMatchers {
		part, err := convertMatcher(name, matcher)
		if err != nil {
			return "", err
		}
		matcherParts = append(matcherParts, part)
	}

	if len(matcherParts) == 1 {
		return matcherParts[0], nil
	}
	for i, p := range matcherParts {
		matcherParts[i] = "(" + p + ")"
	}
	return strings.Join(matcherParts, " OR "), nil
}

func convertMatcher(name string, matcher sigma.EventMatcher) (string, error) {
	var fieldParts []string
	for _, fm := range matcher {
		part, err := convertFieldMatcher(name, fm)
		if err != nil {
			return "", err
		}
		fieldParts = append(fieldParts, part)
	}
	if len(fieldParts) == 0 {
		return "", fmt.Errorf("search '%s' has an empty event matcher", name)
	}
	return strings.Join(fieldParts, " AND "), nil
}

func convertFieldMatcher(name string, fm sigma.FieldMatcher) (string, error) {
	operator := "="
	for _, mod := range fm.Modifiers {
		switch mod {
		case "contains":
			operator = "CONTAINS"
		case "startswith":
			operator = "STARTSWITH"
		case "endswith":
			operator = "ENDSWITH"
		case "all":
			// Handled below: 'all' joins the values with AND.
		default:
			return "", fmt.Errorf("search '%s': modifier '%s' is not supported", name, mod)
		}
	}

	joiner := " OR "
	for _, mod := range fm.Modifiers {
		if mod == "all" {
			joiner = " AND "
		}
	}

	var valueParts []string
	for _, value := range fm.Values {
		text := fmt.Sprintf("%v", value)
		op := operator
		if op == "=" && strings.ContainsAny(text, "*?") {
			op = "MATCH"
		}
		valueParts = append(valueParts, fmt.Sprintf("%s %s '%s'", fm.Field, op, text))
	}
	if len(valueParts) == 0 {
		return "", fmt.Errorf("search '%s': field '%s' has no values", name, fm.Field)
	}

	if len(valueParts) == 1 {
		return valueParts[0], nil
	}
	return "(" + strings.Join(valueParts, joiner) + ")", nil
}

func convertLevel(level string) string {
	switch strings.ToLower(level) {
	case "critical", "high", "medium", "low":
		return strings.ToLower(level)
	case "informational":
		return "info"
	default:
		return "medium"
	}
}

func convertStatus(status string) string {
	switch strings.ToLower(status) {
	case "stable", "test":
		return "active"
	default:
		return "draft"
	}
}
