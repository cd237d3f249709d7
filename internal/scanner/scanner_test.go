package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pynezz/heimdall/internal/engine"
)

type staticRules []Rule

func (r staticRules) ActiveRules() ([]Rule, error) { return r, nil }

type failingRules struct{}

func (failingRules) ActiveRules() ([]Rule, error) {
	return nil, fmt.Errorf("rule store unavailable")
}

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestScanSortsAlertsBySeverity(t *testing.T) {
	path := writeLog(t, "log.json", `{"Records": [
		{"eventName": "DeleteTrail"},
		{"eventName": "ConsoleLogin"}
	]}`)

	rules := staticRules{
		{ID: "r-low", Title: "Low rule", Severity: "low", Condition: "eventName = 'ConsoleLogin'"},
		{ID: "r-crit", Title: "Critical rule", Severity: "critical", Condition: "eventName = 'DeleteTrail'"},
		{ID: "r-med", Title: "Medium rule", Severity: "medium", Condition: "eventName CONTAINS 'login'"},
		{ID: "r-miss", Title: "No match", Severity: "high", Condition: "eventName = 'CreateUser'"},
	}

	result, err := New(rules).Scan(path, engine.FormatCloudTrail)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if result.RulesEvaluated != 4 {
		t.Errorf("RulesEvaluated = %d, want 4", result.RulesEvaluated)
	}
	if len(result.Alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(result.Alerts))
	}

	want := []string{"critical", "medium", "low"}
	for i, severity := range want {
		if result.Alerts[i].Severity != severity {
			t.Errorf("alert %d severity = %q, want %q", i, result.Alerts[i].Severity, severity)
		}
	}

	crit := result.Alerts[0]
	if crit.RuleID != "r-crit" || crit.MatchCount != 1 || len(crit.Evidence) != 1 {
		t.Errorf("critical alert = %+v, want one DeleteTrail match", crit)
	}
	if crit.Timestamp == "" {
		t.Error("alert timestamp is empty")
	}
}

func TestScanStableOrderWithinSeverity(t *testing.T) {
	path := writeLog(t, "log.json", `{"Records": [{"eventName": "ConsoleLogin"}]}`)

	rules := staticRules{
		{ID: "first", Title: "First", Severity: "high", Condition: "eventName = 'ConsoleLogin'"},
		{ID: "second", Title: "Second", Severity: "high", Condition: "eventName CONTAINS 'Console'"},
	}

	result, err := New(rules).Scan(path, engine.FormatCloudTrail)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(result.Alerts))
	}
	if result.Alerts[0].RuleID != "first" || result.Alerts[1].RuleID != "second" {
		t.Errorf("equal-severity alerts reordered: %q, %q", result.Alerts[0].RuleID, result.Alerts[1].RuleID)
	}
}

func TestScanSkipsUnparsableRule(t *testing.T) {
	path := writeLog(t, "log.json", `{"Records": [{"eventName": "ConsoleLogin"}]}`)

	rules := staticRules{
		{ID: "bad", Title: "Broken", Severity: "high", Condition: ""},
		{ID: "good", Title: "Working", Severity: "low", Condition: "eventName = 'ConsoleLogin'"},
	}

	result, err := New(rules).Scan(path, engine.FormatCloudTrail)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].RuleID != "good" {
		t.Errorf("alerts = %+v, want only the working rule", result.Alerts)
	}
	// The broken rule still counts as evaluated.
	if result.RulesEvaluated != 2 {
		t.Errorf("RulesEvaluated = %d, want 2", result.RulesEvaluated)
	}
}

func TestScanLoadFailureIsFatal(t *testing.T) {
	rules := staticRules{{ID: "r", Title: "R", Severity: "low", Condition: "a = '1'"}}
	if _, err := New(rules).Scan(filepath.Join(t.TempDir(), "nope.json"), engine.FormatFlatJSON); err == nil {
		t.Fatal("Scan of a missing file should fail")
	}
}

func TestScanRuleProviderFailure(t *testing.T) {
	path := writeLog(t, "log.json", `{"n": 1}`)
	if _, err := New(failingRules{}).Scan(path, engine.FormatFlatJSON); err == nil {
		t.Fatal("Scan should surface rule provider errors")
	}
}

func TestEvidenceCapKeepsCounting(t *testing.T) {
	content := ""
	total := EvidenceCap + 50
	for i := 0; i < total; i++ {
		content += fmt.Sprintf("{\"n\": %d}\n", i)
	}
	path := writeLog(t, "log.json", content)

	rules := staticRules{{ID: "all", Title: "Match all", Severity: "info", Condition: "n MATCH '*'"}}

	result, err := New(rules).Scan(path, engine.FormatFlatJSON)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(result.Alerts))
	}

	alert := result.Alerts[0]
	if alert.MatchCount != total {
		t.Errorf("MatchCount = %d, want %d", alert.MatchCount, total)
	}
	if len(alert.Evidence) != EvidenceCap {
		t.Errorf("Evidence length = %d, want %d", len(alert.Evidence), EvidenceCap)
	}
}

func TestScanAll(t *testing.T) {
	good1 := writeLog(t, "a.json", `{"Records": [{"eventName": "DeleteTrail"}]}`)
	good2 := writeLog(t, "b.json", `{"eventName": "ConsoleLogin"}`)
	missing := filepath.Join(t.TempDir(), "gone.json")

	sources := []Source{
		{Name: "a.json", Path: good1, Format: engine.FormatCloudTrail},
		{Name: "b.json", Path: good2}, // auto-detect
		{Name: "gone.json", Path: missing},
	}

	rules := staticRules{
		{ID: "r1", Title: "Trail tamper", Severity: "critical", Condition: "eventName = 'DeleteTrail'"},
		{ID: "r2", Title: "Login", Severity: "low", Condition: "eventName = 'ConsoleLogin'"},
	}

	result, err := New(rules).ScanAll(sources)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}

	if result.TotalFilesScanned != 2 {
		t.Errorf("TotalFilesScanned = %d, want 2", result.TotalFilesScanned)
	}
	if result.TotalAlerts != 2 {
		t.Errorf("TotalAlerts = %d, want 2", result.TotalAlerts)
	}
	if result.RulesEvaluated != 2 {
		t.Errorf("RulesEvaluated = %d, want 2", result.RulesEvaluated)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0].FileName != "gone.json" {
		t.Fatalf("FailedFiles = %+v, want just gone.json", result.FailedFiles)
	}
	if result.FailedFiles[0].Error == "" {
		t.Error("failed file should carry an error message")
	}

	for _, fr := range result.FileResults {
		for _, alert := range fr.Alerts {
			if alert.SourceFile != fr.FileName {
				t.Errorf("alert source = %q, want %q", alert.SourceFile, fr.FileName)
			}
		}
	}
}

func TestScanAllEmpty(t *testing.T) {
	result, err := New(staticRules{}).ScanAll(nil)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if result.TotalFilesScanned != 0 || len(result.FailedFiles) != 0 {
		t.Errorf("empty scan result = %+v, want zeroes", result)
	}
}

func TestTestCondition(t *testing.T) {
	path := writeLog(t, "log.json", `{"Records": [
		{"eventName": "ConsoleLogin"},
		{"eventName": "AssumeRole"},
		{"eventName": "ConsoleLogin"}
	]}`)

	s := New(staticRules{})

	result, err := s.TestCondition("eventName = 'ConsoleLogin'", path, engine.FormatCloudTrail)
	if err != nil {
		t.Fatalf("TestCondition: %v", err)
	}
	if !result.SyntaxValid {
		t.Fatalf("SyntaxValid = false: %s", result.SyntaxError)
	}
	if result.MatchedCount != 2 || result.TotalCount != 3 {
		t.Errorf("matched %d/%d, want 2/3", result.MatchedCount, result.TotalCount)
	}
	if len(result.MatchedEvents) != 2 {
		t.Errorf("MatchedEvents length = %d, want 2", len(result.MatchedEvents))
	}
	if len(result.SampleNonMatched) != 1 {
		t.Errorf("SampleNonMatched length = %d, want 1", len(result.SampleNonMatched))
	}
}

func TestTestConditionInvalidSyntax(t *testing.T) {
	path := writeLog(t, "log.json", `{"n": 1}`)

	result, err := New(staticRules{}).TestCondition("eventName = 'unterminated", path, engine.FormatFlatJSON)
	if err != nil {
		t.Fatalf("TestCondition: %v", err)
	}
	if result.SyntaxValid {
		t.Fatal("expected invalid syntax")
	}
	if result.SyntaxError == "" {
		t.Error("invalid result should carry an error message")
	}
	if result.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0 (file never loaded)", result.TotalCount)
	}
}

func TestTestConditionNonMatchedSampleCap(t *testing.T) {
	content := ""
	for i := 0; i < 10; i++ {
		content += fmt.Sprintf("{\"n\": %d}\n", i)
	}
	path := writeLog(t, "log.json", content)

	result, err := New(staticRules{}).TestCondition("n = '999'", path, engine.FormatFlatJSON)
	if err != nil {
		t.Fatalf("TestCondition: %v", err)
	}
	if result.MatchedCount != 0 {
		t.Errorf("MatchedCount = %d, want 0", result.MatchedCount)
	}
	if len(result.SampleNonMatched) != 5 {
		t.Errorf("SampleNonMatched length = %d, want 5", len(result.SampleNonMatched))
	}
}

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity string
		want     int
	}{
		{"critical", 5},
		{"CRITICAL", 5},
		{"high", 4},
		{"medium", 3},
		{"low", 2},
		{"info", 1},
		{"unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := SeverityRank(tt.severity); got != tt.want {
			t.Errorf("SeverityRank(%q) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}
