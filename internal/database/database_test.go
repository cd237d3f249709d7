package database

import (
	"path/filepath"
	"testing"

	"github.com/pynezz/heimdall/internal/scanner"
)

func testHistory(t *testing.T) *History {
	t.Helper()
	db, err := InitHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("InitHistoryDB: %v", err)
	}
	return NewHistory(db)
}

func TestRecordScan(t *testing.T) {
	h := testHistory(t)

	result := &scanner.ScanResult{
		Alerts: []scanner.Alert{
			{RuleID: "r1", RuleTitle: "Rule one", Severity: "high", MatchCount: 3, Timestamp: "2026-08-24T10:00:00Z"},
			{RuleID: "r2", RuleTitle: "Rule two", Severity: "low", MatchCount: 1, Timestamp: "2026-08-24T10:00:00Z"},
		},
		RulesEvaluated: 5,
		ScanTimeMs:     12,
	}

	record, err := h.RecordScan("trail.json", result)
	if err != nil {
		t.Fatalf("RecordScan: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("record has no id")
	}
	if record.TotalAlerts != 2 || record.RulesEvaluated != 5 {
		t.Errorf("record = %+v", record)
	}

	alerts, err := h.AlertsForScan(record.ID)
	if err != nil {
		t.Fatalf("AlertsForScan: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alert records, want 2", len(alerts))
	}
	if alerts[0].SourceFile != "trail.json" {
		t.Errorf("alert source = %q, want the scan's source file", alerts[0].SourceFile)
	}
}

func TestRecordBulk(t *testing.T) {
	h := testHistory(t)

	result := &scanner.BulkScanResult{
		TotalAlerts:       2,
		TotalFilesScanned: 2,
		TotalScanTimeMs:   30,
		RulesEvaluated:    4,
		FileResults: []scanner.FileScanResult{
			{FileName: "a.json", Alerts: []scanner.Alert{{RuleID: "r1", Severity: "high", MatchCount: 1, SourceFile: "a.json"}}},
			{FileName: "b.json", Alerts: []scanner.Alert{{RuleID: "r2", Severity: "low", MatchCount: 2, SourceFile: "b.json"}}},
		},
	}

	record, err := h.RecordBulk(result)
	if err != nil {
		t.Fatalf("RecordBulk: %v", err)
	}
	if record.TotalAlerts != 2 {
		t.Errorf("TotalAlerts = %d, want 2", record.TotalAlerts)
	}

	alerts, err := h.AlertsForScan(record.ID)
	if err != nil {
		t.Fatalf("AlertsForScan: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alert records, want 2", len(alerts))
	}
}

func TestRecentScansOrder(t *testing.T) {
	h := testHistory(t)

	for _, name := range []string{"first.json", "second.json", "third.json"} {
		if _, err := h.RecordScan(name, &scanner.ScanResult{}); err != nil {
			t.Fatalf("RecordScan(%s): %v", name, err)
		}
	}

	recent, err := h.RecentScans(2)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	// Newest first; ids are monotonically increasing.
	if recent[0].ID < recent[1].ID {
		t.Errorf("RecentScans order = %d, %d, want newest first", recent[0].ID, recent[1].ID)
	}
}
