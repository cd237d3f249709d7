package models

import "gorm.io/gorm"

func GetModels() []interface{} {
	return []interface{}{
		&ScanRecord{},
		&AlertRecord{},
	}
}

const (
	SCAN_RECORDS  = "scan_records"
	ALERT_RECORDS = "alert_records"
)

// ScanRecord is one completed scan, single source or bulk.
type ScanRecord struct {
	gorm.Model
	SourceFile     string `json:"source_file"`
	TotalAlerts    int    `json:"total_alerts"`
	RulesEvaluated int    `json:"rules_evaluated"`
	ScanTimeMs     int64  `json:"scan_time_ms"`
}

// AlertRecord is one alert of a recorded scan. Evidence is not persisted,
// only the summary fields.
type AlertRecord struct {
	gorm.Model
	ScanRecordID uint   `json:"scan_record_id"`
	RuleID       string `json:"rule_id"`
	RuleTitle    string `json:"rule_title"`
	Severity     string `json:"severity"`
	MatchCount   int    `json:"match_count"`
	SourceFile   string `json:"source_file"`
	Timestamp    string `json:"timestamp"`
}
