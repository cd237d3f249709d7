/* scanner runs a rule set against one or many log sources and aggregates the alerts */

package scanner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pynezz/heimdall/internal/engine"
	"github.com/pynezz/heimdall/internal/util"
)

// EvidenceCap bounds the matched events attached to one alert, so a rule
// matching most of a large file cannot blow up memory or response size.
// MatchCount keeps counting past the cap.
const EvidenceCap = 1000

// Rule is the read-only view of a detection rule the orchestrator needs.
// Providers hand over active rules only.
type Rule struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Severity  string `json:"severity"`
	Condition string `json:"condition"`
}

// RuleProvider supplies the active rule set for a scan. Injected per call;
// the scanner holds no rule state of its own.
type RuleProvider interface {
	ActiveRules() ([]Rule, error)
}

// Source is one log file to scan. An empty Format requests auto-detection.
type Source struct {
	Name   string        `json:"name"`
	Path   string        `json:"path"`
	Format engine.Format `json:"format,omitempty"`
}

// SourceProvider supplies the registered log sources for a bulk scan.
type SourceProvider interface {
	Sources() ([]Source, error)
}

// Alert is the result of one rule matching at least one event in a source.
type Alert struct {
	RuleID     string         `json:"rule_id"`
	RuleTitle  string         `json:"rule_title"`
	Severity   string         `json:"severity"`
	Timestamp  string         `json:"timestamp"`
	MatchCount int            `json:"match_count"`
	Evidence   []engine.Event `json:"evidence"`
	SourceFile string         `json:"source_file,omitempty"`
}

// ScanResult is the outcome of a single-source scan.
type ScanResult struct {
	Alerts         []Alert `json:"alerts"`
	RulesEvaluated int     `json:"rules_evaluated"`
	ScanTimeMs     int64   `json:"scan_time_ms"`
}

// FileScanResult is the per-file outcome inside a bulk scan.
type FileScanResult struct {
	FileName   string  `json:"file_name"`
	FilePath   string  `json:"file_path"`
	Alerts     []Alert `json:"alerts"`
	ScanTimeMs int64   `json:"scan_time_ms"`
}

// FailedFileScan records a source that could not be scanned during a bulk
// scan. Failures are reported, never raised.
type FailedFileScan struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// BulkScanResult aggregates a scan over every registered source.
type BulkScanResult struct {
	TotalAlerts       int              `json:"total_alerts"`
	TotalFilesScanned int              `json:"total_files_scanned"`
	TotalScanTimeMs   int64            `json:"total_scan_time_ms"`
	RulesEvaluated    int              `json:"rules_evaluated"`
	FileResults       []FileScanResult `json:"file_results"`
	FailedFiles       []FailedFileScan `json:"failed_files"`
}

// TestResult is the outcome of trying a condition against a source without
// any rule involved.
type TestResult struct {
	MatchedCount     int            `json:"matched_count"`
	TotalCount       int            `json:"total_count"`
	MatchedEvents    []engine.Event `json:"matched_events"`
	SampleNonMatched []engine.Event `json:"sample_non_matched"`
	SyntaxValid      bool           `json:"syntax_valid"`
	SyntaxError      string         `json:"syntax_error,omitempty"`
	ExecutionTimeMs  int64          `json:"execution_time_ms"`
}

// Scanner composes the loader, the condition engine, and an injected rule
// collection. It keeps no state between calls.
type Scanner struct {
	rules RuleProvider
}

func New(rules RuleProvider) *Scanner {
	return &Scanner{rules: rules}
}

// Scan loads one source and runs every active rule over its events. A load
// failure is fatal to the call; a single rule failing is skipped with a
// warning and the scan continues.
func (s *Scanner) Scan(path string, format engine.Format) (*ScanResult, error) {
	start := time.Now()

	rules, err := s.rules.ActiveRules()
	if err != nil {
		return nil, fmt.Errorf("loading active rules: %w", err)
	}

	alerts, err := scanFile(path, format, rules, "")
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		Alerts:         alerts,
		RulesEvaluated: len(rules),
		ScanTimeMs:     time.Since(start).Milliseconds(),
	}, nil
}

// ScanAll runs every active rule against every source. No single file's
// failure aborts the batch: detection and load errors are routed to the
// failed-files list and the iteration moves on.
func (s *Scanner) ScanAll(sources []Source) (*BulkScanResult, error) {
	start := time.Now()

	result := &BulkScanResult{
		FileResults: []FileScanResult{},
		FailedFiles: []FailedFileScan{},
	}

	if len(sources) == 0 {
		result.TotalScanTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}

	// One rule fetch shared across all file scans.
	rules, err := s.rules.ActiveRules()
	if err != nil {
		return nil, fmt.Errorf("loading active rules: %w", err)
	}
	result.RulesEvaluated = len(rules)

	for _, source := range sources {
		fileStart := time.Now()

		format := source.Format
		if format == engine.FormatUnknown {
			detected, err := engine.DetectFormat(source.Path)
			if err != nil {
				util.PrintWarningf("failed to detect log format for '%s': %v", source.Name, err)
				result.FailedFiles = append(result.FailedFiles, FailedFileScan{
					FileName: source.Name,
					FilePath: source.Path,
					Error:    fmt.Sprintf("failed to detect log format: %v", err),
				})
				continue
			}
			format = detected
		}

		alerts, err := scanFile(source.Path, format, rules, source.Name)
		if err != nil {
			util.PrintWarningf("failed to scan file '%s': %v", source.Name, err)
			result.FailedFiles = append(result.FailedFiles, FailedFileScan{
				FileName: source.Name,
				FilePath: source.Path,
				Error:    err.Error(),
			})
			continue
		}

		result.TotalAlerts += len(alerts)
		result.FileResults = append(result.FileResults, FileScanResult{
			FileName:   source.Name,
			FilePath:   source.Path,
			Alerts:     alerts,
			ScanTimeMs: time.Since(fileStart).Milliseconds(),
		})
	}

	result.TotalFilesScanned = len(result.FileResults)
	result.TotalScanTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// TestCondition evaluates a raw condition against a source, reporting match
// counts, the matching events, and a small sample of non-matching events.
func (s *Scanner) TestCondition(condition, path string, format engine.Format) (*TestResult, error) {
	start := time.Now()

	if validation := engine.ValidateSyntax(condition); !validation.Valid {
		return &TestResult{
			MatchedEvents:    []engine.Event{},
			SampleNonMatched: []engine.Event{},
			SyntaxError:      validation.ErrorMessage,
			ExecutionTimeMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	expr, err := engine.ParseCondition(condition)
	if err != nil {
		return &TestResult{
			MatchedEvents:    []engine.Event{},
			SampleNonMatched: []engine.Event{},
			SyntaxError:      err.Error(),
			ExecutionTimeMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	events, err := engine.LoadEvents(path, format)
	if err != nil {
		return nil, err
	}

	matched := []engine.Event{}
	nonMatched := []engine.Event{}
	for _, ev := range events {
		if expr.Eval(ev) {
			matched = append(matched, ev)
		} else if len(nonMatched) < 5 {
			nonMatched = append(nonMatched, ev)
		}
	}

	return &TestResult{
		MatchedCount:     len(matched),
		TotalCount:       len(events),
		MatchedEvents:    matched,
		SampleNonMatched: nonMatched,
		SyntaxValid:      true,
		ExecutionTimeMs:  time.Since(start).Milliseconds(),
	}, nil
}

// scanFile loads a source once and evaluates every rule over its events.
func scanFile(path string, format engine.Format, rules []Rule, sourceName string) ([]Alert, error) {
	events, err := engine.LoadEvents(path, format)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	for _, rule := range rules {
		expr, err := engine.ParseCondition(rule.Condition)
		if err != nil {
			util.PrintWarningf("rule '%s' skipped: %v", rule.Title, err)
			continue
		}

		matchCount := 0
		var evidence []engine.Event
		for _, ev := range events {
			if !expr.Eval(ev) {
				continue
			}
			matchCount++
			if len(evidence) < EvidenceCap {
				evidence = append(evidence, ev)
			}
		}

		if matchCount > 0 {
			alerts = append(alerts, Alert{
				RuleID:     rule.ID,
				RuleTitle:  rule.Title,
				Severity:   rule.Severity,
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
				MatchCount: matchCount,
				Evidence:   evidence,
				SourceFile: sourceName,
			})
		}
	}

	SortAlerts(alerts)
	return alerts, nil
}

// SortAlerts orders alerts by severity descending. The sort is stable, so
// rules of equal severity keep their original order.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return SeverityRank(alerts[i].Severity) > SeverityRank(alerts[j].Severity)
	})
}

// SeverityRank maps a severity string to its fixed ordering value.
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 5
	case "high":
		return 4
	case "medium":
		return 3
	case "low":
		return 2
	case "info":
		return 1
	default:
		return 0
	}
}
