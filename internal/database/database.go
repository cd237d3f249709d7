package database

// Scan history lives in a sqlite data store via gorm. Alerts are persisted
// as summaries only; evidence events stay in the scan response.

import (
	"fmt"

	"gorm.io/driver/sqlite" // Sqlite driver based on CGO
	"gorm.io/gorm"

	"github.com/pynezz/pynezzentials/ansi"

	"github.com/pynezz/heimdall/internal/database/models"
	"github.com/pynezz/heimdall/internal/scanner"
)

// InitHistoryDB opens (or creates) the history database at path and migrates
// the schema. config is optional.
func InitHistoryDB(path string, config ...gorm.Config) (*gorm.DB, error) {
	dbConf := gorm.Config{}
	if c := len(config); c != 0 {
		dbConf = config[0]
	}
	ansi.PrintInfo("Initializing scan history database...")

	db, err := gorm.Open(sqlite.Open(path), &dbConf)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(models.GetModels()...); err != nil {
		return nil, err
	}

	db = db.Session(&gorm.Session{CreateBatchSize: 100})

	return db, nil
}

// Generic repository over one table.
type DataStore[StoreType any] struct {
	name string
	db   *gorm.DB
}

func NewDataStore[StoreType any](db *gorm.DB, name string) *DataStore[StoreType] {
	return &DataStore[StoreType]{db: db, name: name}
}

func (s *DataStore[T]) Name() string {
	return s.name
}

func (s *DataStore[T]) Insert(record *T) error {
	return s.db.Create(record).Error
}

func (s *DataStore[T]) InsertBatch(records []T) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Create(&records).Error
}

func (s *DataStore[T]) GetByID(id uint) (*T, error) {
	var record T
	if err := s.db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Recent returns the latest records, newest first.
func (s *DataStore[T]) Recent(limit int) ([]T, error) {
	var records []T
	err := s.db.Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}

// History records completed scans and their alert summaries.
type History struct {
	scans  *DataStore[models.ScanRecord]
	alerts *DataStore[models.AlertRecord]
}

func NewHistory(db *gorm.DB) *History {
	ansi.PrintInfo("Initializing scan_records store...")
	ansi.PrintInfo("Initializing alert_records store...")
	return &History{
		scans:  NewDataStore[models.ScanRecord](db, models.SCAN_RECORDS),
		alerts: NewDataStore[models.AlertRecord](db, models.ALERT_RECORDS),
	}
}

// RecordScan persists a single-source scan result.
func (h *History) RecordScan(sourceFile string, result *scanner.ScanResult) (*models.ScanRecord, error) {
	record := &models.ScanRecord{
		SourceFile:     sourceFile,
		TotalAlerts:    len(result.Alerts),
		RulesEvaluated: result.RulesEvaluated,
		ScanTimeMs:     result.ScanTimeMs,
	}
	if err := h.scans.Insert(record); err != nil {
		return nil, fmt.Errorf("recording scan: %w", err)
	}

	if err := h.alerts.InsertBatch(alertRecords(record.ID, sourceFile, result.Alerts)); err != nil {
		return nil, fmt.Errorf("recording alerts: %w", err)
	}
	return record, nil
}

// RecordBulk persists a bulk scan as one record, with the alerts of every
// scanned file attached.
func (h *History) RecordBulk(result *scanner.BulkScanResult) (*models.ScanRecord, error) {
	record := &models.ScanRecord{
		SourceFile:     fmt.Sprintf("bulk scan (%d files)", result.TotalFilesScanned),
		TotalAlerts:    result.TotalAlerts,
		RulesEvaluated: result.RulesEvaluated,
		ScanTimeMs:     result.TotalScanTimeMs,
	}
	if err := h.scans.Insert(record); err != nil {
		return nil, fmt.Errorf("recording bulk scan: %w", err)
	}

	var batch []models.AlertRecord
	for _, fr := range result.FileResults {
		batch = append(batch, alertRecords(record.ID, fr.FileName, fr.Alerts)...)
	}
	if err := h.alerts.InsertBatch(batch); err != nil {
		return nil, fmt.Errorf("recording alerts: %w", err)
	}
	return record, nil
}

// RecentScans returns the latest scan records, newest first.
func (h *History) RecentScans(limit int) ([]models.ScanRecord, error) {
	return h.scans.Recent(limit)
}

// AlertsForScan returns the alert summaries of one recorded scan.
func (h *History) AlertsForScan(scanID uint) ([]models.AlertRecord, error) {
	var records []models.AlertRecord
	err := h.alerts.db.Where("scan_record_id = ?", scanID).Find(&records).Error
	return records, err
}

func alertRecords(scanID uint, sourceFile string, alerts []scanner.Alert) []models.AlertRecord {
	out := make([]models.AlertRecord, 0, len(alerts))
	for _, alert := range alerts {
		source := alert.SourceFile
		if source == "" {
			source = sourceFile
		}
		out = append(out, models.AlertRecord{
			ScanRecordID: scanID,
			RuleID:       alert.RuleID,
			RuleTitle:    alert.RuleTitle,
			Severity:     alert.Severity,
			MatchCount:   alert.MatchCount,
			SourceFile:   source,
			Timestamp:    alert.Timestamp,
		})
	}
	return out
}
