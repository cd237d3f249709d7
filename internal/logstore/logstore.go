// Package logstore manages the registered log sources: a directory of JSON
// log files plus a metadata sidecar for declared formats.
package logstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pynezz/heimdall/internal/engine"
	"github.com/pynezz/heimdall/internal/fs"
	"github.com/pynezz/heimdall/internal/scanner"
)

const metadataFile = "metadata.json"

// LogFileInfo describes one registered log source.
type LogFileInfo struct {
	Filename  string        `json:"filename"`
	Path      string        `json:"path"`
	SizeBytes int64         `json:"size_bytes"`
	Modified  time.Time     `json:"modified"`
	Format    engine.Format `json:"format,omitempty"`
}

// ImportSummary reports a multi-file import. Failures never abort the batch.
type ImportSummary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Imported  []string `json:"imported"`
	Errors    []string `json:"errors"`
}

// Store is a flat directory of .json log files. Declared formats live in a
// metadata.json sidecar, which is excluded from listings.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// List returns the registered log files sorted by name.
func (s *Store) List() ([]LogFileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading logs directory: %w", err)
	}

	formats, err := s.readMetadata()
	if err != nil {
		return nil, err
	}

	files := []LogFileInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == metadataFile || !strings.HasSuffix(name, ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, LogFileInfo{
			Filename:  name,
			Path:      filepath.Join(s.dir, name),
			SizeBytes: info.Size(),
			Modified:  info.ModTime().UTC(),
			Format:    formats[name],
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Filename < files[j].Filename
	})
	return files, nil
}

// Import copies one log file into the store. The source must exist, carry a
// .json extension, and not collide with an already registered file.
func (s *Store) Import(sourcePath string) (LogFileInfo, error) {
	name := filepath.Base(sourcePath)
	if !strings.HasSuffix(name, ".json") {
		return LogFileInfo{}, fmt.Errorf("'%s' is not a .json file", name)
	}
	if name == metadataFile {
		return LogFileInfo{}, fmt.Errorf("'%s' is a reserved name", name)
	}
	if !fs.FileExists(sourcePath) {
		return LogFileInfo{}, fmt.Errorf("source file '%s' does not exist", sourcePath)
	}

	destPath := filepath.Join(s.dir, name)
	if fs.FileExists(destPath) {
		return LogFileInfo{}, fmt.Errorf("log file '%s' is already registered", name)
	}

	if err := copyFile(sourcePath, destPath); err != nil {
		return LogFileInfo{}, fmt.Errorf("importing '%s': %w", name, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return LogFileInfo{}, fmt.Errorf("stat imported file: %w", err)
	}
	return LogFileInfo{
		Filename:  name,
		Path:      destPath,
		SizeBytes: info.Size(),
		Modified:  info.ModTime().UTC(),
	}, nil
}

// ImportMany imports several files, collecting per-file outcomes.
func (s *Store) ImportMany(paths []string) ImportSummary {
	summary := ImportSummary{
		Total:    len(paths),
		Imported: []string{},
		Errors:   []string{},
	}

	for _, path := range paths {
		info, err := s.Import(path)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}
		summary.Succeeded++
		summary.Imported = append(summary.Imported, info.Filename)
	}
	return summary
}

// Delete removes a registered log file and its format entry. Only names
// inside the store directory are accepted.
func (s *Store) Delete(filename string) error {
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid log file name '%s'", filename)
	}
	path := filepath.Join(s.dir, filename)
	if !fs.FileExists(path) {
		return fmt.Errorf("log file '%s' not found", filename)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting '%s': %w", filename, err)
	}

	formats, err := s.readMetadata()
	if err != nil {
		return err
	}
	if _, ok := formats[filename]; ok {
		delete(formats, filename)
		return s.writeMetadata(formats)
	}
	return nil
}

// SetFormat declares the format of a registered file, overriding detection.
func (s *Store) SetFormat(filename string, format engine.Format) error {
	if !fs.FileExists(filepath.Join(s.dir, filename)) {
		return fmt.Errorf("log file '%s' not found", filename)
	}

	formats, err := s.readMetadata()
	if err != nil {
		return err
	}
	if format == engine.FormatUnknown {
		delete(formats, filename)
	} else {
		formats[filename] = format
	}
	return s.writeMetadata(formats)
}

// Sources adapts the store to the scan orchestrator. Files without a
// declared format are handed over with auto-detection requested.
func (s *Store) Sources() ([]scanner.Source, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	sources := make([]scanner.Source, 0, len(files))
	for _, file := range files {
		sources = append(sources, scanner.Source{
			Name:   file.Filename,
			Path:   file.Path,
			Format: file.Format,
		})
	}
	return sources, nil
}

func (s *Store) readMetadata() (map[string]engine.Format, error) {
	path := filepath.Join(s.dir, metadataFile)
	if !fs.FileExists(path) {
		return map[string]engine.Format{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log metadata: %w", err)
	}

	formats := map[string]engine.Format{}
	if err := json.Unmarshal(data, &formats); err != nil {
		return nil, fmt.Errorf("parsing log metadata: %w", err)
	}
	return formats, nil
}

func (s *Store) writeMetadata(formats map[string]engine.Format) error {
	data, err := json.MarshalIndent(formats, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding log metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, metadataFile), data, 0644); err != nil {
		return fmt.Errorf("writing log metadata: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
