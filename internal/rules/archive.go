package rules

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImportSummary reports the outcome of a multi-rule import. Failures never
// abort the batch.
type ImportSummary struct {
	SuccessCount int      `json:"success_count"`
	Skipped      []string `json:"skipped"`
	Errors       []string `json:"errors"`
}

// ExportRule serializes one rule to its YAML file content.
func (r *Repository) ExportRule(id string) ([]byte, error) {
	rule, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(rule)
}

// ExportAll writes the whole collection as a zip of YAML files, one entry
// per rule, named <id>.yaml.
func (r *Repository) ExportAll(w io.Writer) error {
	all, err := r.List()
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, rule := range all {
		data, err := yaml.Marshal(rule)
		if err != nil {
			return fmt.Errorf("encoding rule '%s': %w", rule.ID, err)
		}
		entry, err := zw.Create(rule.ID + ".yaml")
		if err != nil {
			return fmt.Errorf("creating zip entry for '%s': %w", rule.ID, err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("writing zip entry for '%s': %w", rule.ID, err)
		}
	}
	return zw.Close()
}

// ImportRule parses one YAML document and saves it. Without overwrite, a
// rule whose id already exists is rejected.
func (r *Repository) ImportRule(data []byte, overwrite bool) (RuleFile, error) {
	var rule RuleFile
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return RuleFile{}, fmt.Errorf("parsing rule: %w", err)
	}

	if rule.ID != "" && !overwrite {
		if _, err := r.Get(rule.ID); err == nil {
			return RuleFile{}, fmt.Errorf("rule '%s' already exists", rule.ID)
		}
	}
	return r.Save(rule)
}

// ImportMany imports a set of named YAML documents, collecting per-document
// outcomes into a summary.
func (r *Repository) ImportMany(docs map[string][]byte, overwrite bool) ImportSummary {
	summary := ImportSummary{Skipped: []string{}, Errors: []string{}}

	for name, data := range docs {
		_, err := r.ImportRule(data, overwrite)
		switch {
		case err == nil:
			summary.SuccessCount++
		case strings.Contains(err.Error(), "already exists"):
			summary.Skipped = append(summary.Skipped, name)
		default:
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}
	return summary
}

// ImportZip imports every .yaml/.yml entry of a zip archive.
func (r *Repository) ImportZip(data []byte, overwrite bool) (ImportSummary, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ImportSummary{}, fmt.Errorf("opening zip archive: %w", err)
	}

	docs := map[string][]byte{}
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := file.Name
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return ImportSummary{}, fmt.Errorf("opening zip entry '%s': %w", name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return ImportSummary{}, fmt.Errorf("reading zip entry '%s': %w", name, err)
		}
		docs[name] = content
	}

	return r.ImportMany(docs, overwrite), nil
}
