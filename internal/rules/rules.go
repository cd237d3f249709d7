// Package rules manages the detection rule collection: YAML files on disk,
// one rule per file, keyed by rule id.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pynezz/heimdall/internal/fs"
	"github.com/pynezz/heimdall/internal/scanner"
	"github.com/pynezz/heimdall/internal/util"
)

// Aggregation configures threshold alerting for a rule: only fire when the
// condition matches at least Threshold times within Window seconds.
type Aggregation struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	Window    int  `yaml:"window" json:"window"`
	Threshold int  `yaml:"threshold" json:"threshold"`
}

// Detection holds the rule's matching logic.
type Detection struct {
	Severity    string      `yaml:"severity" json:"severity"`
	Condition   string      `yaml:"condition" json:"condition"`
	Aggregation Aggregation `yaml:"aggregation,omitempty" json:"aggregation"`
}

// Output configures what the fired alert looks like.
type Output struct {
	AlertTitle string `yaml:"alert_title,omitempty" json:"alert_title,omitempty"`
}

// RuleFile is the on-disk YAML schema of one detection rule.
type RuleFile struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string    `yaml:"author,omitempty" json:"author,omitempty"`
	Status      string    `yaml:"status" json:"status"`
	Date        string    `yaml:"date,omitempty" json:"date,omitempty"`
	Tags        []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	Detection   Detection `yaml:"detection" json:"detection"`
	Output      Output    `yaml:"output,omitempty" json:"output"`
}

// Repository is a directory of rule YAML files. File names are derived from
// the rule id, so ids must be unique within one repository.
type Repository struct {
	dir string
}

func NewRepository(dir string) (*Repository, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("creating rules directory: %w", err)
	}
	return &Repository{dir: dir}, nil
}

func (r *Repository) Dir() string { return r.dir }

func (r *Repository) pathFor(id string) string {
	return filepath.Join(r.dir, id+".yaml")
}

// List returns every parsable rule, sorted by title. Unparsable files are
// skipped with a warning so one broken rule cannot hide the collection.
func (r *Repository) List() ([]RuleFile, error) {
	var paths []string
	for _, ext := range []string{".yaml", ".yml"} {
		found, err := fs.GetFilesWithExtension(r.dir, ext)
		if err != nil {
			return nil, fmt.Errorf("reading rules directory: %w", err)
		}
		paths = append(paths, found...)
	}

	var rules []RuleFile
	for _, path := range paths {
		rule, err := readRuleFile(path)
		if err != nil {
			util.PrintWarningf("skipping rule file '%s': %v", filepath.Base(path), err)
			continue
		}
		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Title < rules[j].Title
	})
	return rules, nil
}

// Get looks up one rule by id.
func (r *Repository) Get(id string) (RuleFile, error) {
	return readRuleFile(r.pathFor(id))
}

// Save writes a rule to disk, overwriting an existing rule with the same id.
// A blank id gets a fresh UUID; the date is refreshed on every save.
func (r *Repository) Save(rule RuleFile) (RuleFile, error) {
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = uuid.New().String()
	}
	if strings.TrimSpace(rule.Title) == "" {
		return RuleFile{}, fmt.Errorf("rule title cannot be empty")
	}
	if strings.TrimSpace(rule.Detection.Condition) == "" {
		return RuleFile{}, fmt.Errorf("rule condition cannot be empty")
	}
	if rule.Status == "" {
		rule.Status = "active"
	}
	rule.Date = time.Now().UTC().Format("2006-01-02")

	data, err := yaml.Marshal(rule)
	if err != nil {
		return RuleFile{}, fmt.Errorf("encoding rule '%s': %w", rule.ID, err)
	}
	if err := os.WriteFile(r.pathFor(rule.ID), data, 0644); err != nil {
		return RuleFile{}, fmt.Errorf("writing rule '%s': %w", rule.ID, err)
	}
	return rule, nil
}

// Delete removes a rule by id.
func (r *Repository) Delete(id string) error {
	path := r.pathFor(id)
	if !fs.FileExists(path) {
		return fmt.Errorf("rule '%s' not found", id)
	}
	return os.Remove(path)
}

// ListActive returns the rules with status "active", sorted by title.
func (r *Repository) ListActive() ([]RuleFile, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}

	active := all[:0:0]
	for _, rule := range all {
		if rule.Status == "active" {
			active = append(active, rule)
		}
	}
	return active, nil
}

// ActiveRules adapts the repository to the scan orchestrator.
func (r *Repository) ActiveRules() ([]scanner.Rule, error) {
	active, err := r.ListActive()
	if err != nil {
		return nil, err
	}

	out := make([]scanner.Rule, 0, len(active))
	for _, rule := range active {
		out = append(out, scanner.Rule{
			ID:        rule.ID,
			Title:     rule.Title,
			Severity:  rule.Detection.Severity,
			Condition: rule.Detection.Condition,
		})
	}
	return out, nil
}

func readRuleFile(path string) (RuleFile, error) {
	data, err := fs.GetFileContent(path)
	if err != nil {
		return RuleFile{}, fmt.Errorf("reading rule file: %w", err)
	}

	var rule RuleFile
	if err := yaml.Unmarshal([]byte(data), &rule); err != nil {
		return RuleFile{}, fmt.Errorf("parsing rule file: %w", err)
	}
	if strings.TrimSpace(rule.ID) == "" {
		return RuleFile{}, fmt.Errorf("rule file has no id")
	}
	return rule, nil
}
