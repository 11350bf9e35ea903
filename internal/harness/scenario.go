package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a sync scenario: a table, a starting baseline and the
// batches applied to it, with expectations per batch and on the end state.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the CUE file holding the table definition. LoadScenario
	// resolves it relative to the scenario file.
	Spec string `yaml:"spec"`

	// Table selects the definition within Spec.
	Table string `yaml:"table"`

	// Baseline is the starting table. Nil starts empty.
	Baseline *Sheet `yaml:"baseline,omitempty"`

	// Batches run in order.
	Batches []BatchStep `yaml:"batches"`

	// Final checks the table left after the last batch.
	Final *FinalExpect `yaml:"final,omitempty"`
}

// Sheet is a header and text rows. Empty strings are blank cells.
type Sheet struct {
	Header []string   `yaml:"header"`
	Rows   [][]string `yaml:"rows"`
}

// FileStep is one extract of a batch.
type FileStep struct {
	Source string `yaml:"source"`
	Sheet  `yaml:",inline"`
}

// BatchStep is one engine run.
type BatchStep struct {
	Name  string     `yaml:"name"`
	Files []FileStep `yaml:"files"`

	// DryRun leaves the baseline as it was.
	DryRun bool `yaml:"dry_run,omitempty"`

	// AllowList exempts identities from the blank catalogue check.
	AllowList []string `yaml:"allow_list,omitempty"`

	// Expect is checked against the run. Nil only requires success.
	Expect *BatchExpect `yaml:"expect,omitempty"`
}

// BatchExpect describes the expected outcome of one batch.
type BatchExpect struct {
	// Error is the expected SyncError code; the batch must then fail.
	Error string `yaml:"error,omitempty"`

	// Counts holds expected tallies by name: new, updated,
	// skipped_outdated, unchanged, dropped, filtered, superseded, purged.
	Counts map[string]int `yaml:"counts,omitempty"`

	// Rows is the expected size of the next baseline.
	Rows *int `yaml:"rows,omitempty"`

	// DateRange is the expected engine.DateRange label.
	DateRange string `yaml:"date_range,omitempty"`

	// Classes maps keys to their expected class.
	Classes map[string]string `yaml:"classes,omitempty"`

	// Changes lists field changes that must be reported.
	Changes []ChangeExpect `yaml:"changes,omitempty"`

	// Duplicates is the expected number of duplicate groups.
	Duplicates *int `yaml:"duplicates,omitempty"`

	// Validation holds expected finding counts per check.
	Validation map[string]int `yaml:"validation,omitempty"`
}

// ChangeExpect is one expected field change of an updated row.
type ChangeExpect struct {
	Key   string `yaml:"key"`
	Field string `yaml:"field"`
	Old   string `yaml:"old"`
	New   string `yaml:"new"`
}

// FinalExpect checks the final table.
type FinalExpect struct {
	Rows     *int        `yaml:"rows,omitempty"`
	Contains []RowExpect `yaml:"contains,omitempty"`
	Absent   []string    `yaml:"absent,omitempty"`
}

// RowExpect requires a row with Key whose named columns display as given.
type RowExpect struct {
	Key    string            `yaml:"key"`
	Expect map[string]string `yaml:"expect,omitempty"`
}

// countNames are the keys accepted in BatchExpect.Counts.
var countNames = []string{"new", "updated", "skipped_outdated", "unchanged", "dropped", "filtered", "superseded", "purged"}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "batch:" vs "batches:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the spec path relative to the scenario BEFORE validation
	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) {
		scenario.Spec = filepath.Join(filepath.Dir(path), scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}

	if s.Table == "" {
		return fmt.Errorf("table is required")
	}

	if s.Baseline != nil {
		if err := validateSheet("baseline", s.Baseline); err != nil {
			return err
		}
	}

	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	for i, b := range s.Batches {
		if len(b.Files) == 0 {
			return fmt.Errorf("batches[%d]: files list is required and must be non-empty", i)
		}
		for j, f := range b.Files {
			where := fmt.Sprintf("batches[%d].files[%d]", i, j)
			if f.Source == "" {
				return fmt.Errorf("%s: source is required", where)
			}
			if err := validateSheet(where, &f.Sheet); err != nil {
				return err
			}
		}
		if b.Expect != nil {
			for name := range b.Expect.Counts {
				if !knownCount(name) {
					return fmt.Errorf("batches[%d].expect.counts: unknown count %q", i, name)
				}
			}
		}
	}

	return nil
}

func validateSheet(where string, s *Sheet) error {
	if len(s.Header) == 0 {
		return fmt.Errorf("%s: header is required", where)
	}
	for i, row := range s.Rows {
		if len(row) > len(s.Header) {
			return fmt.Errorf("%s: row %d has %d cells, header has %d", where, i, len(row), len(s.Header))
		}
	}
	return nil
}

func knownCount(name string) bool {
	for _, n := range countNames {
		if n == name {
			return true
		}
	}
	return false
}
