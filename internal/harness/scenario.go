package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/namedb/internal/store"
)

// DefaultHandle names the handle every scenario starts with.
const DefaultHandle = "main"

// DefaultDatabase is used when a scenario does not name its database file.
const DefaultDatabase = "example.db"

// Scenario defines a sequence of store operations and the checks applied to
// the resulting trace and final records.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Database is the logical file name opened by every handle.
	Database string `yaml:"database,omitempty"`

	// Steps run in order. See Step.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and records.
	// Supported types: trace_contains, trace_order, trace_count, final_records
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Handle selects the handle to act on; defaults to DefaultHandle.
	Handle string `yaml:"handle,omitempty"`

	Name *string `yaml:"name,omitempty"` // create, update
	ID   *int64  `yaml:"id,omitempty"`   // update, delete
	Path string  `yaml:"path,omitempty"` // export, import, write_file

	// Content and Repeat give the bytes for write_file: Content repeated
	// Repeat times (at least once).
	Content string `yaml:"content,omitempty"`
	Repeat  int    `yaml:"repeat,omitempty"`

	// Async submits the step without waiting for it. The next synchronous
	// step, or the end of the scenario, waits for every pending step in
	// submission order.
	Async bool `yaml:"async,omitempty"`

	// Expect checks the step's outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Only set fields are checked.
type Expect struct {
	// Error is the expected store error code, e.g. STALE_HANDLE.
	Error string `yaml:"error,omitempty"`

	OK      *bool           `yaml:"ok,omitempty"`      // create wrote a record
	ID      *int64          `yaml:"id,omitempty"`      // id assigned by create
	Changed *bool           `yaml:"changed,omitempty"` // update, delete
	Records *[]store.Record `yaml:"records,omitempty"` // list
}

// Assertion validates the trace or the final records.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some step has this op (and outcome, if given)
	// - "trace_order": ops appear in this order
	// - "trace_count": op appears exactly Count times
	// - "final_records": listing the database at the end yields Records
	Type string `yaml:"type"`

	Op      string         `yaml:"op,omitempty"`
	Outcome string         `yaml:"outcome,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Ops     []string       `yaml:"ops,omitempty"`
	Records []store.Record `yaml:"records,omitempty"`
}

// Step operations.
const (
	OpOpen      = "open"
	OpClose     = "close"
	OpCreate    = "create"
	OpList      = "list"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpExport    = "export"
	OpImport    = "import"
	OpWriteFile = "write_file"
)

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalRecords  = "final_records"
)

var knownCodes = map[string]bool{
	string(store.CodeStorageUnavailable): true,
	string(store.CodePermissionDenied):   true,
	string(store.CodeExportFailed):       true,
	string(store.CodeImportFailed):       true,
	string(store.CodeStaleHandle):        true,
	string(store.CodeHandleClosed):       true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "asertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Database == "" {
		scenario.Database = DefaultDatabase
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *Step) error {
	switch step.Op {
	case OpCreate:
		if step.Name == nil {
			return fmt.Errorf("steps[%d]: name is required for create", i)
		}
	case OpUpdate:
		if step.ID == nil || step.Name == nil {
			return fmt.Errorf("steps[%d]: id and name are required for update", i)
		}
	case OpDelete:
		if step.ID == nil {
			return fmt.Errorf("steps[%d]: id is required for delete", i)
		}
	case OpExport, OpImport, OpWriteFile:
		if step.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for %s", i, step.Op)
		}
		if !filepath.IsLocal(step.Path) {
			return fmt.Errorf("steps[%d]: path %q must be relative to the scenario directory", i, step.Path)
		}
		if step.Op == OpWriteFile && step.Async {
			return fmt.Errorf("steps[%d]: write_file cannot be async", i)
		}
	case OpOpen:
		if step.Handle == "" || step.Handle == DefaultHandle {
			return fmt.Errorf("steps[%d]: open needs a handle name other than %q", i, DefaultHandle)
		}
		if step.Async {
			return fmt.Errorf("steps[%d]: open cannot be async", i)
		}
	case OpList, OpClose:
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	if step.Expect != nil && step.Expect.Error != "" && !knownCodes[step.Expect.Error] {
		return fmt.Errorf("steps[%d].expect: unknown error code %q", i, step.Expect.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalRecords:
		if a.Records == nil {
			return fmt.Errorf("assertions[%d]: records is required for final_records (use [] for none)", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
