package harness

import "github.com/roach88/namedb/internal/store"

// OutcomeOK marks a step that succeeded. Failed steps carry their store error
// code instead, or OutcomeError if the error has none.
const (
	OutcomeOK    = "ok"
	OutcomeError = "ERROR"
)

// TraceEvent records one step and what it produced.
type TraceEvent struct {
	Seq     int64     `json:"seq"`
	OpID    string    `json:"op_id,omitempty"` // empty for steps that bypass the dispatcher
	Op      string    `json:"op"`
	Handle  string    `json:"handle"`
	Args    *StepArgs `json:"args,omitempty"`
	Outcome string    `json:"outcome"`
	Result  any       `json:"result,omitempty"`
}

// StepArgs are the step inputs as written in the scenario.
type StepArgs struct {
	Name *string `json:"name,omitempty"`
	ID   *int64  `json:"id,omitempty"`
	Path string  `json:"path,omitempty"`
}

// CreateResult is the trace result of a create step.
type CreateResult struct {
	OK   bool   `json:"ok"`
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ChangeResult is the trace result of update and delete steps.
type ChangeResult struct {
	Changed bool `json:"changed"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in submission order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Records is the content of the database after the last step.
	Records []store.Record `json:"records"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Records: []store.Record{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
