package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/roach88/namedb/internal/dispatch"
	"github.com/roach88/namedb/internal/store"
	"github.com/roach88/namedb/internal/testutil"
)

// Harness is the scenario execution engine.
// One Harness runs one scenario against its own data directory.
type Harness struct {
	database string
	filesDir string
	store    *store.Store
	disp     *dispatch.Dispatcher
	clients  map[string]*dispatch.Client
	logger   *slog.Logger
	seq      int64
	pending  []pendingStep
}

// pendingStep is a submitted step whose future has not been collected yet.
type pendingStep struct {
	index  int // position in Steps
	event  int // position in Result.Trace
	step   Step
	future *dispatch.Future
}

// Run executes a scenario in workDir and returns the result.
//
// workDir must be empty or absent; the store lives in workDir/SQLite and step
// paths resolve under workDir/files.
//
// Execution flow:
// 1. Open the scenario database as the "main" handle
// 2. Submit each step through the dispatcher, waiting unless it is async
// 3. Check expect clauses as results arrive
// 4. List the final records and evaluate assertions
func Run(ctx context.Context, scenario *Scenario, workDir string) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	filesDir := filepath.Join(workDir, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}

	st := store.New(filepath.Join(workDir, "SQLite"), store.WithLogger(logger))
	defer st.Close()

	disp := dispatch.New(
		dispatch.WithIDGenerator(testutil.NewSequenceIDGenerator("op")),
		dispatch.WithLogger(logger),
	)
	runDone := make(chan error, 1)
	go func() { runDone <- disp.Run(context.Background()) }()
	defer func() {
		disp.Close()
		<-runDone
	}()

	h := &Harness{
		database: scenario.Database,
		filesDir: filesDir,
		store:    st,
		disp:     disp,
		clients:  make(map[string]*dispatch.Client),
		logger:   logger,
	}
	if h.database == "" {
		h.database = DefaultDatabase
	}

	primary, err := st.Open(ctx, h.database)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", h.database, err)
	}
	h.clients[DefaultHandle] = dispatch.NewClient(disp, primary)

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	records, err := h.finalRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list final records: %w", err)
	}
	result.Records = records

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeSteps runs all steps and validates expect clauses.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		handle := step.Handle
		if handle == "" {
			handle = DefaultHandle
		}

		h.seq++
		event := TraceEvent{Seq: h.seq, Op: step.Op, Handle: handle, Args: stepArgs(step)}

		switch step.Op {
		case OpOpen:
			if err := h.collect(ctx, result); err != nil {
				return err
			}
			err := h.open(ctx, handle)
			event.Outcome = outcome(err)
			result.Trace = append(result.Trace, event)
			h.checkExpect(i, step, nil, err, result)
			continue

		case OpWriteFile:
			if err := h.collect(ctx, result); err != nil {
				return err
			}
			if err := h.writeFile(step); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			event.Outcome = OutcomeOK
			result.Trace = append(result.Trace, event)
			continue
		}

		client, ok := h.clients[handle]
		if !ok {
			return fmt.Errorf("step %d: unknown handle %q", i, handle)
		}
		f, err := h.submit(client, step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		event.OpID = f.ID()
		result.Trace = append(result.Trace, event)
		h.pending = append(h.pending, pendingStep{
			index:  i,
			event:  len(result.Trace) - 1,
			step:   step,
			future: f,
		})

		if !step.Async {
			if err := h.collect(ctx, result); err != nil {
				return err
			}
		}
	}
	return h.collect(ctx, result)
}

// submit queues the step's operation on client.
func (h *Harness) submit(client *dispatch.Client, step Step) (*dispatch.Future, error) {
	switch step.Op {
	case OpCreate:
		return client.Create(*step.Name)
	case OpList:
		return client.List()
	case OpUpdate:
		return client.Update(*step.ID, *step.Name)
	case OpDelete:
		return client.Delete(*step.ID)
	case OpExport:
		return client.Export(store.FileDestination(h.path(step.Path)))
	case OpImport:
		return client.Import(store.FileSource(h.path(step.Path)))
	case OpClose:
		return client.Close()
	default:
		return nil, fmt.Errorf("unsupported op %q", step.Op)
	}
}

// collect waits for every pending step in submission order and records
// its outcome.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	for _, p := range h.pending {
		value, err := p.future.Wait(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("step %d: %w", p.index, ctx.Err())
		}

		event := &result.Trace[p.event]
		event.Outcome = outcome(err)
		if err == nil {
			event.Result = traceResult(value)
		}
		h.checkExpect(p.index, p.step, value, err, result)

		h.logger.Debug("step completed",
			"step", p.index,
			"op", p.step.Op,
			"op_id", p.future.ID(),
			"outcome", event.Outcome,
		)
	}
	h.pending = h.pending[:0]
	return nil
}

// open adds a second handle on the scenario database.
func (h *Harness) open(ctx context.Context, name string) error {
	if _, exists := h.clients[name]; exists {
		return fmt.Errorf("handle %q already open", name)
	}
	handle, err := h.store.Open(ctx, h.database)
	if err != nil {
		return err
	}
	h.clients[name] = dispatch.NewClient(h.disp, handle)
	return nil
}

func (h *Harness) writeFile(step Step) error {
	repeat := step.Repeat
	if repeat < 1 {
		repeat = 1
	}
	path := h.path(step.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat(step.Content, repeat)), 0o644); err != nil {
		return fmt.Errorf("write_file: %w", err)
	}
	return nil
}

func (h *Harness) path(rel string) string {
	return filepath.Join(h.filesDir, rel)
}

// finalRecords lists the database through a fresh handle, so the listing
// reflects the current file even if every scenario handle went stale.
func (h *Harness) finalRecords(ctx context.Context) ([]store.Record, error) {
	handle, err := h.store.Open(ctx, h.database)
	if err != nil {
		return nil, err
	}
	defer handle.Close()
	return handle.List(ctx)
}

// checkExpect compares a step outcome with its expect clause.
func (h *Harness) checkExpect(index int, step Step, value any, err error, result *Result) {
	prefix := fmt.Sprintf("steps[%d] (%s)", index, step.Op)
	exp := step.Expect

	if exp == nil || exp.Error == "" {
		if err != nil {
			result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
			return
		}
	} else {
		if got := outcome(err); got != exp.Error {
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s", prefix, exp.Error, got))
		}
		return
	}
	if exp == nil {
		return
	}

	switch v := value.(type) {
	case dispatch.Created:
		if exp.OK != nil && v.OK != *exp.OK {
			result.AddError(fmt.Sprintf("%s: expected ok=%t, got %t", prefix, *exp.OK, v.OK))
		}
		if exp.ID != nil && v.Record.ID != *exp.ID {
			result.AddError(fmt.Sprintf("%s: expected id %d, got %d", prefix, *exp.ID, v.Record.ID))
		}
	case bool:
		if exp.Changed != nil && v != *exp.Changed {
			result.AddError(fmt.Sprintf("%s: expected changed=%t, got %t", prefix, *exp.Changed, v))
		}
	case []store.Record:
		if exp.Records != nil && !sameRecords(*exp.Records, v) {
			result.AddError(fmt.Sprintf("%s: expected records %v, got %v", prefix, *exp.Records, v))
		}
	}
}

func stepArgs(step Step) *StepArgs {
	if step.Name == nil && step.ID == nil && step.Path == "" {
		return nil
	}
	return &StepArgs{Name: step.Name, ID: step.ID, Path: step.Path}
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := store.CodeOf(err); code != "" {
		return string(code)
	}
	return OutcomeError
}

// traceResult converts an operation's value into its trace form.
func traceResult(value any) any {
	switch v := value.(type) {
	case dispatch.Created:
		if !v.OK {
			return CreateResult{OK: false}
		}
		return CreateResult{OK: true, ID: v.Record.ID, Name: v.Record.Name}
	case bool:
		return ChangeResult{Changed: v}
	case []store.Record:
		return v
	default:
		// export, import and close carry no data
		return nil
	}
}

func sameRecords(a, b []store.Record) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
