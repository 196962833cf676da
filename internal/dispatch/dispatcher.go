package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

var (
	// ErrClosed is returned by Submit after the dispatcher has stopped
	// accepting operations.
	ErrClosed = errors.New("dispatcher closed")

	// ErrAlreadyRunning is returned by a second concurrent call to Run.
	ErrAlreadyRunning = errors.New("dispatcher already running")
)

// Dispatcher executes submitted operations one at a time in submission order.
type Dispatcher struct {
	queue   *opQueue
	ids     IDGenerator
	logger  *slog.Logger
	running atomic.Bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithIDGenerator overrides the operation ID generator (for testing).
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Dispatcher) {
		if g != nil {
			d.ids = g
		}
	}
}

// WithLogger sets the logger used for operation events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Dispatcher. Call Run to start executing operations.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:  newOpQueue(),
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit queues fn to run after every previously submitted operation.
// kind labels the operation in logs.
//
// Returns ErrClosed if the dispatcher is closed.
func (d *Dispatcher) Submit(kind string, fn func(ctx context.Context) (any, error)) (*Future, error) {
	if fn == nil {
		return nil, fmt.Errorf("submit %s: nil operation", kind)
	}
	f := &Future{id: d.ids.Generate(), kind: kind, ready: make(chan struct{})}
	if !d.queue.Enqueue(&op{kind: kind, fn: fn, future: f}) {
		return nil, ErrClosed
	}
	return f, nil
}

// Pending returns the number of queued operations not yet started.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Run starts the single-writer loop.
// Blocks until the context is cancelled or Close is called; in both cases
// every operation already submitted runs before Run returns.
//
// Returns nil after Close, or ctx.Err() after cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	opCtx := context.WithoutCancel(ctx)
	d.logger.Debug("dispatcher starting")

	for {
		if o, ok := d.queue.TryDequeue(); ok {
			d.execute(opCtx, o)
			continue
		}

		select {
		case <-ctx.Done():
			d.queue.Close()
			d.drain(opCtx)
			d.logger.Debug("dispatcher stopping: context cancelled")
			return ctx.Err()

		case _, ok := <-d.queue.Wait():
			if !ok {
				d.drain(opCtx)
				d.logger.Debug("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Close stops accepting operations. Run returns once the queue is drained.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// drain runs everything still queued.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		o, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		d.execute(ctx, o)
	}
}

// execute runs one operation and resolves its future.
// Called only from the Run goroutine.
func (d *Dispatcher) execute(ctx context.Context, o *op) {
	start := time.Now()
	value, err := d.call(ctx, o)

	attrs := []any{"op_id", o.future.id, "kind", o.kind, "duration", time.Since(start)}
	if err != nil {
		d.logger.Warn("operation failed", append(attrs, "error", err)...)
	} else {
		d.logger.Debug("operation finished", attrs...)
	}

	o.future.resolve(value, err)
}

// call invokes the operation. A panic is returned as an error.
func (d *Dispatcher) call(ctx context.Context, o *op) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("operation %s panicked: %v", o.kind, r)
		}
	}()
	return o.fn(ctx)
}

// Future is the pending result of a submitted operation.
type Future struct {
	id    string
	kind  string
	ready chan struct{}
	value any
	err   error
}

// ID returns the operation ID.
func (f *Future) ID() string {
	return f.id
}

// Kind returns the operation label given to Submit.
func (f *Future) Kind() string {
	return f.kind
}

// Done returns a channel closed when the operation has finished.
func (f *Future) Done() <-chan struct{} {
	return f.ready
}

// Wait blocks until the operation finishes or ctx is done. Giving up on the
// wait does not cancel the operation.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.ready:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.ready)
}

// Await waits on f and asserts its value to T.
func Await[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	v, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("operation %s returned %T, want %T", f.kind, v, zero)
	}
	return t, nil
}
