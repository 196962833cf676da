// Package dispatch runs store operations off the caller's goroutine while
// keeping them in issue order.
//
// A Dispatcher owns an unbounded FIFO queue and a single Run loop that
// executes operations one at a time. Callers Submit an operation and get a
// Future back immediately, so a UI thread never blocks on disk I/O.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Future.Wait(): safe from any goroutine, any number of times
//
// Operations cannot be cancelled once submitted. They run with a context
// detached from Run's cancellation, and a stopping dispatcher drains its
// queue before Run returns.
package dispatch
