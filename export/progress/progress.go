// Package progress provides the hierarchical progress reporting used by the
// export pipeline. Receivers support sub-range delegation so that each pass
// of a region export can report into its own slice of the overall range, and
// double as the cooperative cancellation mechanism: long running passes poll
// Cancelled and abort when it returns ErrCancelled.
package progress

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is returned by Cancelled when the operation has been
// cancelled. It is a signal, not a failure: callers propagate it without
// wrapping and without reporting it as an error.
var ErrCancelled = errors.New("progress: operation cancelled")

// Receiver receives progress updates from one operation. Implementations
// must be safe for use from the single goroutine running that operation;
// they need not be safe for concurrent use.
type Receiver interface {
	// SetMessage describes the step the operation is currently performing.
	SetMessage(message string)
	// SetProgress reports completion of the operation as a fraction in
	// [0, 1].
	SetProgress(fraction float64)
	// Reset restarts the progress range, used when an operation gains an
	// extra phase that was not part of the original range.
	Reset()
	// Cancelled returns ErrCancelled if the operation should abort, nil
	// otherwise.
	Cancelled() error
	// ReportError reports a failure of the operation. When a receiver is
	// present, failures are reported here instead of aborting sibling
	// operations.
	ReportError(err error)
}

// SubReceiver returns a receiver that maps its [0, 1] progress range onto
// [start, start+span] of the parent. Messages, cancellation and errors pass
// through unchanged. A nil parent yields a nil receiver, so sub-ranging a
// missing receiver stays missing.
func SubReceiver(parent Receiver, start, span float64) Receiver {
	if parent == nil {
		return nil
	}
	return &subReceiver{parent: parent, start: start, span: span}
}

type subReceiver struct {
	parent      Receiver
	start, span float64
}

func (s *subReceiver) SetMessage(message string) { s.parent.SetMessage(message) }

func (s *subReceiver) SetProgress(fraction float64) {
	s.parent.SetProgress(s.start + fraction*s.span)
}

func (s *subReceiver) Reset()                { s.parent.SetProgress(s.start) }
func (s *subReceiver) Cancelled() error      { return s.parent.Cancelled() }
func (s *subReceiver) ReportError(err error) { s.parent.ReportError(err) }

// Cancelled polls the receiver passed, tolerating nil: with no receiver
// there is nothing to cancel through.
func Cancelled(r Receiver) error {
	if r == nil {
		return nil
	}
	return r.Cancelled()
}

// Message sets a message on the receiver passed if one is present.
func Message(r Receiver, message string) {
	if r != nil {
		r.SetMessage(message)
	}
}

// Set reports progress on the receiver passed if one is present.
func Set(r Receiver, fraction float64) {
	if r != nil {
		r.SetProgress(fraction)
	}
}

// WithContext returns a receiver whose Cancelled additionally observes the
// context passed, so that context cancellation aborts the operation even
// when the receiver itself never cancels. A nil receiver with a cancellable
// context yields a context-only receiver that discards progress.
func WithContext(ctx context.Context, r Receiver) Receiver {
	if ctx == nil || ctx.Done() == nil {
		return r
	}
	return &ctxReceiver{ctx: ctx, r: r}
}

type ctxReceiver struct {
	ctx context.Context
	r   Receiver
}

func (c *ctxReceiver) SetMessage(message string) { Message(c.r, message) }

func (c *ctxReceiver) SetProgress(fraction float64) { Set(c.r, fraction) }

func (c *ctxReceiver) Reset() {
	if c.r != nil {
		c.r.Reset()
	}
}

func (c *ctxReceiver) Cancelled() error {
	if c.ctx.Err() != nil {
		return ErrCancelled
	}
	return Cancelled(c.r)
}

func (c *ctxReceiver) ReportError(err error) {
	if c.r != nil {
		c.r.ReportError(err)
	}
}

// Parallel fans one receiver out to a set of concurrently running tasks.
// Each task obtains its own receiver through Task; the parent's progress is
// the mean of all task fractions. Parallel is safe for concurrent use.
type Parallel struct {
	mu        sync.Mutex
	parent    Receiver
	fractions []float64
}

// NewParallel creates a Parallel distributing the receiver passed over the
// number of tasks passed. A nil parent returns nil.
func NewParallel(parent Receiver, tasks int) *Parallel {
	if parent == nil {
		return nil
	}
	return &Parallel{parent: parent, fractions: make([]float64, 0, tasks)}
}

// Task returns a receiver for the next task. A nil Parallel returns nil.
func (p *Parallel) Task() Receiver {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fractions = append(p.fractions, 0)
	return &parallelTask{p: p, index: len(p.fractions) - 1}
}

func (p *Parallel) set(index int, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fractions[index] = fraction
	var sum float64
	for _, f := range p.fractions {
		sum += f
	}
	p.parent.SetProgress(sum / float64(cap(p.fractions)))
}

func (p *Parallel) message(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent.SetMessage(message)
}

func (p *Parallel) cancelled() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent.Cancelled()
}

func (p *Parallel) reportError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent.ReportError(err)
}

type parallelTask struct {
	p     *Parallel
	index int
}

func (t *parallelTask) SetMessage(message string)    { t.p.message(message) }
func (t *parallelTask) SetProgress(fraction float64) { t.p.set(t.index, fraction) }
func (t *parallelTask) Reset()                       { t.p.set(t.index, 0) }
func (t *parallelTask) Cancelled() error             { return t.p.cancelled() }
func (t *parallelTask) ReportError(err error)        { t.p.reportError(err) }
