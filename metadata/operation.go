package metadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/zenibako/orgsync-golang/messages"
)

// OperationKind distinguishes the two long-running operation directions.
type OperationKind string

const (
	OpRetrieve OperationKind = "retrieve"
	OpDeploy   OperationKind = "deploy"
)

// OperationHandle is the caller's view of one in-flight retrieve or deploy.
// The transport publishes progress and the terminal result through it; the
// caller consumes progress, may request cancellation, and awaits the result.
type OperationHandle struct {
	progress chan messages.ProgressUpdate
	done     chan struct{}

	mu          sync.Mutex
	finished    bool
	result      messages.OperationResult
	lastCurrent int
	lastTotal   int

	cancelOnce sync.Once
	cancelFn   func() error
}

// NewOperationHandle creates a handle. cancelFn is the transport's
// cooperative cancellation action; it may be nil when the transport cannot
// cancel.
func NewOperationHandle(cancelFn func() error) *OperationHandle {
	return &OperationHandle{
		progress: make(chan messages.ProgressUpdate, 32),
		done:     make(chan struct{}),
		cancelFn: cancelFn,
	}
}

// Publish delivers a progress update to the consumer. Counted updates are
// clamped so current and total never regress within one operation. Delivery
// is lossy under a slow consumer rather than blocking the transport.
// Publishing after Finish is a no-op.
func (h *OperationHandle) Publish(update messages.ProgressUpdate) {
	// The send must stay inside the critical section: Finish closes the
	// progress channel, and a send racing that close would panic on the
	// transport's goroutine where no recover can reach it.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	if update.Kind == messages.KindProgress {
		if update.Current < h.lastCurrent {
			log.Debugf("Progress regressed from %d to %d, clamping", h.lastCurrent, update.Current)
			update.Current = h.lastCurrent
		}
		if update.Total < h.lastTotal {
			update.Total = h.lastTotal
		}
		h.lastCurrent = update.Current
		h.lastTotal = update.Total
	}

	select {
	case h.progress <- update:
	default:
		log.Debugf("Progress consumer lagging, dropping update %s", update)
	}
}

// Finish records the terminal result and closes the progress stream.
// Calling it more than once keeps the first result.
func (h *OperationHandle) Finish(result messages.OperationResult) {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.result = result
	h.mu.Unlock()

	close(h.progress)
	close(h.done)
}

// Progress returns the progress stream. It is closed when the operation
// reaches its terminal state.
func (h *OperationHandle) Progress() <-chan messages.ProgressUpdate {
	return h.progress
}

// Done returns a channel closed when the operation reaches its terminal state.
func (h *OperationHandle) Done() <-chan struct{} {
	return h.done
}

// Cancel requests cooperative cancellation. Calling it again before the
// first request resolves is a no-op, not a duplicate signal. Cancellation is
// best effort: the transport may still finish with any terminal state, and
// that state must still be awaited.
func (h *OperationHandle) Cancel() {
	h.cancelOnce.Do(func() {
		if h.cancelFn == nil {
			return
		}
		go func() {
			if err := h.cancelFn(); err != nil {
				log.Warnf("Cancellation request failed: %v", err)
			}
		}()
	})
}

// Wait blocks until the operation reaches its terminal state and returns the
// result. Context cancellation requests cooperative cancellation but keeps
// waiting: the terminal state is always observed, never assumed.
func (h *OperationHandle) Wait(ctx context.Context) messages.OperationResult {
	select {
	case <-h.done:
	case <-ctx.Done():
		log.Infof("Context done, requesting operation cancellation")
		h.Cancel()
		<-h.done
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Runner drives retrieve and deploy operations through the transport and
// converts every outcome, including unexpected faults, into a structured
// result. An unhandled fault escaping here would leave the caller's
// progress/cancel state permanently dangling.
type Runner struct {
	transport           Transport
	dryRun              bool
	onDisconnect        func()
	consecutiveFailures int
}

// NewRunner creates a runner over the given transport.
func NewRunner(transport Transport) *Runner {
	return &Runner{transport: transport}
}

// SetDryRun sets whether operations are logged and synthesized instead of
// sent to the transport.
func (r *Runner) SetDryRun(dryRun bool) {
	r.dryRun = dryRun
}

// OnDisconnect sets a callback fired after consecutive transport failures
// suggest the org connection is gone.
func (r *Runner) OnDisconnect(callback func()) {
	r.onDisconnect = callback
}

// Retrieve pulls the given components from the org.
func (r *Runner) Retrieve(ctx context.Context, components []Component, onProgress func(messages.ProgressUpdate)) messages.OperationResult {
	return r.run(ctx, OpRetrieve, components, onProgress)
}

// Deploy pushes the given components to the org.
func (r *Runner) Deploy(ctx context.Context, components []Component, onProgress func(messages.ProgressUpdate)) messages.OperationResult {
	return r.run(ctx, OpDeploy, components, onProgress)
}

func (r *Runner) run(ctx context.Context, kind OperationKind, components []Component, onProgress func(messages.ProgressUpdate)) (result messages.OperationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Unexpected fault during %s: %v", kind, rec)
			result = messages.Failuref("unexpected fault during %s: %v", kind, rec)
		}
	}()

	if len(components) == 0 {
		return messages.Failure("no components selected")
	}

	if r.dryRun {
		log.Printf("[DRY RUN] Would %s %d components", kind, len(components))
		return messages.Succeeded(fmt.Sprintf("[DRY RUN] would %s %d components", kind, len(components)))
	}

	log.Infof("Starting %s of %d components", kind, len(components))
	var handle *OperationHandle
	var err error
	switch kind {
	case OpDeploy:
		handle, err = r.transport.StartDeploy(ctx, components)
	default:
		handle, err = r.transport.StartRetrieve(ctx, components)
	}
	if err != nil {
		r.noteFailure()
		return messages.Failuref("failed to start %s: %v", kind, err)
	}

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for update := range handle.Progress() {
			log.Debugf("%s progress: %s", kind, update)
			if onProgress != nil {
				onProgress(update)
			}
		}
	}()

	res := handle.Wait(ctx)
	<-forwarded

	switch {
	case res.Success:
		r.consecutiveFailures = 0
	case res.IsCancelled():
		// Cancellation is an operator decision, not a connection signal.
	default:
		r.noteFailure()
	}
	log.Infof("%s finished: %s", kind, res.Summary())
	return res
}

func (r *Runner) noteFailure() {
	r.consecutiveFailures++
	if r.consecutiveFailures >= 2 && r.onDisconnect != nil {
		log.Warnf("%d consecutive transport failures, org connection may be gone", r.consecutiveFailures)
		r.onDisconnect()
		r.consecutiveFailures = 0
	}
}
