package cachepurge

import "context"

// Result summarises one purge.
type Result struct {
	Deleted []string
	Kept    []string
	Errors  []error

	// WorkerChecked is true when an update worker was asked to check.
	WorkerChecked bool
	WorkerErr     error
}

// Task tracks a dispatched purge. Boot never waits on it; Wait exists for
// process shutdown and tests.
type Task struct {
	done   chan struct{}
	result Result
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Done is closed when the purge has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the purge finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome if the purge has finished.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}
