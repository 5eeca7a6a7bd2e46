package render

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type ownerTask struct {
	fn     func() error
	result chan error
}

// Owner is the single goroutine that performs GPU work. Rendering, uploads
// and recovery submit closures to it instead of touching the device from
// their own goroutines, so device calls never interleave across threads.
type Owner struct {
	tasks  chan ownerTask
	done   chan struct{}
	mu     sync.RWMutex // guards closed and the close of tasks
	closed bool
	logger *slog.Logger
}

// NewOwner starts the owner goroutine with room for depth queued tasks.
func NewOwner(depth int, logger *slog.Logger) *Owner {
	if depth <= 0 {
		depth = 16
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &Owner{
		tasks:  make(chan ownerTask, depth),
		done:   make(chan struct{}),
		logger: logger,
	}
	go o.run()
	return o
}

func (o *Owner) run() {
	defer close(o.done)
	for t := range o.tasks {
		err := o.exec(t.fn)
		if t.result != nil {
			t.result <- err
		} else if err != nil {
			o.logger.Debug("render task failed", "error", err)
		}
	}
}

func (o *Owner) exec(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("render task panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("render: task panic: %v", r)
		}
	}()
	return fn()
}

// Do runs fn on the owner and waits for its result. It must not be called
// from inside another task.
func (o *Owner) Do(fn func() error) error {
	res := make(chan error, 1)
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return ErrOwnerClosed
	}
	o.tasks <- ownerTask{fn: fn, result: res}
	o.mu.RUnlock()
	return <-res
}

// Submit queues fn without waiting. It reports false when the owner is
// closed or its queue is full.
func (o *Owner) Submit(fn func() error) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false
	}
	select {
	case o.tasks <- ownerTask{fn: fn}:
		return true
	default:
		return false
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// owner goroutine to exit.
func (o *Owner) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.tasks)
	}
	o.mu.Unlock()
	<-o.done
}
