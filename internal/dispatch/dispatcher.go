// Package dispatch runs work serialized per key and parallel across keys.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/chatshop/pkg/logger"
)

var (
	// ErrClosed is returned by Submit after Close has been called.
	ErrClosed = errors.New("dispatcher closed")
	// ErrBusy is returned when a key already has the maximum number of pending tasks.
	ErrBusy = errors.New("too many pending tasks for key")
)

// Task is one unit of work for a key.
type Task func(ctx context.Context)

// Dispatcher keeps one mailbox per active key. A key's tasks run one at a
// time in submission order on a goroutine that exits once the mailbox is
// empty, so idle keys cost nothing.
type Dispatcher struct {
	ctx        context.Context
	logg       *logger.Logger
	maxPending int

	mu     sync.Mutex
	boxes  map[string]*mailbox
	closed bool
	wg     sync.WaitGroup
}

type mailbox struct {
	queue []Task
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxPending bounds the queued tasks per key. Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxPending = n
		}
	}
}

// New builds a dispatcher. Tasks receive ctx, so canceling it tells running
// tasks to wrap up; queued tasks still run and observe the canceled context.
func New(ctx context.Context, logg *logger.Logger, opts ...Option) (*Dispatcher, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	d := &Dispatcher{
		ctx:   ctx,
		logg:  logg,
		boxes: map[string]*mailbox{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Submit queues task behind any pending work for key.
func (d *Dispatcher) Submit(key string, task Task) error {
	if task == nil {
		return fmt.Errorf("task required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if box, ok := d.boxes[key]; ok {
		if d.maxPending > 0 && len(box.queue) >= d.maxPending {
			return ErrBusy
		}
		box.queue = append(box.queue, task)
		return nil
	}
	box := &mailbox{queue: []Task{task}}
	d.boxes[key] = box
	d.wg.Add(1)
	go d.drain(key, box)
	return nil
}

// Active returns the number of keys with queued or running work.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.boxes)
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) drain(key string, box *mailbox) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(box.queue) == 0 {
			delete(d.boxes, key)
			d.mu.Unlock()
			return
		}
		task := box.queue[0]
		box.queue[0] = nil
		box.queue = box.queue[1:]
		d.mu.Unlock()

		d.run(key, task)
	}
}

func (d *Dispatcher) run(key string, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx := d.logg.WithFields(d.ctx, map[string]any{"dispatch_key": key, "panic": fmt.Sprint(rec)})
			d.logg.Error(ctx, "task panicked", fmt.Errorf("panic: %v", rec))
		}
	}()
	task(d.ctx)
}
