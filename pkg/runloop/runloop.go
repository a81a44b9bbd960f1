// Package runloop provides the single dispatcher context on which every stack event, authorization
// request and timer callback of the accessory runs.
//
// Callbacks never run concurrently with each other, so state owned by the peripheral manager needs
// no locking as long as it is only touched from callbacks. Goroutines owned by a BLE host stack
// must hand their events to the loop with [Loop.Post] or [Loop.Do].
package runloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/protocol"
)

const defaultQueueSize = 64

var logger = log.New("RunLoop")

type Loop struct {
	queue chan func()
	quit  chan struct{}
	once  sync.Once

	lock    sync.Mutex
	nextID  int
	pending map[int]*time.Timer
}

// New creates a Loop that buffers up to queueSize callbacks. Zero selects a default size.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Loop{
		queue:   make(chan func(), queueSize),
		quit:    make(chan struct{}),
		pending: make(map[int]*time.Timer),
	}
}

// Post queues f to run on the loop. It fails with protocol.ErrOutOfResources if the queue is full
// and protocol.ErrInvalidState once the loop has stopped.
func (l *Loop) Post(f func()) error {
	select {
	case <-l.quit:
		return fmt.Errorf("runloop: %w", protocol.ErrInvalidState)
	default:
	}
	select {
	case l.queue <- f:
		return nil
	default:
		return fmt.Errorf("runloop: queue full: %w", protocol.ErrOutOfResources)
	}
}

// Do runs f on the loop and waits for it to finish. It must not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		f()
	}
	for {
		err := l.Post(task)
		if err == nil {
			break
		}
		if !protocol.Temporary(err) {
			return err
		}
		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-done:
		return nil
	case <-l.quit:
		return fmt.Errorf("runloop: stopped before task ran: %w", protocol.ErrInvalidState)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleAfter runs callback on the loop once delay has elapsed.
func (l *Loop) ScheduleAfter(delay time.Duration, callback func()) (int, error) {
	select {
	case <-l.quit:
		return 0, fmt.Errorf("runloop: %w", protocol.ErrInvalidState)
	default:
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	l.nextID++
	id := l.nextID
	l.pending[id] = time.AfterFunc(delay, func() { l.deliver(id, callback) })
	return id, nil
}

// deliver posts a fired timer, waiting while the queue is full. Only a stopped loop drops it.
func (l *Loop) deliver(id int, callback func()) {
	task := func() {
		if l.take(id) {
			callback()
		}
	}
	for {
		err := l.Post(task)
		if err == nil {
			return
		}
		if !protocol.Temporary(err) {
			logger.Debug("Dropping timer %d: %s", id, err)
			l.take(id)
			return
		}
		select {
		case <-time.After(time.Millisecond):
		case <-l.quit:
			return
		}
	}
}

// Cancel prevents the callback scheduled under id from running. It returns false if the callback
// has already run.
func (l *Loop) Cancel(id int) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	t, ok := l.pending[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(l.pending, id)
	return true
}

func (l *Loop) take(id int) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, ok := l.pending[id]; !ok {
		return false
	}
	delete(l.pending, id)
	return true
}

// Run dispatches callbacks until Stop is called or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	logger.Debug("Starting run loop...")
	for {
		select {
		case f := <-l.queue:
			f()
		case <-l.quit:
			return nil
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		}
	}
}

// Stop makes Run return and cancels every pending timer.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.quit)
		l.lock.Lock()
		defer l.lock.Unlock()
		for id, t := range l.pending {
			t.Stop()
			delete(l.pending, id)
		}
	})
}
