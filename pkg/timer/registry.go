// Package timer binds opaque timer references to deferred callbacks on the accessory run loop.
//
// The Registry owns a fixed number of slots. Each in-flight deadline occupies exactly one slot
// until it fires or is deregistered; when every slot is taken, Register fails with
// [protocol.ErrOutOfResources].
package timer

import (
	"fmt"
	"time"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/protocol"
)

// MaxTimers is the number of concurrently registered deadlines.
const MaxTimers = 32

var logger = log.New("Timer")

// Clock returns monotonic time since an arbitrary fixed origin.
type Clock interface {
	Now() time.Duration
}

// Scheduler runs callbacks on the run loop after a delay.
type Scheduler interface {
	// ScheduleAfter arranges for callback to run after delay and returns a correlation id.
	ScheduleAfter(delay time.Duration, callback func()) (int, error)
	// Cancel prevents a scheduled callback from running. It returns false if the callback already
	// ran or was never scheduled.
	Cancel(id int) bool
}

// Ref identifies a registered timer. The zero Ref never refers to a live timer.
type Ref struct {
	index      int
	generation uint32
}

func (r Ref) String() string {
	return fmt.Sprintf("timer#%d/%d", r.index, r.generation)
}

// Callback is invoked on the run loop when a deadline passes.
type Callback func(timer Ref)

type slot struct {
	id         int
	generation uint32
}

// Registry is not safe for concurrent use; it is driven from the run loop only.
type Registry struct {
	clock     Clock
	scheduler Scheduler

	mask  uint32
	slots [MaxTimers]slot
}

func NewRegistry(clock Clock, scheduler Scheduler) *Registry {
	return &Registry{clock: clock, scheduler: scheduler}
}

// Register schedules callback to run once deadline has passed. Deadlines in the past fire as soon
// as possible.
func (r *Registry) Register(deadline time.Duration, callback Callback) (Ref, error) {
	if callback == nil {
		panic("timer: nil callback")
	}
	var delay time.Duration
	if now := r.clock.Now(); deadline > now {
		delay = deadline - now
	}

	for i := 0; i < MaxTimers; i++ {
		if r.mask&(1<<i) != 0 {
			continue
		}
		s := &r.slots[i]
		s.generation++
		ref := Ref{index: i, generation: s.generation}

		id, err := r.scheduler.ScheduleAfter(delay, func() { r.fire(ref, callback) })
		if err != nil {
			return Ref{}, fmt.Errorf("timer: failed to schedule %s: %w", ref, protocol.ErrUnknown)
		}
		r.mask |= 1 << i
		s.id = id
		logger.Debug("Registered %s in %s", ref, delay)
		return ref, nil
	}
	return Ref{}, fmt.Errorf("timer: all %d slots in use: %w", MaxTimers, protocol.ErrOutOfResources)
}

// Deregister releases the slot held by timer and cancels its callback. Deregistering a timer that
// already fired is harmless.
func (r *Registry) Deregister(timer Ref) {
	if !r.live(timer) {
		logger.Debug("Ignoring deregistration of stale %s", timer)
		return
	}
	r.mask &^= 1 << timer.index
	if id := r.slots[timer.index].id; !r.scheduler.Cancel(id) {
		logger.Error("failed to cancel timer %d", id)
	}
}

// InUse returns the number of occupied slots.
func (r *Registry) InUse() int {
	n := 0
	for m := r.mask; m != 0; m &= m - 1 {
		n++
	}
	return n
}

func (r *Registry) live(timer Ref) bool {
	if timer.generation == 0 || timer.index < 0 || timer.index >= MaxTimers {
		return false
	}
	return r.mask&(1<<timer.index) != 0 && r.slots[timer.index].generation == timer.generation
}

func (r *Registry) fire(timer Ref, callback Callback) {
	if !r.live(timer) {
		logger.Debug("Suppressing %s after deregistration", timer)
		return
	}
	r.mask &^= 1 << timer.index
	callback(timer)
}
