package sched

import (
	"container/heap"
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// EventType labels a scheduler transition for observers.
type EventType string

const (
	EventAdmit   EventType = "admit"
	EventSwitch  EventType = "switch"
	EventYield   EventType = "yield"
	EventPreempt EventType = "preempt"
	EventBlock   EventType = "block"
	EventWake    EventType = "wake"
	EventExit    EventType = "exit"
)

// Event is a scheduler transition record, fanned out to logging, metrics,
// and the monitor stream.
type Event struct {
	Type  EventType   `json:"type"`
	PID   types.PID   `json:"pid"`
	Name  string      `json:"name"`
	State string      `json:"state"`
	Tick  uint64      `json:"tick"`
}

// Hook receives scheduler events. It runs under the scheduler lock and must
// not call back into the scheduler.
type Hook func(Event)

// Scheduler owns the per-state collections and the running slot.
type Scheduler struct {
	mu       sync.Mutex
	clock    uint64
	arrivals uint64
	running  *proc.Process
	// wakeLatched records a wake that arrived for the running entity before
	// it could block. Consumed by Block, cleared on every other transition
	// out of the running slot.
	wakeLatched bool
	runnable    runQueue
	blocked     map[types.PID]*proc.Process
	all         map[types.PID]*proc.Process
	hook        Hook
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		blocked: make(map[types.PID]*proc.Process),
		all:     make(map[types.PID]*proc.Process),
	}
}

// SetHook installs the event observer. Called once at boot.
func (s *Scheduler) SetHook(h Hook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

func (s *Scheduler) emit(t EventType, p *proc.Process) {
	if s.hook != nil {
		s.hook(Event{
			Type:  t,
			PID:   p.ID(),
			Name:  p.Name(),
			State: p.State().String(),
			Tick:  s.clock,
		})
	}
}

// Add admits a new entity as runnable.
func (s *Scheduler) Add(p *proc.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arrivals++
	p.Stamp(0, s.arrivals)
	p.SetState(types.StateRunnable)
	s.all[p.ID()] = p
	heap.Push(&s.runnable, p)
	s.emit(EventAdmit, p)
}

// Next selects the least-recently-scheduled runnable entity, marks it
// running, and stamps it. Returns nil when idle.
func (s *Scheduler) Next() *proc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		panic("sched: Next with an entity still running")
	}
	if s.runnable.Len() == 0 {
		return nil
	}

	p := heap.Pop(&s.runnable).(*proc.Process)
	s.clock++
	p.Stamp(s.clock, p.Arrival())
	p.SetState(types.StateRunning)
	s.running = p
	s.emit(EventSwitch, p)
	return p
}

// Yield returns the running entity to the runnable set voluntarily.
func (s *Scheduler) Yield(p *proc.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustBeRunning(p)
	s.running = nil
	s.wakeLatched = false
	p.SetState(types.StateRunnable)
	heap.Push(&s.runnable, p)
	s.emit(EventYield, p)
}

// Preempt captures the register snapshot of the running entity and returns
// it to the runnable set. Invoked by the timer interrupt path.
func (s *Scheduler) Preempt(p *proc.Process, saved *proc.SavedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustBeRunning(p)
	s.running = nil
	s.wakeLatched = false
	p.SetSaved(saved)
	p.SetState(types.StateRunnable)
	heap.Push(&s.runnable, p)
	s.emit(EventPreempt, p)
}

// Block transitions the running entity to blocked, awaiting a waker. A wake
// latched while the entity was still running re-admits it immediately; the
// spurious extra poll that follows is harmless, every blocking handler
// re-checks its condition.
func (s *Scheduler) Block(p *proc.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustBeRunning(p)
	s.running = nil
	if s.wakeLatched {
		s.wakeLatched = false
		p.SetState(types.StateRunnable)
		heap.Push(&s.runnable, p)
		s.emit(EventBlock, p)
		s.emit(EventWake, p)
		return
	}
	p.SetState(types.StateBlocked)
	s.blocked[p.ID()] = p
	s.emit(EventBlock, p)
}

// Wake marks a blocked entity runnable. Waking an entity that is already
// runnable or gone is a no-op; both waker paths rely on that idempotence.
// A wake for the running entity is latched: it may have already registered
// a waker and be about to block, so Block consumes the latch and re-admits
// instead of parking.
func (s *Scheduler) Wake(pid types.PID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.blocked[pid]
	if !ok {
		if s.running != nil && s.running.ID() == pid {
			s.wakeLatched = true
		}
		return
	}
	delete(s.blocked, pid)
	p.SetState(types.StateRunnable)
	heap.Push(&s.runnable, p)
	s.emit(EventWake, p)
}

// Exit removes an entity from scheduling entirely. Valid from any state.
func (s *Scheduler) Exit(p *proc.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running == p {
		s.running = nil
		s.wakeLatched = false
	}
	delete(s.blocked, p.ID())
	s.runnable.remove(p)
	delete(s.all, p.ID())
	s.emit(EventExit, p)
}

// Get looks up a live entity by pid.
func (s *Scheduler) Get(pid types.PID) (*proc.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.all[pid]
	return p, ok
}

// Running returns the currently executing entity, if any.
func (s *Scheduler) Running() *proc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Idle reports whether nothing is runnable or running.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running == nil && s.runnable.Len() == 0
}

// Procs snapshots all live entities for the monitor API.
func (s *Scheduler) Procs() []*proc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*proc.Process, 0, len(s.all))
	for _, p := range s.all {
		out = append(out, p)
	}
	return out
}

// Stats summarizes the per-state populations.
type Stats struct {
	Tick     uint64 `json:"tick"`
	Total    int    `json:"total"`
	Runnable int    `json:"runnable"`
	Blocked  int    `json:"blocked"`
	Running  int    `json:"running"`
}

// Stats reports current counts.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Tick:     s.clock,
		Total:    len(s.all),
		Runnable: s.runnable.Len(),
		Blocked:  len(s.blocked),
	}
	if s.running != nil {
		st.Running = 1
	}
	return st
}

func (s *Scheduler) mustBeRunning(p *proc.Process) {
	if s.running != p {
		// A transition from the wrong state means scheduler bookkeeping is
		// corrupted; there is no recovery path.
		panic("sched: transition from a non-running entity")
	}
}

// runQueue is a min-heap on (lastScheduled, arrival): the entity idle
// longest runs first, arrival order breaking ties.
type runQueue []*proc.Process

func (q runQueue) Len() int { return len(q) }

func (q runQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.LastScheduled() != b.LastScheduled() {
		return a.LastScheduled() < b.LastScheduled()
	}
	return a.Arrival() < b.Arrival()
}

func (q runQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *runQueue) Push(x any) { *q = append(*q, x.(*proc.Process)) }

func (q *runQueue) Pop() any {
	old := *q
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return p
}

func (q *runQueue) remove(p *proc.Process) {
	for i, e := range *q {
		if e == p {
			heap.Remove(q, i)
			return
		}
	}
}
