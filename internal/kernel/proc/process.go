package proc

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/future"
	"github.com/heliosproject/helios/kernel/internal/kernel/handle"
	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// SavedState is a full register snapshot, present only while the process is
// neither running nor represented by a pending syscall.
type SavedState struct {
	Regs   [31]uint64
	PC     uint64
	SP     uint64
	PState uint64
}

// StepResult reports what a kernel task did with its scheduling turn.
type StepResult uint8

const (
	// StepYield: the task ran and wants another turn.
	StepYield StepResult = iota
	// StepBlock: the task registered a waker and waits for it.
	StepBlock
	// StepDone: the task finished and leaves the scheduler.
	StepDone
)

// Task is the step function of a kernel background task. It is invoked once
// per scheduling turn and must have registered a waker before returning
// StepBlock.
type Task func() StepResult

// Process is a schedulable entity. State transitions are owned by the
// scheduler; everything else is guarded by the process's own mutex.
type Process struct {
	id     types.PID
	name   string
	kind   types.EntityKind
	parent types.PID

	// Page-table/context reference, opaque to this core. Nil for kernel
	// tasks.
	aspace usermem.AddressSpace

	handles *handle.Table
	task    Task

	mu      sync.Mutex
	state   types.ProcState
	saved   *SavedState
	pending future.Computation

	// lastScheduled orders the runnable set; owned by the scheduler.
	lastScheduled uint64
	arrival       uint64

	exited     bool
	exitStatus int64
	exitWaker  *resource.Waker
	watchers   []func(types.Events)

	// Result of the last completed syscall, delivered on the process's next
	// turn when completion happened on the resume path.
	syscallResult int64
}

// SetSyscallResult records the value the syscall-return path delivers.
func (p *Process) SetSyscallResult(v int64) {
	p.mu.Lock()
	p.syscallResult = v
	p.mu.Unlock()
}

// SyscallResult reads the last delivered syscall result.
func (p *Process) SyscallResult() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syscallResult
}

// New creates a user process around an address space. The handle table is
// seeded by the kernel facade, not here.
func New(id types.PID, name string, parent types.PID, aspace usermem.AddressSpace, wake resource.WakeFunc) *Process {
	return &Process{
		id:        id,
		name:      name,
		kind:      types.EntityUser,
		parent:    parent,
		aspace:    aspace,
		handles:   handle.NewTable(),
		state:     types.StateRunnable,
		exitWaker: resource.NewWaker(wake),
	}
}

// NewKernelTask creates a kernel background task driven by step.
func NewKernelTask(id types.PID, name string, step Task, wake resource.WakeFunc) *Process {
	return &Process{
		id:        id,
		name:      name,
		kind:      types.EntityKernelTask,
		handles:   handle.NewTable(),
		task:      step,
		state:     types.StateRunnable,
		exitWaker: resource.NewWaker(wake),
	}
}

// ID returns the stable process identifier.
func (p *Process) ID() types.PID { return p.id }

// Name returns the display name.
func (p *Process) Name() string { return p.name }

// EntityKind reports user process or kernel task.
func (p *Process) EntityKind() types.EntityKind { return p.kind }

// Parent returns the spawning process, zero for roots.
func (p *Process) Parent() types.PID { return p.parent }

// Handles returns the capability table.
func (p *Process) Handles() *handle.Table { return p.handles }

// AddressSpace returns the opaque context reference.
func (p *Process) AddressSpace() usermem.AddressSpace { return p.aspace }

// Step runs one turn of a kernel task.
func (p *Process) Step() StepResult {
	if p.task == nil {
		return StepDone
	}
	return p.task()
}

// State returns the current run state.
func (p *Process) State() types.ProcState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the run state. Scheduler use only.
func (p *Process) SetState(s types.ProcState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// SetSaved stores a register snapshot captured at preemption.
func (p *Process) SetSaved(s *SavedState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s != nil && p.pending != nil {
		panic("proc: saved state and pending syscall on one process")
	}
	p.saved = s
}

// TakeSaved removes and returns the snapshot for restoration.
func (p *Process) TakeSaved() *SavedState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.saved
	p.saved = nil
	return s
}

// SetPending parks a suspended syscall on the process.
func (p *Process) SetPending(c future.Computation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c != nil && p.saved != nil {
		panic("proc: pending syscall and saved state on one process")
	}
	if c != nil && p.pending != nil {
		panic("proc: second pending syscall on one process")
	}
	p.pending = c
}

// TakePending removes and returns the parked computation for a re-poll.
func (p *Process) TakePending() future.Computation {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.pending
	p.pending = nil
	return c
}

// HasPending reports whether a syscall is parked.
func (p *Process) HasPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// LastScheduled returns the fairness stamp. Scheduler use only.
func (p *Process) LastScheduled() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastScheduled
}

// Stamp records the scheduling tick and arrival sequence. Scheduler use only.
func (p *Process) Stamp(tick, arrival uint64) {
	p.mu.Lock()
	p.lastScheduled = tick
	p.arrival = arrival
	p.mu.Unlock()
}

// Arrival returns the tie-break sequence. Scheduler use only.
func (p *Process) Arrival() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.arrival
}

// Exit records the exit status, discards any pending syscall without running
// it, tears down the handle table (notifying peers of closure), and wakes
// exit waiters.
func (p *Process) Exit(status int64) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.exitStatus = status
	p.pending = nil
	p.saved = nil
	p.state = types.StateExited
	p.mu.Unlock()

	p.handles.CloseAll()
	p.exitWaker.Wake()

	p.mu.Lock()
	watchers := p.watchers
	p.watchers = nil
	p.mu.Unlock()
	for _, notify := range watchers {
		notify(types.EventChildExit)
	}
}

// Watch registers an exit notification callback. If the process already
// exited the callback fires immediately, keeping the condition
// level-triggered.
func (p *Process) Watch(notify func(types.Events)) {
	p.mu.Lock()
	exited := p.exited
	if !exited {
		p.watchers = append(p.watchers, notify)
	}
	p.mu.Unlock()

	if exited {
		notify(types.EventChildExit)
	}
}

// Exited reports termination and the recorded status.
func (p *Process) Exited() (bool, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited, p.exitStatus
}

// ExitWaker exposes the waker wait-for-child registers with.
func (p *Process) ExitWaker() *resource.Waker { return p.exitWaker }
