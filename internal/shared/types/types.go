package types

// PID identifies a schedulable entity for its whole lifetime. PIDs are never
// reused while any handle or waiter still references the entity.
type PID uint32

// Handle is a per-process capability reference: an 8-bit kind tag in the
// upper bits and a 24-bit sequence id in the lower bits. The tag lets the
// syscall layer reject a type-mismatched operation without consulting the
// table contents.
type Handle uint32

// HandleKind tags the resource variant a handle refers to.
type HandleKind uint8

const (
	KindNone HandleKind = iota
	KindFile
	KindChannel
	KindMailbox
	KindProcess
	KindEvent
	KindTimer
)

// String returns the kind name for logs and the monitor API.
func (k HandleKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindChannel:
		return "channel"
	case KindMailbox:
		return "mailbox"
	case KindProcess:
		return "process"
	case KindEvent:
		return "event"
	case KindTimer:
		return "timer"
	default:
		return "none"
	}
}

const (
	handleKindShift = 24
	handleSeqMask   = 1<<handleKindShift - 1
)

// MakeHandle builds a handle id from a kind tag and a sequence number.
func MakeHandle(kind HandleKind, seq uint32) Handle {
	return Handle(uint32(kind)<<handleKindShift | seq&handleSeqMask)
}

// Kind extracts the kind tag.
func (h Handle) Kind() HandleKind { return HandleKind(h >> handleKindShift) }

// Seq extracts the sequence id.
func (h Handle) Seq() uint32 { return uint32(h) & handleSeqMask }

// Well-known handles installed in every process at creation. Their numeric
// values carry a zero kind tag; lookups resolve them by table position alone.
const (
	HandleStdin         Handle = 0
	HandleStdout        Handle = 1
	HandleStderr        Handle = 2
	HandleSelf          Handle = 3
	HandleEnvironment   Handle = 4
	HandleDefaultMbox   Handle = 5
	HandleParentChannel Handle = 6

	// MaxReserved is the highest well-known handle id.
	MaxReserved Handle = 6
)

// ProcState is a schedulable entity's run state.
type ProcState uint8

const (
	// StateRunnable means ready and awaiting CPU.
	StateRunnable ProcState = iota
	// StateRunning is the unique currently-executing entity.
	StateRunning
	// StateBlocked means awaiting a waker or a re-poll of a pending syscall.
	StateBlocked
	// StateExited means torn down; kept only while a process handle observes it.
	StateExited
)

// String returns the state name.
func (s ProcState) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// EntityKind distinguishes user processes from kernel background tasks. The
// scheduler treats both uniformly.
type EntityKind uint8

const (
	EntityUser EntityKind = iota
	EntityKernelTask
)

// String returns the entity kind name.
func (k EntityKind) String() string {
	if k == EntityKernelTask {
		return "kernel-task"
	}
	return "user"
}
