package types

// Errno is the numeric result of a syscall. Zero or positive values are
// success payloads (byte counts, handle ids); negative values enumerate the
// failure taxonomy. Non-fatal failures are converted to an Errno at the point
// of origin and never unwound through layers.
type Errno int32

const (
	OK Errno = 0

	// ErrBadHandle covers both unknown ids and kind-tag mismatches; the two
	// are indistinguishable to the caller.
	ErrBadHandle Errno = -1
	// ErrWouldBlock is the transient non-blocking failure; blocking callers
	// never observe it.
	ErrWouldBlock Errno = -2
	// ErrPeerClosed is permanent for the operation but does not poison the
	// local endpoint.
	ErrPeerClosed Errno = -3
	// ErrMsgTooBig rejects a message above the channel payload limit.
	ErrMsgTooBig Errno = -4
	// ErrNoSpace reports handle-table exhaustion.
	ErrNoSpace Errno = -5
	// ErrInvalidArg rejects a malformed argument.
	ErrInvalidArg Errno = -6
	// ErrNoChild reports wait on a pid that is not a live child.
	ErrNoChild Errno = -7
	// ErrFault marks a user-memory violation. It is recorded as the exit
	// status of the terminated process, never returned to it.
	ErrFault Errno = -8
	// ErrNoEntry reports a missing path on the file service.
	ErrNoEntry Errno = -9
	// ErrBadOp rejects an unknown operation code.
	ErrBadOp Errno = -10
)

// String returns the symbolic name.
func (e Errno) String() string {
	switch e {
	case OK:
		return "ok"
	case ErrBadHandle:
		return "bad-handle"
	case ErrWouldBlock:
		return "would-block"
	case ErrPeerClosed:
		return "peer-closed"
	case ErrMsgTooBig:
		return "msg-too-big"
	case ErrNoSpace:
		return "no-space"
	case ErrInvalidArg:
		return "invalid-arg"
	case ErrNoChild:
		return "no-child"
	case ErrFault:
		return "fault"
	case ErrNoEntry:
		return "no-entry"
	case ErrBadOp:
		return "bad-op"
	default:
		return "unknown"
	}
}
