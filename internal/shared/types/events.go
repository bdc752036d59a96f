package types

// Events is a bitset of level-triggered readiness conditions. Mailbox entries
// coalesce by ORing these bits, which is valid because each bit states a
// condition that still holds, not a discrete occurrence.
type Events uint32

const (
	// EventReadable: a message or data is available.
	EventReadable Events = 1 << iota
	// EventWritable: queue space is available.
	EventWritable
	// EventPeerClosed: the remote endpoint closed.
	EventPeerClosed
	// EventChildExit: a child process terminated.
	EventChildExit
	// EventSignal: another process raised a signal.
	EventSignal
	// EventTimer: a timer deadline elapsed.
	EventTimer
	// EventKey: input is pending on a device source.
	EventKey
)

// EventAll matches every event bit.
const EventAll Events = ^Events(0)

// Has reports whether all bits in mask are set.
func (e Events) Has(mask Events) bool { return e&mask == mask }
