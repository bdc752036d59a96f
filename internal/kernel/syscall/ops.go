package syscall

import (
	"encoding/binary"
	"math"

	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
)

// Op is a syscall operation code.
type Op uint32

const (
	OpYield Op = iota
	OpExit
	OpGetPID

	OpClose

	OpChannelCreate
	OpChannelSend
	OpChannelRecv

	OpMailboxCreate
	OpMailboxAttach
	OpMailboxDetach
	OpMailboxWait
	OpMailboxPoll

	OpProcWait
	OpProcSignal
	OpSpawn

	OpFileOpen
	OpFileRead
	OpFileWrite
	OpFileSeek
	OpFileStat
	OpFileList
)

// String returns the op name for logs and metrics labels.
func (o Op) String() string {
	switch o {
	case OpYield:
		return "yield"
	case OpExit:
		return "exit"
	case OpGetPID:
		return "getpid"
	case OpClose:
		return "close"
	case OpChannelCreate:
		return "channel_create"
	case OpChannelSend:
		return "channel_send"
	case OpChannelRecv:
		return "channel_recv"
	case OpMailboxCreate:
		return "mailbox_create"
	case OpMailboxAttach:
		return "mailbox_attach"
	case OpMailboxDetach:
		return "mailbox_detach"
	case OpMailboxWait:
		return "mailbox_wait"
	case OpMailboxPoll:
		return "mailbox_poll"
	case OpProcWait:
		return "proc_wait"
	case OpProcSignal:
		return "proc_signal"
	case OpSpawn:
		return "spawn"
	case OpFileOpen:
		return "file_open"
	case OpFileRead:
		return "file_read"
	case OpFileWrite:
		return "file_write"
	case OpFileSeek:
		return "file_seek"
	case OpFileStat:
		return "file_stat"
	case OpFileList:
		return "file_list"
	default:
		return "unknown"
	}
}

// FlagNonBlock makes a blocking-retry call fail with ErrWouldBlock instead of
// suspending.
const FlagNonBlock uint32 = 1

// Request is a decoded syscall: the operation code, up to six raw argument
// words, and behavior flags. Argument meaning per op:
//
//	yield, exit(status), getpid
//	close(handle)
//	channel_create(outPtr)            out: two u32 handle ids
//	channel_send(handle, ptr, len)
//	channel_recv(handle, ptr, cap)    result: message length
//	mailbox_create()                  result: handle id
//	mailbox_attach(mb, target, mask)
//	mailbox_detach(mb, target)
//	mailbox_wait(mb, outPtr)          out: u32 handle, u32 events
//	mailbox_poll(mb, outPtr)          result: 1 if an entry was written
//	proc_wait(handle)                 result: exit status
//	proc_signal(handle)
//	spawn(pathPtr, pathLen, outPtr)   out: u32 child handle, u32 channel handle; result: pid
//	file_open(pathPtr, pathLen, flags)  result: handle id
//	file_read(handle, ptr, cap)       result: byte count, 0 at end of file
//	file_write(handle, ptr, len)      result: byte count
//	file_seek(handle, offset, whence) result: new offset
//	file_stat(handle, outPtr)         out: i64 size, u32 mode, u32 dir, i64 mtime
//	file_list(handle, patPtr, patLen, outPtr, outCap)  result: bytes written
type Request struct {
	Op    Op
	Args  [6]uint64
	Flags uint32
}

// statEncodedLen is the byte size of the file_stat out record.
const statEncodedLen = 24

// pairEncodedLen is the byte size of a two-u32 out record (channel_create,
// mailbox_wait, spawn).
const pairEncodedLen = 8

// argSlice builds a user memory descriptor from two raw argument words.
// A length that does not fit the descriptor is a malformed slice and faults.
func argSlice(addr, length uint64) (usermem.Slice, error) {
	if length > math.MaxUint32 {
		return usermem.Slice{}, &usermem.FaultError{
			Slice: usermem.Slice{Addr: addr, Len: math.MaxUint32},
			Op:    "range",
		}
	}
	return usermem.Slice{Addr: addr, Len: uint32(length)}, nil
}

// argOut validates a copy-out destination while the access proof is open, so
// a malformed out pointer faults before the computation can suspend.
func argOut(addr uint64, size uint32) (usermem.Slice, error) {
	s := usermem.Slice{Addr: addr, Len: size}
	if !s.Valid() {
		return usermem.Slice{}, &usermem.FaultError{Slice: s, Op: "write"}
	}
	return s, nil
}

func encodePair(a, b uint32) []byte {
	buf := make([]byte, pairEncodedLen)
	binary.LittleEndian.PutUint32(buf[0:], a)
	binary.LittleEndian.PutUint32(buf[4:], b)
	return buf
}
