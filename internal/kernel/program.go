package kernel

import (
	"encoding/binary"
	"errors"

	"github.com/heliosproject/helios/kernel/internal/kernel/syscall"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Program is the body of a simulated user process, standing in for machine
// code. It runs on its own goroutine in strict alternation with the kernel
// loop and interacts with the kernel only through the Syscalls facade.
type Program func(sys *Syscalls)

// Scratch layout inside a program's address space. Programs stage outbound
// bytes and receive inbound bytes through these windows.
const (
	outBase   uint64 = 0x40
	stageBase uint64 = 0x1000
	recvBase  uint64 = 0x2000

	// programSpace is the flat address space size given to registered
	// programs without a loaded image.
	programSpace = 0x4000
)

// errProgramKilled unwinds a program goroutine whose process was terminated.
var errProgramKilled = errors.New("program killed")

// userProgram is the kernel-side driver of one program goroutine.
type userProgram struct {
	body    Program
	sys     *Syscalls
	started bool

	// turn delivers the previous syscall result and the right to run; trap
	// carries the next request back. Both hand-offs are synchronous.
	turn   chan int64
	trap   chan syscall.Request
	killed chan struct{}
	done   chan struct{}
}

func newUserProgram(body Program) *userProgram {
	return &userProgram{
		body:   body,
		turn:   make(chan int64),
		trap:   make(chan syscall.Request),
		killed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (u *userProgram) start() {
	go func() {
		defer close(u.done)
		defer func() {
			if r := recover(); r != nil && r != errProgramKilled {
				panic(r)
			}
		}()

		select {
		case <-u.turn:
		case <-u.killed:
			return
		}
		u.body(u.sys)
		// The body fell off its end: exit with status zero.
		u.sys.Invoke(syscall.Request{Op: syscall.OpExit})
	}()
}

func (u *userProgram) kill() {
	select {
	case <-u.killed:
	default:
		close(u.killed)
	}
}

// Syscalls lets a program trap into the kernel. All helpers stage their
// buffers in the process's own address space, the way real user code would.
type Syscalls struct {
	prog  *userProgram
	space usermem.AddressSpace
}

// Invoke issues one raw syscall and returns its result. It parks the program
// goroutine until the kernel hands the turn back; if the process is
// terminated meanwhile, the goroutine unwinds.
func (s *Syscalls) Invoke(req syscall.Request) int64 {
	select {
	case s.prog.trap <- req:
	case <-s.prog.killed:
		panic(errProgramKilled)
	}
	select {
	case v := <-s.prog.turn:
		return v
	case <-s.prog.killed:
		panic(errProgramKilled)
	}
}

func (s *Syscalls) write(addr uint64, b []byte) {
	if err := s.space.WriteAt(b, addr); err != nil {
		panic("program scratch overflow")
	}
}

func (s *Syscalls) read(addr uint64, n int) []byte {
	b := make([]byte, n)
	if err := s.space.ReadAt(b, addr); err != nil {
		panic("program scratch overflow")
	}
	return b
}

func errnoOf(v int64) types.Errno {
	if v < 0 {
		return types.Errno(v)
	}
	return types.OK
}

// PID returns the calling process's identifier.
func (s *Syscalls) PID() types.PID {
	return types.PID(s.Invoke(syscall.Request{Op: syscall.OpGetPID}))
}

// Yield gives up the rest of the turn.
func (s *Syscalls) Yield() {
	s.Invoke(syscall.Request{Op: syscall.OpYield})
}

// Exit terminates the process. It does not return.
func (s *Syscalls) Exit(status int64) {
	s.Invoke(syscall.Request{Op: syscall.OpExit, Args: [6]uint64{uint64(status)}})
	panic(errProgramKilled)
}

// Close releases a handle.
func (s *Syscalls) Close(h types.Handle) {
	s.Invoke(syscall.Request{Op: syscall.OpClose, Args: [6]uint64{uint64(h)}})
}

// ChannelCreate makes a connected endpoint pair.
func (s *Syscalls) ChannelCreate() (types.Handle, types.Handle, types.Errno) {
	v := s.Invoke(syscall.Request{Op: syscall.OpChannelCreate, Args: [6]uint64{outBase}})
	if v < 0 {
		return 0, 0, types.Errno(v)
	}
	enc := s.read(outBase, 8)
	h0 := types.Handle(binary.LittleEndian.Uint32(enc[0:]))
	h1 := types.Handle(binary.LittleEndian.Uint32(enc[4:]))
	return h0, h1, types.OK
}

// Send transmits one whole message on a channel endpoint.
func (s *Syscalls) Send(h types.Handle, msg []byte, flags uint32) types.Errno {
	s.write(stageBase, msg)
	v := s.Invoke(syscall.Request{
		Op:    syscall.OpChannelSend,
		Args:  [6]uint64{uint64(h), stageBase, uint64(len(msg))},
		Flags: flags,
	})
	return errnoOf(v)
}

// Recv receives one whole message of at most max bytes.
func (s *Syscalls) Recv(h types.Handle, max int, flags uint32) ([]byte, types.Errno) {
	v := s.Invoke(syscall.Request{
		Op:    syscall.OpChannelRecv,
		Args:  [6]uint64{uint64(h), recvBase, uint64(max)},
		Flags: flags,
	})
	if v < 0 {
		return nil, types.Errno(v)
	}
	return s.read(recvBase, int(v)), types.OK
}

// MailboxCreate makes an empty event mailbox.
func (s *Syscalls) MailboxCreate() (types.Handle, types.Errno) {
	v := s.Invoke(syscall.Request{Op: syscall.OpMailboxCreate})
	if v < 0 {
		return 0, types.Errno(v)
	}
	return types.Handle(v), types.OK
}

// MailboxAttach subscribes the mailbox to events on target.
func (s *Syscalls) MailboxAttach(mb, target types.Handle, mask types.Events) types.Errno {
	v := s.Invoke(syscall.Request{
		Op:   syscall.OpMailboxAttach,
		Args: [6]uint64{uint64(mb), uint64(target), uint64(mask)},
	})
	return errnoOf(v)
}

// MailboxDetach removes a subscription.
func (s *Syscalls) MailboxDetach(mb, target types.Handle) types.Errno {
	v := s.Invoke(syscall.Request{
		Op:   syscall.OpMailboxDetach,
		Args: [6]uint64{uint64(mb), uint64(target)},
	})
	return errnoOf(v)
}

// MailboxWait blocks for the next readiness entry.
func (s *Syscalls) MailboxWait(mb types.Handle) (types.Handle, types.Events, types.Errno) {
	v := s.Invoke(syscall.Request{Op: syscall.OpMailboxWait, Args: [6]uint64{uint64(mb), outBase}})
	if v < 0 {
		return 0, 0, types.Errno(v)
	}
	enc := s.read(outBase, 8)
	return types.Handle(binary.LittleEndian.Uint32(enc[0:])),
		types.Events(binary.LittleEndian.Uint32(enc[4:])),
		types.OK
}

// MailboxPoll returns the next entry without blocking; ok reports whether one
// was pending.
func (s *Syscalls) MailboxPoll(mb types.Handle) (types.Handle, types.Events, bool, types.Errno) {
	v := s.Invoke(syscall.Request{Op: syscall.OpMailboxPoll, Args: [6]uint64{uint64(mb), outBase}})
	if v < 0 {
		return 0, 0, false, types.Errno(v)
	}
	if v == 0 {
		return 0, 0, false, types.OK
	}
	enc := s.read(outBase, 8)
	return types.Handle(binary.LittleEndian.Uint32(enc[0:])),
		types.Events(binary.LittleEndian.Uint32(enc[4:])),
		true, types.OK
}

// WaitProc blocks until the process behind h exits and returns its status.
// The raw value is returned as-is: statuses share the numeric range with
// errnos.
func (s *Syscalls) WaitProc(h types.Handle) int64 {
	return s.Invoke(syscall.Request{Op: syscall.OpProcWait, Args: [6]uint64{uint64(h)}})
}

// Signal raises the signal event on the process behind h.
func (s *Syscalls) Signal(h types.Handle) types.Errno {
	return errnoOf(s.Invoke(syscall.Request{Op: syscall.OpProcSignal, Args: [6]uint64{uint64(h)}}))
}

// Spawn loads path into a child process. It returns the child pid, the
// process handle, and this side of the startup channel.
func (s *Syscalls) Spawn(path string) (types.PID, types.Handle, types.Handle, types.Errno) {
	s.write(stageBase, []byte(path))
	v := s.Invoke(syscall.Request{
		Op:   syscall.OpSpawn,
		Args: [6]uint64{stageBase, uint64(len(path)), outBase},
	})
	if v < 0 {
		return 0, 0, 0, types.Errno(v)
	}
	enc := s.read(outBase, 8)
	return types.PID(v),
		types.Handle(binary.LittleEndian.Uint32(enc[0:])),
		types.Handle(binary.LittleEndian.Uint32(enc[4:])),
		types.OK
}

// Open opens a path on the file service.
func (s *Syscalls) Open(path string, flags uint32) (types.Handle, types.Errno) {
	s.write(stageBase, []byte(path))
	v := s.Invoke(syscall.Request{
		Op:   syscall.OpFileOpen,
		Args: [6]uint64{stageBase, uint64(len(path)), uint64(flags)},
	})
	if v < 0 {
		return 0, types.Errno(v)
	}
	return types.Handle(v), types.OK
}

// FileRead reads up to n bytes from an open file.
func (s *Syscalls) FileRead(h types.Handle, n int) ([]byte, types.Errno) {
	v := s.Invoke(syscall.Request{
		Op:   syscall.OpFileRead,
		Args: [6]uint64{uint64(h), recvBase, uint64(n)},
	})
	if v < 0 {
		return nil, types.Errno(v)
	}
	return s.read(recvBase, int(v)), types.OK
}

// FileWrite writes data to an open file.
func (s *Syscalls) FileWrite(h types.Handle, data []byte) (int, types.Errno) {
	s.write(stageBase, data)
	v := s.Invoke(syscall.Request{
		Op:   syscall.OpFileWrite,
		Args: [6]uint64{uint64(h), stageBase, uint64(len(data))},
	})
	if v < 0 {
		return 0, types.Errno(v)
	}
	return int(v), types.OK
}
