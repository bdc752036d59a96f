package syscall

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/kernel/ipc"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/kernel/sched"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

type fixture struct {
	s *sched.Scheduler
	d *Dispatcher
	p *proc.Process
	m *usermem.Flat
}

// newFixture boots a scheduler with one running user process over a flat
// address space.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := sched.New()
	d := New(s, logging.NewNop(), Options{})

	mem := usermem.NewFlat(8192)
	p := proc.New(1, "init", 0, mem, s.Wake)
	s.Add(p)
	if s.Next() != p {
		t.Fatal("Process should be running")
	}
	return &fixture{s: s, d: d, p: p, m: mem}
}

// resume drives the scheduler until the given process runs again and its
// parked syscall completes.
func (f *fixture) resume(t *testing.T) Result {
	t.Helper()

	p := f.s.Next()
	if p != f.p {
		t.Fatalf("Expected pid %d to be selected", f.p.ID())
	}
	r := f.d.Resume(p)
	if r.Suspended {
		t.Fatal("Resume suspended again unexpectedly")
	}
	return r
}

func (f *fixture) endpoints(t *testing.T) (types.Handle, types.Handle, *ipc.Endpoint, *ipc.Endpoint) {
	t.Helper()

	const outPtr = 100
	r := f.d.Entry(f.p, Request{Op: OpChannelCreate, Args: [6]uint64{outPtr}})
	if r.Value != 0 || r.Suspended {
		t.Fatalf("channel_create failed: %+v", r)
	}

	var enc [8]byte
	if err := f.m.ReadAt(enc[:], outPtr); err != nil {
		t.Fatal(err)
	}
	h0 := types.Handle(binary.LittleEndian.Uint32(enc[0:]))
	h1 := types.Handle(binary.LittleEndian.Uint32(enc[4:]))

	r0, errno := f.p.Handles().Get(h0)
	if errno != types.OK {
		t.Fatalf("Handle %v not resolvable", h0)
	}
	r1, errno := f.p.Handles().Get(h1)
	if errno != types.OK {
		t.Fatalf("Handle %v not resolvable", h1)
	}
	return h0, h1, r0.(*ipc.Endpoint), r1.(*ipc.Endpoint)
}

func TestGetPID(t *testing.T) {
	f := newFixture(t)

	r := f.d.Entry(f.p, Request{Op: OpGetPID})
	if r.Value != 1 || r.Suspended || r.Resched {
		t.Errorf("getpid: %+v", r)
	}
}

func TestYieldReschedules(t *testing.T) {
	f := newFixture(t)

	r := f.d.Entry(f.p, Request{Op: OpYield})
	if !r.Resched {
		t.Error("yield must return control to the scheduler")
	}
	if f.p.State() != types.StateRunnable {
		t.Errorf("Expected runnable, got %s", f.p.State())
	}
}

func TestExitRemovesProcess(t *testing.T) {
	f := newFixture(t)

	r := f.d.Entry(f.p, Request{Op: OpExit, Args: [6]uint64{7}})
	if !r.Resched {
		t.Error("exit must return control to the scheduler")
	}
	if exited, status := f.p.Exited(); !exited || status != 7 {
		t.Errorf("Exit status not recorded: %v %d", exited, status)
	}
	if _, ok := f.s.Get(1); ok {
		t.Error("Exited process still known to the scheduler")
	}
}

func TestUnknownOpFails(t *testing.T) {
	f := newFixture(t)

	r := f.d.Entry(f.p, Request{Op: Op(999)})
	if types.Errno(r.Value) != types.ErrBadOp {
		t.Errorf("Expected bad-op, got %d", r.Value)
	}
}

func TestChannelRoundTrip(t *testing.T) {
	f := newFixture(t)
	h0, h1, _, _ := f.endpoints(t)

	const msgPtr = 200
	payload := []byte("ping")
	if err := f.m.WriteAt(payload, msgPtr); err != nil {
		t.Fatal(err)
	}

	r := f.d.Entry(f.p, Request{Op: OpChannelSend, Args: [6]uint64{uint64(h0), msgPtr, uint64(len(payload))}})
	if r.Value != 0 || r.Suspended {
		t.Fatalf("send: %+v", r)
	}

	const recvPtr = 300
	r = f.d.Entry(f.p, Request{Op: OpChannelRecv, Args: [6]uint64{uint64(h1), recvPtr, 64}})
	if r.Suspended || r.Value != int64(len(payload)) {
		t.Fatalf("recv: %+v", r)
	}

	got := make([]byte, len(payload))
	if err := f.m.ReadAt(got, recvPtr); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Payload corrupted: %q", got)
	}
}

func TestSendSuspendsOnFullQueueAndResumes(t *testing.T) {
	f := newFixture(t)
	h0, _, _, ep1 := f.endpoints(t)

	const msgPtr = 200
	if err := f.m.WriteAt([]byte("x"), msgPtr); err != nil {
		t.Fatal(err)
	}
	send := Request{Op: OpChannelSend, Args: [6]uint64{uint64(h0), msgPtr, 1}}

	for i := 0; i < ipc.QueueDepth; i++ {
		if r := f.d.Entry(f.p, send); r.Suspended || r.Value != 0 {
			t.Fatalf("send %d: %+v", i, r)
		}
	}

	// Queue full: the next send parks and the process blocks.
	r := f.d.Entry(f.p, send)
	if !r.Suspended {
		t.Fatalf("Expected suspension, got %+v", r)
	}
	if f.p.State() != types.StateBlocked {
		t.Errorf("Expected blocked, got %s", f.p.State())
	}

	// The peer draining one message frees space and wakes the sender.
	if _, errno := ep1.TryRecv(); errno != types.OK {
		t.Fatalf("peer recv: %s", errno)
	}
	if f.p.State() != types.StateRunnable {
		t.Fatalf("Sender not woken, state %s", f.p.State())
	}

	if r := f.resume(t); r.Value != 0 {
		t.Errorf("Resumed send failed: %+v", r)
	}
}

func TestRecvSuspendsUntilMessage(t *testing.T) {
	f := newFixture(t)
	h0, _, _, ep1 := f.endpoints(t)

	const recvPtr = 300
	r := f.d.Entry(f.p, Request{Op: OpChannelRecv, Args: [6]uint64{uint64(h0), recvPtr, 64}})
	if !r.Suspended {
		t.Fatalf("Expected suspension, got %+v", r)
	}

	if errno := ep1.TrySend([]byte("wake")); errno != types.OK {
		t.Fatalf("peer send: %s", errno)
	}

	r = f.resume(t)
	if r.Value != 4 {
		t.Fatalf("Resumed recv: %+v", r)
	}
	got := make([]byte, 4)
	if err := f.m.ReadAt(got, recvPtr); err != nil {
		t.Fatal(err)
	}
	if string(got) != "wake" {
		t.Errorf("Payload corrupted: %q", got)
	}
}

func TestNonBlockingRecvFailsWithoutSuspending(t *testing.T) {
	f := newFixture(t)
	h0, _, _, _ := f.endpoints(t)

	r := f.d.Entry(f.p, Request{
		Op:    OpChannelRecv,
		Args:  [6]uint64{uint64(h0), 300, 64},
		Flags: FlagNonBlock,
	})
	if r.Suspended {
		t.Fatal("Non-blocking recv must not suspend")
	}
	if types.Errno(r.Value) != types.ErrWouldBlock {
		t.Errorf("Expected would-block, got %d", r.Value)
	}
	if f.p.State() != types.StateRunning {
		t.Errorf("Process state disturbed: %s", f.p.State())
	}
}

func TestRecvBufferTooSmallKeepsMessage(t *testing.T) {
	f := newFixture(t)
	h0, _, ep0, ep1 := f.endpoints(t)
	_ = ep0

	if errno := ep1.TrySend([]byte("0123456789")); errno != types.OK {
		t.Fatal(errno)
	}

	r := f.d.Entry(f.p, Request{Op: OpChannelRecv, Args: [6]uint64{uint64(h0), 300, 4}})
	if types.Errno(r.Value) != types.ErrMsgTooBig {
		t.Fatalf("Expected msg-too-big, got %d", r.Value)
	}

	// The message survives for a retry with a bigger buffer.
	r = f.d.Entry(f.p, Request{Op: OpChannelRecv, Args: [6]uint64{uint64(h0), 300, 64}})
	if r.Value != 10 {
		t.Errorf("Retry lost the message: %+v", r)
	}
}

func TestPeerClosedAfterDrain(t *testing.T) {
	f := newFixture(t)
	h0, h1, _, ep1 := f.endpoints(t)

	if errno := ep1.TrySend([]byte("last")); errno != types.OK {
		t.Fatal(errno)
	}
	if r, ok := f.p.Handles().Remove(h1); ok {
		r.Close()
	}

	// Queued message first, then the closed condition.
	r := f.d.Entry(f.p, Request{Op: OpChannelRecv, Args: [6]uint64{uint64(h0), 300, 64}})
	if r.Value != 4 {
		t.Fatalf("Queued message lost: %+v", r)
	}
	r = f.d.Entry(f.p, Request{Op: OpChannelRecv, Args: [6]uint64{uint64(h0), 300, 64}})
	if types.Errno(r.Value) != types.ErrPeerClosed {
		t.Errorf("Expected peer-closed, got %d", r.Value)
	}
}

func TestFaultOnSendTerminates(t *testing.T) {
	f := newFixture(t)
	h0, _, _, _ := f.endpoints(t)

	r := f.d.Entry(f.p, Request{
		Op:   OpChannelSend,
		Args: [6]uint64{uint64(h0), usermem.Ceiling, 16},
	})
	if !r.Killed {
		t.Fatalf("Expected termination, got %+v", r)
	}
	exited, status := f.p.Exited()
	if !exited || types.Errno(status) != types.ErrFault {
		t.Errorf("Expected fault exit status, got %v %d", exited, status)
	}
	if _, ok := f.s.Get(f.p.ID()); ok {
		t.Error("Faulted process still scheduled")
	}
}

func TestKindTagMismatchIsBadHandle(t *testing.T) {
	f := newFixture(t)
	h0, _, _, _ := f.endpoints(t)

	// A channel handle used where a mailbox is expected.
	r := f.d.Entry(f.p, Request{Op: OpMailboxWait, Args: [6]uint64{uint64(h0), 100}})
	if types.Errno(r.Value) != types.ErrBadHandle {
		t.Errorf("Expected bad-handle, got %d", r.Value)
	}
}

func TestCloseUnknownHandleIsNoop(t *testing.T) {
	f := newFixture(t)

	r := f.d.Entry(f.p, Request{Op: OpClose, Args: [6]uint64{uint64(types.MakeHandle(types.KindChannel, 99))}})
	if r.Value != 0 {
		t.Errorf("close must be a no-op on unknown ids: %+v", r)
	}
}

func TestMailboxWaitDeliversPostedEvent(t *testing.T) {
	f := newFixture(t)
	h0, _, _, ep1 := f.endpoints(t)

	r := f.d.Entry(f.p, Request{Op: OpMailboxCreate})
	if r.Value <= 0 {
		t.Fatalf("mailbox_create: %+v", r)
	}
	mb := uint64(r.Value)

	r = f.d.Entry(f.p, Request{
		Op:   OpMailboxAttach,
		Args: [6]uint64{mb, uint64(h0), uint64(types.EventReadable)},
	})
	if r.Value != 0 {
		t.Fatalf("attach: %+v", r)
	}

	const outPtr = 400
	r = f.d.Entry(f.p, Request{Op: OpMailboxWait, Args: [6]uint64{mb, outPtr}})
	if !r.Suspended {
		t.Fatalf("Expected suspension on empty mailbox, got %+v", r)
	}

	if errno := ep1.TrySend([]byte("hi")); errno != types.OK {
		t.Fatal(errno)
	}

	r = f.resume(t)
	if r.Value != 1 {
		t.Fatalf("wait: %+v", r)
	}
	var enc [8]byte
	if err := f.m.ReadAt(enc[:], outPtr); err != nil {
		t.Fatal(err)
	}
	if got := types.Handle(binary.LittleEndian.Uint32(enc[0:])); got != h0 {
		t.Errorf("Entry handle: got %v, want %v", got, h0)
	}
	if got := types.Events(binary.LittleEndian.Uint32(enc[4:])); !got.Has(types.EventReadable) {
		t.Errorf("Entry events: %v", got)
	}
}

func TestMailboxPollEmptyReturnsZero(t *testing.T) {
	f := newFixture(t)

	r := f.d.Entry(f.p, Request{Op: OpMailboxCreate})
	mb := uint64(r.Value)

	r = f.d.Entry(f.p, Request{Op: OpMailboxPoll, Args: [6]uint64{mb, 100}})
	if r.Suspended || r.Value != 0 {
		t.Errorf("Empty poll should complete with 0: %+v", r)
	}
	if f.p.State() != types.StateRunning {
		t.Errorf("Process state disturbed: %s", f.p.State())
	}
}

func TestMailboxAttachZeroMaskRejected(t *testing.T) {
	f := newFixture(t)
	h0, _, _, _ := f.endpoints(t)

	r := f.d.Entry(f.p, Request{Op: OpMailboxCreate})
	mb := uint64(r.Value)

	r = f.d.Entry(f.p, Request{Op: OpMailboxAttach, Args: [6]uint64{mb, uint64(h0), 0}})
	if types.Errno(r.Value) != types.ErrInvalidArg {
		t.Errorf("Expected invalid-arg, got %d", r.Value)
	}
}

func TestProcWaitBlocksUntilChildExit(t *testing.T) {
	f := newFixture(t)

	child := proc.New(2, "child", 1, usermem.NewFlat(64), f.s.Wake)
	h, errno := f.p.Handles().Insert(proc.NewRef(child))
	if errno != types.OK {
		t.Fatal(errno)
	}

	r := f.d.Entry(f.p, Request{Op: OpProcWait, Args: [6]uint64{uint64(h)}})
	if !r.Suspended {
		t.Fatalf("Expected suspension on a live child, got %+v", r)
	}

	child.Exit(42)
	if f.p.State() != types.StateRunnable {
		t.Fatalf("Parent not woken by child exit, state %s", f.p.State())
	}
	if r := f.resume(t); r.Value != 42 {
		t.Errorf("wait status: %+v", r)
	}
}

func TestProcWaitExitedChildCompletesImmediately(t *testing.T) {
	f := newFixture(t)

	child := proc.New(2, "child", 1, usermem.NewFlat(64), f.s.Wake)
	child.Exit(3)
	h, _ := f.p.Handles().Insert(proc.NewRef(child))

	r := f.d.Entry(f.p, Request{Op: OpProcWait, Args: [6]uint64{uint64(h)}})
	if r.Suspended || r.Value != 3 {
		t.Errorf("wait on exited child: %+v", r)
	}
}

func TestSignalPostsToTargetDefaultMailbox(t *testing.T) {
	f := newFixture(t)

	target := proc.New(2, "target", 1, usermem.NewFlat(64), f.s.Wake)
	mb := ipc.NewMailbox(f.s.Wake)
	mb.SetInterest(types.HandleSelf, types.EventSignal)
	target.Handles().InsertReserved(types.HandleDefaultMbox, mb)

	h, _ := f.p.Handles().Insert(proc.NewRef(target))
	r := f.d.Entry(f.p, Request{Op: OpProcSignal, Args: [6]uint64{uint64(h)}})
	if r.Value != 0 {
		t.Fatalf("signal: %+v", r)
	}

	e, errno := mb.TryWait()
	if errno != types.OK || e.Handle != types.HandleSelf || !e.Events.Has(types.EventSignal) {
		t.Errorf("Signal not delivered: %+v %s", e, errno)
	}
}

func TestSignalExitedTargetIsNoop(t *testing.T) {
	f := newFixture(t)

	target := proc.New(2, "target", 1, usermem.NewFlat(64), f.s.Wake)
	h, _ := f.p.Handles().Insert(proc.NewRef(target))
	target.Exit(0)

	r := f.d.Entry(f.p, Request{Op: OpProcSignal, Args: [6]uint64{uint64(h)}})
	if r.Value != 0 {
		t.Errorf("Signaling an exited process should succeed silently: %+v", r)
	}
}

// eagerService completes its open on the second poll but fires the wake
// during the first, before the caller has parked. This is the completion
// goroutine landing between waker registration and the block transition.
type eagerService struct {
	op *eagerOpen
}

func (s *eagerService) Open(string, uint32) provider.Op[provider.File] {
	s.op = &eagerOpen{}
	return s.op
}

type eagerOpen struct{ polls int }

func (o *eagerOpen) Poll(wake func()) (provider.File, types.Errno, bool) {
	o.polls++
	if o.polls == 1 {
		wake()
		return nil, types.OK, false
	}
	return nil, types.ErrNoEntry, true
}

func TestWakeBeforeParkCompletesOnResume(t *testing.T) {
	svc := &eagerService{}
	s := sched.New()
	d := New(s, logging.NewNop(), Options{Files: svc})
	mem := usermem.NewFlat(8192)
	p := proc.New(1, "init", 0, mem, s.Wake)
	s.Add(p)
	if s.Next() != p {
		t.Fatal("Process should be running")
	}

	const pathPtr = 200
	if err := mem.WriteAt([]byte("f"), pathPtr); err != nil {
		t.Fatal(err)
	}

	r := d.Entry(p, Request{Op: OpFileOpen, Args: [6]uint64{pathPtr, 1, 0}})
	if !r.Suspended {
		t.Fatalf("Expected suspension on the not-ready poll: %+v", r)
	}
	if p.State() != types.StateRunnable {
		t.Fatalf("Wake before park was lost: state %s", p.State())
	}

	if s.Next() != p {
		t.Fatal("Process should be re-selected without an external wake")
	}
	rr := d.Resume(p)
	if rr.Suspended || rr.Value != int64(types.ErrNoEntry) {
		t.Errorf("Resume after latched wake: %+v", rr)
	}
	if svc.op.polls != 2 {
		t.Errorf("Expected exactly two polls, got %d", svc.op.polls)
	}
}
