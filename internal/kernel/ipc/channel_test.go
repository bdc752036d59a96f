package ipc

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

func TestSendRecvFIFO(t *testing.T) {
	a, b := NewPair(nil)

	var sent [][]byte
	for i := 0; i < 10; i++ {
		msg := []byte(fmt.Sprintf("message-%02d", i))
		sent = append(sent, msg)
		if errno := a.TrySend(msg); errno != types.OK {
			t.Fatalf("Send %d failed: %s", i, errno)
		}
	}

	for i, want := range sent {
		got, errno := b.TryRecv()
		if errno != types.OK {
			t.Fatalf("Recv %d failed: %s", i, errno)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Recv %d: got %q, want %q", i, got, want)
		}
	}
}

func TestMessagesDeliveredWhole(t *testing.T) {
	a, b := NewPair(nil)

	big := make([]byte, MaxMessageBytes)
	for i := range big {
		big[i] = byte(i)
	}
	a.TrySend(big)
	a.TrySend([]byte("tiny"))

	first, _ := b.TryRecv()
	if len(first) != MaxMessageBytes {
		t.Errorf("Message split: got %d bytes", len(first))
	}
	second, _ := b.TryRecv()
	if string(second) != "tiny" {
		t.Errorf("Messages merged: got %q", second)
	}
}

func TestSendCopiesPayload(t *testing.T) {
	a, b := NewPair(nil)

	msg := []byte("original")
	a.TrySend(msg)
	msg[0] = 'X' // caller reuses its buffer

	got, _ := b.TryRecv()
	if string(got) != "original" {
		t.Errorf("Queue must own its copy, got %q", got)
	}
}

func TestMsgTooBig(t *testing.T) {
	a, _ := NewPair(nil)
	if errno := a.TrySend(make([]byte, MaxMessageBytes+1)); errno != types.ErrMsgTooBig {
		t.Errorf("Expected msg-too-big, got %s", errno)
	}
}

func TestQueueDepthBound(t *testing.T) {
	a, b := NewPair(nil)

	for i := 0; i < QueueDepth; i++ {
		if errno := a.TrySend([]byte{byte(i)}); errno != types.OK {
			t.Fatalf("Send %d failed early: %s", i, errno)
		}
	}

	// The 17th non-blocking send reports would-block and must not mutate
	// the queue.
	if errno := a.TrySend([]byte{99}); errno != types.ErrWouldBlock {
		t.Fatalf("Expected would-block, got %s", errno)
	}
	if in, _ := b.Depth(); in != QueueDepth {
		t.Errorf("Queue mutated by failed send: depth %d", in)
	}

	// Draining one slot frees exactly one send.
	b.TryRecv()
	if errno := a.TrySend([]byte{16}); errno != types.OK {
		t.Errorf("Send after drain failed: %s", errno)
	}
}

func TestRecvEmptyWouldBlock(t *testing.T) {
	_, b := NewPair(nil)
	if _, errno := b.TryRecv(); errno != types.ErrWouldBlock {
		t.Errorf("Expected would-block on empty queue, got %s", errno)
	}
}

func TestPeerClose(t *testing.T) {
	a, b := NewPair(nil)

	a.TrySend([]byte("in flight"))
	a.Close()

	// In-flight messages remain readable after peer closure.
	msg, errno := b.TryRecv()
	if errno != types.OK || string(msg) != "in flight" {
		t.Fatalf("In-flight message lost: %q, %s", msg, errno)
	}

	// Once drained, recv reports peer-closed rather than suspending.
	if _, errno := b.TryRecv(); errno != types.ErrPeerClosed {
		t.Errorf("Expected peer-closed after drain, got %s", errno)
	}

	// Send toward a closed peer fails immediately.
	if errno := b.TrySend([]byte("x")); errno != types.ErrPeerClosed {
		t.Errorf("Expected peer-closed on send, got %s", errno)
	}

	// The local endpoint is not poisoned; close is still valid.
	b.Close()
}

func TestSendWakesBlockedReceiver(t *testing.T) {
	var mu sync.Mutex
	var woken []types.PID
	wake := func(pid types.PID) {
		mu.Lock()
		woken = append(woken, pid)
		mu.Unlock()
	}

	a, b := NewPair(wake)

	// A blocking receive found the queue empty and registered interest.
	b.RecvWaker().Register(42)

	a.TrySend([]byte("data"))

	mu.Lock()
	defer mu.Unlock()
	if len(woken) != 1 || woken[0] != 42 {
		t.Errorf("Expected receiver pid 42 woken once, got %v", woken)
	}
}

func TestRecvWakesBlockedSender(t *testing.T) {
	var mu sync.Mutex
	var woken []types.PID
	wake := func(pid types.PID) {
		mu.Lock()
		woken = append(woken, pid)
		mu.Unlock()
	}

	a, b := NewPair(wake)
	for i := 0; i < QueueDepth; i++ {
		a.TrySend([]byte{byte(i)})
	}

	// A blocking send found the queue full and registered interest.
	a.SendWaker().Register(7)

	b.TryRecv()

	mu.Lock()
	defer mu.Unlock()
	if len(woken) != 1 || woken[0] != 7 {
		t.Errorf("Expected sender pid 7 woken once, got %v", woken)
	}
}

func TestCloseWakesPeerWaiters(t *testing.T) {
	var mu sync.Mutex
	woken := map[types.PID]int{}
	wake := func(pid types.PID) {
		mu.Lock()
		woken[pid]++
		mu.Unlock()
	}

	a, b := NewPair(wake)
	b.RecvWaker().Register(1)

	a.Close()

	mu.Lock()
	defer mu.Unlock()
	if woken[1] != 1 {
		t.Errorf("Blocked receiver not released on peer close: %v", woken)
	}
}

func TestChannelMailboxNotify(t *testing.T) {
	a, b := NewPair(nil)
	mb := NewMailbox(nil)

	h := types.MakeHandle(types.KindChannel, 11)
	mb.SetInterest(h, types.EventReadable|types.EventPeerClosed)
	b.Attach(mb, h, types.EventReadable|types.EventPeerClosed)

	a.TrySend([]byte("ping"))

	e, errno := mb.TryWait()
	if errno != types.OK {
		t.Fatalf("Expected pending entry: %s", errno)
	}
	if e.Handle != h || !e.Events.Has(types.EventReadable) {
		t.Errorf("Unexpected entry %+v", e)
	}

	a.Close()
	e, errno = mb.TryWait()
	if errno != types.OK || !e.Events.Has(types.EventPeerClosed) {
		t.Errorf("Expected peer-closed entry, got %+v (%s)", e, errno)
	}
}
