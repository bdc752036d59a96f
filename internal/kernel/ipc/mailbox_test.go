package ipc

import (
	"sync"
	"testing"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

func TestPostMasking(t *testing.T) {
	mb := NewMailbox(nil)
	h := types.MakeHandle(types.KindEvent, 1)
	mb.SetInterest(h, types.EventKey)

	// Nothing survives the mask: no-op.
	mb.Post(h, types.EventTimer)
	if mb.Pending() != 0 {
		t.Error("Masked-out event should not queue")
	}

	mb.Post(h, types.EventKey|types.EventTimer)
	e, errno := mb.TryWait()
	if errno != types.OK {
		t.Fatalf("Expected entry: %s", errno)
	}
	if e.Events != types.EventKey {
		t.Errorf("Only masked bits should queue, got %v", e.Events)
	}
}

func TestPostCoalesces(t *testing.T) {
	mb := NewMailbox(nil)
	h := types.MakeHandle(types.KindChannel, 2)
	mb.SetInterest(h, types.EventAll)

	// Same bit twice, then a different bit: exactly one entry with the union.
	mb.Post(h, types.EventReadable)
	mb.Post(h, types.EventReadable)
	mb.Post(h, types.EventWritable)

	if mb.Pending() != 1 {
		t.Fatalf("Expected one coalesced entry, got %d", mb.Pending())
	}
	e, _ := mb.TryWait()
	if e.Events != types.EventReadable|types.EventWritable {
		t.Errorf("Expected union of bits, got %v", e.Events)
	}
}

func TestOverflowEvictsOldest(t *testing.T) {
	mb := NewMailbox(nil)

	for i := 0; i < MailboxCapacity+1; i++ {
		h := types.MakeHandle(types.KindEvent, uint32(i+1))
		mb.SetInterest(h, types.EventAll)
		mb.Post(h, types.EventKey)
	}

	if mb.Pending() != MailboxCapacity {
		t.Fatalf("Expected capacity %d, got %d", MailboxCapacity, mb.Pending())
	}

	// The oldest entry (seq 1) was evicted; seq 2 is now first.
	e, _ := mb.TryWait()
	if e.Handle.Seq() != 2 {
		t.Errorf("Expected oldest entry evicted, first is seq %d", e.Handle.Seq())
	}
}

func TestOverflowStillCoalesces(t *testing.T) {
	mb := NewMailbox(nil)

	for i := 0; i < MailboxCapacity; i++ {
		h := types.MakeHandle(types.KindEvent, uint32(i+1))
		mb.SetInterest(h, types.EventAll)
		mb.Post(h, types.EventKey)
	}

	// A full queue coalesces into an existing entry without eviction.
	first := types.MakeHandle(types.KindEvent, 1)
	mb.Post(first, types.EventTimer)

	if mb.Pending() != MailboxCapacity {
		t.Fatalf("Coalescing must not evict, got %d", mb.Pending())
	}
	e, _ := mb.TryWait()
	if e.Handle != first || e.Events != types.EventKey|types.EventTimer {
		t.Errorf("Expected coalesced first entry, got %+v", e)
	}
}

func TestWaitOrder(t *testing.T) {
	mb := NewMailbox(nil)
	for i := 1; i <= 3; i++ {
		h := types.MakeHandle(types.KindEvent, uint32(i))
		mb.SetInterest(h, types.EventAll)
		mb.Post(h, types.EventKey)
	}

	for i := 1; i <= 3; i++ {
		e, errno := mb.TryWait()
		if errno != types.OK || e.Handle.Seq() != uint32(i) {
			t.Errorf("Entry %d out of order: %+v (%s)", i, e, errno)
		}
	}

	if _, errno := mb.TryWait(); errno != types.ErrWouldBlock {
		t.Errorf("Empty mailbox should report would-block, got %s", errno)
	}
}

func TestPostWakesWaiter(t *testing.T) {
	var mu sync.Mutex
	var woken []types.PID
	mb := NewMailbox(func(pid types.PID) {
		mu.Lock()
		woken = append(woken, pid)
		mu.Unlock()
	})

	h := types.MakeHandle(types.KindEvent, 1)
	mb.SetInterest(h, types.EventAll)

	mb.Waker().Register(5)
	mb.Post(h, types.EventKey)

	mu.Lock()
	defer mu.Unlock()
	if len(woken) != 1 || woken[0] != 5 {
		t.Errorf("Expected waiter pid 5 woken, got %v", woken)
	}
}

func TestDetachDropsPending(t *testing.T) {
	mb := NewMailbox(nil)
	h := types.MakeHandle(types.KindEvent, 1)
	mb.SetInterest(h, types.EventAll)
	mb.Post(h, types.EventKey)

	mb.RemoveInterest(h)

	if mb.Pending() != 0 {
		t.Error("Detach should drop the handle's pending entry")
	}
	mb.Post(h, types.EventKey)
	if mb.Pending() != 0 {
		t.Error("Detached handle must not queue new events")
	}
}

func TestCloseReleasesWaiter(t *testing.T) {
	var mu sync.Mutex
	var woken []types.PID
	mb := NewMailbox(func(pid types.PID) {
		mu.Lock()
		woken = append(woken, pid)
		mu.Unlock()
	})

	mb.Waker().Register(9)
	mb.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(woken) != 1 {
		t.Error("Close should release a blocked waiter")
	}
}
