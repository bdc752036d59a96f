package handle

import (
	"testing"

	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// stubResource is a minimal capability object for table tests.
type stubResource struct {
	kind   types.HandleKind
	closed bool
}

func (s *stubResource) Kind() types.HandleKind { return s.kind }
func (s *stubResource) Events() types.Events   { return 0 }
func (s *stubResource) Attach(p resource.Poster, h types.Handle, mask types.Events) {
}
func (s *stubResource) Detach(p resource.Poster) {}
func (s *stubResource) Close()                   { s.closed = true }

func TestInsertGet(t *testing.T) {
	tbl := NewTable()

	h, errno := tbl.Insert(&stubResource{kind: types.KindChannel})
	if errno != types.OK {
		t.Fatalf("Insert failed: %s", errno)
	}
	if h.Kind() != types.KindChannel {
		t.Errorf("Handle should carry the channel tag, got %s", h.Kind())
	}

	if _, errno := tbl.Get(h); errno != types.OK {
		t.Errorf("Get failed: %s", errno)
	}
}

func TestGetTagMismatch(t *testing.T) {
	tbl := NewTable()

	h, _ := tbl.Insert(&stubResource{kind: types.KindChannel})

	// Same sequence id, wrong tag: must fail exactly like an unknown id.
	forged := types.MakeHandle(types.KindMailbox, h.Seq())
	_, errnoForged := tbl.Get(forged)
	_, errnoUnknown := tbl.Get(types.MakeHandle(types.KindChannel, 999999))

	if errnoForged != types.ErrBadHandle || errnoForged != errnoUnknown {
		t.Errorf("Tag mismatch (%s) and unknown id (%s) must fail identically", errnoForged, errnoUnknown)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	tbl := NewTable()
	h, _ := tbl.Insert(&stubResource{kind: types.KindFile})

	if _, ok := tbl.Remove(h); !ok {
		t.Fatal("First remove should find the entry")
	}
	if _, ok := tbl.Remove(h); ok {
		t.Error("Second remove should be a no-op")
	}
	if _, errno := tbl.Get(h); errno != types.ErrBadHandle {
		t.Error("Removed handle should be invalid")
	}
}

func TestSequenceNeverReused(t *testing.T) {
	tbl := NewTable()

	first, _ := tbl.Insert(&stubResource{kind: types.KindFile})
	tbl.Remove(first)
	second, _ := tbl.Insert(&stubResource{kind: types.KindFile})

	if first.Seq() == second.Seq() {
		t.Error("Sequence ids must not be reused after removal")
	}
}

func TestCapacity(t *testing.T) {
	tbl := NewTable()

	for i := 0; i < Capacity; i++ {
		if _, errno := tbl.Insert(&stubResource{kind: types.KindFile}); errno != types.OK {
			t.Fatalf("Insert %d failed early: %s", i, errno)
		}
	}

	if _, errno := tbl.Insert(&stubResource{kind: types.KindFile}); errno != types.ErrNoSpace {
		t.Errorf("Expected no-space past capacity, got %s", errno)
	}
}

func TestReservedResolveByPosition(t *testing.T) {
	tbl := NewTable()
	tbl.InsertReserved(types.HandleDefaultMbox, &stubResource{kind: types.KindMailbox})

	r, errno := tbl.Get(types.HandleDefaultMbox)
	if errno != types.OK {
		t.Fatalf("Reserved get failed: %s", errno)
	}
	if r.Kind() != types.KindMailbox {
		t.Errorf("Expected the mailbox resource, got %s", r.Kind())
	}
}

func TestCloseAll(t *testing.T) {
	tbl := NewTable()

	res := []*stubResource{
		{kind: types.KindChannel},
		{kind: types.KindMailbox},
	}
	for _, r := range res {
		tbl.Insert(r)
	}

	tbl.CloseAll()

	for i, r := range res {
		if !r.closed {
			t.Errorf("Resource %d not closed on teardown", i)
		}
	}
	if tbl.Len() != 0 {
		t.Error("Table should be empty after teardown")
	}
}
