package syscall

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// fileRes wraps an open provider file as a handle-table resource. Regular
// files are always ready, so attachment reports both conditions immediately
// and never again.
type fileRes struct {
	f   provider.File
	att resource.Attachment

	mu     sync.Mutex
	closed bool
}

func newFileRes(f provider.File) *fileRes { return &fileRes{f: f} }

// NewFileResource wraps an open provider file as a handle-table resource.
// The boot path uses it to seed reserved file-like handles.
func NewFileResource(f provider.File) resource.Resource { return newFileRes(f) }

func (r *fileRes) Kind() types.HandleKind { return types.KindFile }

func (r *fileRes) Events() types.Events {
	return types.EventReadable | types.EventWritable
}

func (r *fileRes) Attach(p resource.Poster, h types.Handle, mask types.Events) {
	r.att.Set(p, h, mask)
	r.att.Notify(types.EventReadable | types.EventWritable)
}

func (r *fileRes) Detach(p resource.Poster) { r.att.Clear(p) }

func (r *fileRes) Close() {
	r.mu.Lock()
	closed := r.closed
	r.closed = true
	r.mu.Unlock()

	if !closed {
		r.f.Close()
	}
}
