package proc

import (
	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Ref is the process-handle resource: the capability another process holds
// to observe a process (wait for exit, read its pid). The referenced process
// outlives the ref; closing the ref drops only the observation.
type Ref struct {
	p   *Process
	att resource.Attachment
}

// NewRef creates a process handle for p.
func NewRef(p *Process) *Ref {
	r := &Ref{p: p}
	p.Watch(func(ev types.Events) { r.att.Notify(ev) })
	return r
}

// Kind implements resource.Resource.
func (r *Ref) Kind() types.HandleKind { return types.KindProcess }

// Events implements resource.Resource.
func (r *Ref) Events() types.Events { return types.EventChildExit | types.EventSignal }

// Attach implements resource.Resource.
func (r *Ref) Attach(p resource.Poster, h types.Handle, mask types.Events) {
	r.att.Set(p, h, mask)

	if exited, _ := r.p.Exited(); exited {
		r.att.Notify(types.EventChildExit)
	}
}

// Detach implements resource.Resource.
func (r *Ref) Detach(p resource.Poster) { r.att.Clear(p) }

// Close implements resource.Resource.
func (r *Ref) Close() {}

// Process returns the referenced process.
func (r *Ref) Process() *Process { return r.p }
