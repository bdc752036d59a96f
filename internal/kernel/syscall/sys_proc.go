package syscall

import (
	"github.com/heliosproject/helios/kernel/internal/kernel/future"
	"github.com/heliosproject/helios/kernel/internal/kernel/ipc"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

func procRef(p *proc.Process, h types.Handle) (*proc.Ref, types.Errno) {
	r, errno := p.Handles().Get(h)
	if errno != types.OK {
		return nil, errno
	}
	ref, ok := r.(*proc.Ref)
	if !ok {
		return nil, types.ErrBadHandle
	}
	return ref, types.OK
}

func (d *Dispatcher) buildClose(p *proc.Process, req Request) (future.Computation, error) {
	// Removing an unknown id is a no-op, matching the table contract.
	if r, ok := p.Handles().Remove(types.Handle(req.Args[0])); ok {
		r.Close()
	}
	return future.Fn(func() future.Outcome { return future.Done(0) }), nil
}

func (d *Dispatcher) buildProcWait(p *proc.Process, req Request) (future.Computation, error) {
	ref, errno := procRef(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	child := ref.Process()
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		if exited, status := child.Exited(); exited {
			return future.Done(status)
		}

		child.ExitWaker().Register(pid)
		if exited, status := child.Exited(); exited {
			return future.Done(status)
		}
		return future.Pending()
	}), nil
}

func (d *Dispatcher) buildProcSignal(p *proc.Process, req Request) (future.Computation, error) {
	ref, errno := procRef(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	// Delivery is a post to the target's default mailbox under its self
	// handle. Signaling an exited process is a no-op: its table is gone.
	target := ref.Process()
	if r, errno := target.Handles().Get(types.HandleDefaultMbox); errno == types.OK {
		if mb, ok := r.(*ipc.Mailbox); ok {
			mb.Post(types.HandleSelf, types.EventSignal)
			if d.metrics != nil {
				d.metrics.RecordPost()
			}
		}
	}
	return future.Fn(func() future.Outcome { return future.Done(0) }), nil
}

func (d *Dispatcher) buildSpawn(p *proc.Process, access *usermem.Access, req Request) (future.Computation, error) {
	src, err := argSlice(req.Args[0], req.Args[1])
	if err != nil {
		return nil, err
	}
	path, err := access.CopyIn(src)
	if err != nil {
		return nil, err
	}
	dst, err := argOut(req.Args[2], pairEncodedLen)
	if err != nil {
		return nil, err
	}

	if d.factory == nil || d.spawner == nil {
		return failNow(types.ErrNoEntry), nil
	}

	op := d.factory.Load(string(path))
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		img, errno, ready := op.Poll(d.wakeOf(pid))
		if !ready {
			return future.Pending()
		}
		if errno != types.OK {
			return future.Fail(errno)
		}

		sp, errno := d.spawner.Adopt(p, img)
		if errno != types.OK {
			return future.Fail(errno)
		}
		enc := encodePair(uint32(sp.Child), uint32(sp.Channel))
		return future.DoneWith(int64(sp.PID), future.OutCopy{Dst: dst, Data: enc})
	}), nil
}
