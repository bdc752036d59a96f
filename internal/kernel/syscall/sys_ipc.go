package syscall

import (
	"github.com/heliosproject/helios/kernel/internal/kernel/future"
	"github.com/heliosproject/helios/kernel/internal/kernel/ipc"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

func chanEndpoint(p *proc.Process, h types.Handle) (*ipc.Endpoint, types.Errno) {
	r, errno := p.Handles().Get(h)
	if errno != types.OK {
		return nil, errno
	}
	ep, ok := r.(*ipc.Endpoint)
	if !ok {
		return nil, types.ErrBadHandle
	}
	return ep, types.OK
}

func mailboxOf(p *proc.Process, h types.Handle) (*ipc.Mailbox, types.Errno) {
	r, errno := p.Handles().Get(h)
	if errno != types.OK {
		return nil, errno
	}
	mb, ok := r.(*ipc.Mailbox)
	if !ok {
		return nil, types.ErrBadHandle
	}
	return mb, types.OK
}

func (d *Dispatcher) buildChannelCreate(p *proc.Process, req Request) (future.Computation, error) {
	dst, err := argOut(req.Args[0], pairEncodedLen)
	if err != nil {
		return nil, err
	}

	a, b := ipc.NewPair(d.sched.Wake)
	ha, errno := p.Handles().Insert(a)
	if errno != types.OK {
		a.Close()
		b.Close()
		return failNow(errno), nil
	}
	hb, errno := p.Handles().Insert(b)
	if errno != types.OK {
		p.Handles().Remove(ha)
		a.Close()
		b.Close()
		return failNow(errno), nil
	}

	enc := encodePair(uint32(ha), uint32(hb))
	return future.Fn(func() future.Outcome {
		return future.DoneWith(0, future.OutCopy{Dst: dst, Data: enc})
	}), nil
}

func (d *Dispatcher) buildChannelSend(p *proc.Process, access *usermem.Access, req Request) (future.Computation, error) {
	src, err := argSlice(req.Args[1], req.Args[2])
	if err != nil {
		return nil, err
	}
	msg, err := access.CopyIn(src)
	if err != nil {
		return nil, err
	}

	ep, errno := chanEndpoint(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	nonblock := req.Flags&FlagNonBlock != 0
	pid := p.ID()
	return future.Fn(func() future.Outcome {
		e := ep.TrySend(msg)
		if e == types.OK {
			if d.metrics != nil {
				d.metrics.RecordMessage()
			}
			return future.Done(0)
		}
		if e != types.ErrWouldBlock || nonblock {
			return future.Fail(e)
		}

		ep.SendWaker().Register(pid)
		// Recheck after registering so a wake between the failed attempt and
		// the registration is not lost.
		switch e := ep.TrySend(msg); e {
		case types.OK:
			if d.metrics != nil {
				d.metrics.RecordMessage()
			}
			return future.Done(0)
		case types.ErrWouldBlock:
			return future.Pending()
		default:
			return future.Fail(e)
		}
	}), nil
}

func (d *Dispatcher) buildChannelRecv(p *proc.Process, req Request) (future.Computation, error) {
	dst, err := argSlice(req.Args[1], req.Args[2])
	if err != nil {
		return nil, err
	}
	if !dst.Valid() {
		return nil, &usermem.FaultError{Slice: dst, Op: "write"}
	}

	ep, errno := chanEndpoint(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}

	nonblock := req.Flags&FlagNonBlock != 0
	pid := p.ID()
	limit := int(dst.Len)
	return future.Fn(func() future.Outcome {
		msg, e := ep.TryRecvLimit(limit)
		if e == types.OK {
			return future.DoneWith(int64(len(msg)), future.OutCopy{Dst: dst, Data: msg})
		}
		if e != types.ErrWouldBlock || nonblock {
			return future.Fail(e)
		}

		ep.RecvWaker().Register(pid)
		msg, e = ep.TryRecvLimit(limit)
		switch e {
		case types.OK:
			return future.DoneWith(int64(len(msg)), future.OutCopy{Dst: dst, Data: msg})
		case types.ErrWouldBlock:
			return future.Pending()
		default:
			return future.Fail(e)
		}
	}), nil
}

func (d *Dispatcher) buildMailboxCreate(p *proc.Process) (future.Computation, error) {
	mb := ipc.NewMailbox(d.sched.Wake)
	h, errno := p.Handles().Insert(mb)
	if errno != types.OK {
		return failNow(errno), nil
	}
	return future.Fn(func() future.Outcome { return future.Done(int64(h)) }), nil
}

func (d *Dispatcher) buildMailboxAttach(p *proc.Process, req Request) (future.Computation, error) {
	mb, errno := mailboxOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}
	th := types.Handle(req.Args[1])
	target, errno := p.Handles().Get(th)
	if errno != types.OK {
		return failNow(errno), nil
	}

	mask := types.Events(req.Args[2])
	if mask == 0 {
		return failNow(types.ErrInvalidArg), nil
	}

	// Interest is recorded before the resource attaches so its initial
	// level-triggered report survives the mailbox mask.
	mb.SetInterest(th, mask)
	target.Attach(mb, th, mask)
	return future.Fn(func() future.Outcome { return future.Done(0) }), nil
}

func (d *Dispatcher) buildMailboxDetach(p *proc.Process, req Request) (future.Computation, error) {
	mb, errno := mailboxOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}
	th := types.Handle(req.Args[1])
	target, errno := p.Handles().Get(th)
	if errno != types.OK {
		return failNow(errno), nil
	}

	target.Detach(mb)
	mb.RemoveInterest(th)
	return future.Fn(func() future.Outcome { return future.Done(0) }), nil
}

func (d *Dispatcher) buildMailboxWait(p *proc.Process, req Request, blocking bool) (future.Computation, error) {
	dst, err := argOut(req.Args[1], pairEncodedLen)
	if err != nil {
		return nil, err
	}

	mb, errno := mailboxOf(p, types.Handle(req.Args[0]))
	if errno != types.OK {
		return failNow(errno), nil
	}
	if blocking && req.Flags&FlagNonBlock != 0 {
		blocking = false
	}

	pid := p.ID()
	deliver := func(e ipc.Entry) future.Outcome {
		enc := encodePair(uint32(e.Handle), uint32(e.Events))
		return future.DoneWith(1, future.OutCopy{Dst: dst, Data: enc})
	}

	return future.Fn(func() future.Outcome {
		if e, errno := mb.TryWait(); errno == types.OK {
			return deliver(e)
		}
		if !blocking {
			// poll reports emptiness as a zero result, not an error
			if req.Op == OpMailboxPoll {
				return future.Done(0)
			}
			return future.Fail(types.ErrWouldBlock)
		}

		mb.Waker().Register(pid)
		if e, errno := mb.TryWait(); errno == types.OK {
			return deliver(e)
		}
		return future.Pending()
	}), nil
}
