package kernel

import (
	"context"

	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/syscall"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Run drives the single execution core until every user process has exited
// or the context is canceled. Exactly one entity runs at a time; kernel tasks
// and user processes share the scheduler.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p := k.sched.Next()
		if p == nil {
			if !k.usersAlive() {
				k.log.Info("All user processes exited")
				return nil
			}
			// Idle: everything is blocked. Wait for a waker.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-k.wakeCh:
			}
			continue
		}

		switch p.EntityKind() {
		case types.EntityKernelTask:
			k.runKernelTask(p)
		default:
			k.runUser(p)
		}

		if k.metrics != nil {
			st := k.sched.Stats()
			k.metrics.SetProcCounts(st.Runnable, st.Blocked, st.Total)
		}
	}
}

func (k *Kernel) usersAlive() bool {
	for _, p := range k.sched.Procs() {
		if p.EntityKind() == types.EntityUser {
			return true
		}
	}
	return false
}

func (k *Kernel) runKernelTask(p *proc.Process) {
	switch p.Step() {
	case proc.StepYield:
		k.sched.Yield(p)
	case proc.StepBlock:
		k.sched.Block(p)
	case proc.StepDone:
		p.Exit(0)
		k.sched.Exit(p)
	}
}

// runUser executes one scheduling turn of a user process: deliver the result
// of the previous suspension if any, then alternate with the program
// goroutine until it blocks, yields, or exits.
func (k *Kernel) runUser(p *proc.Process) {
	u := k.program(p.ID())
	if u == nil {
		// Nothing can execute this process.
		k.dsp.Entry(p, syscall.Request{Op: syscall.OpExit})
		return
	}

	var deliver int64
	if p.HasPending() {
		r := k.dsp.Resume(p)
		if r.Suspended {
			return
		}
		if r.Killed {
			u.kill()
			k.dropProgram(p.ID())
			return
		}
		deliver = r.Value
	} else {
		// Restore path: a preempted snapshot is consumed here, and the last
		// delivered result rides along for a program resuming after yield.
		p.TakeSaved()
		deliver = p.SyscallResult()
	}

	if !u.started {
		u.started = true
		u.start()
	}

	for {
		select {
		case u.turn <- deliver:
		case <-u.done:
			return
		}

		var req syscall.Request
		select {
		case req = <-u.trap:
		case <-u.done:
			return
		}

		r := k.dsp.Entry(p, req)
		if exited, _ := p.Exited(); exited {
			u.kill()
			k.dropProgram(p.ID())
			return
		}
		if r.Suspended {
			return
		}
		if r.Resched {
			// Yield: the turn ends; the next one resumes with a zero result.
			p.SetSyscallResult(0)
			return
		}
		deliver = r.Value
	}
}
