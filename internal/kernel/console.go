package kernel

import (
	"io"
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/ipc"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// console is the kernel task draining the kernel-held peers of every
// process's stdout and stderr channels into one writer. It also holds the
// stdin peers so input can be injected from outside the simulation.
type console struct {
	pid types.PID
	out io.Writer

	mu   sync.Mutex
	taps []*tap
	in   map[types.PID]*ipc.Endpoint
}

type tap struct {
	pid types.PID
	ep  *ipc.Endpoint
}

func newConsole(pid types.PID, out io.Writer) *console {
	return &console{pid: pid, out: out, in: make(map[types.PID]*ipc.Endpoint)}
}

// adopt takes ownership of the kernel-side stdio peers of a new process.
func (c *console) adopt(pid types.PID, stdin, stdout, stderr *ipc.Endpoint) {
	c.mu.Lock()
	c.in[pid] = stdin
	c.taps = append(c.taps, &tap{pid: pid, ep: stdout}, &tap{pid: pid, ep: stderr})
	c.mu.Unlock()
}

// feed injects bytes into a process's stdin.
func (c *console) feed(pid types.PID, data []byte) types.Errno {
	c.mu.Lock()
	ep, ok := c.in[pid]
	c.mu.Unlock()

	if !ok {
		return types.ErrBadHandle
	}
	return ep.TrySend(data)
}

// step drains every tap and blocks on their wakers. Peers whose process
// exited are pruned once drained.
func (c *console) step() proc.StepResult {
	c.mu.Lock()
	taps := append([]*tap(nil), c.taps...)
	c.mu.Unlock()

	var gone []*tap
	for _, t := range taps {
		for {
			msg, errno := t.ep.TryRecv()
			if errno == types.OK {
				c.out.Write(msg)
				continue
			}
			if errno == types.ErrPeerClosed {
				gone = append(gone, t)
			}
			break
		}
		t.ep.RecvWaker().Register(c.pid)
	}

	if len(gone) > 0 {
		c.mu.Lock()
		kept := c.taps[:0]
		for _, t := range c.taps {
			dead := false
			for _, g := range gone {
				if t == g {
					dead = true
					break
				}
			}
			if dead {
				t.ep.Close()
				if in, ok := c.in[t.pid]; ok {
					in.Close()
					delete(c.in, t.pid)
				}
			} else {
				kept = append(kept, t)
			}
		}
		c.taps = kept
		c.mu.Unlock()
	}
	return proc.StepBlock
}
