package syscall

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/monitoring"
	"github.com/heliosproject/helios/kernel/internal/kernel/future"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/kernel/sched"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Result reports what a dispatch did with the calling process.
type Result struct {
	// Value is the syscall return, valid when the call completed.
	Value int64
	// Suspended: the computation parked and the process blocked.
	Suspended bool
	// Killed: the process was terminated on a fault.
	Killed bool
	// Resched: control must return to the scheduler instead of the process.
	Resched bool
}

// Spawned describes a child admitted on behalf of a spawning parent.
type Spawned struct {
	PID types.PID
	// Child is the process handle installed in the parent's table.
	Child types.Handle
	// Channel is the parent's endpoint of the startup channel; the child
	// holds the peer at its reserved parent-channel id.
	Channel types.Handle
}

// Spawner turns a loaded image into an admitted process. Implemented by the
// kernel facade, which owns handle seeding and scheduler admission.
type Spawner interface {
	Adopt(parent *proc.Process, img provider.Image) (Spawned, types.Errno)
}

// Stats summarizes dispatch activity for the monitor API.
type Stats struct {
	Total     uint64            `json:"total"`
	Suspended uint64            `json:"suspended"`
	Faults    uint64            `json:"faults"`
	ByOp      map[string]uint64 `json:"by_op"`
}

// Dispatcher routes syscall requests to their handlers and owns the polling
// protocol.
type Dispatcher struct {
	sched   *sched.Scheduler
	files   provider.FileService
	factory provider.ProcessFactory
	spawner Spawner
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	stats Stats
}

// Options carries the dispatcher's collaborators. Files and Factory may be
// nil, failing the corresponding syscalls with ErrNoEntry.
type Options struct {
	Files   provider.FileService
	Factory provider.ProcessFactory
	Spawner Spawner
	Metrics *monitoring.Metrics
}

// New creates a dispatcher bound to a scheduler.
func New(s *sched.Scheduler, log *logging.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		sched:   s,
		files:   opts.Files,
		factory: opts.Factory,
		spawner: opts.Spawner,
		log:     log,
		metrics: opts.Metrics,
		stats:   Stats{ByOp: make(map[string]uint64)},
	}
}

// parked wraps a suspended computation with its op label so the resume path
// can attribute metrics.
type parked struct {
	op   Op
	comp future.Computation
}

func (c *parked) Poll() future.Outcome { return c.comp.Poll() }

// Entry dispatches a syscall from the running process. It must be called on
// the process's own scheduling turn.
func (d *Dispatcher) Entry(p *proc.Process, req Request) Result {
	start := time.Now()
	d.count(req.Op)

	// The two diverging ops never build a computation.
	switch req.Op {
	case OpYield:
		d.sched.Yield(p)
		return Result{Resched: true}
	case OpExit:
		d.terminate(p, int64(req.Args[0]))
		return Result{Resched: true}
	}

	if p.AddressSpace() == nil {
		return Result{Value: int64(types.ErrBadOp)}
	}

	access := usermem.Open(p.AddressSpace())
	comp, err := d.build(p, access, req)
	access.Close()
	if err != nil {
		return d.fault(p, req.Op, err)
	}

	r := d.poll(p, &parked{op: req.Op, comp: comp})
	d.observe(req.Op, r, time.Since(start))
	return r
}

// Resume re-polls the parked syscall of a process the scheduler just
// selected. A process woken with nothing parked resumes execution directly;
// the result it last saw is unchanged.
func (d *Dispatcher) Resume(p *proc.Process) Result {
	comp := p.TakePending()
	if comp == nil {
		return Result{Value: p.SyscallResult()}
	}

	call, ok := comp.(*parked)
	if !ok {
		call = &parked{op: OpYield, comp: comp}
	}

	start := time.Now()
	r := d.poll(p, call)
	if !r.Suspended && !r.Killed {
		p.SetSyscallResult(r.Value)
	}
	d.observe(call.op, r, time.Since(start))
	return r
}

// poll runs the computation once and routes the three outcomes: completion,
// suspension, or a copy-out fault.
func (d *Dispatcher) poll(p *proc.Process, call *parked) Result {
	out := call.Poll()
	if !out.Ready {
		p.SetPending(call)
		d.sched.Block(p)
		return Result{Suspended: true, Resched: true}
	}

	if len(out.Out) > 0 {
		access := usermem.Open(p.AddressSpace())
		for _, c := range out.Out {
			if err := access.CopyOut(c.Dst, c.Data); err != nil {
				access.Close()
				return d.fault(p, call.op, err)
			}
		}
		access.Close()
	}
	return Result{Value: out.Result}
}

// build constructs the computation for one request while the access proof is
// open. The returned error is always a fault; expected failures come back as
// already-failed computations.
func (d *Dispatcher) build(p *proc.Process, access *usermem.Access, req Request) (future.Computation, error) {
	switch req.Op {
	case OpGetPID:
		pid := p.ID()
		return future.Fn(func() future.Outcome { return future.Done(int64(pid)) }), nil
	case OpClose:
		return d.buildClose(p, req)
	case OpChannelCreate:
		return d.buildChannelCreate(p, req)
	case OpChannelSend:
		return d.buildChannelSend(p, access, req)
	case OpChannelRecv:
		return d.buildChannelRecv(p, req)
	case OpMailboxCreate:
		return d.buildMailboxCreate(p)
	case OpMailboxAttach:
		return d.buildMailboxAttach(p, req)
	case OpMailboxDetach:
		return d.buildMailboxDetach(p, req)
	case OpMailboxWait:
		return d.buildMailboxWait(p, req, true)
	case OpMailboxPoll:
		return d.buildMailboxWait(p, req, false)
	case OpProcWait:
		return d.buildProcWait(p, req)
	case OpProcSignal:
		return d.buildProcSignal(p, req)
	case OpSpawn:
		return d.buildSpawn(p, access, req)
	case OpFileOpen:
		return d.buildFileOpen(p, access, req)
	case OpFileRead:
		return d.buildFileRead(p, req)
	case OpFileWrite:
		return d.buildFileWrite(p, access, req)
	case OpFileSeek:
		return d.buildFileSeek(p, req)
	case OpFileStat:
		return d.buildFileStat(p, req)
	case OpFileList:
		return d.buildFileList(p, access, req)
	default:
		return failNow(types.ErrBadOp), nil
	}
}

// fault terminates the process on a user memory violation. The syscall has no
// return value; the fault code becomes the exit status.
func (d *Dispatcher) fault(p *proc.Process, op Op, err error) Result {
	d.log.Warn("User memory fault",
		zap.Uint32("pid", uint32(p.ID())),
		zap.String("op", op.String()),
		zap.Error(err),
	)
	if d.metrics != nil {
		d.metrics.RecordFault()
	}
	d.mu.Lock()
	d.stats.Faults++
	d.mu.Unlock()

	d.terminate(p, int64(types.ErrFault))
	return Result{Killed: true, Resched: true}
}

func (d *Dispatcher) terminate(p *proc.Process, status int64) {
	p.Exit(status)
	d.sched.Exit(p)
	d.log.Info("Process exited",
		zap.Uint32("pid", uint32(p.ID())),
		zap.String("name", p.Name()),
		zap.Int64("status", status),
	)
}

// wakeOf builds the wake callback handed to collaborator ops. One callback is
// consumed per notification, so callers pass a fresh one on every poll.
func (d *Dispatcher) wakeOf(pid types.PID) func() {
	return func() { d.sched.Wake(pid) }
}

func (d *Dispatcher) count(op Op) {
	d.mu.Lock()
	d.stats.Total++
	d.stats.ByOp[op.String()]++
	d.mu.Unlock()
}

func (d *Dispatcher) observe(op Op, r Result, elapsed time.Duration) {
	if r.Suspended {
		d.mu.Lock()
		d.stats.Suspended++
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.RecordSuspend(op.String())
		}
		return
	}
	if r.Killed {
		return
	}

	result := "ok"
	if r.Value < 0 {
		result = types.Errno(r.Value).String()
	}
	if d.metrics != nil {
		d.metrics.RecordSyscall(op.String(), result, elapsed)
	}
	d.log.Debug("Syscall",
		zap.String("op", op.String()),
		zap.Int64("result", r.Value),
	)
}

// Stats snapshots dispatch counters for the monitor API.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	byOp := make(map[string]uint64, len(d.stats.ByOp))
	for k, v := range d.stats.ByOp {
		byOp[k] = v
	}
	s := d.stats
	s.ByOp = byOp
	return s
}

// failNow wraps an expected failure as an already-complete computation so
// every non-diverging call flows through the one polling path.
func failNow(e types.Errno) future.Computation {
	return future.Fn(func() future.Outcome { return future.Fail(e) })
}
