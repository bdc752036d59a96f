package kernel

import (
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/monitoring"
	"github.com/heliosproject/helios/kernel/internal/kernel/ipc"
	"github.com/heliosproject/helios/kernel/internal/kernel/proc"
	"github.com/heliosproject/helios/kernel/internal/kernel/provider"
	"github.com/heliosproject/helios/kernel/internal/kernel/sched"
	"github.com/heliosproject/helios/kernel/internal/kernel/syscall"
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/id"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Options carries the kernel's collaborators and tunables.
type Options struct {
	// Files serves file syscalls; nil fails them with no-entry.
	Files provider.FileService
	// Factory loads spawn images; nil fails spawn with no-entry.
	Factory provider.ProcessFactory
	// Metrics is optional.
	Metrics *monitoring.Metrics
	// ConsoleOut receives everything processes write to stdout and stderr.
	// Defaults to os.Stdout.
	ConsoleOut io.Writer
	// Env is served read-only on every process's environment handle.
	Env map[string]string
}

// Kernel is the assembled concurrency core.
type Kernel struct {
	log     *logging.Logger
	metrics *monitoring.Metrics
	sched   *sched.Scheduler
	dsp     *syscall.Dispatcher
	ids     *id.Allocator
	hub     *hub
	console *console
	bootID  string
	env     []byte

	// wakeCh nudges an idle run loop after a wake or admission.
	wakeCh chan struct{}

	mu       sync.Mutex
	programs map[types.PID]*userProgram
	registry map[string]Program
}

// New assembles a kernel. No processes run until Run is called.
func New(log *logging.Logger, opts Options) *Kernel {
	if opts.ConsoleOut == nil {
		opts.ConsoleOut = os.Stdout
	}

	k := &Kernel{
		log:      log,
		metrics:  opts.Metrics,
		sched:    sched.New(),
		ids:      id.NewAllocator(),
		hub:      newHub(),
		bootID:   id.NewBootID(),
		env:      encodeEnv(opts.Env),
		wakeCh:   make(chan struct{}, 1),
		programs: make(map[types.PID]*userProgram),
		registry: make(map[string]Program),
	}
	k.dsp = syscall.New(k.sched, log, syscall.Options{
		Files:   opts.Files,
		Factory: opts.Factory,
		Spawner: k,
		Metrics: opts.Metrics,
	})
	k.sched.SetHook(k.observe)

	consolePID := k.ids.NextPID()
	k.console = newConsole(consolePID, opts.ConsoleOut)
	k.sched.Add(proc.NewKernelTask(consolePID, "console", k.console.step, k.sched.Wake))

	log.Info("Kernel assembled", zap.String("boot_id", k.bootID))
	return k
}

// observe is the scheduler hook: it fans events out to subscribers, counts
// them, and nudges the idle loop. It runs under the scheduler lock and must
// not call back into the scheduler.
func (k *Kernel) observe(e sched.Event) {
	k.hub.publish(e)

	if k.metrics != nil {
		switch e.Type {
		case sched.EventSwitch:
			k.metrics.RecordSwitch()
		case sched.EventWake:
			k.metrics.RecordWake()
		}
	}

	switch e.Type {
	case sched.EventWake, sched.EventAdmit:
		select {
		case k.wakeCh <- struct{}{}:
		default:
		}
	}
}

func encodeEnv(env map[string]string) []byte {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []byte
	for _, k := range keys {
		out = append(out, k...)
		out = append(out, '=')
		out = append(out, env[k]...)
		out = append(out, '\n')
	}
	return out
}

// RegisterProgram binds a program body to an image name. Spawned or started
// images with that name execute the program.
func (k *Kernel) RegisterProgram(name string, body Program) {
	k.mu.Lock()
	k.registry[name] = body
	k.mu.Unlock()
}

func (k *Kernel) program(pid types.PID) *userProgram {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.programs[pid]
}

func (k *Kernel) dropProgram(pid types.PID) {
	k.mu.Lock()
	delete(k.programs, pid)
	k.mu.Unlock()
}

// admit creates a user process around an address space, seeds its reserved
// handles, attaches its registered program, and schedules it. The returned
// endpoint is the kernel-held peer of the reserved parent channel; for
// spawned children it is handed to the parent, for roots the kernel keeps it.
func (k *Kernel) admit(name string, parent types.PID, space usermem.AddressSpace) (*proc.Process, *ipc.Endpoint) {
	pid := k.ids.NextPID()
	p := proc.New(pid, name, parent, space, k.sched.Wake)

	// Stdio: the process side lands at the reserved ids, the kernel side
	// feeds the console task.
	stdinP, stdinK := ipc.NewPair(k.sched.Wake)
	stdoutP, stdoutK := ipc.NewPair(k.sched.Wake)
	stderrP, stderrK := ipc.NewPair(k.sched.Wake)
	p.Handles().InsertReserved(types.HandleStdin, stdinP)
	p.Handles().InsertReserved(types.HandleStdout, stdoutP)
	p.Handles().InsertReserved(types.HandleStderr, stderrP)
	k.console.adopt(pid, stdinK, stdoutK, stderrK)

	p.Handles().InsertReserved(types.HandleSelf, proc.NewRef(p))
	p.Handles().InsertReserved(types.HandleEnvironment, syscall.NewFileResource(newMemFile(k.env)))

	// The default mailbox starts interested in signals on the self handle.
	mb := ipc.NewMailbox(k.sched.Wake)
	mb.SetInterest(types.HandleSelf, types.EventSignal)
	p.Handles().InsertReserved(types.HandleDefaultMbox, mb)

	childEnd, parentEnd := ipc.NewPair(k.sched.Wake)
	p.Handles().InsertReserved(types.HandleParentChannel, childEnd)

	k.mu.Lock()
	if body, ok := k.registry[name]; ok {
		u := newUserProgram(body)
		u.sys = &Syscalls{prog: u, space: space}
		k.programs[pid] = u
	}
	k.mu.Unlock()

	k.sched.Add(p)
	k.log.Info("Process admitted",
		zap.Uint32("pid", uint32(pid)),
		zap.String("name", name),
		zap.Uint32("parent", uint32(parent)),
	)
	return p, parentEnd
}

// Adopt implements syscall.Spawner: it admits a loaded image as a child of
// parent and installs the child's observation handles in the parent's table.
func (k *Kernel) Adopt(parent *proc.Process, img provider.Image) (syscall.Spawned, types.Errno) {
	child, parentEnd := k.admit(img.Name, parent.ID(), img.Space)

	refH, errno := parent.Handles().Insert(proc.NewRef(child))
	if errno != types.OK {
		child.Exit(0)
		k.sched.Exit(child)
		return syscall.Spawned{}, errno
	}
	chanH, errno := parent.Handles().Insert(parentEnd)
	if errno != types.OK {
		parent.Handles().Remove(refH)
		child.Exit(0)
		k.sched.Exit(child)
		return syscall.Spawned{}, errno
	}

	return syscall.Spawned{PID: child.ID(), Child: refH, Channel: chanH}, types.OK
}

// StartRoot admits a root process executing a registered program over a fresh
// flat address space. The kernel keeps the parent end of its startup channel.
func (k *Kernel) StartRoot(name string) (*proc.Process, *ipc.Endpoint) {
	return k.admit(name, 0, usermem.NewFlat(programSpace))
}

// FeedInput injects bytes into a process's stdin.
func (k *Kernel) FeedInput(pid types.PID, data []byte) types.Errno {
	return k.console.feed(pid, data)
}

// Subscribe registers a scheduler event consumer for the monitor stream.
func (k *Kernel) Subscribe() (<-chan sched.Event, func()) {
	return k.hub.subscribe()
}

// BootID returns the per-boot identifier.
func (k *Kernel) BootID() string { return k.bootID }

// Scheduler exposes the scheduler for the monitor API.
func (k *Kernel) Scheduler() *sched.Scheduler { return k.sched }

// Dispatcher exposes the dispatcher for the monitor API.
func (k *Kernel) Dispatcher() *syscall.Dispatcher { return k.dsp }
