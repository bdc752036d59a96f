package future

import (
	"github.com/heliosproject/helios/kernel/internal/kernel/usermem"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// OutCopy is a deferred copy-out: bytes the computation produced and the
// plain destination descriptor they belong to. The dispatcher performs the
// copy under a freshly reconstructed usermem.Access.
type OutCopy struct {
	Dst  usermem.Slice
	Data []byte
}

// Outcome is the result of polling a computation once.
type Outcome struct {
	// Ready reports completion. A computation that returned Ready must not
	// be polled again.
	Ready bool
	// Result is the numeric syscall result, valid only when Ready.
	Result int64
	// Out holds deferred copy-outs, valid only when Ready.
	Out []OutCopy
}

// Pending reports that the computation suspended. The computation must have
// re-registered its interest with a waker before returning this; a single
// registration is consumed by one wake.
func Pending() Outcome { return Outcome{} }

// Done completes with a numeric result.
func Done(result int64) Outcome { return Outcome{Ready: true, Result: result} }

// Fail completes with an error code.
func Fail(e types.Errno) Outcome { return Outcome{Ready: true, Result: int64(e)} }

// DoneWith completes with a result and deferred copy-outs.
func DoneWith(result int64, out ...OutCopy) Outcome {
	return Outcome{Ready: true, Result: result, Out: out}
}

// Computation is a suspended unit of syscall work.
type Computation interface {
	Poll() Outcome
}

// Fn adapts a closure to Computation.
type Fn func() Outcome

// Poll implements Computation.
func (f Fn) Poll() Outcome { return f() }
