package vm

import (
	"time"

	verrs "vela/internal/errors"
)

// FiberStatus is the numeric status code exposed to caller code
type FiberStatus int64

const (
	FiberNeverRun   FiberStatus = 0
	FiberAborted    FiberStatus = 1
	FiberTerminated FiberStatus = 2
	FiberRunning    FiberStatus = 3
	FiberTrying     FiberStatus = 4
)

// internal stored status; terminal states are derived in Status()
const (
	fiberNever   = FiberNeverRun
	fiberRunning = FiberRunning
	fiberTrying  = FiberTrying
)

// frame is one bytecode activation record. slotBase indexes the fiber value
// stack where the receiver slot (local 0) lives.
type frame struct {
	closure  *Closure
	ip       int
	slotBase int
}

// Fiber is a cooperative unit of control: its own frame stack, a caller
// reference (who resumed it; nil when suspended or never run), a trying flag
// distinguishing run from try, and cooperative-delay bookkeeping.
type Fiber struct {
	closure *Closure
	caller  *Fiber
	trying  bool
	status  FiberStatus
	started bool

	frames []frame
	stack  []Value

	err *verrs.RuntimeError

	lastTime time.Time
	timeWait float64 // seconds; minimum delay before the next resume takes
	elapsed  float64 // seconds between the last two resumes
}

func newFiber(cl *Closure) *Fiber {
	return &Fiber{
		closure:  cl,
		status:   fiberNever,
		lastTime: time.Now(),
	}
}

// NewFiber creates a fiber in the never-run state with zero elapsed time
func (rt *Runtime) NewFiber(cl *Closure) *Fiber { return newFiber(cl) }

func (f *Fiber) objclass(rt *Runtime) *Class { return rt.clsFiber }

// Status reports the numeric status code {0 never-run, 1 aborted,
// 2 terminated, 3 running, 4 trying}
func (f *Fiber) Status() FiberStatus {
	if f.err != nil {
		return FiberAborted
	}
	if f.started && len(f.frames) == 0 {
		return FiberTerminated
	}
	return f.status
}

// IsDone is true for either terminal state
func (f *Fiber) IsDone() bool {
	s := f.Status()
	return s == FiberAborted || s == FiberTerminated
}

// Caller returns the fiber that most recently resumed this one, nil if none
func (f *Fiber) Caller() *Fiber { return f.caller }

// Error returns the error that aborted the fiber, if any
func (f *Fiber) Error() *verrs.RuntimeError { return f.err }

// ElapsedTime returns the seconds measured between the last two resumes
func (f *Fiber) ElapsedTime() float64 { return f.elapsed }

// push/pop operate on the fiber's own value stack
func (f *Fiber) push(v Value) { f.stack = append(f.stack, v) }

func (f *Fiber) pop() Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *Fiber) peek() Value { return f.stack[len(f.stack)-1] }

// resume transfers control into f. Returns the Result the resumer's dispatch
// site should observe.
func (rt *Runtime) resumeFiber(f *Fiber, trying bool) Result {
	if rt.loopDepth > 1 {
		return Failf(verrs.FiberError, "unable to transfer fibers inside a nested native callback")
	}
	if f.caller != nil {
		return Failf(verrs.FiberError, "fiber has already been called")
	}
	if f.closure == nil {
		return Failf(verrs.FiberError, "unable to resume a fiber with no closure")
	}
	if f.IsDone() {
		return Failf(verrs.FiberError, "unable to resume a %s fiber", f.Status().Name())
	}
	// always update elapsed time
	now := time.Now()
	f.elapsed = now.Sub(f.lastTime).Seconds()
	// a cooperative delay that has not elapsed makes the resume a no-op: the
	// caller keeps control and simply gets no value
	if f.timeWait > 0 && f.elapsed < f.timeWait {
		return NoValue()
	}
	f.caller = rt.fiber
	f.trying = trying
	if trying {
		f.status = fiberTrying
	} else {
		f.status = fiberRunning
	}
	rt.fiber = f
	return FiberSwitched()
}

// yieldFiber returns control to the caller. With no caller it is a no-op.
func (rt *Runtime) yieldFiber(waitTime float64) Result {
	if rt.loopDepth > 1 {
		return Failf(verrs.FiberError, "unable to yield inside a nested native callback")
	}
	f := rt.fiber
	f.timeWait = waitTime
	f.lastTime = time.Now()
	if f.caller == nil {
		return NoValue()
	}
	caller := f.caller
	f.caller = nil
	f.trying = false
	f.status = fiberRunning
	rt.fiber = caller
	return FiberSwitched()
}

// Yielded reports whether the fiber is suspended mid-run awaiting a resume
func (f *Fiber) Yielded() bool {
	return f.caller == nil && f.started && len(f.frames) > 0 && f.err == nil
}

// Name returns the human-readable status name
func (s FiberStatus) Name() string {
	switch s {
	case FiberNeverRun:
		return "never run"
	case FiberAborted:
		return "aborted"
	case FiberTerminated:
		return "terminated"
	case FiberRunning:
		return "running"
	case FiberTrying:
		return "trying"
	}
	return "unknown"
}
