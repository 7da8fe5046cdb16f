package kerrors

import "github.com/dmkernel/domainkernel/internal/klog"

// CrashError is the panic value raised by Crash. The real kernel halts
// the CPU on a fatal invariant violation (spec §7); a library running
// under a test binary cannot halt the process, so Crash logs the status
// at Error level and panics with a CrashError instead. Callers that want
// to observe a crash (e.g. the lock-ordering test in internal/klock)
// recover and inspect this type.
type CrashError struct {
	Message string
	Status  Status
}

func (c *CrashError) Error() string { return c.Message }

// Named panic messages from spec §6's exit-code table.
const (
	MsgIllegalProcessID       = "Illegal process id"
	MsgLockOrderingViolation  = "Lock_ordering_violation"
	MsgIllegalLockErr         = "Illegal_lock_err"
	MsgPEBFPUHung             = "PEB FPU Is Hung Err"
	MsgNoCalendarOnSystem     = "No_calendar_on_system"
)

// Crash implements crash_system(status): display the status, and halt.
// In this simulator "halt" means panic with a CrashError that the
// process-level supervisor (or a test's recover) can observe.
func Crash(message string, status Status) {
	klog.Default().Error("CRASH: "+message, "status", status.String())
	panic(&CrashError{Message: message, Status: status})
}
