package cml

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrIVarFull is returned by IVar.Put when the cell already holds a value.
	ErrIVarFull = errors.New("cml: ivar already full")

	// ErrCVarSet is returned by CVar.Set when the variable was already set.
	ErrCVarSet = errors.New("cml: cvar already set")

	// ErrTimerServiceClosed is returned by TimerService.Schedule and
	// TimerService.ScheduleAt after the service has been closed.
	ErrTimerServiceClosed = errors.New("cml: timer service closed")
)

// BarrierFault is the panic value delivered to every party parked on a
// [Barrier] whose update function panicked. The triggering party panics with
// the same fault. Once faulted, a barrier delivers the identical fault to
// all subsequent waits.
type BarrierFault struct {
	// Recovered is the value recovered from the update function's panic.
	Recovered any
}

func (x *BarrierFault) Error() string {
	return fmt.Sprintf(`cml: barrier update panicked: %v`, x.Recovered)
}
