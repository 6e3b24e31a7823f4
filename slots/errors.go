package slots

import "fmt"

// RangeError reports a slot range walk aborted by a failing slot.
type RangeError struct {
	InitialSlot uint64
	FinalSlot   uint64
	FailedSlot  uint64
	Err         error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("error processing slots range %d-%d, slot %d failed: %v",
		e.InitialSlot, e.FinalSlot, e.FailedSlot, e.Err)
}

func (e *RangeError) Unwrap() error {
	return e.Err
}
