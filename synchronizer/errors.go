package synchronizer

import (
	"fmt"
	"strings"
)

// ChunkError aggregates the worker failures of one slots chunk. A chunk is
// atomic for checkpoint purposes: any failure here means the chunk's
// checkpoint was not written.
type ChunkError struct {
	InitialSlot uint64
	FinalSlot   uint64
	Errs        []error
}

func (e *ChunkError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("failed to process slots chunk %d-%d: %s",
		e.InitialSlot, e.FinalSlot, strings.Join(msgs, "; "))
}
