package pipeline

import (
	"fmt"
	"os"
)

// pipeFunc allocates one unidirectional pipe, read end first. The
// controller uses os.Pipe unless a test injects a failing allocator.
type pipeFunc func() (r, w *os.File, err error)

// connectStages allocates one pipe per adjacent stage pair and assigns
// the endpoints so that stage i's output is the write end of the pipe
// whose read end is stage i+1's input, in pipeline order. The first
// stage's input and the last stage's output stay unset; a single stage
// needs no pipes at all.
//
// When an allocation fails, endpoints created earlier stay open in their
// slots; the controller's abort cleanup releases them.
func connectStages(stages []*stage, newPipe pipeFunc) error {
	for i := 1; i < len(stages); i++ {
		r, w, err := newPipe()
		if err != nil {
			return fmt.Errorf("%w between stage %d and stage %d: %w", ErrPipeCreation, i-1, i, err)
		}
		if err := stages[i-1].out.open(w); err != nil {
			return err
		}
		if err := stages[i].in.open(r); err != nil {
			return err
		}
	}
	return nil
}
