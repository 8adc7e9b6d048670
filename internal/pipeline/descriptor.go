package pipeline

import (
	"fmt"
	"os"
)

// descriptorState tracks the lifecycle of one pipe endpoint slot.
type descriptorState int

const (
	// descriptorUnset marks a slot that holds no pipe endpoint; the
	// stage inherits the controller's own stream on that side.
	descriptorUnset descriptorState = iota

	// descriptorOpen marks a slot holding a live pipe endpoint owned by
	// this process.
	descriptorOpen

	// descriptorClosed marks a slot whose endpoint was handed to a child
	// and closed in this process.
	descriptorClosed
)

// String returns the state name for diagnostics.
func (s descriptorState) String() string {
	switch s {
	case descriptorUnset:
		return "unset"
	case descriptorOpen:
		return "open"
	case descriptorClosed:
		return "closed"
	default:
		return fmt.Sprintf("descriptorState(%d)", int(s))
	}
}

// descriptor is one stdin or stdout slot of a stage. A slot moves from
// unset to open at most once and from open to closed exactly once. The
// file handle stays reachable after close so a caller can observe the
// closed state.
type descriptor struct {
	state descriptorState
	file  *os.File
}

// open places a pipe endpoint into an unset slot.
func (d *descriptor) open(f *os.File) error {
	if d.state != descriptorUnset {
		return fmt.Errorf("%w: open on %s slot", ErrDescriptorState, d.state)
	}
	d.state = descriptorOpen
	d.file = f
	return nil
}

// close releases this process's copy of the endpoint. Closing an unset
// slot is a no-op; closing a slot twice is an error.
func (d *descriptor) close() error {
	switch d.state {
	case descriptorUnset:
		return nil
	case descriptorClosed:
		return fmt.Errorf("%w: close on closed slot", ErrDescriptorState)
	}
	d.state = descriptorClosed
	return d.file.Close()
}

// isOpen reports whether the slot holds a live endpoint.
func (d *descriptor) isOpen() bool {
	return d.state == descriptorOpen
}
