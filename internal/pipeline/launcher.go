package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"syscall"
)

// launch starts the stage at index without waiting for it. The child's
// stdin is the stage's open input endpoint, or the controller's stdin
// for the first stage; stdout likewise. Pipe endpoints carry
// close-on-exec, so a child never inherits an endpoint it was not given
// and can never keep a downstream reader from observing end-of-stream.
// After a successful start the parent's endpoint copies are closed; the
// child owns them now.
//
// A missing or unrunnable executable fails only this stage: the wait
// phase reports exit code 127 or 126 for it, and the stage's endpoints
// are still closed here so the rest of the pipeline keeps flowing. Any
// other start failure is fatal to the run.
func (c *Controller) launch(index int) error {
	s := c.stages[index]

	cmd := exec.Command(s.name(), s.args[1:]...)
	cmd.Stdin = c.stdin
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	if s.in.isOpen() {
		cmd.Stdin = s.in.file
	}
	if s.out.isOpen() {
		cmd.Stdout = s.out.file
	}

	if err := cmd.Start(); err != nil {
		if releaseErr := s.releaseEndpoints(); releaseErr != nil {
			return releaseErr
		}
		code, imageFailure := launchFailureCode(err)
		if !imageFailure {
			return fmt.Errorf("%w: stage %d %s: %w", ErrProcessCreation, index, s.name(), err)
		}
		s.launchErr = err
		s.launchCode = code
		c.logger.Debug("stage failed to start",
			"index", index,
			"command", s.commandLine(),
			"exit_code", code,
			"error", err,
		)
		return nil
	}

	s.pid = cmd.Process.Pid
	s.cmd = cmd
	c.logger.Debug("stage started",
		"index", index,
		"command", s.commandLine(),
		"pid", s.pid,
	)

	// The child inherited its redirected endpoints; drop the parent's copies.
	return s.releaseEndpoints()
}

// launchFailureCode maps a start failure caused by the executable image
// itself to the shell convention: 127 when the program cannot be found,
// 126 when it exists but cannot be run. Other start failures are not
// image failures and report false.
func launchFailureCode(err error) (int, bool) {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return 127, true
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.ENOEXEC):
		return 126, true
	default:
		return 0, false
	}
}
