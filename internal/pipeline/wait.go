package pipeline

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nao1215/runpipe/internal/model"
)

// waitOn blocks until the stage at index terminates and translates its
// termination into a StageResult. Normal exits report their code in
// [0,255]; a signal death reports 128 plus the signal number along with
// the signal name; a stage that never started, or whose wait failed,
// reports the out-of-band code model.WaitErrorExitCode. None of these
// abort the wait loop.
func (c *Controller) waitOn(index int) model.StageResult {
	s := c.stages[index]
	result := model.StageResult{
		Index:   index,
		Command: s.commandLine(),
		PID:     s.pid,
	}

	if s.launchErr != nil {
		result.ExitCode = s.launchCode
		result.LaunchError = s.launchErr.Error()
		return result
	}
	if s.cmd == nil {
		result.ExitCode = model.WaitErrorExitCode
		result.WaitError = "stage was never started"
		return result
	}

	err := s.cmd.Wait()
	if err == nil {
		return result
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		result.ExitCode = model.WaitErrorExitCode
		result.WaitError = err.Error()
		return result
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		switch {
		case ws.Signaled():
			sig := ws.Signal()
			result.ExitCode = 128 + int(sig)
			result.Signal = unix.SignalName(sig)
			return result
		case ws.Exited():
			result.ExitCode = ws.ExitStatus()
			return result
		}
	}
	result.ExitCode = exitErr.ExitCode()
	return result
}
