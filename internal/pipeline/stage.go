package pipeline

import (
	"os/exec"
	"strings"
)

// stage is one pipeline element: an argument list, the process started
// for it, and its two pipe endpoint slots.
type stage struct {
	// args holds the command line; args[0] is the executable. The parser
	// never produces an empty args.
	args []string

	// in and out are the stage's pipe endpoint slots. Both stay unset on
	// the outermost sides of the pipeline, which inherit the
	// controller's stdin and stdout.
	in  descriptor
	out descriptor

	// pid is the child's process id, zero until the stage starts.
	pid int

	// cmd is the running process, nil until the stage starts.
	cmd *exec.Cmd

	// launchErr and launchCode record an executable that could not be
	// started (not found, not runnable). The run continues and the wait
	// phase reports launchCode for this stage.
	launchErr  error
	launchCode int
}

// name returns the executable name.
func (s *stage) name() string {
	return s.args[0]
}

// commandLine returns the stage's full command line for display.
func (s *stage) commandLine() string {
	return strings.Join(s.args, " ")
}

// releaseEndpoints closes this process's copies of the stage's pipe
// endpoints, once the child owns them or the stage will never start.
func (s *stage) releaseEndpoints() error {
	if err := s.in.close(); err != nil {
		return err
	}
	return s.out.close()
}
