package remote

import "fmt"

// ConnectionError reports that the SSH channel to a machine could not be
// established: the master connection failed, the transport was refused,
// or the call timed out before the remote end answered. Callers treat it
// as a reachability signal, not a fatal error.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ssh connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError reports a remote command that ran but returned a nonzero
// status while exit-code checking was requested.
type CommandError struct {
	Command string
	Status  int
	Output  string
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("remote command failed with status %d: %s", e.Status, e.Command)
	}
	return fmt.Sprintf("remote command failed with status %d: %s: %s", e.Status, e.Command, e.Output)
}
