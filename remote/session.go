// Package remote is the session channel: all remote command execution and
// file transfer for one machine flows through a single Session, so that
// connection reuse and flag computation happen exactly once.
//
// The channel shells out to the system ssh/scp binaries. A lazily started
// ControlMaster connection is shared by every call for the lifetime of
// the process; Reset tears it down, which is required after a reboot
// since the remote identity effectively changes.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sshConnectionStatus is the exit status the ssh client reserves for its
// own failures, as opposed to the remote command's.
const sshConnectionStatus = 255

// Options control one remote command invocation.
type Options struct {
	// Capture returns the command's stdout instead of passing it through.
	Capture bool

	// Timeout bounds the whole invocation. Zero means no timeout.
	Timeout time.Duration

	// NoCheck treats a nonzero remote status as a result rather than an
	// error; the status is returned to the caller.
	NoCheck bool
}

// Session is a reusable authenticated command/transfer channel to one
// machine. It is owned by exactly one machine instance and is not safe
// for concurrent use.
type Session struct {
	// Target is the SSH destination, e.g. "root@203.0.113.10".
	Target string

	// Port is the transport port; zero falls back to the ssh default.
	Port int

	// KeyPath, when set, is passed as the identity file.
	KeyPath string

	compress    bool
	controlPath string
}

// Flags returns the CLI arguments derived from the session settings.
// scp selects the transfer tool's port flag spelling.
func (s *Session) Flags(scp bool) []string {
	args := []string{"-o", "BatchMode=yes", "-o", "StrictHostKeyChecking=accept-new"}
	if s.Port > 0 {
		if scp {
			args = append(args, "-P", strconv.Itoa(s.Port))
		} else {
			args = append(args, "-p", strconv.Itoa(s.Port))
		}
	}
	if strings.TrimSpace(s.KeyPath) != "" {
		args = append(args, "-i", s.KeyPath)
	}
	if s.compress {
		args = append(args, "-C")
	}
	return args
}

// EnableCompression turns on transport compression for all subsequent
// Run and transfer calls. Used when the machine has a slow connection.
func (s *Session) EnableCompression() { s.compress = true }

// Host returns the bare host part of the target, without the user.
func (s *Session) Host() string {
	if i := strings.LastIndex(s.Target, "@"); i >= 0 {
		return s.Target[i+1:]
	}
	return s.Target
}

// scpAddr returns the target with the host bracketed when it is an IPv6
// literal, which scp requires.
func (s *Session) scpAddr() string {
	user := ""
	host := s.Target
	if i := strings.LastIndex(s.Target, "@"); i >= 0 {
		user, host = s.Target[:i+1], s.Target[i+1:]
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return user + host
}

// masterOpts returns the control-socket arguments, starting the master
// connection on first use.
func (s *Session) masterOpts(ctx context.Context) ([]string, error) {
	if s.controlPath != "" {
		return []string{"-S", s.controlPath}, nil
	}

	dir, err := os.MkdirTemp("", "machinist-ssh-")
	if err != nil {
		return nil, fmt.Errorf("create control socket directory: %w", err)
	}
	path := filepath.Join(dir, "master")

	args := append(s.Flags(false), "-x", "-S", path, "-M", "-N", "-f", s.Target)
	cmd := exec.CommandContext(ctx, "ssh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.RemoveAll(dir)
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &ConnectionError{Target: s.Target, Err: err}
	}

	s.controlPath = path
	return []string{"-S", s.controlPath}, nil
}

// Reset tears down the cached master connection. The next call starts a
// fresh one. Must be called after a reboot.
func (s *Session) Reset() {
	if s.controlPath == "" {
		return
	}
	cmd := exec.Command("ssh", "-S", s.controlPath, "-O", "exit", s.Target)
	cmd.Stdout = nil
	cmd.Stderr = nil
	_ = cmd.Run()
	_ = os.RemoveAll(filepath.Dir(s.controlPath))
	s.controlPath = ""
}

// Run executes a command on the machine. With opts.Capture the remote
// stdout is returned, trimmed. The returned status is the remote exit
// status; it is only meaningful when opts.NoCheck is set.
func (s *Session) Run(ctx context.Context, command string, opts Options) (string, int, error) {
	// The timeout must cover the master connection too: on first use it
	// performs the TCP connect, and against an unresponsive host that is
	// where the time goes.
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	master, err := s.masterOpts(ctx)
	if err != nil {
		return "", 0, err
	}

	args := append(s.Flags(false), master...)
	args = append(args, "-x", s.Target, "--", command)
	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stderr = os.Stderr

	var out []byte
	var runErr error
	if opts.Capture {
		out, runErr = cmd.Output()
	} else {
		cmd.Stdout = os.Stdout
		runErr = cmd.Run()
	}

	if runErr == nil {
		return strings.TrimSpace(string(out)), 0, nil
	}

	if ctx.Err() != nil {
		return "", 0, &ConnectionError{Target: s.Target, Err: ctx.Err()}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		status := exitErr.ExitCode()
		if status == sshConnectionStatus {
			return "", status, &ConnectionError{Target: s.Target, Err: runErr}
		}
		if opts.NoCheck {
			return strings.TrimSpace(string(out)), status, nil
		}
		return "", status, &CommandError{
			Command: command,
			Status:  status,
			Output:  strings.TrimSpace(string(out)),
		}
	}

	// ssh itself could not be started or was killed.
	return "", 0, &ConnectionError{Target: s.Target, Err: runErr}
}
