package remote

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Upload copies a local file to a path on the machine over the cached
// master connection.
func (s *Session) Upload(ctx context.Context, local, remotePath string, recursive bool) error {
	return s.transfer(ctx, local, s.scpAddr()+":"+remotePath, recursive)
}

// Download copies a file from the machine to a local path.
func (s *Session) Download(ctx context.Context, remotePath, local string, recursive bool) error {
	return s.transfer(ctx, s.scpAddr()+":"+remotePath, local, recursive)
}

func (s *Session) transfer(ctx context.Context, from, to string, recursive bool) error {
	master, err := s.masterOpts(ctx)
	if err != nil {
		return err
	}

	args := append(s.Flags(true), master...)
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, from, to)

	cmd := exec.CommandContext(ctx, "scp", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("scp %s -> %s: %w", from, to, err)
		}
		return fmt.Errorf("scp %s -> %s: %w: %s", from, to, err, msg)
	}
	return nil
}
