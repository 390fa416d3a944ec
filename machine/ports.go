package machine

import (
	"context"

	"machinist/remote"
)

// Session is the remote command/transfer channel the machine drives.
// In production this is *remote.Session; in tests it can be a fake that
// records commands and scripts outcomes.
type Session interface {
	Run(ctx context.Context, command string, opts remote.Options) (string, int, error)
	Upload(ctx context.Context, local, remotePath string, recursive bool) error
	Download(ctx context.Context, remotePath, local string, recursive bool) error
	EnableCompression()
	Reset()
	Host() string
}

// WaitPortFunc is the polling primitive behind reachability probes:
// it blocks until the port reports the wanted open/closed condition,
// invoking onAttempt once per probe.
type WaitPortFunc func(ctx context.Context, host string, port int, open bool, onAttempt func()) error
