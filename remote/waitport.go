package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	portProbeInterval = 2 * time.Second
	portProbeTimeout  = 5 * time.Second
)

// WaitForPort blocks until a TCP port on host reports the wanted
// condition: open waits until connects succeed, !open until they are
// refused (the old session torn down). onAttempt, when non-nil, runs once
// per probe so callers can show progress. There is no timeout at this
// layer; cancel via ctx.
func WaitForPort(ctx context.Context, host string, port int, open bool, onAttempt func()) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	probe := func() error {
		if onAttempt != nil {
			onAttempt()
		}
		conn, err := net.DialTimeout("tcp", addr, portProbeTimeout)
		if err == nil {
			_ = conn.Close()
		}
		if open {
			if err != nil {
				return fmt.Errorf("port %s not open: %w", addr, err)
			}
			return nil
		}
		if err == nil {
			return errors.New("port " + addr + " still open")
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(portProbeInterval), ctx)
	return backoff.Retry(probe, bo)
}
