package machine

import (
	"context"
	"log/slog"

	"machinist"
	"machinist/remote"
)

// WaitForReachable blocks until the machine's SSH port accepts
// connections, then marks the record reachable. If connectivity was
// already confirmed for this record — and, with strict, confirmed during
// the current process run — it returns immediately without probing.
//
// A machine in rescue keeps its rescue state; everything else becomes Up.
// Probe failures are never surfaced; the poll blocks until success or
// ctx cancellation.
func (m *Machine) WaitForReachable(ctx context.Context, strict bool) error {
	pinged, err := m.SSHPinged()
	if err != nil {
		return err
	}
	if pinged && (!strict || m.pingedThisRun) {
		return nil
	}

	slog.Info("Waiting for SSH...", "machine", m.name)
	port, err := m.SSHPort()
	if err != nil {
		return err
	}
	if err := m.waitForPort(ctx, m.session.Host(), port, true, m.probeAttempt); err != nil {
		return err
	}
	return m.markReachable(true)
}

// probeAttempt is the per-poll progress callback.
func (m *Machine) probeAttempt() {
	slog.Debug("Probing SSH port...", "machine", m.name)
}

// markReachable records a successful probe. preserveRescue keeps a
// machine in rescue from being flipped to Up by a mere port probe.
func (m *Machine) markReachable(preserveRescue bool) error {
	st, err := m.State()
	if err != nil {
		return err
	}
	if !preserveRescue || st != machinist.Rescue {
		if err := m.setState(machinist.Up); err != nil {
			return err
		}
	}
	if err := propSSHPinged.Set(m.store, m.name, true); err != nil {
		return err
	}
	m.pingedThisRun = true
	return nil
}

// Reboot issues a reboot and returns without waiting for the machine to
// come back. The session's cached master connection is reset since the
// remote identity changes across the reboot. hard is a hint for backends;
// the generic path always reboots over the channel.
func (m *Machine) Reboot(ctx context.Context, hard bool) error {
	slog.Info("Rebooting...", "machine", m.name)
	st, err := m.State()
	if err != nil {
		return err
	}

	rebootCmd := "systemctl reboot"
	if st == machinist.Rescue {
		// Rescue systems may not run systemd. The sleep keeps the reboot
		// from hanging the SSH session it arrives on.
		rebootCmd = "(sleep 2; reboot) &"
	}
	if _, _, err := m.RunCommand(ctx, rebootCmd, remote.Options{NoCheck: true}); err != nil {
		return err
	}

	if err := m.setState(machinist.Starting); err != nil {
		return err
	}
	// The new boot has not been probed yet.
	if err := propSSHPinged.Set(m.store, m.name, false); err != nil {
		return err
	}
	m.pingedThisRun = false
	m.session.Reset()
	return nil
}

// RebootAndWaitUntilUp reboots and blocks until the machine is reachable
// again. It first waits for the port to close so success is never
// declared against the pre-reboot session, then for it to reopen. Secrets
// are re-provisioned once the machine is back, since /run is volatile.
func (m *Machine) RebootAndWaitUntilUp(ctx context.Context, hard bool) error {
	if err := m.Reboot(ctx, hard); err != nil {
		return err
	}

	slog.Info("Waiting for the machine to finish rebooting...", "machine", m.name)
	port, err := m.SSHPort()
	if err != nil {
		return err
	}
	host := m.session.Host()
	if err := m.waitForPort(ctx, host, port, false, m.probeAttempt); err != nil {
		return err
	}
	slog.Info("Machine is down.", "machine", m.name)
	if err := m.waitForPort(ctx, host, port, true, m.probeAttempt); err != nil {
		return err
	}
	slog.Info("Machine is up.", "machine", m.name)

	if err := m.markReachable(false); err != nil {
		return err
	}
	return m.SendKeys(ctx)
}

// RebootIntoRescue reboots the machine into its rescue system when the
// backend supports one; otherwise it warns and leaves state unchanged.
func (m *Machine) RebootIntoRescue(ctx context.Context) error {
	b, ok := m.backend.(RescueRebooter)
	if !ok {
		slog.Warn("Machine does not have a rescue system.", "machine", m.name)
		return nil
	}
	if err := b.RebootIntoRescue(ctx); err != nil {
		return err
	}
	if err := m.setState(machinist.Rescue); err != nil {
		return err
	}
	m.session.Reset()
	return nil
}
