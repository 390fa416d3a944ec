package machine

import (
	"context"
	"log/slog"
)

// Backend provides the machine-kind-specific compute operations this
// core does not implement itself. The base contract is only a kind name;
// kinds add capabilities by implementing the extension interfaces below.
type Backend interface {
	Kind() string
}

// Stopper is implemented by backends that can stop their machine.
type Stopper interface {
	Backend
	Stop(ctx context.Context) error
}

// Starter is implemented by backends that can start their machine.
type Starter interface {
	Backend
	Start(ctx context.Context) error
}

// BackupManager is implemented by backends that can snapshot and restore
// persistent disks. Backups returns the known backup IDs.
type BackupManager interface {
	Backend
	Backup(ctx context.Context, backupID string) error
	Restore(ctx context.Context, backupID string) error
	RemoveBackup(ctx context.Context, backupID string) error
	Backups(ctx context.Context) ([]string, error)
}

// RescueRebooter is implemented by backends that can reboot their
// machine into a rescue system.
type RescueRebooter interface {
	Backend
	RebootIntoRescue(ctx context.Context) error
}

// Capability names one optional backend operation.
type Capability uint8

const (
	CapStop Capability = iota
	CapStart
	CapBackup
	CapRescueReboot
)

// Supports reports whether the machine's backend implements the given
// capability, without any side effect. The operations themselves keep
// the warn-and-return behavior for unsupported kinds.
func (m *Machine) Supports(c Capability) bool {
	switch c {
	case CapStop:
		_, ok := m.backend.(Stopper)
		return ok
	case CapStart:
		_, ok := m.backend.(Starter)
		return ok
	case CapBackup:
		_, ok := m.backend.(BackupManager)
		return ok
	case CapRescueReboot:
		_, ok := m.backend.(RescueRebooter)
		return ok
	default:
		return false
	}
}

// Stop stops the machine if its backend knows how. Unsupported kinds log
// a warning and return nil so heterogeneous fleets can share this core.
func (m *Machine) Stop(ctx context.Context) error {
	b, ok := m.backend.(Stopper)
	if !ok {
		slog.Warn("Don't know how to stop machine.", "machine", m.name)
		return nil
	}
	return b.Stop(ctx)
}

// Start starts the machine if its backend knows how.
func (m *Machine) Start(ctx context.Context) error {
	b, ok := m.backend.(Starter)
	if !ok {
		return nil
	}
	return b.Start(ctx)
}

// Backup snapshots persistent disks if the backend knows how.
func (m *Machine) Backup(ctx context.Context, backupID string) error {
	b, ok := m.backend.(BackupManager)
	if !ok {
		slog.Warn("Don't know how to make a backup of machine.", "machine", m.name)
		return nil
	}
	return b.Backup(ctx, backupID)
}

// Restore restores persistent disks from a backup if the backend knows how.
func (m *Machine) Restore(ctx context.Context, backupID string) error {
	b, ok := m.backend.(BackupManager)
	if !ok {
		slog.Warn("Don't know how to restore machine from backup.", "machine", m.name)
		return nil
	}
	return b.Restore(ctx, backupID)
}

// RemoveBackup deletes a backup if the backend knows how.
func (m *Machine) RemoveBackup(ctx context.Context, backupID string) error {
	b, ok := m.backend.(BackupManager)
	if !ok {
		slog.Warn("Don't know how to remove a backup of machine.", "machine", m.name)
		return nil
	}
	return b.RemoveBackup(ctx, backupID)
}

// Backups lists the known backup IDs if the backend knows how; unsupported
// kinds report none.
func (m *Machine) Backups(ctx context.Context) ([]string, error) {
	b, ok := m.backend.(BackupManager)
	if !ok {
		slog.Warn("Don't know how to list backups of machine.", "machine", m.name)
		return nil, nil
	}
	return b.Backups(ctx)
}

// Unmanaged is the backend for hosts that already exist: it supports no
// optional capability.
type Unmanaged struct{}

func (Unmanaged) Kind() string { return "none" }
