package machine

import (
	"context"

	"machinist"
	"machinist/remote"
)

// RunCommand executes a command on the machine over the session channel.
// In rescue state the command runs in a minimal recovery environment
// without full locale data, so locale variables are unset first.
func (m *Machine) RunCommand(ctx context.Context, command string, opts remote.Options) (string, int, error) {
	st, err := m.State()
	if err != nil {
		return "", 0, err
	}
	if st == machinist.Rescue {
		command = "export LANG= LC_ALL= LC_TIME=; " + command
	}
	return m.session.Run(ctx, command, opts)
}

// SwitchToConfiguration runs the activation script for the deployed
// system configuration and returns the script's exit status unchecked,
// so the caller can distinguish partial activations. An empty command
// uses the system profile's own script.
func (m *Machine) SwitchToConfiguration(ctx context.Context, method string, sync bool, command string) (int, error) {
	cmd := ""
	if !sync {
		cmd = "NIXOS_NO_SYNC=1 "
	}
	if command == "" {
		command = "/nix/var/nix/profiles/system/bin/switch-to-configuration"
	}
	cmd += command + " " + method

	_, status, err := m.RunCommand(ctx, cmd, remote.Options{NoCheck: true})
	return status, err
}
