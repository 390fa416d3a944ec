package main

import (
	"fmt"
	"os"
	"path/filepath"

	"machinist/config"
	"machinist/machine"
	"machinist/remote"
	"machinist/state"
)

type rootFlags struct {
	definitions string
	statePath   string
}

// defaultStatePath follows XDG_STATE_HOME, falling back to
// ~/.local/state/machinist/state.db.
func defaultStatePath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "state", "machinist", "state.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "machinist", "state.db")
}

// openMachine wires up one machine from the definitions file and the
// state store. The returned closer resets the session's master
// connection and closes the store.
func openMachine(flags *rootFlags, name string) (*machine.Machine, func(), error) {
	defs, err := config.Load(flags.definitions)
	if err != nil {
		return nil, nil, err
	}
	defn, err := defs.Machine(name)
	if err != nil {
		return nil, nil, err
	}

	store, err := state.Open(flags.statePath)
	if err != nil {
		return nil, nil, err
	}

	session := &remote.Session{Target: defn.TargetHost, Port: defn.SSHPort}
	m, err := machine.New(name, store, session, machine.WithBackend(machine.Unmanaged{}))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err := m.SetCommonState(defn); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("apply definition: %w", err)
	}

	closer := func() {
		session.Reset()
		_ = store.Close()
	}
	return m, closer, nil
}
