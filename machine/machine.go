package machine

import (
	"fmt"
	"time"

	"machinist"
	"machinist/remote"
	"machinist/state"
)

// Persisted record slots. Slot names are stable; renaming one orphans
// the stored value for existing records.
var (
	propState              = state.String("state", machinist.Starting.String())
	propSSHPinged          = state.Bool("sshPinged", false)
	propSSHPort            = state.Int("targetPort", 22)
	propHasFastConnection  = state.Bool("hasFastConnection", false)
	propStoreKeysOnMachine = state.Bool("storeKeysOnMachine", false)
	propKeys               = state.JSON("keys", map[string]machinist.KeySpec{})
	propOwners             = state.JSON("owners", []string(nil))
	propVMID               = state.String("vmId", "")
	propPublicVPNKey       = state.String("publicVpnKey", "")
	propConfigsPath        = state.String("configsPath", "")
	propToplevel           = state.String("toplevel", "")
	propStartTime          = state.Int("startTime", 0)
	propStateVersion       = state.String("stateVersion", "")
)

// Machine manages one remote host: its persisted record, its session
// channel and its lifecycle operations. Not safe for concurrent use;
// one instance per host, one caller at a time.
type Machine struct {
	name string

	store   *state.Store
	session Session
	backend Backend

	waitForPort WaitPortFunc

	// pingedThisRun tracks reachability confirmed in the current process
	// run, as opposed to the persisted sshPinged slot which survives
	// restarts. A strict readiness check requires the former.
	pingedThisRun bool
}

// Option configures a Machine. Use these to inject test dependencies.
type Option func(*Machine)

// WithBackend attaches the machine-kind-specific operations.
func WithBackend(b Backend) Option {
	return func(m *Machine) { m.backend = b }
}

// WithWaitForPort injects the port polling primitive.
func WithWaitForPort(f WaitPortFunc) Option {
	return func(m *Machine) { m.waitForPort = f }
}

// New creates a Machine for the named record, talking over session and
// persisting through store.
func New(name string, store *state.Store, session Session, opts ...Option) (*Machine, error) {
	if name == "" {
		return nil, fmt.Errorf("machine name must not be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("machine %q: state store must not be nil", name)
	}
	if session == nil {
		return nil, fmt.Errorf("machine %q: session must not be nil", name)
	}

	m := &Machine{
		name:        name,
		store:       store,
		session:     session,
		waitForPort: remote.WaitForPort,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the stable record identifier.
func (m *Machine) Name() string { return m.name }

// State reads the persisted lifecycle state.
func (m *Machine) State() (machinist.State, error) {
	raw, err := propState.Get(m.store, m.name)
	if err != nil {
		return machinist.Stopped, err
	}
	return machinist.ParseState(raw)
}

func (m *Machine) setState(s machinist.State) error {
	return propState.Set(m.store, m.name, s.String())
}

// SSHPinged reports whether connectivity has ever been confirmed during
// this record's persisted lifetime.
func (m *Machine) SSHPinged() (bool, error) {
	return propSSHPinged.Get(m.store, m.name)
}

// SSHPort returns the persisted transport port, default 22.
func (m *Machine) SSHPort() (int, error) {
	return propSSHPort.Get(m.store, m.name)
}

// Keys returns the declared secret specs for this machine.
func (m *Machine) Keys() (map[string]machinist.KeySpec, error) {
	return propKeys.Get(m.store, m.name)
}

// SetCommonState copies the definition fields every machine kind shares
// into the persisted record. Compression is enabled on the session when
// the machine does not have a fast connection.
func (m *Machine) SetCommonState(defn machinist.Definition) error {
	port := defn.SSHPort
	if port == 0 {
		port = 22
	}
	writes := []func() error{
		func() error { return propStoreKeysOnMachine.Set(m.store, m.name, defn.StoreKeysOnMachine) },
		func() error { return propKeys.Set(m.store, m.name, defn.Keys) },
		func() error { return propSSHPort.Set(m.store, m.name, port) },
		func() error { return propHasFastConnection.Set(m.store, m.name, defn.HasFastConnection) },
		func() error { return propOwners.Set(m.store, m.name, defn.Owners) },
	}
	for _, w := range writes {
		if err := w(); err != nil {
			return err
		}
	}
	if !defn.HasFastConnection {
		m.session.EnableCompression()
	}
	return nil
}

// Record is a readable snapshot of the persisted machine record.
type Record struct {
	State              machinist.State
	SSHPinged          bool
	SSHPort            int
	HasFastConnection  bool
	StoreKeysOnMachine bool
	Owners             []string
	Keys               map[string]machinist.KeySpec
	VMID               string
	PublicVPNKey       string
	ConfigsPath        string
	Toplevel           string
	StartTime          time.Time
	StateVersion       string
}

// Record reads every persisted slot at once.
func (m *Machine) Record() (*Record, error) {
	var rec Record
	var err error

	if rec.State, err = m.State(); err != nil {
		return nil, err
	}
	if rec.SSHPinged, err = propSSHPinged.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.SSHPort, err = propSSHPort.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.HasFastConnection, err = propHasFastConnection.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.StoreKeysOnMachine, err = propStoreKeysOnMachine.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.Owners, err = propOwners.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.Keys, err = propKeys.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.VMID, err = propVMID.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.PublicVPNKey, err = propPublicVPNKey.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.ConfigsPath, err = propConfigsPath.Get(m.store, m.name); err != nil {
		return nil, err
	}
	if rec.Toplevel, err = propToplevel.Get(m.store, m.name); err != nil {
		return nil, err
	}
	startTime, err := propStartTime.Get(m.store, m.name)
	if err != nil {
		return nil, err
	}
	if startTime != 0 {
		rec.StartTime = time.Unix(int64(startTime), 0)
	}
	if rec.StateVersion, err = propStateVersion.Get(m.store, m.name); err != nil {
		return nil, err
	}
	return &rec, nil
}
