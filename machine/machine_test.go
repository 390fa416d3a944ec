package machine

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"machinist"
	"machinist/remote"
	"machinist/state"
)

// fakeSession records every remote interaction. Uploads are logged into
// the command stream as "upload:<dest>" so ordering can be asserted, and
// the local file's content is captured at upload time, the way scp would
// see it.
type fakeSession struct {
	host     string
	commands []string
	uploads  map[string]string
	onRun    func(command string) (string, int, error)
	resets   int
	compress bool
}

func (f *fakeSession) Run(_ context.Context, command string, _ remote.Options) (string, int, error) {
	f.commands = append(f.commands, command)
	if f.onRun != nil {
		return f.onRun(command)
	}
	return "", 0, nil
}

func (f *fakeSession) Upload(_ context.Context, local, remotePath string, _ bool) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[remotePath] = string(data)
	f.commands = append(f.commands, "upload:"+remotePath)
	return nil
}

func (f *fakeSession) Download(context.Context, string, string, bool) error { return nil }
func (f *fakeSession) EnableCompression()                                   { f.compress = true }
func (f *fakeSession) Reset()                                               { f.resets++ }

func (f *fakeSession) Host() string {
	if f.host == "" {
		return "203.0.113.5"
	}
	return f.host
}

// portWait is one recorded waitForPort invocation.
type portWait struct {
	port int
	open bool
}

type fakePortWaiter struct {
	waits []portWait
	err   error
}

func (f *fakePortWaiter) wait(_ context.Context, _ string, port int, open bool, onAttempt func()) error {
	f.waits = append(f.waits, portWait{port: port, open: open})
	if onAttempt != nil {
		onAttempt()
	}
	return f.err
}

func newTestMachine(t *testing.T, sess Session, opts ...Option) *Machine {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m, err := New("web", store, sess, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func mustState(t *testing.T, m *Machine) machinist.State {
	t.Helper()
	st, err := m.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	return st
}

func mustSetState(t *testing.T, m *Machine, st machinist.State) {
	t.Helper()
	if err := m.setState(st); err != nil {
		t.Fatalf("setState: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	defer store.Close()

	if _, err := New("", store, &fakeSession{}); err == nil {
		t.Error("New with empty name should fail")
	}
	if _, err := New("web", nil, &fakeSession{}); err == nil {
		t.Error("New with nil store should fail")
	}
	if _, err := New("web", store, nil); err == nil {
		t.Error("New with nil session should fail")
	}
}

func TestStateDefaultsToStarting(t *testing.T) {
	m := newTestMachine(t, &fakeSession{})
	if st := mustState(t, m); st != machinist.Starting {
		t.Fatalf("initial state = %v, want starting", st)
	}
}

func TestSetCommonState_PersistsDefinition(t *testing.T) {
	sess := &fakeSession{}
	m := newTestMachine(t, sess)

	defn := machinist.Definition{
		TargetHost:         "root@203.0.113.5",
		SSHPort:            2222,
		StoreKeysOnMachine: true,
		HasFastConnection:  true,
		Owners:             []string{"alice@example.net"},
		Keys: map[string]machinist.KeySpec{
			"vpn": {Text: "s3cret", DestDir: "/run/keys"},
		},
	}
	if err := m.SetCommonState(defn); err != nil {
		t.Fatalf("SetCommonState: %v", err)
	}

	port, err := m.SSHPort()
	if err != nil || port != 2222 {
		t.Fatalf("SSHPort = %d, %v, want 2222", port, err)
	}
	keys, err := m.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if keys["vpn"].Text != "s3cret" || keys["vpn"].DestDir != "/run/keys" {
		t.Fatalf("Keys = %#v, want the definition's vpn key", keys)
	}
	if sess.compress {
		t.Fatal("compression enabled despite a fast connection")
	}
}

func TestSetCommonState_SlowConnectionEnablesCompression(t *testing.T) {
	sess := &fakeSession{}
	m := newTestMachine(t, sess)

	defn := machinist.Definition{TargetHost: "root@203.0.113.5"}
	if err := m.SetCommonState(defn); err != nil {
		t.Fatalf("SetCommonState: %v", err)
	}

	if !sess.compress {
		t.Fatal("compression not enabled for a slow connection")
	}
	port, err := m.SSHPort()
	if err != nil || port != 22 {
		t.Fatalf("SSHPort = %d, %v, want default 22", port, err)
	}
}

func TestRunCommand_RescuePrefixesLocaleReset(t *testing.T) {
	sess := &fakeSession{}
	m := newTestMachine(t, sess)
	mustSetState(t, m, machinist.Rescue)

	if _, _, err := m.RunCommand(context.Background(), "uptime", remote.Options{}); err != nil {
		t.Fatalf("RunCommand: %v", err)
	}

	want := "export LANG= LC_ALL= LC_TIME=; uptime"
	if len(sess.commands) != 1 || sess.commands[0] != want {
		t.Fatalf("commands = %v, want [%q]", sess.commands, want)
	}
}

func TestSwitchToConfiguration_DefaultScriptAndNoSync(t *testing.T) {
	sess := &fakeSession{}
	m := newTestMachine(t, sess)

	status, err := m.SwitchToConfiguration(context.Background(), "switch", false, "")
	if err != nil {
		t.Fatalf("SwitchToConfiguration: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}

	want := "NIXOS_NO_SYNC=1 /nix/var/nix/profiles/system/bin/switch-to-configuration switch"
	if len(sess.commands) != 1 || sess.commands[0] != want {
		t.Fatalf("commands = %v, want [%q]", sess.commands, want)
	}
}

func TestSwitchToConfiguration_SyncOmitsPrefix(t *testing.T) {
	sess := &fakeSession{}
	m := newTestMachine(t, sess)

	if _, err := m.SwitchToConfiguration(context.Background(), "boot", true, "/run/current-system/bin/switch-to-configuration"); err != nil {
		t.Fatalf("SwitchToConfiguration: %v", err)
	}

	want := "/run/current-system/bin/switch-to-configuration boot"
	if len(sess.commands) != 1 || sess.commands[0] != want {
		t.Fatalf("commands = %v, want [%q]", sess.commands, want)
	}
}

func TestSwitchToConfiguration_PassesStatusThroughUnchecked(t *testing.T) {
	sess := &fakeSession{onRun: func(string) (string, int, error) {
		return "", 100, nil
	}}
	m := newTestMachine(t, sess)

	status, err := m.SwitchToConfiguration(context.Background(), "test", true, "")
	if err != nil {
		t.Fatalf("SwitchToConfiguration: %v", err)
	}
	if status != 100 {
		t.Fatalf("status = %d, want the activation script's 100 passed through", status)
	}
}

func TestSupports_QueriesWithoutSideEffect(t *testing.T) {
	m := newTestMachine(t, &fakeSession{}, WithBackend(Unmanaged{}))

	for _, c := range []Capability{CapStop, CapStart, CapBackup, CapRescueReboot} {
		if m.Supports(c) {
			t.Errorf("Unmanaged backend should not support capability %d", c)
		}
	}

	m2 := newTestMachine(t, &fakeSession{}, WithBackend(rescueBackend{}))
	if !m2.Supports(CapRescueReboot) {
		t.Error("rescue backend should support rescue reboot")
	}
	if m2.Supports(CapStop) {
		t.Error("rescue backend should not support stop")
	}
}

func TestBackupOperations_DispatchToBackend(t *testing.T) {
	b := &backupBackend{}
	m := newTestMachine(t, &fakeSession{}, WithBackend(b))

	if !m.Supports(CapBackup) {
		t.Fatal("backup backend should support backups")
	}

	ctx := context.Background()
	if err := m.Backup(ctx, "20260825"); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := m.Restore(ctx, "20260825"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := m.RemoveBackup(ctx, "20260825"); err != nil {
		t.Fatalf("RemoveBackup: %v", err)
	}
	ids, err := m.Backups(ctx)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if !slices.Equal(ids, []string{"20260826"}) {
		t.Fatalf("Backups = %v, want [20260826]", ids)
	}

	wantOps := []string{"backup:20260825", "restore:20260825", "remove:20260825"}
	if !slices.Equal(b.ops, wantOps) {
		t.Fatalf("backend ops = %v, want %v", b.ops, wantOps)
	}
}

func TestBackupOperations_UnsupportedKindIsNoOp(t *testing.T) {
	m := newTestMachine(t, &fakeSession{}, WithBackend(Unmanaged{}))

	ctx := context.Background()
	if err := m.RemoveBackup(ctx, "20260825"); err != nil {
		t.Fatalf("RemoveBackup on unmanaged: %v", err)
	}
	ids, err := m.Backups(ctx)
	if err != nil || ids != nil {
		t.Fatalf("Backups on unmanaged = %v, %v, want none", ids, err)
	}
}

// rescueBackend supports only rebooting into rescue.
type rescueBackend struct {
	err error
}

func (rescueBackend) Kind() string { return "test-rescue" }

func (b rescueBackend) RebootIntoRescue(context.Context) error { return b.err }

// backupBackend records backup operations in call order.
type backupBackend struct {
	ops []string
}

func (*backupBackend) Kind() string { return "test-backup" }

func (b *backupBackend) Backup(_ context.Context, id string) error {
	b.ops = append(b.ops, "backup:"+id)
	return nil
}

func (b *backupBackend) Restore(_ context.Context, id string) error {
	b.ops = append(b.ops, "restore:"+id)
	return nil
}

func (b *backupBackend) RemoveBackup(_ context.Context, id string) error {
	b.ops = append(b.ops, "remove:"+id)
	return nil
}

func (*backupBackend) Backups(context.Context) ([]string, error) {
	return []string{"20260826"}, nil
}
