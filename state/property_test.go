package state

import (
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoolRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := Bool("sshPinged", false)

	got, err := p.Get(s, "web")
	if err != nil || got != false {
		t.Fatalf("Get before Set = %v, %v, want default false", got, err)
	}

	if err := p.Set(s, "web", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = p.Get(s, "web")
	if err != nil || got != true {
		t.Fatalf("Get after Set = %v, %v, want true", got, err)
	}
}

func TestIntRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := Int("targetPort", 22)

	got, err := p.Get(s, "web")
	if err != nil || got != 22 {
		t.Fatalf("Get before Set = %v, %v, want default 22", got, err)
	}

	if err := p.Set(s, "web", 2222); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = p.Get(s, "web")
	if err != nil || got != 2222 {
		t.Fatalf("Get after Set = %v, %v, want 2222", got, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := String("stateVersion", "")

	if err := p.Set(s, "web", "24.05"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := p.Get(s, "web")
	if err != nil || got != "24.05" {
		t.Fatalf("Get = %q, %v, want %q", got, err, "24.05")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type keySpec struct {
		DestDir     string `json:"destDir"`
		Permissions string `json:"permissions,omitempty"`
	}

	s := openTestStore(t)
	p := JSON("keys", map[string]keySpec{})

	want := map[string]keySpec{
		"vpn": {DestDir: "/run/keys", Permissions: "0600"},
		"tls": {DestDir: "/var/lib/secrets"},
	}
	if err := p.Set(s, "web", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := p.Get(s, "web")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Get = %#v, want %#v", got, want)
	}
}

func TestClearRestoresDefault(t *testing.T) {
	s := openTestStore(t)
	p := Int("targetPort", 22)

	if err := p.Set(s, "web", 2022); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := p.Clear(s, "web"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := p.Get(s, "web")
	if err != nil || got != 22 {
		t.Fatalf("Get after Clear = %v, %v, want default 22", got, err)
	}
}

func TestCodecMismatchIsError(t *testing.T) {
	s := openTestStore(t)
	if err := s.Write("web", "targetPort", "not-a-number"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	p := Int("targetPort", 22)
	if _, err := p.Get(s, "web"); err == nil {
		t.Fatal("Get with mismatched stored value should fail")
	}
}

func TestRecordsAreIndependent(t *testing.T) {
	s := openTestStore(t)
	p := Bool("sshPinged", false)

	if err := p.Set(s, "web", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := p.Get(s, "db")
	if err != nil || got != false {
		t.Fatalf("Get on other record = %v, %v, want default false", got, err)
	}
}

func TestForgetClearsWholeRecord(t *testing.T) {
	s := openTestStore(t)
	pinged := Bool("sshPinged", false)
	port := Int("targetPort", 22)

	if err := pinged.Set(s, "web", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := port.Set(s, "web", 2222); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := s.Forget("web"); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	if got, err := pinged.Get(s, "web"); err != nil || got {
		t.Fatalf("sshPinged after Forget = %v, %v, want default false", got, err)
	}
	if got, err := port.Get(s, "web"); err != nil || got != 22 {
		t.Fatalf("targetPort after Forget = %v, %v, want default 22", got, err)
	}
}

func TestWriteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	p := String("state", "starting")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Set(s, "web", "up"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := p.Get(s2, "web")
	if err != nil || got != "up" {
		t.Fatalf("Get after reopen = %q, %v, want %q", got, err, "up")
	}
}
