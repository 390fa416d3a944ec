package machine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"machinist"
	"machinist/remote"
)

const (
	// keysGroup restricts read access to provisioned secrets.
	keysGroup = "keys"

	// runtimeKeysDir is the well-known runtime directory whose readiness
	// marker signals that provisioning for this boot completed.
	runtimeKeysDir  = "/run/keys"
	readinessMarker = "/run/keys/done"
)

// SendKeys provisions every declared secret onto the machine. A secret
// only ever becomes visible at its destination through an atomic rename
// from a same-directory temporary file, so no reader can observe it
// half-written or wrongly permissioned. The operation is idempotent.
//
// It is a no-op in rescue state (the runtime directories are not
// guaranteed to be tmpfs-backed yet, so secrets could end up on disk)
// and when the machine stores its keys by other means.
func (m *Machine) SendKeys(ctx context.Context) error {
	st, err := m.State()
	if err != nil {
		return err
	}
	if st == machinist.Rescue {
		return nil
	}
	storeOnMachine, err := propStoreKeysOnMachine.Get(m.store, m.name)
	if err != nil {
		return err
	}
	if storeOnMachine {
		return nil
	}

	keys, err := m.Keys()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	// Malformed specs must fail before any remote mutation.
	for _, name := range names {
		if err := validateKeySpec(keys[name]); err != nil {
			return fmt.Errorf("key %q: %w", name, err)
		}
	}

	for _, name := range names {
		if err := m.sendKey(ctx, name, keys[name]); err != nil {
			return fmt.Errorf("key %q: %w", name, err)
		}
	}

	markerCmd := fmt.Sprintf("mkdir -m 0750 -p %[1]s && chown root:%[2]s %[1]s && touch %[3]s",
		runtimeKeysDir, keysGroup, readinessMarker)
	if _, _, err := m.RunCommand(ctx, markerCmd, remote.Options{}); err != nil {
		return fmt.Errorf("create readiness marker: %w", err)
	}
	return nil
}

func validateKeySpec(spec machinist.KeySpec) error {
	if spec.DestDir == "" {
		return fmt.Errorf("no destDir specified")
	}
	sources := 0
	for _, s := range []string{spec.Text, spec.KeyCommand, spec.KeyFile} {
		if s != "" {
			sources++
		}
	}
	switch sources {
	case 0:
		return fmt.Errorf("none of text, keyCmd or keyFile set")
	case 1:
		return nil
	default:
		return fmt.Errorf("more than one of text, keyCmd and keyFile set")
	}
}

func (m *Machine) sendKey(ctx context.Context, name string, spec machinist.KeySpec) error {
	slog.Info("Uploading key...", "machine", m.name, "key", name)

	destDir := strings.TrimRight(spec.DestDir, "/")
	ensureDir := fmt.Sprintf("test -d '%[1]s' || ( mkdir -m 0750 -p '%[1]s' && chown root:%[2]s '%[1]s'; )",
		destDir, keysGroup)
	if _, _, err := m.RunCommand(ctx, ensureDir, remote.Options{}); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	scratch, err := materializeKey(ctx, spec)
	if err != nil {
		return err
	}
	defer os.Remove(scratch)

	outfile := destDir + "/" + name
	tmpOutfile := destDir + "/." + name + ".tmp"
	outfileQ := shellQuote(outfile)
	tmpOutfileQ := shellQuote(tmpOutfile)

	// Clear any stale final or temporary file. Best effort: this is
	// hygiene, not correctness.
	_, _, _ = m.RunCommand(ctx, "rm -f "+outfileQ+" "+tmpOutfileQ, remote.Options{NoCheck: true})

	// scp is not atomic, so the content goes to a hidden temporary name
	// first and only the rename below publishes it.
	if err := m.session.Upload(ctx, scratch, tmpOutfile, false); err != nil {
		return err
	}

	// Ownership and mode are applied to the temporary file so the final
	// name appears with the right permissions in the same instant as its
	// content. chown only when both user and group resolve on the
	// machine; otherwise the file stays owned by the uploading identity.
	perms := spec.Permissions
	if perms == "" {
		perms = "0600"
	}
	applyCmd := fmt.Sprintf("chmod '%s' %s", perms, tmpOutfileQ)
	if spec.User != "" && spec.Group != "" {
		applyCmd = fmt.Sprintf(
			"( getent passwd '%[1]s' >/dev/null && getent group '%[2]s' >/dev/null && chown '%[1]s:%[2]s' %[3]s ); %[4]s",
			spec.User, spec.Group, tmpOutfileQ, applyCmd)
	}
	if _, _, err := m.RunCommand(ctx, applyCmd, remote.Options{}); err != nil {
		return fmt.Errorf("apply ownership and mode: %w", err)
	}

	if _, _, err := m.RunCommand(ctx, "mv "+tmpOutfileQ+" "+outfileQ, remote.Options{}); err != nil {
		return fmt.Errorf("publish key: %w", err)
	}
	return nil
}

// materializeKey resolves the spec's single source into a local scratch
// file and returns its path. The caller removes it.
func materializeKey(ctx context.Context, spec machinist.KeySpec) (string, error) {
	f, err := os.CreateTemp("", "machinist-key-")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()

	write := func() error {
		switch {
		case spec.Text != "":
			_, err := io.WriteString(f, spec.Text)
			return err
		case spec.KeyCommand != "":
			cmd := exec.CommandContext(ctx, "/bin/sh", "-c", spec.KeyCommand)
			cmd.Stdout = f
			cmd.Stderr = os.Stderr
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("run key command: %w", err)
			}
			return nil
		case spec.KeyFile != "":
			src, err := os.Open(spec.KeyFile)
			if err != nil {
				return fmt.Errorf("open key file: %w", err)
			}
			defer src.Close()
			_, err = io.Copy(f, src)
			return err
		default:
			return fmt.Errorf("none of text, keyCmd or keyFile set")
		}
	}

	if err := write(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

// shellQuote single-quotes s for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
