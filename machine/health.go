package machine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"machinist"
	"machinist/remote"
)

const loadAvgTimeout = 15 * time.Second

var (
	failedUnitRE     = regexp.MustCompile(`^([^ ]+) .* failed .*$`)
	activatingUnitRE = regexp.MustCompile(`^([^ ]+) .* activating .*$`)
	inactiveMountRE  = regexp.MustCompile(`^([^.]+\.mount) .* inactive .*$`)
)

// Check probes the machine and classifies its systemd units. A failed
// probe is a reachability signal, not an error: it flips an Up machine
// to Unreachable and returns an unreachable result. Errors are reserved
// for the state store and for malformed probe output.
func (m *Machine) Check(ctx context.Context) (*machinist.CheckResult, error) {
	res := &machinist.CheckResult{}

	load, err := m.loadAvg(ctx)
	if err != nil {
		if !isReachabilitySignal(err) {
			return nil, err
		}
		st, serr := m.State()
		if serr != nil {
			return nil, serr
		}
		if st == machinist.Up {
			if serr := m.setState(machinist.Unreachable); serr != nil {
				return nil, serr
			}
		}
		res.Messages = append(res.Messages, err.Error())
		return res, nil
	}

	if err := m.markReachable(false); err != nil {
		return nil, err
	}
	res.Reachable = true
	res.Load = load

	units, _, err := m.RunCommand(ctx, "systemctl --all --full --no-legend",
		remote.Options{Capture: true})
	if err != nil {
		return nil, err
	}
	m.classifyUnits(ctx, strings.Split(units, "\n"), res)
	return res, nil
}

// loadAvg reads /proc/loadavg with a bounded timeout. At least the three
// load averages must be present; fewer fields is a parse error.
func (m *Machine) loadAvg(ctx context.Context) ([]string, error) {
	out, _, err := m.RunCommand(ctx, "cat /proc/loadavg",
		remote.Options{Capture: true, Timeout: loadAvgTimeout})
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed /proc/loadavg output %q", out)
	}
	return fields, nil
}

// classifyUnits sorts systemctl output lines into failed and in-progress
// units.
//
// Failed mounts show up as "inactive" rather than "failed", so inactive
// mount units count as failed too — except the sys-* and dev-* virtual
// filesystems, which systemd tries to mount even when they don't exist,
// and tmp.mount, which is only a real failure when /tmp is actually
// declared in fstab.
func (m *Machine) classifyUnits(ctx context.Context, lines []string, res *machinist.CheckResult) {
	// A unit may match more than one failure pattern across the listing;
	// it is still reported once.
	failed := make(map[string]bool)
	addFailed := func(unit string) {
		if failed[unit] {
			return
		}
		failed[unit] = true
		res.FailedUnits = append(res.FailedUnits, unit)
	}

	for _, line := range lines {
		if mt := failedUnitRE.FindStringSubmatch(line); mt != nil {
			addFailed(mt[1])
		}
		if mt := activatingUnitRE.FindStringSubmatch(line); mt != nil {
			res.InProgressUnits = append(res.InProgressUnits, mt[1])
		}

		mt := inactiveMountRE.FindStringSubmatch(line)
		if mt == nil {
			continue
		}
		unit := mt[1]
		if strings.HasPrefix(unit, "sys-") || strings.HasPrefix(unit, "dev-") {
			continue
		}
		if unit != "tmp.mount" {
			addFailed(unit)
			continue
		}
		if m.tmpMountConfigured(ctx) {
			addFailed(unit)
		}
	}
}

// tmpMountConfigured reports whether /tmp is declared in the static
// filesystem table. A failing probe reads as "not configured", so a
// transient probe failure passes silently.
func (m *Machine) tmpMountConfigured(ctx context.Context) bool {
	_, _, err := m.RunCommand(ctx,
		"cat /etc/fstab | cut -d' ' -f 2 | grep '^/tmp$' >/dev/null 2>&1",
		remote.Options{})
	return err == nil
}

// isReachabilitySignal reports whether err means the machine could not
// be reached or answered with a failure, as opposed to a local fault.
func isReachabilitySignal(err error) bool {
	var connErr *remote.ConnectionError
	var cmdErr *remote.CommandError
	return errors.As(err, &connErr) || errors.As(err, &cmdErr)
}
