package machinist

// CheckResult is a snapshot of one machine health probe. It is produced
// fresh per check and never persisted.
type CheckResult struct {
	// Reachable reports whether the probe got through at all. When false
	// no other field is populated.
	Reachable bool

	// Load holds the raw /proc/loadavg fields: the 1/5/15-minute
	// averages followed by the scheduler entity counts, verbatim.
	Load []string

	FailedUnits     []string
	InProgressUnits []string

	// Messages accumulates diagnostics gathered during the check.
	Messages []string
}
