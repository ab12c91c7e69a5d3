package child

// RuntimeAttempt is one candidate interpreter invocation in the runtime
// fallback chain (spec §4.2): `(bun with preload, bun plain, node)`.
//
// Grounded on the teacher's AgentType interface (agent_type.go), generalized
// from a single fixed agent launcher into an ordered list of attempts tried
// in turn by a shared runner.
type RuntimeAttempt struct {
	Name    string // short id, e.g. "bun-preload"
	Label   string // human-readable label for logging
	Command string
	Args    []string
}

// DefaultFallbackChain returns the ordered runtime attempts for running
// scriptPath: bun with the kit preload, bun without it, then node.
func DefaultFallbackChain(scriptPath, preloadPath string, scriptArgs []string) []RuntimeAttempt {
	attempts := make([]RuntimeAttempt, 0, 3)
	if preloadPath != "" {
		attempts = append(attempts, RuntimeAttempt{
			Name:    "bun-preload",
			Label:   "bun (with kit preload)",
			Command: "bun",
			Args:    append([]string{"--preload", preloadPath, "run", scriptPath}, scriptArgs...),
		})
	}
	attempts = append(attempts,
		RuntimeAttempt{
			Name:    "bun-plain",
			Label:   "bun",
			Command: "bun",
			Args:    append([]string{"run", scriptPath}, scriptArgs...),
		},
		RuntimeAttempt{
			Name:    "node",
			Label:   "node",
			Command: "node",
			Args:    append([]string{scriptPath}, scriptArgs...),
		},
	)
	return attempts
}

// RunFallbackChain tries each attempt in order with runner, returning the
// first successful result and the attempt that produced it. onAttempt, if
// non-nil, is called before each attempt for logging/bench markers.
func RunFallbackChain[T any](attempts []RuntimeAttempt, onAttempt func(RuntimeAttempt), runner func(RuntimeAttempt) (T, bool)) (T, RuntimeAttempt, bool) {
	var zero T
	for _, a := range attempts {
		if onAttempt != nil {
			onAttempt(a)
		}
		if v, ok := runner(a); ok {
			return v, a, true
		}
	}
	return zero, RuntimeAttempt{}, false
}
