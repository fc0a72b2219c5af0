package provider

// Strategy is how an execution call reaches its backend.
type Strategy int

const (
	// StrategySubprocess spawns the backend CLI and supervises its
	// line stream.
	StrategySubprocess Strategy = iota
	// StrategyDirect calls the backend's service API in process.
	StrategyDirect
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategySubprocess:
		return "subprocess"
	default:
		return "unknown"
	}
}

// SelectStrategy picks the execution path for a hybrid backend.
//
// The direct path is taken only when tool use is explicitly disabled
// (allowedTools set and empty) and a service credential is present.
// An unset allowedTools (nil) or any requested tool forces the
// subprocess path, which owns tool execution. Backends without a
// direct path always run as subprocesses.
func SelectStrategy(allowedTools []string, hasCredential, supportsDirect bool) Strategy {
	if !supportsDirect {
		return StrategySubprocess
	}
	if allowedTools != nil && len(allowedTools) == 0 && hasCredential {
		return StrategyDirect
	}
	return StrategySubprocess
}
