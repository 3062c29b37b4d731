package plugin

// State is the lifecycle state of a loaded plugin.
type State int

const (
	StateDiscovered State = iota
	StateValidated
	StateInitializing
	StateReady
	StateCleaning
	StateUnloaded
	StateFailed
)

var stateNames = [...]string{
	StateDiscovered:   "Discovered",
	StateValidated:    "Validated",
	StateInitializing: "Initializing",
	StateReady:        "Ready",
	StateCleaning:     "Cleaning",
	StateUnloaded:     "Unloaded",
	StateFailed:       "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateUnloaded || s == StateFailed
}

// canTransition encodes the lifecycle graph. Failed plugins that were
// initialized still pass through Cleaning on unload.
func canTransition(from, to State) bool {
	switch to {
	case StateValidated:
		return from == StateDiscovered
	case StateInitializing:
		return from == StateValidated
	case StateReady:
		return from == StateInitializing
	case StateCleaning:
		return from == StateReady || from == StateFailed
	case StateUnloaded:
		return from == StateCleaning
	case StateFailed:
		return from == StateDiscovered || from == StateValidated || from == StateInitializing || from == StateReady
	default:
		return false
	}
}
