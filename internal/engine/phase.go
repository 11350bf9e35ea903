package engine

// Phase is a step of the run state machine:
//
//	Idle → Normalizing → Deduplicating → Filtering → Diffing → Merging →
//	Validating → Committed
//
// Any error moves the run to Failed. A dry run stops in Validating.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseNormalizing
	PhaseDeduplicating
	PhaseFiltering
	PhaseDiffing
	PhaseMerging
	PhaseValidating
	PhaseCommitted
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:          "idle",
	PhaseNormalizing:   "normalizing",
	PhaseDeduplicating: "deduplicating",
	PhaseFiltering:     "filtering",
	PhaseDiffing:       "diffing",
	PhaseMerging:       "merging",
	PhaseValidating:    "validating",
	PhaseCommitted:     "committed",
	PhaseFailed:        "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText renders the phase name in JSON and YAML.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Cancellable reports whether a run in this phase still honours context
// cancellation. Once merging starts the run completes.
func (p Phase) Cancellable() bool {
	return p < PhaseMerging
}
