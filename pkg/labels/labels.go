// Package labels defines the pipeline phases and the issue labels that mark
// them. Label presence on the tracked issue is the authoritative phase
// indicator; everything here just names the markers consistently.
package labels

// Phase identifies one pipeline stage.
type Phase string

const (
	PhaseGrooming  Phase = "grooming"
	PhaseBuilding  Phase = "building"
	PhaseReviewing Phase = "reviewing"
)

// AllPhases returns the phases in pipeline order. Processors run in this
// order within every reconciliation tick.
func AllPhases() []Phase {
	return []Phase{PhaseGrooming, PhaseBuilding, PhaseReviewing}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseGrooming, PhaseBuilding, PhaseReviewing:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	return string(p)
}

// Default label names. The agent: prefix keeps orchestrator-managed labels
// visually separate from human triage labels on the same repository.
const (
	DefaultGroomLabel     = "agent:groom"
	DefaultGroomingLabel  = "agent:grooming"
	DefaultReadyLabel     = "agent:ready"
	DefaultBuildingLabel  = "agent:building"
	DefaultPRReadyLabel   = "agent:pr-ready"
	DefaultReviewingLabel = "agent:reviewing"
	DefaultFailedLabel    = "agent:failed"
)

// Set binds each phase to its pickup label (what makes an issue a candidate)
// and its in-flight label (what marks an issue as being worked).
type Set struct {
	Groom     string `yaml:"groom"`
	Grooming  string `yaml:"grooming"`
	Ready     string `yaml:"ready"`
	Building  string `yaml:"building"`
	PRReady   string `yaml:"pr_ready"`
	Reviewing string `yaml:"reviewing"`
	Failed    string `yaml:"failed"`
}

// DefaultSet returns the standard label set.
func DefaultSet() Set {
	return Set{
		Groom:     DefaultGroomLabel,
		Grooming:  DefaultGroomingLabel,
		Ready:     DefaultReadyLabel,
		Building:  DefaultBuildingLabel,
		PRReady:   DefaultPRReadyLabel,
		Reviewing: DefaultReviewingLabel,
		Failed:    DefaultFailedLabel,
	}
}

// Pickup returns the label that makes an issue a candidate for the phase.
func (s Set) Pickup(phase Phase) string {
	switch phase {
	case PhaseGrooming:
		return s.Groom
	case PhaseBuilding:
		return s.Ready
	case PhaseReviewing:
		return s.PRReady
	default:
		return ""
	}
}

// InFlight returns the label that marks an issue as being worked by the phase.
func (s Set) InFlight(phase Phase) string {
	switch phase {
	case PhaseGrooming:
		return s.Grooming
	case PhaseBuilding:
		return s.Building
	case PhaseReviewing:
		return s.Reviewing
	default:
		return ""
	}
}

// Managed returns every label the orchestrator may add or remove. Used by the
// failure path and the operator reset to strip pipeline state from an issue.
func (s Set) Managed() []string {
	return []string{s.Groom, s.Grooming, s.Ready, s.Building, s.PRReady, s.Reviewing, s.Failed}
}

// InFlightLabels returns the in-flight markers for all phases.
func (s Set) InFlightLabels() []string {
	return []string{s.Grooming, s.Building, s.Reviewing}
}
