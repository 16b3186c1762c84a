package ledger

import (
	"fmt"

	"github.com/sgpp/costrecovery/internal/domain/shared"
)

// Phase represents one of the five sequential recognition phases a
// remittance cycle moves through. The sequence is strictly linear:
// MEN -> ROP -> RAD -> REC -> REV, with REV terminal.
type Phase string

const (
	PhaseMEN Phase = "MEN"
	PhaseROP Phase = "ROP"
	PhaseRAD Phase = "RAD"
	PhaseREC Phase = "REC"
	PhaseREV Phase = "REV"
)

// phaseOrder maps each phase to its position in the sequence
var phaseOrder = map[Phase]int{
	PhaseMEN: 0,
	PhaseROP: 1,
	PhaseRAD: 2,
	PhaseREC: 3,
	PhaseREV: 4,
}

// IsValid checks if the phase is a valid recognition phase
func (p Phase) IsValid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// Order returns the position of the phase in the recognition sequence
func (p Phase) Order() int {
	return phaseOrder[p]
}

// IsTerminal returns true for the last phase of the sequence
func (p Phase) IsTerminal() bool {
	return p == PhaseREV
}

// Next returns the successor phase. Returns false for REV, which has
// no successor.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseMEN:
		return PhaseROP, true
	case PhaseROP:
		return PhaseRAD, true
	case PhaseRAD:
		return PhaseREC, true
	case PhaseREC:
		return PhaseREV, true
	}
	return "", false
}

// CanFollow returns true if p is a legal phase for a new remittance
// cycle given the most advanced phase already recorded for the same
// contract/field. A cycle either stays in the current phase (another
// remittance of the same phase) or advances exactly one step.
func (p Phase) CanFollow(previous Phase) bool {
	if !p.IsValid() || !previous.IsValid() {
		return false
	}
	if p == previous {
		return true
	}
	next, ok := previous.Next()
	return ok && p == next
}

// ParsePhase converts a string into a Phase, rejecting unknown values
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.IsValid() {
		return "", shared.NewDomainError("INVALID_PHASE_TRANSITION", fmt.Sprintf("unknown recognition phase %q", s))
	}
	return p, nil
}

// ValidatePhaseSequence checks that a new entry's phase is legal given
// the most advanced phase recorded for its contract/field. hasPrior is
// false when this is the first remittance cycle, in which case only
// MEN is accepted.
func ValidatePhaseSequence(newPhase Phase, latest Phase, hasPrior bool) error {
	if !newPhase.IsValid() {
		return shared.ErrInvalidPhaseTransition
	}
	if !hasPrior {
		if newPhase != PhaseMEN {
			return shared.NewDomainError("INVALID_PHASE_TRANSITION",
				fmt.Sprintf("first remittance cycle must start at MEN, got %s", newPhase))
		}
		return nil
	}
	if !newPhase.CanFollow(latest) {
		return shared.NewDomainError("INVALID_PHASE_TRANSITION",
			fmt.Sprintf("phase %s cannot follow %s", newPhase, latest))
	}
	return nil
}
