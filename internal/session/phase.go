package session

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
)

// Phase is the conversational checkout phase of one user.
type Phase string

const (
	// PhaseIdle covers browsing and cart editing. A missing record is idle.
	PhaseIdle Phase = "idle"
	// PhaseAwaitingAddress waits for the delivery address text.
	PhaseAwaitingAddress Phase = "awaiting_address"
	// PhaseAwaitingPayment waits for the invoice to be paid.
	PhaseAwaitingPayment Phase = "awaiting_payment"
)

func (p Phase) String() string {
	if p == "" {
		return string(PhaseIdle)
	}
	return string(p)
}

// Normalize maps the zero value to PhaseIdle.
func (p Phase) Normalize() Phase {
	if p == "" {
		return PhaseIdle
	}
	return p
}

// Machine validates phase transitions.
type Machine struct {
	transitions map[Phase][]Phase
}

// NewMachine returns the checkout transition table.
func NewMachine() *Machine {
	return &Machine{
		transitions: map[Phase][]Phase{
			PhaseIdle:            {PhaseAwaitingAddress},
			PhaseAwaitingAddress: {PhaseAwaitingPayment, PhaseIdle},
			PhaseAwaitingPayment: {PhaseIdle},
		},
	}
}

// CanTransition reports whether from -> to is allowed. Staying put is always allowed.
func (m *Machine) CanTransition(from, to Phase) bool {
	from, to = from.Normalize(), to.Normalize()
	if from == to {
		return true
	}
	for _, next := range m.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves rec to the next phase or returns a state conflict.
func (m *Machine) Transition(rec *Record, to Phase) error {
	from := rec.Phase.Normalize()
	if !m.CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move from %s to %s", from, to.Normalize())).
			WithDetails(map[string]any{"from": from, "to": to.Normalize()})
	}
	rec.Phase = to.Normalize()
	return nil
}
