// Package statemachine validates state transitions with looplab/fsm.
package statemachine

import (
	"context"
	"errors"
	"fmt"

	loopfsm "github.com/looplab/fsm"
)

// Transition defines a valid state change: an event moves a record from Src to Dst.
type Transition[S ~string, E ~string] struct {
	Event E
	Src   S
	Dst   S
}

// TransitionError is returned when an event is not allowed from the current state.
type TransitionError struct {
	Event   string
	Current string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// Machine checks events against a fixed transition table.
// A short-lived FSM is created per Apply call because looplab/fsm tracks
// the current state internally.
type Machine[S ~string, E ~string] struct {
	events []loopfsm.EventDesc
}

// New builds a Machine. Transitions sharing an event and destination are
// merged into one EventDesc with several sources.
func New[S ~string, E ~string](transitions []Transition[S, E]) *Machine[S, E] {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	events := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		events = append(events, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return &Machine[S, E]{events: events}
}

// Apply returns the destination state for event from current, or a
// *TransitionError if the table has no such transition.
func (m *Machine[S, E]) Apply(ctx context.Context, current S, event E) (S, error) {
	machine := loopfsm.NewFSM(string(current), m.events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &TransitionError{Event: string(event), Current: string(current)}
		}
		return "", err
	}

	return S(machine.Current()), nil
}

