package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"libradesk/internal/statemachine"
)

type light string
type signal string

var transitions = []statemachine.Transition[light, signal]{
	{Event: "go", Src: "red", Dst: "green"},
	{Event: "stop", Src: "green", Dst: "red"},
	{Event: "stop", Src: "amber", Dst: "red"},
}

func TestMachine_AllTransitions(t *testing.T) {
	m := statemachine.New(transitions)

	for _, tr := range transitions {
		dst, err := m.Apply(context.Background(), tr.Src, tr.Event)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Event, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Event, dst, tr.Dst)
		}
	}
}

func TestMachine_InvalidTransition(t *testing.T) {
	m := statemachine.New(transitions)

	_, err := m.Apply(context.Background(), "red", "stop")
	var trErr *statemachine.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Event != "stop" {
		t.Errorf("event = %q, want %q", trErr.Event, "stop")
	}
	if trErr.Current != "red" {
		t.Errorf("current = %q, want %q", trErr.Current, "red")
	}
	want := `event "stop" is not valid from state "red"`
	if got := trErr.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestMachine_UnknownEvent(t *testing.T) {
	m := statemachine.New(transitions)

	_, err := m.Apply(context.Background(), "red", "blink")
	var trErr *statemachine.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

