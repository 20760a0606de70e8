package lifecycle

import "libradesk/internal/statemachine"

// DocStatus is the lifecycle state of a submittable document.
type DocStatus string

const (
	StatusDraft     DocStatus = "draft"
	StatusActive    DocStatus = "active"
	StatusCancelled DocStatus = "cancelled"
)

// Event moves a document between lifecycle states.
type Event string

const (
	EventSubmit Event = "submit"
	EventCancel Event = "cancel"
)

// Transitions is the document lifecycle: drafts are submitted, submitted documents may be cancelled.
var Transitions = []statemachine.Transition[DocStatus, Event]{
	{Event: EventSubmit, Src: StatusDraft, Dst: StatusActive},
	{Event: EventCancel, Src: StatusActive, Dst: StatusCancelled},
}

var machine = statemachine.New(Transitions)
