package lifecycle

import (
	"errors"

	"libradesk/internal/statemachine"
)

// Sentinel errors shared by the document services.
var (
	// ErrRejected is matched by every business-rule failure raised from a
	// before-submit hook. The error text is the message shown to the user.
	ErrRejected = errors.New("submission rejected")

	ErrInvalidDocument = errors.New("invalid document")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// TransitionError is returned when a document is not in a state that allows the requested event,
// e.g. submitting an already active membership.
type TransitionError = statemachine.TransitionError
