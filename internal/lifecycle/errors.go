package lifecycle

import (
	"errors"
	"fmt"

	"meetcal/internal/model"
)

var (
	// ErrInvalidTransition matches every *TransitionError via errors.Is.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidReschedule is returned when the new start is not in the future.
	ErrInvalidReschedule = errors.New("reschedule time must be in the future")
	// ErrEmptyCancellationReason is returned when cancel gets a blank reason.
	ErrEmptyCancellationReason = errors.New("cancellation reason is empty")
	// ErrUnknownParty is returned when canceledBy is neither organizer nor counterpart.
	ErrUnknownParty = errors.New("unknown canceling party")
	// ErrNotAuthorized is returned when an Authorizer rejects a cancellation.
	ErrNotAuthorized = errors.New("party not authorized to cancel")
)

// TransitionError reports a transition that is illegal from the meeting's
// current state.
type TransitionError struct {
	MeetingID  string
	From       model.Status
	Transition Transition
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: cannot %s meeting %q in state %s", e.Transition, e.MeetingID, e.From)
}

// Is makes errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
