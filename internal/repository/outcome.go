package repository

import "errors"

// Outcome tags the effect of a mutation so callers can tell a missing target
// apart from a successful write.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeDeleted
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "not_found"
	}
}

// Found reports whether the mutation located its target.
func (o Outcome) Found() bool { return o != OutcomeNotFound }

var (
	// ErrInvalidPatch is returned when merged fields do not fit the record shape.
	ErrInvalidPatch = errors.New("patch does not match record shape")
	// ErrInvalidTransition is returned for a status move the workflow forbids.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrInvalidStatus is returned when the requested status is not a resolution.
	ErrInvalidStatus = errors.New("unknown target status")
	// ErrAlreadyResolved is returned when resolving a record that left pending.
	ErrAlreadyResolved = errors.New("record already resolved")
)
