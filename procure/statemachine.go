/*
statemachine.go - Legal status transitions for procurement requests

PURPOSE:
  A single authority for the request lifecycle. Every status lists its
  legal successor set; anything not listed is rejected. Side effects are
  declared per target state in the same table, so the coupling between
  "request completed" and "budget realized" is visible here instead of
  buried in a conditional.

STATE GRAPH:
  draft -> submitted -> approved -> procurement -> contracted
        -> delivered -> paid -> completed

  cancelled and rejected are absorbing states reachable from every
  non-terminal state. submitted can fall back to draft when an approver
  requests a revision.

SIDE EFFECTS (onEnter, executed by the workflow layer in-transaction):
  approved   reserve the request total against its budget code
  completed  consume (realize) the reservation
  cancelled  release any outstanding reservation
  rejected   release any outstanding reservation

  Re-entry cannot double-fire an effect: terminal states have no
  successors, so completed can never be entered twice.

SEE ALSO:
  - workflow: Executes transitions and their effects atomically
  - errors.go: InvalidTransitionError
*/
package procure

// Effect names a budget side effect triggered on entering a state.
// The workflow layer maps each effect to a Budget Ledger call.
type Effect string

const (
	EffectNone          Effect = ""
	EffectReserveBudget Effect = "reserve_budget"
	EffectConsumeBudget Effect = "consume_budget"
	EffectReleaseBudget Effect = "release_budget"
)

// transitions is the fixed successor table. A target status missing from
// a state's set is an illegal transition, no exceptions.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted, StatusCancelled, StatusRejected},
	StatusSubmitted:   {StatusApproved, StatusDraft, StatusCancelled, StatusRejected},
	StatusApproved:    {StatusProcurement, StatusCancelled, StatusRejected},
	StatusProcurement: {StatusContracted, StatusCancelled, StatusRejected},
	StatusContracted:  {StatusDelivered, StatusCancelled, StatusRejected},
	StatusDelivered:   {StatusPaid, StatusCancelled, StatusRejected},
	StatusPaid:        {StatusCompleted, StatusCancelled, StatusRejected},
	StatusCompleted:   {},
	StatusCancelled:   {},
	StatusRejected:    {},
}

// onEnter declares the budget effect fired when a state is entered.
var onEnter = map[Status]Effect{
	StatusApproved:  EffectReserveBudget,
	StatusCompleted: EffectConsumeBudget,
	StatusCancelled: EffectReleaseBudget,
	StatusRejected:  EffectReleaseBudget,
}

// InitialStatus is the status every new request starts in.
const InitialStatus = StatusDraft

// Successors returns the legal successor set of a status.
// Unknown statuses have no successors.
func Successors(from Status) []Status {
	return transitions[from]
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition validates from -> to, returning an InvalidTransitionError
// describing the rejection when illegal.
func CheckTransition(requestID string, from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{RequestID: requestID, From: from, To: to}
	}
	return nil
}

// EnterEffect returns the budget effect declared for entering a status.
func EnterEffect(to Status) Effect {
	return onEnter[to]
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// IsEditable reports whether the aggregate and its line items may be
// mutated. Only drafts are editable.
func IsEditable(s Status) bool {
	return s == StatusDraft
}

// KnownStatus reports whether s is a status the table knows about.
func KnownStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}
