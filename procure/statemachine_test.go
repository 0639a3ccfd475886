package procure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigap/procure-engine/procure"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestCanTransition_HappyPath(t *testing.T) {
	// The full forward chain is legal, one hop at a time.
	chain := []procure.Status{
		procure.StatusDraft,
		procure.StatusSubmitted,
		procure.StatusApproved,
		procure.StatusProcurement,
		procure.StatusContracted,
		procure.StatusDelivered,
		procure.StatusPaid,
		procure.StatusCompleted,
	}

	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, procure.CanTransition(chain[i], chain[i+1]),
			"%s -> %s should be legal", chain[i], chain[i+1])
	}
}

func TestCanTransition_NoSkipping(t *testing.T) {
	// GIVEN: A request in draft
	// WHEN: Jumping straight to completed
	// THEN: Rejected - the table lists only submitted/cancelled/rejected

	assert.False(t, procure.CanTransition(procure.StatusDraft, procure.StatusCompleted))
	assert.False(t, procure.CanTransition(procure.StatusDraft, procure.StatusContracted))
	assert.False(t, procure.CanTransition(procure.StatusSubmitted, procure.StatusPaid))
}

func TestCanTransition_TerminalStatesAreAbsorbing(t *testing.T) {
	for _, terminal := range []procure.Status{
		procure.StatusCompleted, procure.StatusCancelled, procure.StatusRejected,
	} {
		assert.True(t, procure.IsTerminal(terminal))
		assert.Empty(t, procure.Successors(terminal), "%s must have no successors", terminal)

		// A completed request can never re-enter completed, which is what
		// makes the budget-consume effect idempotent-safe.
		assert.False(t, procure.CanTransition(terminal, terminal))
	}
}

func TestCanTransition_CancelAndRejectFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []procure.Status{
		procure.StatusDraft, procure.StatusSubmitted, procure.StatusApproved,
		procure.StatusProcurement, procure.StatusContracted,
		procure.StatusDelivered, procure.StatusPaid,
	}

	for _, from := range nonTerminal {
		assert.True(t, procure.CanTransition(from, procure.StatusCancelled),
			"%s -> cancelled", from)
		assert.True(t, procure.CanTransition(from, procure.StatusRejected),
			"%s -> rejected", from)
	}
}

func TestCanTransition_ReviseReturnsToDraft(t *testing.T) {
	assert.True(t, procure.CanTransition(procure.StatusSubmitted, procure.StatusDraft))
	assert.False(t, procure.CanTransition(procure.StatusApproved, procure.StatusDraft),
		"revision is only possible before approval")
}

func TestCheckTransition_ErrorDetails(t *testing.T) {
	err := procure.CheckTransition("req-1", procure.StatusDraft, procure.StatusCompleted)
	assert.ErrorIs(t, err, procure.ErrInvalidTransition)

	var itErr *procure.InvalidTransitionError
	assert.ErrorAs(t, err, &itErr)
	assert.Equal(t, procure.StatusDraft, itErr.From)
	assert.Equal(t, procure.StatusCompleted, itErr.To)

	assert.NoError(t, procure.CheckTransition("req-1", procure.StatusDraft, procure.StatusSubmitted))
}

// =============================================================================
// DECLARED SIDE EFFECTS
// =============================================================================

func TestEnterEffect_DeclaredPerTargetState(t *testing.T) {
	assert.Equal(t, procure.EffectReserveBudget, procure.EnterEffect(procure.StatusApproved))
	assert.Equal(t, procure.EffectConsumeBudget, procure.EnterEffect(procure.StatusCompleted))
	assert.Equal(t, procure.EffectReleaseBudget, procure.EnterEffect(procure.StatusCancelled))
	assert.Equal(t, procure.EffectReleaseBudget, procure.EnterEffect(procure.StatusRejected))

	// No effect anywhere else - in particular, entering paid does NOT
	// realize the budget.
	assert.Equal(t, procure.EffectNone, procure.EnterEffect(procure.StatusSubmitted))
	assert.Equal(t, procure.EffectNone, procure.EnterEffect(procure.StatusPaid))
	assert.Equal(t, procure.EffectNone, procure.EnterEffect(procure.StatusContracted))
}

func TestIsEditable_OnlyDraft(t *testing.T) {
	assert.True(t, procure.IsEditable(procure.StatusDraft))

	for _, s := range []procure.Status{
		procure.StatusSubmitted, procure.StatusApproved, procure.StatusProcurement,
		procure.StatusContracted, procure.StatusDelivered, procure.StatusPaid,
		procure.StatusCompleted, procure.StatusCancelled, procure.StatusRejected,
	} {
		assert.False(t, procure.IsEditable(s), "%s must not be editable", s)
	}
}
