package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap/procure-engine/procure"
	"github.com/sigap/procure-engine/store/sqlite"
	"github.com/sigap/procure-engine/workflow"
)

// approveChain walks a submitted request through its whole approval chain.
func approveChain(t *testing.T, svc *workflow.Service, requestID string) {
	t.Helper()
	steps, err := svc.ApprovalSteps(context.Background(), requestID)
	require.NoError(t, err)
	for _, step := range steps {
		_, err := svc.Decide(context.Background(), requestID, step.StepNumber,
			procure.ApprovalApproved, step.ApproverRole, "")
		require.NoError(t, err)
	}
}

func getBudget(t *testing.T, store *sqlite.Store, code string) *procure.BudgetAllocation {
	t.Helper()
	b, err := store.GetBudget(context.Background(), code)
	require.NoError(t, err)
	return b
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestTransition_FullLifecycle_BudgetFollowsStatus(t *testing.T) {
	// GIVEN: A 5M draft against a 20M budget
	// WHEN: It walks draft -> ... -> completed
	// THEN: Approval reserves 5M, completion converts the reservation to used

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "20000000")
	r := createDraft(t, svc, "5000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)
	approveChain(t, svc, r.ID)

	b := getBudget(t, store, "BA-001")
	assert.True(t, b.Reserved.Equal(procure.MustDecimal("5000000")), "reserved %s", b.Reserved)
	assert.True(t, b.Used.IsZero())

	for _, target := range []procure.Status{
		procure.StatusProcurement, procure.StatusContracted,
		procure.StatusDelivered, procure.StatusPaid, procure.StatusCompleted,
	} {
		_, err := svc.Transition(ctx, r.ID, target, "officer", "")
		require.NoError(t, err, "transition to %s", target)
	}

	b = getBudget(t, store, "BA-001")
	assert.True(t, b.Used.Equal(procure.MustDecimal("5000000")), "used %s", b.Used)
	assert.True(t, b.Reserved.IsZero(), "reserved %s", b.Reserved)

	got, err := svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.StatusCompleted, got.Status)
}

func TestTransition_NoSkipping(t *testing.T) {
	// GIVEN: A draft request
	// WHEN: It tries to jump straight to completed
	// THEN: The transition is rejected with the from/to pair in the error

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "20000000")
	r := createDraft(t, svc, "5000000")

	_, err := svc.Transition(context.Background(), r.ID, procure.StatusCompleted, "dina", "")
	assert.ErrorIs(t, err, procure.ErrInvalidTransition)

	var itErr *procure.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, procure.StatusDraft, itErr.From)
	assert.Equal(t, procure.StatusCompleted, itErr.To)
}

func TestTransition_TerminalStatesAbsorb(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "20000000")
	r := createDraft(t, svc, "5000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusCancelled, "dina", "no longer needed")
	require.NoError(t, err)

	_, err = svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	assert.ErrorIs(t, err, procure.ErrInvalidTransition)
}

func TestTransition_CancelAfterApproval_ReleasesReservation(t *testing.T) {
	// GIVEN: An approved request holding a 5M reservation
	// WHEN: It is cancelled
	// THEN: The reservation returns to the pool, used stays zero

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "20000000")
	r := createDraft(t, svc, "5000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)
	approveChain(t, svc, r.ID)

	_, err = svc.Transition(ctx, r.ID, procure.StatusCancelled, "dina", "vendor folded")
	require.NoError(t, err)

	b := getBudget(t, store, "BA-001")
	assert.True(t, b.Reserved.IsZero(), "reserved %s", b.Reserved)
	assert.True(t, b.Used.IsZero())
	assert.True(t, b.Remaining().Equal(procure.MustDecimal("20000000")))
}

func TestTransition_CancelFromDraft_BudgetUntouched(t *testing.T) {
	// GIVEN: A draft that never reserved anything
	// WHEN: It is cancelled
	// THEN: No release fires; the allocation is unchanged

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "20000000")
	r := createDraft(t, svc, "5000000")

	_, err := svc.Transition(context.Background(), r.ID, procure.StatusCancelled, "dina", "")
	require.NoError(t, err)

	b := getBudget(t, store, "BA-001")
	assert.True(t, b.Reserved.IsZero())
	assert.True(t, b.Used.IsZero())
}

func TestTransition_ApprovalOverBudget_RollsBack(t *testing.T) {
	// GIVEN: A 5M request against a 1M budget
	// WHEN: The last approval would reserve the funds
	// THEN: The decision fails with ErrBudgetExceeded and the request stays submitted

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "1000000")
	r := createDraft(t, svc, "5000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, r.ID, 1, procure.ApprovalApproved, "unit_head", "")
	assert.ErrorIs(t, err, procure.ErrBudgetExceeded)

	got, err := svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.StatusSubmitted, got.Status, "failed approval must not move the request")

	// The step decision rolled back with the rest of the transaction.
	steps, err := svc.ApprovalSteps(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.ApprovalPending, steps[0].Action)
}

func TestTransition_AppendsOneAuditEntryPerMove(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "20000000")
	r := createDraft(t, svc, "5000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, r.ID, procure.StatusDraft, "dina", "typo in description")
	require.NoError(t, err)

	entries, err := svc.AuditTrail(ctx, procure.AuditFilter{
		Table:    "requests",
		RecordID: r.ID,
		Actions:  []procure.AuditAction{procure.AuditTransition},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// =============================================================================
// APPROVAL CHAIN
// =============================================================================

func TestApprovals_ChainDepthFollowsTier(t *testing.T) {
	// GIVEN: Submitted requests in each tier
	// THEN: Chains are 1, 2, and 3 steps deep

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	ctx := context.Background()

	cases := []struct {
		value string
		depth int
	}{
		{"5000000", 1},
		{"20000000", 2},
		{"75000000", 3},
	}
	for _, tc := range cases {
		r := createDraft(t, svc, tc.value)
		_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
		require.NoError(t, err)

		steps, err := svc.ApprovalSteps(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, steps, tc.depth, "value %s", tc.value)
		assert.Equal(t, "unit_head", steps[0].ApproverRole)
	}
}

func TestApprovals_StepsResolveInOrder(t *testing.T) {
	// GIVEN: A tier3 request with a 3-step chain
	// WHEN: Step 2 is decided before step 1
	// THEN: The decision is rejected

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "75000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, r.ID, 2, procure.ApprovalApproved, "procurement_officer", "")
	assert.ErrorIs(t, err, procure.ErrValidation)
}

func TestApprovals_FullChainMovesToApproved(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "75000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)

	// First two approvals keep the request submitted
	_, err = svc.Decide(ctx, r.ID, 1, procure.ApprovalApproved, "unit_head", "")
	require.NoError(t, err)
	got, err := svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.StatusSubmitted, got.Status)

	_, err = svc.Decide(ctx, r.ID, 2, procure.ApprovalApproved, "procurement_officer", "")
	require.NoError(t, err)

	// The last approval flips the status
	got, err = svc.Decide(ctx, r.ID, 3, procure.ApprovalApproved, "budget_authority", "")
	require.NoError(t, err)
	assert.Equal(t, procure.StatusApproved, got.Status)
}

func TestApprovals_RejectionIsImmediate(t *testing.T) {
	// GIVEN: A tier2 request with the first step approved
	// WHEN: The second approver rejects
	// THEN: The request is rejected without waiting for anything else

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "20000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, r.ID, 1, procure.ApprovalApproved, "unit_head", "")
	require.NoError(t, err)

	got, err := svc.Decide(ctx, r.ID, 2, procure.ApprovalRejected, "procurement_officer", "no quotation attached")
	require.NoError(t, err)
	assert.Equal(t, procure.StatusRejected, got.Status)
}

func TestApprovals_ReviseReturnsToDraftAndRebuilds(t *testing.T) {
	// GIVEN: A submitted request sent back for revision
	// WHEN: It is edited and resubmitted
	// THEN: A fresh pending chain replaces the old one

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "20000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)

	got, err := svc.Decide(ctx, r.ID, 1, procure.ApprovalRevise, "unit_head", "split the order")
	require.NoError(t, err)
	assert.Equal(t, procure.StatusDraft, got.Status)

	steps, err := svc.ApprovalSteps(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, steps, "revision discards the chain")

	_, err = svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)
	steps, err = svc.ApprovalSteps(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	for _, step := range steps {
		assert.Equal(t, procure.ApprovalPending, step.Action)
	}
}

func TestApprovals_StepDecidedOnce(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "20000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, r.ID, 1, procure.ApprovalApproved, "unit_head", "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, r.ID, 1, procure.ApprovalApproved, "unit_head", "")
	assert.ErrorIs(t, err, procure.ErrValidation)
}

func TestApprovals_DecideRequiresSubmitted(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "5000000")

	_, err := svc.Decide(context.Background(), r.ID, 1, procure.ApprovalApproved, "unit_head", "")
	assert.ErrorIs(t, err, procure.ErrValidation)
}

// =============================================================================
// LINE ITEMS
// =============================================================================

func TestLineItems_TotalsAndReclassification(t *testing.T) {
	// GIVEN: A draft with a 5M estimate
	// WHEN: Items worth 2 x 500,000 and 1 x 1,000,000 replace the estimate
	// THEN: The total is 2,000,000 and the tier stays tier1

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "5000000")
	ctx := context.Background()

	_, _, err := svc.AddLineItem(ctx, r.ID, workflow.LineItemInput{
		Description: "toner cartridge", Unit: "pcs",
		Volume:    procure.MustDecimal("2"),
		UnitPrice: procure.MustDecimal("500000"),
		Actor:     "dina",
	})
	require.NoError(t, err)

	_, req, err := svc.AddLineItem(ctx, r.ID, workflow.LineItemInput{
		Description: "shredder", Unit: "pcs",
		Volume:    procure.MustDecimal("1"),
		UnitPrice: procure.MustDecimal("1000000"),
		Actor:     "dina",
	})
	require.NoError(t, err)

	assert.True(t, req.TotalValue.Equal(procure.MustDecimal("2000000")), "total %s", req.TotalValue)
	assert.Equal(t, procure.Tier1, req.Tier)
}

func TestLineItems_PushTotalAcrossTierBoundary(t *testing.T) {
	// GIVEN: A tier1 draft
	// WHEN: A line item brings the total to exactly 10M
	// THEN: The request reclassifies to tier2/quotation

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "1000000")

	_, req, err := svc.AddLineItem(context.Background(), r.ID, workflow.LineItemInput{
		Description: "server rack",
		Volume:      procure.MustDecimal("1"),
		UnitPrice:   procure.MustDecimal("10000000"),
		Actor:       "dina",
	})
	require.NoError(t, err)
	assert.Equal(t, procure.Tier2, req.Tier)
	assert.Equal(t, procure.MethodQuotation, req.Method)
}

func TestLineItems_UpdateAndDeleteRecalculate(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "1000000")
	ctx := context.Background()

	li, _, err := svc.AddLineItem(ctx, r.ID, workflow.LineItemInput{
		Description: "chairs",
		Volume:      procure.MustDecimal("4"),
		UnitPrice:   procure.MustDecimal("250000"),
		Actor:       "dina",
	})
	require.NoError(t, err)

	_, req, err := svc.UpdateLineItem(ctx, li.ID, workflow.LineItemInput{
		Description: "chairs",
		Volume:      procure.MustDecimal("10"),
		UnitPrice:   procure.MustDecimal("250000"),
		Actor:       "dina",
	})
	require.NoError(t, err)
	assert.True(t, req.TotalValue.Equal(procure.MustDecimal("2500000")), "total %s", req.TotalValue)

	req, err = svc.DeleteLineItem(ctx, li.ID, "dina")
	require.NoError(t, err)
	// With no items left the last derived total stands; nothing to derive from.
	items, err := svc.LineItems(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, req.TotalValue.Equal(procure.MustDecimal("2500000")))
}

func TestLineItems_RecalculateIsIdempotent(t *testing.T) {
	// GIVEN: A request whose totals already match its items
	// WHEN: Recalculate runs again
	// THEN: Nothing changes and no audit entry is written

	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "1000000")
	ctx := context.Background()

	_, _, err := svc.AddLineItem(ctx, r.ID, workflow.LineItemInput{
		Description: "cables",
		Volume:      procure.MustDecimal("3"),
		UnitPrice:   procure.MustDecimal("100000"),
		Actor:       "dina",
	})
	require.NoError(t, err)

	before, err := svc.AuditTrail(ctx, procure.AuditFilter{Table: "requests", RecordID: r.ID})
	require.NoError(t, err)

	req, err := svc.Recalculate(ctx, r.ID, "dina")
	require.NoError(t, err)
	assert.True(t, req.TotalValue.Equal(procure.MustDecimal("300000")))

	after, err := svc.AuditTrail(ctx, procure.AuditFilter{Table: "requests", RecordID: r.ID})
	require.NoError(t, err)
	assert.Len(t, after, len(before), "idempotent recalculation writes nothing")
}

func TestLineItems_Validation(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "1000000")

	_, _, err := svc.AddLineItem(context.Background(), r.ID, workflow.LineItemInput{
		Description: "ghost item",
		Volume:      procure.MustDecimal("0"),
		UnitPrice:   procure.MustDecimal("100"),
		Actor:       "dina",
	})
	assert.ErrorIs(t, err, procure.ErrValidation)
}

func TestLineItems_LockedAfterSubmission(t *testing.T) {
	svc, store := newTestService(t)
	seedBudget(t, store, "BA-001", "500000000")
	r := createDraft(t, svc, "1000000")
	ctx := context.Background()

	_, err := svc.Transition(ctx, r.ID, procure.StatusSubmitted, "dina", "")
	require.NoError(t, err)

	_, _, err = svc.AddLineItem(ctx, r.ID, workflow.LineItemInput{
		Description: "late addition",
		Volume:      procure.MustDecimal("1"),
		UnitPrice:   procure.MustDecimal("100"),
		Actor:       "dina",
	})
	assert.ErrorIs(t, err, procure.ErrNotEditable)
}
