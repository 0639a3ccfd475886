package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap/procure-engine/procure"
	"github.com/sigap/procure-engine/store/sqlite"
	"github.com/sigap/procure-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedBudget(t *testing.T, store *sqlite.Store, code string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.InsertBudget(context.Background(), &procure.BudgetAllocation{
		Code: code, Name: "Operations", FiscalYear: 2025,
		Total:     procure.MustDecimal("100000000"),
		Used:      procure.MustDecimal("0"),
		Reserved:  procure.MustDecimal("0"),
		CreatedAt: now, UpdatedAt: now,
	}))
}

func sampleRequest(id, number string) *procure.Request {
	now := time.Now().UTC()
	return &procure.Request{
		ID:          id,
		Number:      number,
		Tier:        procure.Tier1,
		Method:      procure.MethodDirect,
		Status:      procure.StatusDraft,
		Requester:   "dina",
		Unit:        "general-affairs",
		Description: "office supplies",
		Category:    procure.CategoryGoods,
		Quantity:    1,
		TotalValue:  procure.MustDecimal("5000000"),
		BudgetCode:  "BA-001",
		Urgency:     procure.UrgencyNormal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// ROUND TRIPS AND CONSTRAINTS
// =============================================================================

func TestStore_RequestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	r := sampleRequest("req-1", "PR-T1/2025/0001")
	require.NoError(t, store.InsertRequest(ctx, r))

	got, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, r.Number, got.Number)
	assert.Equal(t, r.Status, got.Status)
	assert.True(t, got.TotalValue.Equal(r.TotalValue))
	assert.False(t, got.BudgetReserved)
}

func TestStore_DuplicateNumberRejected(t *testing.T) {
	// GIVEN: A stored request numbered PR-T1/2025/0001
	// WHEN: A second insert reuses the number
	// THEN: The unique index maps to ErrDuplicateReference

	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	require.NoError(t, store.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001")))
	err := store.InsertRequest(ctx, sampleRequest("req-2", "PR-T1/2025/0001"))
	assert.ErrorIs(t, err, procure.ErrDuplicateReference)
}

func TestStore_UnknownBudgetCodeHitsForeignKey(t *testing.T) {
	store := newTestStore(t)

	r := sampleRequest("req-1", "PR-T1/2025/0001")
	r.BudgetCode = "BA-MISSING"
	err := store.InsertRequest(context.Background(), r)
	assert.ErrorIs(t, err, procure.ErrConstraint)
}

func TestStore_BudgetCheckConstraintBackstop(t *testing.T) {
	// GIVEN: A 100M allocation
	// WHEN: The amounts are written so used + reserved exceeds total
	// THEN: The CHECK constraint fires as ErrConstraint

	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	err := store.UpdateBudgetAmounts(ctx, "BA-001",
		procure.MustDecimal("90000000"), procure.MustDecimal("20000000"), time.Now().UTC())
	assert.ErrorIs(t, err, procure.ErrConstraint)

	// The allocation is untouched.
	b, err := store.GetBudget(ctx, "BA-001")
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero())
}

func TestStore_UpdateBudgetAmountsStampsCallerClock(t *testing.T) {
	// GIVEN: A stored allocation
	// WHEN: Amounts are written with an explicit timestamp
	// THEN: updated_at round-trips that timestamp, not wall-clock time

	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	stamp := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.UpdateBudgetAmounts(ctx, "BA-001",
		procure.MustDecimal("10000000"), procure.MustDecimal("0"), stamp))

	b, err := store.GetBudget(ctx, "BA-001")
	require.NoError(t, err)
	assert.True(t, stamp.Equal(b.UpdatedAt))
}

func TestStore_LineItemVolumeCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")
	require.NoError(t, store.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001")))

	now := time.Now().UTC()
	err := store.InsertLineItem(ctx, &procure.LineItem{
		ID: "li-1", RequestID: "req-1", Description: "phantom",
		Volume:    procure.MustDecimal("0"),
		UnitPrice: procure.MustDecimal("100"),
		Amount:    procure.MustDecimal("0"),
		CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, procure.ErrConstraint)
}

func TestStore_DeleteRequestCascades(t *testing.T) {
	// GIVEN: A request with a line item and an approval step
	// WHEN: The request is deleted
	// THEN: The children go with it; audit entries stay

	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")
	require.NoError(t, store.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001")))

	now := time.Now().UTC()
	require.NoError(t, store.InsertLineItem(ctx, &procure.LineItem{
		ID: "li-1", RequestID: "req-1", Description: "toner",
		Volume:    procure.MustDecimal("1"),
		UnitPrice: procure.MustDecimal("100"),
		Amount:    procure.MustDecimal("100"),
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.InsertApprovalStep(ctx, &procure.ApprovalStep{
		ID: "step-1", RequestID: "req-1", StepNumber: 1,
		ApproverRole: "unit_head", Action: procure.ApprovalPending, CreatedAt: now,
	}))
	require.NoError(t, store.AppendAudit(ctx, procure.AuditEntry{
		ID: "aud-1", Table: "requests", RecordID: "req-1",
		Action: procure.AuditCreate, Actor: "dina", Timestamp: now,
	}))

	require.NoError(t, store.DeleteRequest(ctx, "req-1"))

	items, err := store.ListLineItems(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	steps, err := store.ListApprovalSteps(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, steps)

	entries, err := store.QueryAudit(ctx, procure.AuditFilter{RecordID: "req-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "audit survives the aggregate")
}

func TestStore_NotFoundMapping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetRequest(ctx, "req-nope")
	assert.ErrorIs(t, err, procure.ErrNotFound)

	err = store.DeleteRequest(ctx, "req-nope")
	assert.ErrorIs(t, err, procure.ErrNotFound)

	err = store.UpdateBudgetAmounts(ctx, "BA-nope",
		procure.MustDecimal("0"), procure.MustDecimal("0"), time.Now().UTC())
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

// =============================================================================
// NUMBER SCOPING
// =============================================================================

func TestStore_MaxNumberSeqScopesPrefixAndYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	for _, number := range []string{
		"PR-T1/2025/0001", "PR-T1/2025/0002", "PR-T1/2024/0001", "PR-T2/2025/0001",
	} {
		r := sampleRequest(number, number)
		require.NoError(t, store.InsertRequest(ctx, r))
	}

	seq, err := store.MaxNumberSeq(ctx, "PR-T1", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	seq, err = store.MaxNumberSeq(ctx, "PR-T2", 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	seq, err = store.MaxNumberSeq(ctx, "PR-T3", 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, seq)
}

func TestStore_MaxNumberSeqSurvivesDeletion(t *testing.T) {
	// GIVEN: Two issued numbers, the lower one deleted
	// WHEN: The next sequence is read
	// THEN: It still continues past the highest number ever issued

	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	require.NoError(t, store.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001")))
	require.NoError(t, store.InsertRequest(ctx, sampleRequest("req-2", "PR-T1/2025/0002")))
	require.NoError(t, store.DeleteRequest(ctx, "req-1"))

	seq, err := store.MaxNumberSeq(ctx, "PR-T1", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a request and then fails
	// WHEN: WithTx returns the error
	// THEN: The insert is not visible afterwards

	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(st workflow.Store) error {
		if err := st.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001")); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = store.GetRequest(ctx, "req-1")
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

func TestStore_WithTxCommits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")

	err := store.WithTx(ctx, func(st workflow.Store) error {
		return st.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001"))
	})
	require.NoError(t, err)

	_, err = store.GetRequest(ctx, "req-1")
	assert.NoError(t, err)
}

// =============================================================================
// AUDIT QUERIES
// =============================================================================

func TestStore_QueryAuditFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	entries := []procure.AuditEntry{
		{ID: "aud-1", Table: "requests", RecordID: "req-1", Action: procure.AuditCreate, Actor: "dina", Timestamp: base},
		{ID: "aud-2", Table: "requests", RecordID: "req-1", Action: procure.AuditTransition, Actor: "dina", Timestamp: base.Add(time.Hour)},
		{ID: "aud-3", Table: "vendors", RecordID: "vnd-1", Action: procure.AuditCreate, Actor: "admin", Timestamp: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendAudit(ctx, e))
	}

	got, err := store.QueryAudit(ctx, procure.AuditFilter{Table: "requests"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.QueryAudit(ctx, procure.AuditFilter{Actor: "admin"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aud-3", got[0].ID)

	got, err = store.QueryAudit(ctx, procure.AuditFilter{
		Actions: []procure.AuditAction{procure.AuditTransition},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aud-2", got[0].ID)

	from := base.Add(90 * time.Minute)
	got, err = store.QueryAudit(ctx, procure.AuditFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aud-3", got[0].ID)

	// Newest first
	got, err = store.QueryAudit(ctx, procure.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "aud-3", got[0].ID)
}

// =============================================================================
// BACKUP
// =============================================================================

func TestStore_BackupProducesOpenableCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedBudget(t, store, "BA-001")
	require.NoError(t, store.InsertRequest(ctx, sampleRequest("req-1", "PR-T1/2025/0001")))

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, store.Backup(ctx, dest))

	copyStore, err := sqlite.New(dest)
	require.NoError(t, err)
	defer copyStore.Close()

	got, err := copyStore.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "PR-T1/2025/0001", got.Number)
}
