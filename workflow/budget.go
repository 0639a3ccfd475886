/*
budget.go - Budget ledger: reserve, consume, release

PURPOSE:
  Tracks allocation vs. used/reserved amounts per budget code under the
  invariant used + reserved <= total. An operation that would violate the
  invariant fails with BudgetExceededError and leaves the allocation
  untouched.

TWO ENTRY POINTS:
  - The package-level primitives (reserveBudget, consumeBudget,
    releaseBudget) run against a Store already inside a transaction.
    service.go calls these when a status transition declares a budget
    effect, so the transition and the ledger update commit together.
  - BudgetLedger wraps the same primitives in their own transaction for
    direct administrative use via the API.

SEMANTICS:
  reserve  earmarks funds:           reserved += amount
  consume  realizes a reservation:   used += amount, reserved -= amount
           (capped at what is actually reserved)
  release  returns funds to pool:    reserved -= amount (never below zero)

SEE ALSO:
  - procure/statemachine.go: Which transitions trigger which effect
  - store/sqlite: CHECK constraint as the storage backstop
*/
package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// =============================================================================
// IN-TRANSACTION PRIMITIVES
// =============================================================================

func reserveBudget(ctx context.Context, st Store, code string, amount decimal.Decimal, actor string, now time.Time) error {
	if !amount.IsPositive() {
		return &procure.FieldError{Field: "amount", Message: "must be positive"}
	}

	b, err := st.GetBudget(ctx, code)
	if err != nil {
		return err
	}
	if b.Remaining().LessThan(amount) {
		return &procure.BudgetExceededError{Code: code, Requested: amount, Remaining: b.Remaining()}
	}

	before := budgetSnapshot(b)
	b.Reserved = b.Reserved.Add(amount)
	if err := st.UpdateBudgetAmounts(ctx, code, b.Used, b.Reserved, now); err != nil {
		return err
	}
	return st.AppendAudit(ctx, procure.AuditEntry{
		ID: newID("aud"), Table: "budget_allocations", RecordID: code,
		Action: procure.AuditBudget, Before: before, After: budgetSnapshot(b),
		Actor: actor, Timestamp: now,
	})
}

func consumeBudget(ctx context.Context, st Store, code string, amount decimal.Decimal, actor string, now time.Time) error {
	if !amount.IsPositive() {
		return &procure.FieldError{Field: "amount", Message: "must be positive"}
	}

	b, err := st.GetBudget(ctx, code)
	if err != nil {
		return err
	}

	before := budgetSnapshot(b)
	released := decimal.Min(b.Reserved, amount)
	used := b.Used.Add(amount)
	reserved := b.Reserved.Sub(released)

	if used.Add(reserved).GreaterThan(b.Total) {
		return &procure.BudgetExceededError{Code: code, Requested: amount, Remaining: b.Remaining()}
	}

	b.Used, b.Reserved = used, reserved
	if err := st.UpdateBudgetAmounts(ctx, code, b.Used, b.Reserved, now); err != nil {
		return err
	}
	return st.AppendAudit(ctx, procure.AuditEntry{
		ID: newID("aud"), Table: "budget_allocations", RecordID: code,
		Action: procure.AuditBudget, Before: before, After: budgetSnapshot(b),
		Actor: actor, Timestamp: now,
	})
}

func releaseBudget(ctx context.Context, st Store, code string, amount decimal.Decimal, actor string, now time.Time) error {
	if !amount.IsPositive() {
		return &procure.FieldError{Field: "amount", Message: "must be positive"}
	}

	b, err := st.GetBudget(ctx, code)
	if err != nil {
		return err
	}

	before := budgetSnapshot(b)
	b.Reserved = decimal.Max(decimal.Zero, b.Reserved.Sub(amount))
	if err := st.UpdateBudgetAmounts(ctx, code, b.Used, b.Reserved, now); err != nil {
		return err
	}
	return st.AppendAudit(ctx, procure.AuditEntry{
		ID: newID("aud"), Table: "budget_allocations", RecordID: code,
		Action: procure.AuditBudget, Before: before, After: budgetSnapshot(b),
		Actor: actor, Timestamp: now,
	})
}

func budgetSnapshot(b *procure.BudgetAllocation) string {
	return mustJSON(map[string]string{
		"total":    b.Total.String(),
		"used":     b.Used.String(),
		"reserved": b.Reserved.String(),
	})
}

// =============================================================================
// BUDGET LEDGER - Administrative surface
// =============================================================================

// BudgetLedger exposes allocation management and the ledger operations
// as standalone atomic commands.
type BudgetLedger struct {
	store TxStore
	Clock func() time.Time
	Log   zerolog.Logger
}

// NewBudgetLedger creates a budget ledger over a transactional store.
func NewBudgetLedger(store TxStore, log zerolog.Logger) *BudgetLedger {
	return &BudgetLedger{store: store, Clock: time.Now, Log: log}
}

// CreateAllocation registers a new budget code.
func (l *BudgetLedger) CreateAllocation(ctx context.Context, code, name string, fiscalYear int, total decimal.Decimal, actor string) (*procure.BudgetAllocation, error) {
	if code == "" {
		return nil, &procure.FieldError{Field: "code", Message: "required"}
	}
	if total.IsNegative() {
		return nil, &procure.FieldError{Field: "total", Message: "must not be negative"}
	}
	if fiscalYear == 0 {
		fiscalYear = l.Clock().Year()
	}

	now := l.Clock()
	b := &procure.BudgetAllocation{
		Code:       code,
		Name:       name,
		FiscalYear: fiscalYear,
		Total:      total,
		Used:       decimal.Zero,
		Reserved:   decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := l.store.WithTx(ctx, func(st Store) error {
		if err := st.InsertBudget(ctx, b); err != nil {
			return err
		}
		return st.AppendAudit(ctx, procure.AuditEntry{
			ID: newID("aud"), Table: "budget_allocations", RecordID: code,
			Action: procure.AuditCreate, After: budgetSnapshot(b),
			Actor: actor, Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reserve earmarks funds against a code.
func (l *BudgetLedger) Reserve(ctx context.Context, code string, amount decimal.Decimal, actor string) error {
	return l.store.WithTx(ctx, func(st Store) error {
		return reserveBudget(ctx, st, code, amount, actor, l.Clock())
	})
}

// Consume realizes funds against a code.
func (l *BudgetLedger) Consume(ctx context.Context, code string, amount decimal.Decimal, actor string) error {
	return l.store.WithTx(ctx, func(st Store) error {
		return consumeBudget(ctx, st, code, amount, actor, l.Clock())
	})
}

// Release returns reserved funds to the available pool.
func (l *BudgetLedger) Release(ctx context.Context, code string, amount decimal.Decimal, actor string) error {
	return l.store.WithTx(ctx, func(st Store) error {
		return releaseBudget(ctx, st, code, amount, actor, l.Clock())
	})
}

// Get loads one allocation.
func (l *BudgetLedger) Get(ctx context.Context, code string) (*procure.BudgetAllocation, error) {
	return l.store.GetBudget(ctx, code)
}

// List returns all allocations.
func (l *BudgetLedger) List(ctx context.Context) ([]procure.BudgetAllocation, error) {
	return l.store.ListBudgets(ctx)
}
