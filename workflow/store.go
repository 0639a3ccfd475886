/*
store.go - Persistence interfaces consumed by the workflow layer

PURPOSE:
  Defines the boundary between orchestration logic and the database.
  The workflow layer never sees SQL; it composes these operations inside
  WithTx so every multi-step mutation (number generation + insert, status
  transition + budget update, line-item change + recalculation) is atomic.

ATOMICITY CONTRACT:
  WithTx(fn) runs fn against a Store bound to a single database
  transaction. If fn returns an error the transaction rolls back and no
  partial aggregate is ever visible. Workflow services hold a TxStore and
  do ALL multi-step work through it.

ERROR MAPPING:
  Implementations translate storage errors into procure error kinds:
  - unique constraint  -> procure.ErrDuplicateReference
  - CHECK / FK failure -> procure.ErrConstraint
  - engine failure     -> procure.ErrStorage

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store

SEE ALSO:
  - service.go: Request lifecycle orchestration
  - budget.go: Budget ledger operations
*/
package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// =============================================================================
// FILTERS AND PAGES
// =============================================================================

// RequestFilter narrows request listings. Zero values match everything.
type RequestFilter struct {
	Tier      procure.Tier
	Status    procure.Status
	Requester string
	Unit      string
	From      *time.Time
	To        *time.Time
	Search    string // matched against number and description

	Page  int // 1-based; defaults to 1
	Limit int // defaults to 20
}

// RequestPage is a paginated request listing.
type RequestPage struct {
	Data       []procure.Request
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// RequestStore persists the request aggregate and its children.
type RequestStore interface {
	InsertRequest(ctx context.Context, r *procure.Request) error
	GetRequest(ctx context.Context, id string) (*procure.Request, error)
	UpdateRequest(ctx context.Context, r *procure.Request) error
	// DeleteRequest removes the aggregate and cascades to line items and
	// approval steps. Audit entries are never deleted.
	DeleteRequest(ctx context.Context, id string) error
	ListRequests(ctx context.Context, f RequestFilter) ([]procure.Request, int, error)

	// MaxNumberSeq returns the highest sequence suffix ever issued for a
	// prefix+year scope, zero when none. Callers MUST invoke this inside
	// the same transaction as the subsequent insert.
	MaxNumberSeq(ctx context.Context, prefix string, year int) (int, error)

	InsertLineItem(ctx context.Context, li *procure.LineItem) error
	UpdateLineItem(ctx context.Context, li *procure.LineItem) error
	DeleteLineItem(ctx context.Context, id string) error
	GetLineItem(ctx context.Context, id string) (*procure.LineItem, error)
	ListLineItems(ctx context.Context, requestID string) ([]procure.LineItem, error)

	InsertApprovalStep(ctx context.Context, s *procure.ApprovalStep) error
	UpdateApprovalStep(ctx context.Context, s *procure.ApprovalStep) error
	DeleteApprovalSteps(ctx context.Context, requestID string) error
	ListApprovalSteps(ctx context.Context, requestID string) ([]procure.ApprovalStep, error)
}

// VendorStore persists vendor records.
type VendorStore interface {
	InsertVendor(ctx context.Context, v *procure.Vendor) error
	UpdateVendor(ctx context.Context, v *procure.Vendor) error
	DeleteVendor(ctx context.Context, id string) error
	GetVendor(ctx context.Context, id string) (*procure.Vendor, error)
	ListVendors(ctx context.Context) ([]procure.Vendor, error)
	// CountActiveContracts returns the number of non-terminated, non-expired
	// contracts referencing a vendor. Used as the delete guard.
	CountActiveContracts(ctx context.Context, vendorID string) (int, error)
}

// ContractStore persists contracts and their payments.
type ContractStore interface {
	InsertContract(ctx context.Context, c *procure.Contract) error
	UpdateContract(ctx context.Context, c *procure.Contract) error
	GetContract(ctx context.Context, id string) (*procure.Contract, error)
	ListContracts(ctx context.Context, requestID string) ([]procure.Contract, error)

	InsertPayment(ctx context.Context, p *procure.Payment) error
	UpdatePayment(ctx context.Context, p *procure.Payment) error
	GetPayment(ctx context.Context, id string) (*procure.Payment, error)
	ListPayments(ctx context.Context, contractID string) ([]procure.Payment, error)
	// SumPayments returns the total of non-cancelled payment amounts for a
	// contract. Must run inside the insert transaction for the cap check.
	SumPayments(ctx context.Context, contractID string) (decimal.Decimal, error)
}

// BudgetStore persists budget allocations.
type BudgetStore interface {
	InsertBudget(ctx context.Context, b *procure.BudgetAllocation) error
	GetBudget(ctx context.Context, code string) (*procure.BudgetAllocation, error)
	// UpdateBudgetAmounts writes used/reserved for a code, stamping
	// updated_at with the caller's clock. The storage layer
	// backs this with a CHECK (used + reserved <= total) as a second line
	// of defense.
	UpdateBudgetAmounts(ctx context.Context, code string, used, reserved decimal.Decimal, now time.Time) error
	ListBudgets(ctx context.Context) ([]procure.BudgetAllocation, error)
}

// AuditStore appends and queries immutable change records.
// Append-only: no update or delete operations exist.
type AuditStore interface {
	AppendAudit(ctx context.Context, e procure.AuditEntry) error
	QueryAudit(ctx context.Context, f procure.AuditFilter) ([]procure.AuditEntry, error)
}

// Store is the full persistence surface.
type Store interface {
	RequestStore
	VendorStore
	ContractStore
	BudgetStore
	AuditStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within one database transaction.
	// fn error -> rollback; nil -> commit.
	WithTx(ctx context.Context, fn func(Store) error) error
}
