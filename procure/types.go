/*
Package procure contains the core procurement domain types and rules.

PURPOSE:
  This package holds everything that is pure business logic: the entity
  types, the tier classifier, the status state machine, and the tax
  computation. Nothing in here touches the database or the network, which
  keeps the invariants unit-testable in isolation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: The aggregate root of the procurement workflow
  - LineItem: A priced component owned by a request
  - Vendor, Contract, Payment: Downstream procurement records
  - BudgetAllocation: A pool of fiscal-year funds with used/reserved tracking
  - ApprovalStep: A single tier-approval checkpoint on a request

DESIGN PRINCIPLES:
  1. Precision: All monetary values use decimal.Decimal, never float64
  2. Explicit states: Every enum value is a named constant, no magic strings
  3. Ownership: Child records (line items, steps) reference exactly one request

SEE ALSO:
  - tier.go: Value-based tier classification
  - statemachine.go: Legal status transitions and their side effects
  - tax.go: VAT and withholding computation
*/
package procure

import (
	"time"

	"github.com/shopspring/decimal"
)

// MustDecimal parses a decimal string, returning zero on malformed input.
// Intended for constants and storage scans where the input is trusted.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ENUMS
// =============================================================================

// Tier buckets a request by estimated value. The tier determines the
// default procurement method and the depth of the approval chain.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// Method is the procurement method used to source the goods or services.
type Method string

const (
	MethodDirect    Method = "direct_purchase"
	MethodQuotation Method = "quotation"
	MethodTender    Method = "tender"
)

// Status is the lifecycle state of a procurement request.
// Legal movements between statuses are defined in statemachine.go.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusApproved    Status = "approved"
	StatusProcurement Status = "procurement"
	StatusContracted  Status = "contracted"
	StatusDelivered   Status = "delivered"
	StatusPaid        Status = "paid"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRejected    Status = "rejected"
)

// Category splits requests into goods and services procurement.
// Withholding tax rules differ between the two.
type Category string

const (
	CategoryGoods    Category = "goods"
	CategoryServices Category = "services"
)

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// VendorType distinguishes organizations from individual vendors.
// Services withholding applies only to individuals.
type VendorType string

const (
	VendorOrganization VendorType = "organization"
	VendorIndividual   VendorType = "individual"
)

type ContractStatus string

const (
	ContractDraft      ContractStatus = "draft"
	ContractActive     ContractStatus = "active"
	ContractCompleted  ContractStatus = "completed"
	ContractTerminated ContractStatus = "terminated"
	ContractExpired    ContractStatus = "expired"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

// ApprovalAction is the recorded outcome of a single approval step.
type ApprovalAction string

const (
	ApprovalPending  ApprovalAction = "pending"
	ApprovalApproved ApprovalAction = "approved"
	ApprovalRejected ApprovalAction = "rejected"
	ApprovalRevise   ApprovalAction = "revise"
)

// =============================================================================
// REQUEST - Aggregate root
// =============================================================================

// Request is the procurement request aggregate root. It owns its line
// items and approval steps; TotalValue always equals the sum of line item
// amounts once any line item exists.
type Request struct {
	ID          string
	Number      string // human-readable, sequential per tier+year
	Tier        Tier
	Method      Method
	Status      Status
	Requester   string
	Unit        string // organizational unit
	Description string
	Category    Category
	Quantity    int
	TotalValue  decimal.Decimal
	BudgetCode  string
	Urgency     Urgency
	Note        string

	// BudgetReserved tracks whether this request currently holds a
	// reservation against its budget code. Set on entering approved,
	// cleared when the reservation is consumed or released.
	BudgetReserved bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is a single priced component of a request.
// Amount is always Volume × UnitPrice, recomputed on every write.
type LineItem struct {
	ID          string
	RequestID   string
	Description string
	Unit        string // unit of measure (pcs, box, man-day)
	Volume      decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// VENDORS, CONTRACTS, PAYMENTS
// =============================================================================

// Vendor is an independent supplier record. TaxID and TaxRegistered feed
// the withholding computation in tax.go.
type Vendor struct {
	ID             string
	Name           string
	Type           VendorType
	TaxID          string // NPWP; empty when the vendor has none
	TaxRegistered  bool   // PKP flag; enables VAT collection
	Classification string
	Address        string
	Contact        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Contract binds one request to one vendor. Creating a contract moves the
// parent request into the contracted state.
type Contract struct {
	ID            string
	Number        string
	RequestID     string
	VendorID      string
	Value         decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time // must be >= StartDate
	Status        ContractStatus
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Payment is a disbursement against a contract. The sum of non-cancelled
// payment amounts never exceeds the contract value.
type Payment struct {
	ID         string
	ContractID string
	Amount     decimal.Decimal
	Status     PaymentStatus
	Note       string
	PaidAt     *time.Time
	CreatedAt  time.Time
}

// =============================================================================
// BUDGET
// =============================================================================

// BudgetAllocation is a named pool of fiscal-year funds.
// Invariant: Used + Reserved <= Total, and no component is negative.
type BudgetAllocation struct {
	Code       string
	Name       string
	FiscalYear int
	Total      decimal.Decimal
	Used       decimal.Decimal
	Reserved   decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Remaining returns the amount still available for reservation.
func (b BudgetAllocation) Remaining() decimal.Decimal {
	return b.Total.Sub(b.Used).Sub(b.Reserved)
}

// =============================================================================
// APPROVALS
// =============================================================================

// ApprovalStep is one checkpoint in a request's approval chain.
// Step numbers are unique per request and processed in order.
type ApprovalStep struct {
	ID           string
	RequestID    string
	StepNumber   int
	ApproverRole string
	Action       ApprovalAction
	ActedBy      string
	Note         string
	ActedAt      *time.Time
	CreatedAt    time.Time
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditEntry is an immutable record of a single mutation. Entries are
// append-only: application logic never updates or deletes them.
type AuditEntry struct {
	ID        string
	Table     string
	RecordID  string
	Action    AuditAction
	Before    string // JSON snapshot, empty on create
	After     string // JSON snapshot, empty on delete
	Actor     string
	Timestamp time.Time
}

type AuditAction string

const (
	AuditCreate     AuditAction = "create"
	AuditUpdate     AuditAction = "update"
	AuditDelete     AuditAction = "delete"
	AuditTransition AuditAction = "transition"
	AuditApproval   AuditAction = "approval"
	AuditBudget     AuditAction = "budget"
)

// AuditFilter narrows audit log queries. Nil fields match everything.
type AuditFilter struct {
	Table    string
	RecordID string
	Actor    string
	Actions  []AuditAction
	From     *time.Time
	To       *time.Time
	Limit    int
}
