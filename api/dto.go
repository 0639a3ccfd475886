/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

MONEY ON THE WIRE:
  All monetary amounts travel as decimal strings ("15000000"), never as
  JSON numbers. Clients parse them with a decimal library; float64
  round-trips would corrupt rupiah amounts.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - Create- and Update-prefixed types: request bodies from clients
  - *Response: Complex response wrappers

VALIDATION:
  Structural validation (missing fields, bad decimals) happens while
  decoding these types. Domain validation lives in workflow; DTOs are
  otherwise pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - workflow: The input structs these decode into
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// =============================================================================
// REQUESTS
// =============================================================================

// RequestDTO represents a procurement request in API responses.
type RequestDTO struct {
	ID             string `json:"id"`
	Number         string `json:"number"`
	Tier           string `json:"tier"`
	Method         string `json:"method"`
	Status         string `json:"status"`
	Requester      string `json:"requester"`
	Unit           string `json:"unit"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Quantity       int    `json:"quantity"`
	TotalValue     string `json:"total_value"`
	BudgetCode     string `json:"budget_code"`
	Urgency        string `json:"urgency,omitempty"`
	Note           string `json:"note,omitempty"`
	BudgetReserved bool   `json:"budget_reserved"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toRequestDTO(r *procure.Request) RequestDTO {
	return RequestDTO{
		ID:             r.ID,
		Number:         r.Number,
		Tier:           string(r.Tier),
		Method:         string(r.Method),
		Status:         string(r.Status),
		Requester:      r.Requester,
		Unit:           r.Unit,
		Description:    r.Description,
		Category:       string(r.Category),
		Quantity:       r.Quantity,
		TotalValue:     r.TotalValue.String(),
		BudgetCode:     r.BudgetCode,
		Urgency:        string(r.Urgency),
		Note:           r.Note,
		BudgetReserved: r.BudgetReserved,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateRequestDTO is the request body to create a procurement request.
type CreateRequestDTO struct {
	Requester      string `json:"requester"`
	Unit           string `json:"unit"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Quantity       int    `json:"quantity"`
	EstimatedValue string `json:"estimated_value"`
	BudgetCode     string `json:"budget_code"`
	Urgency        string `json:"urgency"`
	Note           string `json:"note"`
	Actor          string `json:"actor"`
}

// UpdateRequestDTO carries partial updates; absent fields are left alone.
type UpdateRequestDTO struct {
	Description    *string `json:"description"`
	Unit           *string `json:"unit"`
	Category       *string `json:"category"`
	Quantity       *int    `json:"quantity"`
	EstimatedValue *string `json:"estimated_value"`
	BudgetCode     *string `json:"budget_code"`
	Urgency        *string `json:"urgency"`
	Note           *string `json:"note"`
	Actor          string  `json:"actor"`
}

// TransitionDTO is the request body for a direct status change.
type TransitionDTO struct {
	Target string `json:"target"`
	Actor  string `json:"actor"`
	Note   string `json:"note"`
}

// RequestPageDTO is a paginated request listing.
type RequestPageDTO struct {
	Data       []RequestDTO `json:"data"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int          `json:"total"`
	TotalPages int          `json:"total_pages"`
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItemDTO represents one priced component of a request.
type LineItemDTO struct {
	ID          string `json:"id"`
	RequestID   string `json:"request_id"`
	Description string `json:"description"`
	Unit        string `json:"unit,omitempty"`
	Volume      string `json:"volume"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toLineItemDTO(li *procure.LineItem) LineItemDTO {
	return LineItemDTO{
		ID:          li.ID,
		RequestID:   li.RequestID,
		Description: li.Description,
		Unit:        li.Unit,
		Volume:      li.Volume.String(),
		UnitPrice:   li.UnitPrice.String(),
		Amount:      li.Amount.String(),
		CreatedAt:   li.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   li.UpdatedAt.Format(time.RFC3339),
	}
}

// LineItemRequestDTO is the request body to add or update a line item.
type LineItemRequestDTO struct {
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Volume      string `json:"volume"`
	UnitPrice   string `json:"unit_price"`
	Actor       string `json:"actor"`
}

// LineItemResponse pairs a mutated line item with the request it
// recalculated, so clients see the new total without a second call.
type LineItemResponse struct {
	Item    LineItemDTO `json:"item"`
	Request RequestDTO  `json:"request"`
}

// =============================================================================
// APPROVALS
// =============================================================================

// ApprovalStepDTO represents one checkpoint in an approval chain.
type ApprovalStepDTO struct {
	ID           string `json:"id"`
	RequestID    string `json:"request_id"`
	StepNumber   int    `json:"step_number"`
	ApproverRole string `json:"approver_role"`
	Action       string `json:"action"`
	ActedBy      string `json:"acted_by,omitempty"`
	Note         string `json:"note,omitempty"`
	ActedAt      string `json:"acted_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toApprovalStepDTO(s *procure.ApprovalStep) ApprovalStepDTO {
	dto := ApprovalStepDTO{
		ID:           s.ID,
		RequestID:    s.RequestID,
		StepNumber:   s.StepNumber,
		ApproverRole: s.ApproverRole,
		Action:       string(s.Action),
		ActedBy:      s.ActedBy,
		Note:         s.Note,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
	}
	if s.ActedAt != nil {
		dto.ActedAt = s.ActedAt.Format(time.RFC3339)
	}
	return dto
}

// DecideDTO is the request body to approve, reject, or revise a step.
type DecideDTO struct {
	Action string `json:"action"`
	Actor  string `json:"actor"`
	Note   string `json:"note"`
}

// =============================================================================
// VENDORS
// =============================================================================

// VendorDTO represents a vendor in API responses.
type VendorDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	TaxID          string `json:"tax_id,omitempty"`
	TaxRegistered  bool   `json:"tax_registered"`
	Classification string `json:"classification,omitempty"`
	Address        string `json:"address,omitempty"`
	Contact        string `json:"contact,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toVendorDTO(v *procure.Vendor) VendorDTO {
	return VendorDTO{
		ID:             v.ID,
		Name:           v.Name,
		Type:           string(v.Type),
		TaxID:          v.TaxID,
		TaxRegistered:  v.TaxRegistered,
		Classification: v.Classification,
		Address:        v.Address,
		Contact:        v.Contact,
		CreatedAt:      v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      v.UpdatedAt.Format(time.RFC3339),
	}
}

// VendorRequestDTO is the request body to create or update a vendor.
type VendorRequestDTO struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	TaxID          string `json:"tax_id"`
	TaxRegistered  bool   `json:"tax_registered"`
	Classification string `json:"classification"`
	Address        string `json:"address"`
	Contact        string `json:"contact"`
	Actor          string `json:"actor"`
}

// =============================================================================
// CONTRACTS AND PAYMENTS
// =============================================================================

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	RequestID     string `json:"request_id"`
	VendorID      string `json:"vendor_id"`
	Value         string `json:"value"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toContractDTO(c *procure.Contract) ContractDTO {
	return ContractDTO{
		ID:            c.ID,
		Number:        c.Number,
		RequestID:     c.RequestID,
		VendorID:      c.VendorID,
		Value:         c.Value.String(),
		StartDate:     c.StartDate.Format("2006-01-02"),
		EndDate:       c.EndDate.Format("2006-01-02"),
		Status:        string(c.Status),
		PaymentMethod: c.PaymentMethod,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateContractDTO is the request body to award a contract.
// Dates are calendar dates in YYYY-MM-DD.
type CreateContractDTO struct {
	RequestID     string `json:"request_id"`
	VendorID      string `json:"vendor_id"`
	Value         string `json:"value"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	PaymentMethod string `json:"payment_method"`
	Actor         string `json:"actor"`
}

// ContractStatusDTO is the request body to change a contract's status.
type ContractStatusDTO struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// PaymentDTO represents a disbursement against a contract.
type PaymentDTO struct {
	ID         string `json:"id"`
	ContractID string `json:"contract_id"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	Note       string `json:"note,omitempty"`
	PaidAt     string `json:"paid_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toPaymentDTO(p *procure.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:         p.ID,
		ContractID: p.ContractID,
		Amount:     p.Amount.String(),
		Status:     string(p.Status),
		Note:       p.Note,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
	if p.PaidAt != nil {
		dto.PaidAt = p.PaidAt.Format(time.RFC3339)
	}
	return dto
}

// CreatePaymentDTO is the request body to record a payment.
type CreatePaymentDTO struct {
	Amount string `json:"amount"`
	Note   string `json:"note"`
	Actor  string `json:"actor"`
}

// =============================================================================
// BUDGETS
// =============================================================================

// BudgetDTO represents a budget allocation in API responses.
type BudgetDTO struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	FiscalYear int    `json:"fiscal_year"`
	Total      string `json:"total"`
	Used       string `json:"used"`
	Reserved   string `json:"reserved"`
	Remaining  string `json:"remaining"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toBudgetDTO(b *procure.BudgetAllocation) BudgetDTO {
	return BudgetDTO{
		Code:       b.Code,
		Name:       b.Name,
		FiscalYear: b.FiscalYear,
		Total:      b.Total.String(),
		Used:       b.Used.String(),
		Reserved:   b.Reserved.String(),
		Remaining:  b.Remaining().String(),
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  b.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateBudgetDTO is the request body to open a budget allocation.
type CreateBudgetDTO struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	FiscalYear int    `json:"fiscal_year"`
	Total      string `json:"total"`
	Actor      string `json:"actor"`
}

// =============================================================================
// WITHHOLDING AND AUDIT
// =============================================================================

// WithholdingDTO is the tax breakdown for paying a request through a vendor.
type WithholdingDTO struct {
	Base        string `json:"base"`
	VAT         string `json:"vat"`
	GoodsTax    string `json:"goods_tax"`
	ServicesTax string `json:"services_tax"`
	Net         string `json:"net"`
}

func toWithholdingDTO(w *procure.Withholding) WithholdingDTO {
	return WithholdingDTO{
		Base:        w.Base.String(),
		VAT:         w.VAT.String(),
		GoodsTax:    w.GoodsTax.String(),
		ServicesTax: w.ServicesTax.String(),
		Net:         w.Net.String(),
	}
}

// AuditEntryDTO represents one immutable audit log row.
type AuditEntryDTO struct {
	ID        string `json:"id"`
	Table     string `json:"table"`
	RecordID  string `json:"record_id"`
	Action    string `json:"action"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
	Actor     string `json:"actor"`
	Timestamp string `json:"timestamp"`
}

func toAuditEntryDTO(e *procure.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Table:     e.Table,
		RecordID:  e.RecordID,
		Action:    string(e.Action),
		Before:    e.Before,
		After:     e.After,
		Actor:     e.Actor,
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// parseAmount decodes a wire decimal, rejecting empty strings so a
// forgotten field never silently becomes zero.
func parseAmount(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, &procure.FieldError{Field: field, Message: "is required"}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, &procure.FieldError{Field: field, Message: "is not a valid decimal"}
	}
	return d, nil
}

// parseDate decodes a YYYY-MM-DD calendar date.
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, &procure.FieldError{Field: field, Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}
