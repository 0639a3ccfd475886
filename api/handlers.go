/*
handlers.go - HTTP API handlers for the procurement engine

PURPOSE:
  Exposes the procurement workflow via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Requests:
    GET    /api/requests                        List (filter + paginate)
    POST   /api/requests                        Create draft
    GET    /api/requests/number-preview         Preview next number for a tier
    GET    /api/requests/{id}                   Get request
    PUT    /api/requests/{id}                   Update draft fields
    DELETE /api/requests/{id}                   Delete draft
    POST   /api/requests/{id}/transition        Direct status change
    GET    /api/requests/{id}/line-items        List line items
    POST   /api/requests/{id}/line-items        Add line item
    GET    /api/requests/{id}/approvals         List approval chain
    POST   /api/requests/{id}/approvals/{step}  Decide a step
    GET    /api/requests/{id}/withholding       Tax preview for a vendor
    GET    /api/requests/{id}/contracts         Contracts for a request

  Line items:
    PUT    /api/line-items/{id}                 Update line item
    DELETE /api/line-items/{id}                 Delete line item

  Vendors:
    GET/POST /api/vendors, GET/PUT/DELETE /api/vendors/{id}

  Contracts and payments:
    POST   /api/contracts                       Award contract
    GET    /api/contracts/{id}                  Get contract
    PUT    /api/contracts/{id}/status           Change contract status
    GET    /api/contracts/{id}/payments         List payments
    POST   /api/contracts/{id}/payments         Record payment
    POST   /api/payments/{id}/settle            Mark paid
    POST   /api/payments/{id}/cancel            Cancel pending payment

  Budgets:
    GET/POST /api/budgets, GET /api/budgets/{code}

  Audit:
    GET    /api/audit                           Query the audit trail

ERROR HANDLING:
  Domain error kinds map to HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (duplicate reference, illegal transition, not editable,
         vendor in use)
  - 422: Budget or contract value exceeded
  - 500: Storage and internal errors (details logged, not returned)

SECURITY NOTE:
  Currently NO authentication or authorization. The acting user is taken
  from the request body's "actor" field, or the X-Actor header where
  there is no body. Front this service with an authenticating proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
	"github.com/sigap/procure-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Requests *workflow.Service
	Vendors  *workflow.VendorService
	Budgets  *workflow.BudgetLedger
	Log      zerolog.Logger
}

// NewHandler creates a handler over the given services.
func NewHandler(requests *workflow.Service, vendors *workflow.VendorService, budgets *workflow.BudgetLedger, log zerolog.Logger) *Handler {
	return &Handler{
		Requests: requests,
		Vendors:  vendors,
		Budgets:  budgets,
		Log:      log,
	}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns a filtered, paginated request listing.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := workflow.RequestFilter{
		Tier:      procure.Tier(q.Get("tier")),
		Status:    procure.Status(q.Get("status")),
		Requester: q.Get("requester"),
		Unit:      q.Get("unit"),
		Search:    q.Get("search"),
		Page:      intQuery(q.Get("page")),
		Limit:     intQuery(q.Get("limit")),
	}
	if t, ok := timeQuery(q.Get("from")); ok {
		f.From = &t
	}
	if t, ok := timeQuery(q.Get("to")); ok {
		f.To = &t
	}

	page, err := h.Requests.ListRequests(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, "Failed to list requests", err)
		return
	}

	dtos := make([]RequestDTO, len(page.Data))
	for i := range page.Data {
		dtos[i] = toRequestDTO(&page.Data[i])
	}
	writeJSON(w, http.StatusOK, RequestPageDTO{
		Data:       dtos,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	})
}

// CreateRequest creates a new draft request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	estimate := decimal.Zero
	if body.EstimatedValue != "" {
		var err error
		estimate, err = parseAmount("estimated_value", body.EstimatedValue)
		if err != nil {
			h.writeDomainError(w, "Invalid estimated value", err)
			return
		}
	}

	req, err := h.Requests.CreateRequest(r.Context(), workflow.CreateRequestInput{
		Requester:      body.Requester,
		Unit:           body.Unit,
		Description:    body.Description,
		Category:       procure.Category(body.Category),
		Quantity:       body.Quantity,
		EstimatedValue: estimate,
		BudgetCode:     body.BudgetCode,
		Urgency:        procure.Urgency(body.Urgency),
		Note:           body.Note,
		Actor:          actor(body.Actor, r),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// PreviewNumber returns the number the next request of a tier would get.
// The preview is advisory: the number is only claimed at create time.
func (h *Handler) PreviewNumber(w http.ResponseWriter, r *http.Request) {
	tier := procure.Tier(r.URL.Query().Get("tier"))
	number, err := h.Requests.GenerateNumber(r.Context(), tier)
	if err != nil {
		h.writeDomainError(w, "Failed to preview number", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"number": number})
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requests.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// UpdateRequest applies partial field updates to a draft.
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	var body UpdateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := workflow.UpdateRequestInput{
		Description: body.Description,
		Unit:        body.Unit,
		Quantity:    body.Quantity,
		BudgetCode:  body.BudgetCode,
		Note:        body.Note,
		Actor:       actor(body.Actor, r),
	}
	if body.Category != nil {
		c := procure.Category(*body.Category)
		in.Category = &c
	}
	if body.Urgency != nil {
		u := procure.Urgency(*body.Urgency)
		in.Urgency = &u
	}
	if body.EstimatedValue != nil {
		v, err := parseAmount("estimated_value", *body.EstimatedValue)
		if err != nil {
			h.writeDomainError(w, "Invalid estimated value", err)
			return
		}
		in.EstimatedValue = &v
	}

	req, err := h.Requests.UpdateRequest(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, "Failed to update request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeleteRequest removes a draft request.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	err := h.Requests.DeleteRequest(r.Context(), chi.URLParam(r, "id"), actor("", r))
	if err != nil {
		h.writeDomainError(w, "Failed to delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionRequest moves a request to a new status directly. Approval
// outcomes go through DecideApproval instead.
func (h *Handler) TransitionRequest(w http.ResponseWriter, r *http.Request) {
	var body TransitionDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Requests.Transition(r.Context(), chi.URLParam(r, "id"),
		procure.Status(body.Target), actor(body.Actor, r), body.Note)
	if err != nil {
		h.writeDomainError(w, "Failed to transition request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// LINE ITEM HANDLERS
// =============================================================================

// ListLineItems returns the line items of a request.
func (h *Handler) ListLineItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Requests.LineItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list line items", err)
		return
	}
	dtos := make([]LineItemDTO, len(items))
	for i := range items {
		dtos[i] = toLineItemDTO(&items[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeLineItem(w http.ResponseWriter, r *http.Request) (workflow.LineItemInput, bool) {
	var body LineItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return workflow.LineItemInput{}, false
	}
	volume, err := parseAmount("volume", body.Volume)
	if err != nil {
		h.writeDomainError(w, "Invalid volume", err)
		return workflow.LineItemInput{}, false
	}
	price, err := parseAmount("unit_price", body.UnitPrice)
	if err != nil {
		h.writeDomainError(w, "Invalid unit price", err)
		return workflow.LineItemInput{}, false
	}
	return workflow.LineItemInput{
		Description: body.Description,
		Unit:        body.Unit,
		Volume:      volume,
		UnitPrice:   price,
		Actor:       actor(body.Actor, r),
	}, true
}

// AddLineItem appends a line item and returns it with the recalculated
// parent request.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLineItem(w, r)
	if !ok {
		return
	}
	item, req, err := h.Requests.AddLineItem(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, "Failed to add line item", err)
		return
	}
	writeJSON(w, http.StatusCreated, LineItemResponse{
		Item:    toLineItemDTO(item),
		Request: toRequestDTO(req),
	})
}

// UpdateLineItem rewrites a line item and returns the recalculated request.
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLineItem(w, r)
	if !ok {
		return
	}
	item, req, err := h.Requests.UpdateLineItem(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, "Failed to update line item", err)
		return
	}
	writeJSON(w, http.StatusOK, LineItemResponse{
		Item:    toLineItemDTO(item),
		Request: toRequestDTO(req),
	})
}

// DeleteLineItem removes a line item and returns the recalculated request.
func (h *Handler) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requests.DeleteLineItem(r.Context(), chi.URLParam(r, "id"), actor("", r))
	if err != nil {
		h.writeDomainError(w, "Failed to delete line item", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// ListApprovals returns the approval chain of a request in step order.
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	steps, err := h.Requests.ApprovalSteps(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list approvals", err)
		return
	}
	dtos := make([]ApprovalStepDTO, len(steps))
	for i := range steps {
		dtos[i] = toApprovalStepDTO(&steps[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideApproval records an approve/reject/revise decision on one step.
func (h *Handler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid step number", err)
		return
	}

	var body DecideDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Requests.Decide(r.Context(), chi.URLParam(r, "id"), step,
		procure.ApprovalAction(body.Action), actor(body.Actor, r), body.Note)
	if err != nil {
		h.writeDomainError(w, "Failed to record decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// WITHHOLDING PREVIEW
// =============================================================================

// ComputeWithholding returns the tax breakdown for paying a request's
// total through a given vendor.
func (h *Handler) ComputeWithholding(w http.ResponseWriter, r *http.Request) {
	vendorID := r.URL.Query().Get("vendor_id")
	if vendorID == "" {
		writeError(w, http.StatusBadRequest, "vendor_id query parameter is required", nil)
		return
	}

	wh, err := h.Requests.ComputeWithholding(r.Context(), chi.URLParam(r, "id"), vendorID)
	if err != nil {
		h.writeDomainError(w, "Failed to compute withholding", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithholdingDTO(wh))
}

// =============================================================================
// VENDOR HANDLERS
// =============================================================================

// ListVendors returns all vendors.
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Vendors.List(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list vendors", err)
		return
	}
	dtos := make([]VendorDTO, len(vendors))
	for i := range vendors {
		dtos[i] = toVendorDTO(&vendors[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func vendorInput(body VendorRequestDTO, r *http.Request) workflow.VendorInput {
	return workflow.VendorInput{
		Name:           body.Name,
		Type:           procure.VendorType(body.Type),
		TaxID:          body.TaxID,
		TaxRegistered:  body.TaxRegistered,
		Classification: body.Classification,
		Address:        body.Address,
		Contact:        body.Contact,
		Actor:          actor(body.Actor, r),
	}
}

// CreateVendor registers a new vendor.
func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var body VendorRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	v, err := h.Vendors.Create(r.Context(), vendorInput(body, r))
	if err != nil {
		h.writeDomainError(w, "Failed to create vendor", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVendorDTO(v))
}

// GetVendor returns a single vendor.
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.Vendors.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get vendor", err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorDTO(v))
}

// UpdateVendor rewrites a vendor record.
func (h *Handler) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	var body VendorRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	v, err := h.Vendors.Update(r.Context(), chi.URLParam(r, "id"), vendorInput(body, r))
	if err != nil {
		h.writeDomainError(w, "Failed to update vendor", err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorDTO(v))
}

// DeleteVendor removes a vendor with no active contracts.
func (h *Handler) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	err := h.Vendors.Delete(r.Context(), chi.URLParam(r, "id"), actor("", r))
	if err != nil {
		h.writeDomainError(w, "Failed to delete vendor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONTRACT AND PAYMENT HANDLERS
// =============================================================================

// CreateContract awards a contract and moves the request to contracted.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var body CreateContractDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	value, err := parseAmount("value", body.Value)
	if err != nil {
		h.writeDomainError(w, "Invalid contract value", err)
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		h.writeDomainError(w, "Invalid start date", err)
		return
	}
	end, err := parseDate("end_date", body.EndDate)
	if err != nil {
		h.writeDomainError(w, "Invalid end date", err)
		return
	}

	c, err := h.Requests.CreateContract(r.Context(), workflow.ContractInput{
		RequestID:     body.RequestID,
		VendorID:      body.VendorID,
		Value:         value,
		StartDate:     start,
		EndDate:       end,
		PaymentMethod: body.PaymentMethod,
		Actor:         actor(body.Actor, r),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

// GetContract returns a single contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Requests.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// ListRequestContracts returns the contracts awarded for a request.
func (h *Handler) ListRequestContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Requests.ListContracts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list contracts", err)
		return
	}
	dtos := make([]ContractDTO, len(contracts))
	for i := range contracts {
		dtos[i] = toContractDTO(&contracts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateContractStatus changes a contract's lifecycle status.
func (h *Handler) UpdateContractStatus(w http.ResponseWriter, r *http.Request) {
	var body ContractStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Requests.UpdateContractStatus(r.Context(), chi.URLParam(r, "id"),
		procure.ContractStatus(body.Status), actor(body.Actor, r))
	if err != nil {
		h.writeDomainError(w, "Failed to update contract status", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// ListPayments returns the payments recorded against a contract.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Requests.ListPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = toPaymentDTO(&payments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayment records a pending payment against a contract.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var body CreatePaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		h.writeDomainError(w, "Invalid payment amount", err)
		return
	}
	p, err := h.Requests.AddPayment(r.Context(), chi.URLParam(r, "id"),
		amount, body.Note, actor(body.Actor, r))
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

// SettlePayment marks a pending payment as paid.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Requests.SettlePayment(r.Context(), chi.URLParam(r, "id"), actor("", r))
	if err != nil {
		h.writeDomainError(w, "Failed to settle payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(p))
}

// CancelPayment cancels a pending payment, freeing contract headroom.
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Requests.CancelPayment(r.Context(), chi.URLParam(r, "id"), actor("", r))
	if err != nil {
		h.writeDomainError(w, "Failed to cancel payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(p))
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListBudgets returns all budget allocations.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.Budgets.List(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list budgets", err)
		return
	}
	dtos := make([]BudgetDTO, len(budgets))
	for i := range budgets {
		dtos[i] = toBudgetDTO(&budgets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBudget opens a new budget allocation.
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var body CreateBudgetDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total, err := parseAmount("total", body.Total)
	if err != nil {
		h.writeDomainError(w, "Invalid budget total", err)
		return
	}
	b, err := h.Budgets.CreateAllocation(r.Context(), body.Code, body.Name,
		body.FiscalYear, total, actor(body.Actor, r))
	if err != nil {
		h.writeDomainError(w, "Failed to create budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(b))
}

// GetBudget returns a single budget allocation.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.Budgets.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeDomainError(w, "Failed to get budget", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// QueryAudit returns audit trail entries, newest first.
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := procure.AuditFilter{
		Table:    q.Get("table"),
		RecordID: q.Get("record_id"),
		Actor:    q.Get("actor"),
		Limit:    intQuery(q.Get("limit")),
	}
	for _, a := range q["action"] {
		f.Actions = append(f.Actions, procure.AuditAction(a))
	}
	if t, ok := timeQuery(q.Get("from")); ok {
		f.From = &t
	}
	if t, ok := timeQuery(q.Get("to")); ok {
		f.To = &t
	}

	entries, err := h.Requests.AuditTrail(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, "Failed to query audit trail", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toAuditEntryDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// actor resolves the acting user: body field first, X-Actor header next,
// "system" last so audit entries never go out blank.
func actor(fromBody string, r *http.Request) string {
	if fromBody != "" {
		return fromBody
	}
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "system"
}

func intQuery(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func timeQuery(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// writeDomainError maps domain error kinds to HTTP status codes.
// Storage and unknown errors are logged and returned as opaque 500s.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, procure.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, procure.ErrDuplicateReference),
		errors.Is(err, procure.ErrInvalidTransition),
		errors.Is(err, procure.ErrNotEditable),
		errors.Is(err, procure.ErrVendorInUse):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, procure.ErrBudgetExceeded):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, procure.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
