/*
service.go - Procurement request lifecycle orchestration

PURPOSE:
  Implements the command surface for the request aggregate: create,
  update, list, delete, and status transitions. Every mutation runs
  inside one storage transaction and appends an audit entry before the
  transaction commits.

REQUEST FLOW:
  create        draft, numbered PR-Tn/YYYY/SSSS (sequence read inside the
                insert transaction)
  submit        draft -> submitted, approval chain built from the tier
  approve       submitted -> approved, budget reserved (onEnter effect)
  ...           approved -> procurement -> contracted -> delivered -> paid
  complete      paid -> completed, reservation realized against the budget
  cancel/reject any non-terminal -> absorbing state, reservation released

  The side effects come from the state table in procure/statemachine.go;
  this layer only executes what the table declares.

EDITABILITY:
  Core fields and line items can change only while the request is in
  draft. Everything else returns NotEditableError.

SEE ALSO:
  - lineitems.go: Line-item mutations and recalculation
  - approvals.go: Tier approval chain
  - budget.go: Reserve/consume/release primitives
*/
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// Service orchestrates the procurement request lifecycle.
type Service struct {
	store TxStore

	Tiers procure.TierPolicy
	Taxes procure.TaxPolicy

	// Clock is the injected date source; defaults to time.Now.
	Clock func() time.Time
	Log   zerolog.Logger
}

// NewService creates a request service over a transactional store.
func NewService(store TxStore, tiers procure.TierPolicy, taxes procure.TaxPolicy, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		Tiers: tiers,
		Taxes: taxes,
		Clock: time.Now,
		Log:   log,
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// =============================================================================
// CREATE
// =============================================================================

// CreateRequestInput carries the allow-listed fields for request creation.
// Anything not present here cannot be set by a caller.
type CreateRequestInput struct {
	Requester      string
	Unit           string
	Description    string
	Category       procure.Category
	Quantity       int
	EstimatedValue decimal.Decimal
	BudgetCode     string
	Urgency        procure.Urgency
	Note           string
	Actor          string
}

func (in *CreateRequestInput) validate() error {
	if in.Requester == "" {
		return &procure.FieldError{Field: "requester", Message: "required"}
	}
	if in.Unit == "" {
		return &procure.FieldError{Field: "unit", Message: "required"}
	}
	if in.Description == "" {
		return &procure.FieldError{Field: "description", Message: "required"}
	}
	if in.BudgetCode == "" {
		return &procure.FieldError{Field: "budget_code", Message: "required"}
	}
	if in.Category != procure.CategoryGoods && in.Category != procure.CategoryServices {
		return &procure.FieldError{Field: "category", Message: "must be goods or services"}
	}
	if in.EstimatedValue.IsNegative() {
		return &procure.FieldError{Field: "estimated_value", Message: "must not be negative"}
	}
	if in.Quantity < 0 {
		return &procure.FieldError{Field: "quantity", Message: "must not be negative"}
	}
	return nil
}

// CreateRequest validates the input, classifies the tier, generates the
// sequential number, and persists the draft - all in one transaction.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*procure.Request, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	tier, method := s.Tiers.Classify(in.EstimatedValue)

	r := &procure.Request{
		ID:          newID("req"),
		Tier:        tier,
		Method:      method,
		Status:      procure.InitialStatus,
		Requester:   in.Requester,
		Unit:        in.Unit,
		Description: in.Description,
		Category:    in.Category,
		Quantity:    max(in.Quantity, 1),
		TotalValue:  in.EstimatedValue,
		BudgetCode:  in.BudgetCode,
		Urgency:     in.Urgency,
		Note:        in.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Urgency == "" {
		r.Urgency = procure.UrgencyNormal
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		// Unknown budget codes fail fast; the FK is the storage backstop.
		if _, err := st.GetBudget(ctx, r.BudgetCode); err != nil {
			return err
		}

		number, err := s.nextNumber(ctx, st, tier, now.Year())
		if err != nil {
			return err
		}
		r.Number = number

		if err := st.InsertRequest(ctx, r); err != nil {
			return err
		}
		return st.AppendAudit(ctx, s.auditEntry("requests", r.ID, procure.AuditCreate, "", snapshot(r), in.Actor))
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("request", r.ID).Str("number", r.Number).Str("tier", string(r.Tier)).
		Msg("procurement request created")
	return r, nil
}

// =============================================================================
// NUMBER GENERATION
// =============================================================================

var tierPrefixes = map[procure.Tier]string{
	procure.Tier1: "PR-T1",
	procure.Tier2: "PR-T2",
	procure.Tier3: "PR-T3",
}

// nextNumber composes prefix/year/sequence as a read-then-write, so callers
// must already be inside the insert transaction. The sequence continues from
// the highest suffix ever issued, not the row count: deleting a draft must
// never free its number for reuse.
func (s *Service) nextNumber(ctx context.Context, st Store, tier procure.Tier, year int) (string, error) {
	prefix := tierPrefixes[tier]
	seq, err := st.MaxNumberSeq(ctx, prefix, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d/%04d", prefix, year, seq+1), nil
}

// GenerateNumber previews the next number for a tier. The authoritative
// number is still generated inside the create transaction; a preview can
// be stale by the time the caller creates the request.
func (s *Service) GenerateNumber(ctx context.Context, tier procure.Tier) (string, error) {
	if _, ok := tierPrefixes[tier]; !ok {
		return "", &procure.FieldError{Field: "tier", Message: "unknown tier"}
	}
	var number string
	err := s.store.WithTx(ctx, func(st Store) error {
		n, err := s.nextNumber(ctx, st, tier, s.now().Year())
		number = n
		return err
	})
	return number, err
}

// =============================================================================
// READ
// =============================================================================

// GetRequest loads a request by id.
func (s *Service) GetRequest(ctx context.Context, id string) (*procure.Request, error) {
	return s.store.GetRequest(ctx, id)
}

// ListRequests returns a filtered, paginated listing.
func (s *Service) ListRequests(ctx context.Context, f RequestFilter) (*RequestPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}

	data, total, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, err
	}

	return &RequestPage{
		Data:       data,
		Page:       f.Page,
		Limit:      f.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}, nil
}

// LineItems returns the line items owned by a request.
func (s *Service) LineItems(ctx context.Context, requestID string) ([]procure.LineItem, error) {
	if _, err := s.store.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.store.ListLineItems(ctx, requestID)
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateRequestInput is the allow-list of mutable fields. Nil pointers
// leave the field untouched.
type UpdateRequestInput struct {
	Description    *string
	Unit           *string
	Category       *procure.Category
	Quantity       *int
	EstimatedValue *decimal.Decimal // ignored once line items exist
	BudgetCode     *string
	Urgency        *procure.Urgency
	Note           *string
	Actor          string
}

// UpdateRequest applies an allow-listed patch to a draft request.
// EstimatedValue reclassifies the tier unless line items own the total.
func (s *Service) UpdateRequest(ctx context.Context, id string, in UpdateRequestInput) (*procure.Request, error) {
	var out *procure.Request

	err := s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if !procure.IsEditable(r.Status) {
			return &procure.NotEditableError{RequestID: r.ID, Status: r.Status}
		}
		before := snapshot(r)

		if in.Description != nil {
			if *in.Description == "" {
				return &procure.FieldError{Field: "description", Message: "required"}
			}
			r.Description = *in.Description
		}
		if in.Unit != nil {
			r.Unit = *in.Unit
		}
		if in.Category != nil {
			if *in.Category != procure.CategoryGoods && *in.Category != procure.CategoryServices {
				return &procure.FieldError{Field: "category", Message: "must be goods or services"}
			}
			r.Category = *in.Category
		}
		if in.Quantity != nil {
			if *in.Quantity < 1 {
				return &procure.FieldError{Field: "quantity", Message: "must be positive"}
			}
			r.Quantity = *in.Quantity
		}
		if in.BudgetCode != nil {
			if _, err := st.GetBudget(ctx, *in.BudgetCode); err != nil {
				return err
			}
			r.BudgetCode = *in.BudgetCode
		}
		if in.Urgency != nil {
			r.Urgency = *in.Urgency
		}
		if in.Note != nil {
			r.Note = *in.Note
		}

		if in.EstimatedValue != nil {
			if in.EstimatedValue.IsNegative() {
				return &procure.FieldError{Field: "estimated_value", Message: "must not be negative"}
			}
			items, err := st.ListLineItems(ctx, r.ID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				r.TotalValue = *in.EstimatedValue
				r.Tier, r.Method = s.Tiers.Classify(r.TotalValue)
			}
		}

		r.UpdatedAt = s.now()
		if err := st.UpdateRequest(ctx, r); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("requests", r.ID, procure.AuditUpdate, before, snapshot(r), in.Actor)); err != nil {
			return err
		}

		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteRequest removes a draft aggregate and its children. Non-draft
// requests are protected; cancel them instead.
func (s *Service) DeleteRequest(ctx context.Context, id, actor string) error {
	return s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if !procure.IsEditable(r.Status) {
			return &procure.NotEditableError{RequestID: r.ID, Status: r.Status}
		}

		if err := st.DeleteRequest(ctx, id); err != nil {
			return err
		}
		return st.AppendAudit(ctx, s.auditEntry("requests", r.ID, procure.AuditDelete, snapshot(r), "", actor))
	})
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// Transition moves a request to a target status, executing the budget
// effect the state table declares for that target. Status change, effect,
// and audit entry commit together or not at all.
func (s *Service) Transition(ctx context.Context, id string, target procure.Status, actor, note string) (*procure.Request, error) {
	var out *procure.Request

	err := s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := s.applyTransition(ctx, st, r, target, actor, note); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("request", out.ID).Str("status", string(out.Status)).Msg("request transitioned")
	return out, nil
}

// applyTransition is the single authority that changes a request's status.
// It must be called inside a transaction; approvals.go reuses it so that
// approval outcomes and transitions share one code path.
func (s *Service) applyTransition(ctx context.Context, st Store, r *procure.Request, target procure.Status, actor, note string) error {
	if err := procure.CheckTransition(r.ID, r.Status, target); err != nil {
		return err
	}

	old := r.Status
	now := s.now()

	switch procure.EnterEffect(target) {
	case procure.EffectReserveBudget:
		if !r.BudgetReserved && r.TotalValue.IsPositive() {
			if err := reserveBudget(ctx, st, r.BudgetCode, r.TotalValue, actor, now); err != nil {
				return err
			}
			r.BudgetReserved = true
		}
	case procure.EffectConsumeBudget:
		if r.BudgetReserved {
			if err := consumeBudget(ctx, st, r.BudgetCode, r.TotalValue, actor, now); err != nil {
				return err
			}
			r.BudgetReserved = false
		}
	case procure.EffectReleaseBudget:
		if r.BudgetReserved {
			if err := releaseBudget(ctx, st, r.BudgetCode, r.TotalValue, actor, now); err != nil {
				return err
			}
			r.BudgetReserved = false
		}
	}

	switch target {
	case procure.StatusSubmitted:
		// (Re)build the approval chain for the current tier.
		if err := s.buildApprovalChain(ctx, st, r, now); err != nil {
			return err
		}
	case procure.StatusDraft:
		// Returning for revision clears the chain; resubmission rebuilds it.
		if err := st.DeleteApprovalSteps(ctx, r.ID); err != nil {
			return err
		}
	}

	r.Status = target
	r.UpdatedAt = now
	if err := st.UpdateRequest(ctx, r); err != nil {
		return err
	}

	change := map[string]string{"status": string(old)}
	after := map[string]string{"status": string(target)}
	if note != "" {
		after["note"] = note
	}
	return st.AppendAudit(ctx, s.auditEntry("requests", r.ID, procure.AuditTransition,
		mustJSON(change), mustJSON(after), actor))
}

// =============================================================================
// WITHHOLDING PREVIEW
// =============================================================================

// ComputeWithholding returns the tax breakdown for paying a request's
// total to a vendor, using the configured tax policy.
func (s *Service) ComputeWithholding(ctx context.Context, requestID, vendorID string) (*procure.Withholding, error) {
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	w := s.Taxes.ComputeWithholding(r.TotalValue, r.Category, *v)
	return &w, nil
}

// =============================================================================
// AUDIT HELPERS
// =============================================================================

func (s *Service) auditEntry(table, recordID string, action procure.AuditAction, before, after, actor string) procure.AuditEntry {
	return procure.AuditEntry{
		ID:        newID("aud"),
		Table:     table,
		RecordID:  recordID,
		Action:    action,
		Before:    before,
		After:     after,
		Actor:     actor,
		Timestamp: s.now(),
	}
}

// AuditTrail queries the audit log.
func (s *Service) AuditTrail(ctx context.Context, f procure.AuditFilter) ([]procure.AuditEntry, error) {
	return s.store.QueryAudit(ctx, f)
}

// snapshot serializes the audit-relevant fields of a request.
func snapshot(r *procure.Request) string {
	return mustJSON(map[string]any{
		"number":      r.Number,
		"tier":        r.Tier,
		"method":      r.Method,
		"status":      r.Status,
		"requester":   r.Requester,
		"unit":        r.Unit,
		"description": r.Description,
		"category":    r.Category,
		"quantity":    r.Quantity,
		"total_value": r.TotalValue.String(),
		"budget_code": r.BudgetCode,
		"urgency":     r.Urgency,
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
