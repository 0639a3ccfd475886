/*
contracts.go - Contracts and payments

PURPOSE:
  A contract binds one request to one vendor. Creating it requires the
  request to be in procurement status and moves it to contracted through
  the same transition authority as every other status change, inside the
  same transaction as the contract insert.

  Payments draw against a contract under a hard cap: the sum of
  non-cancelled payment amounts never exceeds the contract value. The cap
  check and the insert share a transaction, so concurrent payments cannot
  slip past it.

SEE ALSO:
  - service.go: applyTransition
  - procure/tax.go: Withholding on payment amounts
*/
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// ContractInput carries the writable contract fields.
type ContractInput struct {
	RequestID     string
	VendorID      string
	Value         decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	PaymentMethod string
	Actor         string
}

func (in *ContractInput) validate() error {
	if in.RequestID == "" {
		return &procure.FieldError{Field: "request_id", Message: "required"}
	}
	if in.VendorID == "" {
		return &procure.FieldError{Field: "vendor_id", Message: "required"}
	}
	if !in.Value.IsPositive() {
		return &procure.FieldError{Field: "value", Message: "must be positive"}
	}
	if in.EndDate.Before(in.StartDate) {
		return &procure.FieldError{Field: "end_date", Message: "must not precede start_date"}
	}
	return nil
}

// CreateContract inserts an active contract and transitions the parent
// request from procurement to contracted atomically.
func (s *Service) CreateContract(ctx context.Context, in ContractInput) (*procure.Contract, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *procure.Contract

	err := s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		v, err := st.GetVendor(ctx, in.VendorID)
		if err != nil {
			return err
		}

		now := s.now()
		c := &procure.Contract{
			ID:            newID("ctr"),
			Number:        fmt.Sprintf("SPK/%d/%s", now.Year(), r.Number),
			RequestID:     r.ID,
			VendorID:      v.ID,
			Value:         in.Value,
			StartDate:     in.StartDate,
			EndDate:       in.EndDate,
			Status:        procure.ContractActive,
			PaymentMethod: in.PaymentMethod,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := st.InsertContract(ctx, c); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("contracts", c.ID, procure.AuditCreate, "", contractSnapshot(c), in.Actor)); err != nil {
			return err
		}

		// Contracting is a lifecycle event on the parent: procurement -> contracted.
		if err := s.applyTransition(ctx, st, r, procure.StatusContracted, in.Actor, "contract "+c.Number); err != nil {
			return err
		}

		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetContract loads one contract.
func (s *Service) GetContract(ctx context.Context, id string) (*procure.Contract, error) {
	return s.store.GetContract(ctx, id)
}

// ListContracts returns contracts, optionally scoped to one request.
func (s *Service) ListContracts(ctx context.Context, requestID string) ([]procure.Contract, error) {
	return s.store.ListContracts(ctx, requestID)
}

// UpdateContractStatus moves a contract between its own states.
func (s *Service) UpdateContractStatus(ctx context.Context, id string, status procure.ContractStatus, actor string) (*procure.Contract, error) {
	switch status {
	case procure.ContractActive, procure.ContractCompleted, procure.ContractTerminated, procure.ContractExpired:
	default:
		return nil, &procure.FieldError{Field: "status", Message: "unknown contract status"}
	}

	var out *procure.Contract
	err := s.store.WithTx(ctx, func(st Store) error {
		c, err := st.GetContract(ctx, id)
		if err != nil {
			return err
		}
		before := contractSnapshot(c)
		c.Status = status
		c.UpdatedAt = s.now()
		if err := st.UpdateContract(ctx, c); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("contracts", c.ID, procure.AuditUpdate, before, contractSnapshot(c), actor)); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// AddPayment records a payment against a contract, enforcing the cap
// sum(non-cancelled payments) <= contract value inside the transaction.
func (s *Service) AddPayment(ctx context.Context, contractID string, amount decimal.Decimal, note, actor string) (*procure.Payment, error) {
	if !amount.IsPositive() {
		return nil, &procure.FieldError{Field: "amount", Message: "must be positive"}
	}

	var out *procure.Payment

	err := s.store.WithTx(ctx, func(st Store) error {
		c, err := st.GetContract(ctx, contractID)
		if err != nil {
			return err
		}

		paid, err := st.SumPayments(ctx, contractID)
		if err != nil {
			return err
		}
		if paid.Add(amount).GreaterThan(c.Value) {
			return &procure.BudgetExceededError{
				Code:      c.Number,
				Requested: amount,
				Remaining: c.Value.Sub(paid),
			}
		}

		p := &procure.Payment{
			ID:         newID("pay"),
			ContractID: c.ID,
			Amount:     amount,
			Status:     procure.PaymentPending,
			Note:       note,
			CreatedAt:  s.now(),
		}
		if err := st.InsertPayment(ctx, p); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("payments", p.ID, procure.AuditCreate, "", paymentSnapshot(p), actor)); err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SettlePayment marks a pending payment as paid.
func (s *Service) SettlePayment(ctx context.Context, paymentID, actor string) (*procure.Payment, error) {
	return s.setPaymentStatus(ctx, paymentID, procure.PaymentPaid, actor)
}

// CancelPayment voids a pending payment, returning its amount to the
// contract's remaining headroom.
func (s *Service) CancelPayment(ctx context.Context, paymentID, actor string) (*procure.Payment, error) {
	return s.setPaymentStatus(ctx, paymentID, procure.PaymentCancelled, actor)
}

func (s *Service) setPaymentStatus(ctx context.Context, paymentID string, status procure.PaymentStatus, actor string) (*procure.Payment, error) {
	var out *procure.Payment

	err := s.store.WithTx(ctx, func(st Store) error {
		p, err := st.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != procure.PaymentPending {
			return &procure.FieldError{Field: "status", Message: "payment already settled"}
		}

		before := paymentSnapshot(p)
		now := s.now()
		p.Status = status
		if status == procure.PaymentPaid {
			p.PaidAt = &now
		}
		if err := st.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("payments", p.ID, procure.AuditUpdate, before, paymentSnapshot(p), actor)); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPayments returns payments for a contract.
func (s *Service) ListPayments(ctx context.Context, contractID string) ([]procure.Payment, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, contractID)
}

func contractSnapshot(c *procure.Contract) string {
	return mustJSON(map[string]string{
		"number":     c.Number,
		"request_id": c.RequestID,
		"vendor_id":  c.VendorID,
		"value":      c.Value.String(),
		"status":     string(c.Status),
	})
}

func paymentSnapshot(p *procure.Payment) string {
	return mustJSON(map[string]string{
		"contract_id": p.ContractID,
		"amount":      p.Amount.String(),
		"status":      string(p.Status),
	})
}
