/*
lineitems.go - Line-item mutations and financial recalculation

PURPOSE:
  Line items own the request total once they exist. Every create, update,
  or delete re-derives the parent's total as sum(volume x unit price),
  reclassifies the tier and procurement method from the new total, and
  persists everything in the same transaction as the line-item write.

INVARIANTS:
  - Line items are mutable only while the parent request is in draft.
  - amount == volume x unit price, recomputed on every write.
  - request.total == sum(line item amounts) whenever line items exist.
  - Recalculation is idempotent: with no intervening line-item change,
    running it again produces identical totals.

SEE ALSO:
  - procure/tier.go: Reclassification after totals change
  - service.go: Editability rules
*/
package workflow

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
)

// LineItemInput carries the writable fields of a line item.
type LineItemInput struct {
	Description string
	Unit        string
	Volume      decimal.Decimal
	UnitPrice   decimal.Decimal
	Actor       string
}

func (in *LineItemInput) validate() error {
	if in.Description == "" {
		return &procure.FieldError{Field: "description", Message: "required"}
	}
	if !in.Volume.IsPositive() {
		return &procure.FieldError{Field: "volume", Message: "must be positive"}
	}
	if in.UnitPrice.IsNegative() {
		return &procure.FieldError{Field: "unit_price", Message: "must not be negative"}
	}
	return nil
}

// AddLineItem appends a line item to a draft request and recalculates the
// parent. Returns the item and the updated aggregate.
func (s *Service) AddLineItem(ctx context.Context, requestID string, in LineItemInput) (*procure.LineItem, *procure.Request, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	var (
		item *procure.LineItem
		req  *procure.Request
	)

	err := s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !procure.IsEditable(r.Status) {
			return &procure.NotEditableError{RequestID: r.ID, Status: r.Status}
		}

		now := s.now()
		li := &procure.LineItem{
			ID:          newID("li"),
			RequestID:   r.ID,
			Description: in.Description,
			Unit:        in.Unit,
			Volume:      in.Volume,
			UnitPrice:   in.UnitPrice,
			Amount:      in.Volume.Mul(in.UnitPrice),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.InsertLineItem(ctx, li); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("line_items", li.ID, procure.AuditCreate, "", lineItemSnapshot(li), in.Actor)); err != nil {
			return err
		}

		if err := s.recalculate(ctx, st, r, in.Actor); err != nil {
			return err
		}

		item, req = li, r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return item, req, nil
}

// UpdateLineItem rewrites a line item and recalculates the parent.
func (s *Service) UpdateLineItem(ctx context.Context, itemID string, in LineItemInput) (*procure.LineItem, *procure.Request, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	var (
		item *procure.LineItem
		req  *procure.Request
	)

	err := s.store.WithTx(ctx, func(st Store) error {
		li, err := st.GetLineItem(ctx, itemID)
		if err != nil {
			return err
		}
		r, err := st.GetRequest(ctx, li.RequestID)
		if err != nil {
			return err
		}
		if !procure.IsEditable(r.Status) {
			return &procure.NotEditableError{RequestID: r.ID, Status: r.Status}
		}

		before := lineItemSnapshot(li)
		li.Description = in.Description
		li.Unit = in.Unit
		li.Volume = in.Volume
		li.UnitPrice = in.UnitPrice
		li.Amount = in.Volume.Mul(in.UnitPrice)
		li.UpdatedAt = s.now()

		if err := st.UpdateLineItem(ctx, li); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("line_items", li.ID, procure.AuditUpdate, before, lineItemSnapshot(li), in.Actor)); err != nil {
			return err
		}

		if err := s.recalculate(ctx, st, r, in.Actor); err != nil {
			return err
		}

		item, req = li, r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return item, req, nil
}

// DeleteLineItem removes a line item and recalculates the parent.
func (s *Service) DeleteLineItem(ctx context.Context, itemID, actor string) (*procure.Request, error) {
	var req *procure.Request

	err := s.store.WithTx(ctx, func(st Store) error {
		li, err := st.GetLineItem(ctx, itemID)
		if err != nil {
			return err
		}
		r, err := st.GetRequest(ctx, li.RequestID)
		if err != nil {
			return err
		}
		if !procure.IsEditable(r.Status) {
			return &procure.NotEditableError{RequestID: r.ID, Status: r.Status}
		}

		if err := st.DeleteLineItem(ctx, itemID); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("line_items", li.ID, procure.AuditDelete, lineItemSnapshot(li), "", actor)); err != nil {
			return err
		}

		if err := s.recalculate(ctx, st, r, actor); err != nil {
			return err
		}

		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Recalculate re-derives a request's total, tier, and method from its
// line items in one transaction. Safe to call repeatedly.
func (s *Service) Recalculate(ctx context.Context, requestID, actor string) (*procure.Request, error) {
	var req *procure.Request

	err := s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := s.recalculate(ctx, st, r, actor); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// recalculate runs inside an open transaction. When the derived values
// already match, it writes nothing, which is what makes it idempotent.
func (s *Service) recalculate(ctx context.Context, st Store, r *procure.Request, actor string) error {
	items, err := st.ListLineItems(ctx, r.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil // creation-time estimate stays authoritative
	}

	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Amount)
	}
	tier, method := s.Tiers.Classify(total)

	if total.Equal(r.TotalValue) && tier == r.Tier && method == r.Method {
		return nil
	}

	before := snapshot(r)
	r.TotalValue = total
	r.Tier = tier
	r.Method = method
	r.UpdatedAt = s.now()

	if err := st.UpdateRequest(ctx, r); err != nil {
		return err
	}
	return st.AppendAudit(ctx, s.auditEntry("requests", r.ID, procure.AuditUpdate, before, snapshot(r), actor))
}

func lineItemSnapshot(li *procure.LineItem) string {
	return mustJSON(map[string]string{
		"description": li.Description,
		"unit":        li.Unit,
		"volume":      li.Volume.String(),
		"unit_price":  li.UnitPrice.String(),
		"amount":      li.Amount.String(),
	})
}
