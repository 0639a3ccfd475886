/*
approvals.go - Tier-based approval chain

PURPOSE:
  When a request is submitted, an approval chain is built from the tier:
  deeper tiers require more sign-offs. Each step records who may act
  (a role), what they decided, and when. The chain drives the request's
  status automatically:

    every step approved  -> submitted -> approved
    any step rejected    -> submitted -> rejected (immediately)
    any step revise      -> submitted -> draft (chain discarded)

INVARIANTS:
  - Step numbers are unique per request and acted on in order.
  - A step can be decided only once, and only while the request is
    submitted.

SEE ALSO:
  - procure/tier.go: ApprovalRoles per tier
  - service.go: applyTransition shared with direct transitions
*/
package workflow

import (
	"context"
	"time"

	"github.com/sigap/procure-engine/procure"
)

// buildApprovalChain replaces any existing steps with a fresh pending
// chain derived from the request's tier. Runs inside the submit transaction.
func (s *Service) buildApprovalChain(ctx context.Context, st Store, r *procure.Request, now time.Time) error {
	if err := st.DeleteApprovalSteps(ctx, r.ID); err != nil {
		return err
	}

	for i, role := range s.Tiers.ApprovalRoles(r.Tier) {
		step := &procure.ApprovalStep{
			ID:           newID("step"),
			RequestID:    r.ID,
			StepNumber:   i + 1,
			ApproverRole: role,
			Action:       procure.ApprovalPending,
			CreatedAt:    now,
		}
		if err := st.InsertApprovalStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// ApprovalSteps lists the chain for a request, ordered by step number.
func (s *Service) ApprovalSteps(ctx context.Context, requestID string) ([]procure.ApprovalStep, error) {
	if _, err := s.store.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.store.ListApprovalSteps(ctx, requestID)
}

// Decide records an approver's action on one step and moves the request
// when the chain resolves. Step update, status change, budget effect, and
// audit entries commit in a single transaction.
func (s *Service) Decide(ctx context.Context, requestID string, stepNumber int, action procure.ApprovalAction, actor, note string) (*procure.Request, error) {
	switch action {
	case procure.ApprovalApproved, procure.ApprovalRejected, procure.ApprovalRevise:
	default:
		return nil, &procure.FieldError{Field: "action", Message: "must be approved, rejected, or revise"}
	}

	var out *procure.Request

	err := s.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != procure.StatusSubmitted {
			return &procure.FieldError{Field: "status", Message: "request is not awaiting approval"}
		}

		steps, err := st.ListApprovalSteps(ctx, r.ID)
		if err != nil {
			return err
		}

		var step *procure.ApprovalStep
		for i := range steps {
			if steps[i].StepNumber == stepNumber {
				step = &steps[i]
				break
			}
		}
		if step == nil {
			return procure.ErrNotFound
		}
		if step.Action != procure.ApprovalPending {
			return &procure.FieldError{Field: "step", Message: "step already decided"}
		}
		// Steps resolve in order; earlier pending steps block later ones.
		for _, prev := range steps {
			if prev.StepNumber < stepNumber && prev.Action == procure.ApprovalPending {
				return &procure.FieldError{Field: "step", Message: "earlier step still pending"}
			}
		}

		now := s.now()
		step.Action = action
		step.ActedBy = actor
		step.Note = note
		step.ActedAt = &now
		if err := st.UpdateApprovalStep(ctx, step); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, s.auditEntry("approval_steps", step.ID, procure.AuditApproval,
			mustJSON(map[string]any{"step": step.StepNumber, "action": procure.ApprovalPending}),
			mustJSON(map[string]any{"step": step.StepNumber, "action": action}), actor)); err != nil {
			return err
		}

		switch action {
		case procure.ApprovalRejected:
			if err := s.applyTransition(ctx, st, r, procure.StatusRejected, actor, note); err != nil {
				return err
			}
		case procure.ApprovalRevise:
			if err := s.applyTransition(ctx, st, r, procure.StatusDraft, actor, note); err != nil {
				return err
			}
		case procure.ApprovalApproved:
			if chainApproved(steps) {
				if err := s.applyTransition(ctx, st, r, procure.StatusApproved, actor, note); err != nil {
					return err
				}
			}
		}

		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// chainApproved reports whether every step is approved. The step just
// decided is already mutated in the slice, so it counts.
func chainApproved(steps []procure.ApprovalStep) bool {
	for _, st := range steps {
		if st.Action != procure.ApprovalApproved {
			return false
		}
	}
	return true
}
