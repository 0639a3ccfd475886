/*
tier.go - Value-based tier classification

PURPOSE:
  Maps a monetary amount to a procurement tier and that tier's default
  procurement method. Pure function over a TierPolicy so the same
  classification runs at request creation and after every line-item
  recalculation.

BOUNDARY RULE:
  Thresholds are inclusive on the UPPER tier:
    amount <  Tier1Max             -> tier1
    Tier1Max <= amount < Tier2Max  -> tier2
    amount >= Tier2Max             -> tier3
  An amount sitting exactly on a threshold classifies upward. Off-by-one
  here changes the approval path downstream, so the boundary is tested
  explicitly.

SEE ALSO:
  - statemachine.go: Approval depth driven by tier
  - config: Threshold overrides
*/
package procure

import "github.com/shopspring/decimal"

// TierPolicy holds the classification thresholds and each tier's default
// procurement method. Thresholds track procurement regulation, so they are
// configuration rather than constants.
type TierPolicy struct {
	Tier1Max decimal.Decimal // exclusive upper bound of tier1
	Tier2Max decimal.Decimal // exclusive upper bound of tier2

	Tier1Method Method
	Tier2Method Method
	Tier3Method Method
}

// DefaultTierPolicy returns the regulation-current thresholds in rupiah.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{
		Tier1Max:    MustDecimal("10000000"),
		Tier2Max:    MustDecimal("50000000"),
		Tier1Method: MethodDirect,
		Tier2Method: MethodQuotation,
		Tier3Method: MethodTender,
	}
}

// Classify returns the tier and default method for an amount.
// Pure function: no side effects, safe to call anywhere.
func (p TierPolicy) Classify(amount decimal.Decimal) (Tier, Method) {
	switch {
	case amount.LessThan(p.Tier1Max):
		return Tier1, p.Tier1Method
	case amount.LessThan(p.Tier2Max):
		return Tier2, p.Tier2Method
	default:
		return Tier3, p.Tier3Method
	}
}

// MethodFor returns the default procurement method for a tier.
func (p TierPolicy) MethodFor(tier Tier) Method {
	switch tier {
	case Tier1:
		return p.Tier1Method
	case Tier2:
		return p.Tier2Method
	default:
		return p.Tier3Method
	}
}

// ApprovalRoles returns the approver chain required for a tier, shallowest
// first. Higher-value tiers require deeper sign-off.
func (p TierPolicy) ApprovalRoles(tier Tier) []string {
	switch tier {
	case Tier1:
		return []string{"unit_head"}
	case Tier2:
		return []string{"unit_head", "procurement_officer"}
	default:
		return []string{"unit_head", "procurement_officer", "budget_authority"}
	}
}

// Validate checks the policy partitions the amount space with no gaps or
// overlaps: 0 < Tier1Max < Tier2Max.
func (p TierPolicy) Validate() error {
	if !p.Tier1Max.IsPositive() {
		return &FieldError{Field: "tier1_max", Message: "must be positive"}
	}
	if !p.Tier2Max.GreaterThan(p.Tier1Max) {
		return &FieldError{Field: "tier2_max", Message: "must exceed tier1_max"}
	}
	return nil
}
