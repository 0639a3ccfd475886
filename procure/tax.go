/*
tax.go - VAT and withholding tax computation

PURPOSE:
  Computes the tax breakdown for a payment to a vendor: VAT (PPN) when
  the vendor is tax-registered, goods withholding (PPh 22) above a minimum
  base, and services withholding (PPh 21) for individual vendors. Rates
  and thresholds track tax regulation, so they live in a TaxPolicy that
  configuration can override rather than in constants.

ROUNDING:
  Every tax component is rounded half-up at the whole rupiah. The net
  amount is computed from the rounded components so the breakdown always
  sums exactly.

RATE TABLE (defaults):
  VAT                 11%   vendor is PKP (tax-registered), else 0
  Goods withholding   1.5%  vendor has NPWP, 3% without; only above
                            the minimum base (2,000,000)
  Services withholding 2.5% vendor has NPWP, 3% without; individuals only

SEE ALSO:
  - types.go: Vendor attributes feeding the rules
  - config: Policy overrides
*/
package procure

import "github.com/shopspring/decimal"

// TaxPolicy holds the withholding rates and thresholds.
type TaxPolicy struct {
	VATRate decimal.Decimal // applied when vendor is tax-registered

	GoodsMinBase       decimal.Decimal // PPh 22 applies only above this base
	GoodsRateWithTax   decimal.Decimal // vendor has a tax id
	GoodsRateNoTax     decimal.Decimal // vendor has none
	ServiceRateWithTax decimal.Decimal
	ServiceRateNoTax   decimal.Decimal
}

// DefaultTaxPolicy returns the regulation-current rates.
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{
		VATRate:            MustDecimal("0.11"),
		GoodsMinBase:       MustDecimal("2000000"),
		GoodsRateWithTax:   MustDecimal("0.015"),
		GoodsRateNoTax:     MustDecimal("0.03"),
		ServiceRateWithTax: MustDecimal("0.025"),
		ServiceRateNoTax:   MustDecimal("0.03"),
	}
}

// Withholding is the computed tax breakdown for a payment base amount.
type Withholding struct {
	Base        decimal.Decimal
	VAT         decimal.Decimal
	GoodsTax    decimal.Decimal // PPh 22
	ServicesTax decimal.Decimal // PPh 21
	Net         decimal.Decimal // Base + VAT - withholdings
}

// roundIDR rounds half-up at the whole rupiah.
// decimal.Round rounds half away from zero, which for the non-negative
// amounts handled here is exactly half-up.
func roundIDR(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// ComputeWithholding computes the tax breakdown for a base amount paid to
// a vendor under a procurement category. Pure function over the policy.
func (p TaxPolicy) ComputeWithholding(base decimal.Decimal, category Category, vendor Vendor) Withholding {
	w := Withholding{Base: base}

	if vendor.TaxRegistered {
		w.VAT = roundIDR(base.Mul(p.VATRate))
	}

	hasTaxID := vendor.TaxID != ""

	switch category {
	case CategoryGoods:
		if base.GreaterThan(p.GoodsMinBase) {
			rate := p.GoodsRateNoTax
			if hasTaxID {
				rate = p.GoodsRateWithTax
			}
			w.GoodsTax = roundIDR(base.Mul(rate))
		}
	case CategoryServices:
		if vendor.Type == VendorIndividual {
			rate := p.ServiceRateNoTax
			if hasTaxID {
				rate = p.ServiceRateWithTax
			}
			w.ServicesTax = roundIDR(base.Mul(rate))
		}
	}

	w.Net = base.Add(w.VAT).Sub(w.GoodsTax).Sub(w.ServicesTax)
	return w
}
