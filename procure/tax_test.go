package procure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigap/procure-engine/procure"
)

func pkpVendor() procure.Vendor {
	return procure.Vendor{
		ID:            "v-1",
		Name:          "PT Sumber Makmur",
		Type:          procure.VendorOrganization,
		TaxID:         "01.234.567.8-901.000",
		TaxRegistered: true,
	}
}

// =============================================================================
// VAT
// =============================================================================

func TestComputeWithholding_VATOnlyForRegisteredVendors(t *testing.T) {
	policy := procure.DefaultTaxPolicy()
	base := idr("10000000")

	w := policy.ComputeWithholding(base, procure.CategoryGoods, pkpVendor())
	assert.True(t, idr("1100000").Equal(w.VAT), "11%% VAT, got %s", w.VAT)

	unregistered := pkpVendor()
	unregistered.TaxRegistered = false
	w = policy.ComputeWithholding(base, procure.CategoryGoods, unregistered)
	assert.True(t, w.VAT.IsZero(), "no VAT for non-PKP vendor")
}

// =============================================================================
// GOODS WITHHOLDING (PPh 22)
// =============================================================================

func TestComputeWithholding_GoodsAboveThreshold(t *testing.T) {
	policy := procure.DefaultTaxPolicy()
	base := idr("10000000")

	// With tax id: reduced 1.5% rate
	w := policy.ComputeWithholding(base, procure.CategoryGoods, pkpVendor())
	assert.True(t, idr("150000").Equal(w.GoodsTax), "got %s", w.GoodsTax)

	// Without tax id: standard 3% rate
	noNPWP := pkpVendor()
	noNPWP.TaxID = ""
	w = policy.ComputeWithholding(base, procure.CategoryGoods, noNPWP)
	assert.True(t, idr("300000").Equal(w.GoodsTax), "got %s", w.GoodsTax)
}

func TestComputeWithholding_GoodsBelowThresholdExempt(t *testing.T) {
	// GIVEN: A goods purchase at or under the 2,000,000 minimum base
	// THEN: No goods withholding applies

	policy := procure.DefaultTaxPolicy()

	w := policy.ComputeWithholding(idr("1500000"), procure.CategoryGoods, pkpVendor())
	assert.True(t, w.GoodsTax.IsZero())

	// Exactly at the threshold is still exempt; the rule is "above".
	w = policy.ComputeWithholding(idr("2000000"), procure.CategoryGoods, pkpVendor())
	assert.True(t, w.GoodsTax.IsZero())
}

// =============================================================================
// SERVICES WITHHOLDING (PPh 21)
// =============================================================================

func TestComputeWithholding_ServicesIndividualsOnly(t *testing.T) {
	policy := procure.DefaultTaxPolicy()
	base := idr("4000000")

	individual := procure.Vendor{
		ID: "v-2", Name: "Budi Santoso",
		Type:  procure.VendorIndividual,
		TaxID: "02.345.678.9-012.000",
	}

	w := policy.ComputeWithholding(base, procure.CategoryServices, individual)
	assert.True(t, idr("100000").Equal(w.ServicesTax), "2.5%% with NPWP, got %s", w.ServicesTax)

	individual.TaxID = ""
	w = policy.ComputeWithholding(base, procure.CategoryServices, individual)
	assert.True(t, idr("120000").Equal(w.ServicesTax), "3%% without NPWP, got %s", w.ServicesTax)

	// Organizations are outside PPh 21 scope here.
	w = policy.ComputeWithholding(base, procure.CategoryServices, pkpVendor())
	assert.True(t, w.ServicesTax.IsZero())
}

// =============================================================================
// NET AMOUNT AND ROUNDING
// =============================================================================

func TestComputeWithholding_NetSumsFromRoundedComponents(t *testing.T) {
	policy := procure.DefaultTaxPolicy()
	base := idr("10000000")

	w := policy.ComputeWithholding(base, procure.CategoryGoods, pkpVendor())

	expected := base.Add(w.VAT).Sub(w.GoodsTax).Sub(w.ServicesTax)
	assert.True(t, expected.Equal(w.Net), "net must equal base + VAT - withholdings")
	assert.True(t, idr("10950000").Equal(w.Net), "got %s", w.Net)
}

func TestComputeWithholding_RoundsHalfUpAtWholeRupiah(t *testing.T) {
	// 30303 * 1.5% = 454.545 -> rounds up to 455
	policy := procure.DefaultTaxPolicy()
	policy.GoodsMinBase = idr("0")

	w := policy.ComputeWithholding(idr("30303"), procure.CategoryGoods, pkpVendor())
	assert.True(t, idr("455").Equal(w.GoodsTax), "half-up at the rupiah, got %s", w.GoodsTax)
}
