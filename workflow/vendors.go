/*
vendors.go - Vendor registry

PURPOSE:
  CRUD over supplier records with two invariants:
  - Tax ids are unique (duplicate -> ErrDuplicateReference).
  - A vendor referenced by any active contract cannot be deleted.

  Vendor attributes (type, tax id, PKP flag) feed the withholding rules
  in procure/tax.go.
*/
package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sigap/procure-engine/procure"
)

// VendorService manages vendor records.
type VendorService struct {
	store TxStore
	Clock func() time.Time
	Log   zerolog.Logger
}

// NewVendorService creates a vendor service over a transactional store.
func NewVendorService(store TxStore, log zerolog.Logger) *VendorService {
	return &VendorService{store: store, Clock: time.Now, Log: log}
}

// VendorInput carries the writable vendor fields.
type VendorInput struct {
	Name           string
	Type           procure.VendorType
	TaxID          string
	TaxRegistered  bool
	Classification string
	Address        string
	Contact        string
	Actor          string
}

func (in *VendorInput) validate() error {
	if in.Name == "" {
		return &procure.FieldError{Field: "name", Message: "required"}
	}
	if in.Type != procure.VendorOrganization && in.Type != procure.VendorIndividual {
		return &procure.FieldError{Field: "type", Message: "must be organization or individual"}
	}
	if in.TaxRegistered && in.TaxID == "" {
		return &procure.FieldError{Field: "tax_id", Message: "required for tax-registered vendors"}
	}
	return nil
}

// Create registers a vendor. A duplicate tax id fails with
// ErrDuplicateReference from the unique index.
func (s *VendorService) Create(ctx context.Context, in VendorInput) (*procure.Vendor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.Clock()
	v := &procure.Vendor{
		ID:             newID("vnd"),
		Name:           in.Name,
		Type:           in.Type,
		TaxID:          in.TaxID,
		TaxRegistered:  in.TaxRegistered,
		Classification: in.Classification,
		Address:        in.Address,
		Contact:        in.Contact,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.InsertVendor(ctx, v); err != nil {
			return err
		}
		return st.AppendAudit(ctx, procure.AuditEntry{
			ID: newID("aud"), Table: "vendors", RecordID: v.ID,
			Action: procure.AuditCreate, After: vendorSnapshot(v),
			Actor: in.Actor, Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Update rewrites a vendor's fields.
func (s *VendorService) Update(ctx context.Context, id string, in VendorInput) (*procure.Vendor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *procure.Vendor
	err := s.store.WithTx(ctx, func(st Store) error {
		v, err := st.GetVendor(ctx, id)
		if err != nil {
			return err
		}
		before := vendorSnapshot(v)

		v.Name = in.Name
		v.Type = in.Type
		v.TaxID = in.TaxID
		v.TaxRegistered = in.TaxRegistered
		v.Classification = in.Classification
		v.Address = in.Address
		v.Contact = in.Contact
		v.UpdatedAt = s.Clock()

		if err := st.UpdateVendor(ctx, v); err != nil {
			return err
		}
		if err := st.AppendAudit(ctx, procure.AuditEntry{
			ID: newID("aud"), Table: "vendors", RecordID: v.ID,
			Action: procure.AuditUpdate, Before: before, After: vendorSnapshot(v),
			Actor: in.Actor, Timestamp: v.UpdatedAt,
		}); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a vendor unless an active contract still references it.
func (s *VendorService) Delete(ctx context.Context, id, actor string) error {
	return s.store.WithTx(ctx, func(st Store) error {
		v, err := st.GetVendor(ctx, id)
		if err != nil {
			return err
		}

		active, err := st.CountActiveContracts(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return procure.ErrVendorInUse
		}

		if err := st.DeleteVendor(ctx, id); err != nil {
			return err
		}
		return st.AppendAudit(ctx, procure.AuditEntry{
			ID: newID("aud"), Table: "vendors", RecordID: v.ID,
			Action: procure.AuditDelete, Before: vendorSnapshot(v),
			Actor: actor, Timestamp: s.Clock(),
		})
	})
}

// Get loads one vendor.
func (s *VendorService) Get(ctx context.Context, id string) (*procure.Vendor, error) {
	return s.store.GetVendor(ctx, id)
}

// List returns all vendors.
func (s *VendorService) List(ctx context.Context) ([]procure.Vendor, error) {
	return s.store.ListVendors(ctx)
}

func vendorSnapshot(v *procure.Vendor) string {
	return mustJSON(map[string]any{
		"name":           v.Name,
		"type":           v.Type,
		"tax_id":         v.TaxID,
		"tax_registered": v.TaxRegistered,
		"classification": v.Classification,
	})
}
