package ledger

import (
	"errors"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"gorm.io/gorm"
)

// landlordPropertyIDs selects ids of the landlord's live properties
func landlordPropertyIDs(db *gorm.DB, landlordID uint) *gorm.DB {
	return db.Model(&models.Property{}).Select("id").Where("landlord_id = ?", landlordID)
}

// landlordUnitIDs selects ids of every unit in the landlord's properties
func landlordUnitIDs(db *gorm.DB, landlordID uint) *gorm.DB {
	return db.Model(&models.Unit{}).Select("id").Where("property_id IN (?)", landlordPropertyIDs(db, landlordID))
}

// landlordInvoiceIDs selects ids of invoices billed against the landlord's units
func landlordInvoiceIDs(db *gorm.DB, landlordID uint) *gorm.DB {
	return db.Model(&models.Invoice{}).Select("id").Where("unit_id IN (?)", landlordUnitIDs(db, landlordID))
}

// unitLandlord returns the landlord owning a unit, or ErrNotFound
func unitLandlord(db *gorm.DB, unitID uint) (uint, error) {
	var unit models.Unit
	if err := db.Preload("Property").First(&unit, unitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFound("unit", unitID)
		}
		return 0, err
	}
	if unit.Property == nil {
		return 0, notFound("unit", unitID)
	}
	return unit.Property.LandlordID, nil
}

// canSeeInvoice checks that the session is the invoice's tenant or the landlord of its unit
func canSeeInvoice(db *gorm.DB, s identity.Session, inv *models.Invoice) error {
	switch s.Role() {
	case models.RoleTenant:
		if inv.TenantID != s.UserID() {
			return ErrNotOwner
		}
		return nil
	case models.RoleLandlord:
		landlordID, err := unitLandlord(db, inv.UnitID)
		if err != nil {
			return err
		}
		if landlordID != s.UserID() {
			return ErrNotOwner
		}
		return nil
	}
	return ErrForbidden
}

// scopeInvoices restricts an invoice query to what the session may see
func scopeInvoices(db, q *gorm.DB, s identity.Session) *gorm.DB {
	if s.Role() == models.RoleTenant {
		return q.Where("invoices.tenant_id = ?", s.UserID())
	}
	return q.Where("invoices.unit_id IN (?)", landlordUnitIDs(db, s.UserID()))
}
