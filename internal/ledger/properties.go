package ledger

import (
	"context"
	"errors"
	"strings"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PropertyInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Address string `json:"address" validate:"max=255"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zipCode" validate:"max=20"`
}

type UnitInput struct {
	PropertyID uint            `json:"propertyId" validate:"required"`
	UnitNumber string          `json:"unitNumber" validate:"required,max=50"`
	Rent       decimal.Decimal `json:"rent"`
	Deposit    decimal.Decimal `json:"deposit"`
	Bedrooms   int             `json:"bedrooms" validate:"gte=0"`
	Bathrooms  float64         `json:"bathrooms" validate:"gte=0"`
	SquareFeet *int            `json:"squareFeet,omitempty"`
}

func (l *Ledger) CreateProperty(ctx context.Context, s identity.Session, in PropertyInput) (*models.Property, error) {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "property name is required")
	}

	property := models.Property{
		LandlordID: s.UserID(),
		Name:       name,
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		ZipCode:    strings.TrimSpace(in.ZipCode),
		Units:      []models.Unit{},
	}
	if err := l.db.WithContext(ctx).Create(&property).Error; err != nil {
		return nil, err
	}
	l.invalidateDashboards(ctx, s.UserID())
	return &property, nil
}

// ListProperties returns the landlord's properties with units and their tenants
func (l *Ledger) ListProperties(ctx context.Context, s identity.Session) ([]models.Property, error) {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return nil, err
	}
	properties := []models.Property{}
	err := l.db.WithContext(ctx).
		Preload("Units", func(tx *gorm.DB) *gorm.DB { return tx.Order("unit_number") }).
		Preload("Units.Tenant").
		Where("landlord_id = ?", s.UserID()).
		Order("name, id").
		Find(&properties).Error
	if err != nil {
		return nil, err
	}
	return properties, nil
}

// DeleteProperty removes an empty property
func (l *Ledger) DeleteProperty(ctx context.Context, s identity.Session, id uint) error {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return err
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := ownedProperty(tx, s, id)
		if err != nil {
			return err
		}
		var units int64
		if err := tx.Model(&models.Unit{}).Where("property_id = ?", property.ID).Count(&units).Error; err != nil {
			return err
		}
		if units > 0 {
			return stateError("property still has %d units", units)
		}
		return tx.Delete(property).Error
	})
	if err != nil {
		return err
	}
	l.invalidateDashboards(ctx, s.UserID())
	return nil
}

func (l *Ledger) CreateUnit(ctx context.Context, s identity.Session, in UnitInput) (*models.Unit, error) {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(in.UnitNumber)
	switch {
	case number == "":
		return nil, invalid("unitNumber", "unit number is required")
	case !in.Rent.IsPositive():
		return nil, invalid("rent", "rent must be positive")
	case in.Deposit.IsNegative():
		return nil, invalid("deposit", "deposit cannot be negative")
	case in.Bedrooms < 0:
		return nil, invalid("bedrooms", "bedrooms cannot be negative")
	case in.Bathrooms < 0:
		return nil, invalid("bathrooms", "bathrooms cannot be negative")
	case in.SquareFeet != nil && *in.SquareFeet <= 0:
		return nil, invalid("squareFeet", "square feet must be positive")
	}

	var unit models.Unit
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := ownedProperty(tx, s, in.PropertyID)
		if err != nil {
			return err
		}
		var clash int64
		if err := tx.Model(&models.Unit{}).Where("property_id = ? AND unit_number = ?", property.ID, number).Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return invalid("unitNumber", "unit number already exists in this property")
		}
		unit = models.Unit{
			PropertyID: property.ID,
			UnitNumber: number,
			Rent:       in.Rent,
			Deposit:    in.Deposit,
			Bedrooms:   in.Bedrooms,
			Bathrooms:  in.Bathrooms,
			SquareFeet: in.SquareFeet,
		}
		return tx.Create(&unit).Error
	})
	if err != nil {
		return nil, err
	}
	l.invalidateDashboards(ctx, s.UserID())
	return &unit, nil
}

// AssignTenant moves a tenant into a vacant unit
func (l *Ledger) AssignTenant(ctx context.Context, s identity.Session, unitID, tenantID uint) (*models.Unit, error) {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return nil, err
	}
	if tenantID == 0 {
		return nil, invalid("tenantId", "tenant is required")
	}

	var unit *models.Unit
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if unit, err = ownedUnit(tx, s, unitID); err != nil {
			return err
		}
		var tenant models.User
		if err := tx.First(&tenant, tenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("tenant", tenantID)
			}
			return err
		}
		if tenant.Role != models.RoleTenant {
			return invalid("tenantId", "user is not a tenant")
		}

		res := tx.Model(&models.Unit{}).
			Where("id = ? AND tenant_id IS NULL", unit.ID).
			Update("tenant_id", tenant.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return stateError("unit %s is already occupied", unit.UnitNumber)
		}
		unit.TenantID = &tenant.ID
		unit.Tenant = &tenant
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidateDashboards(ctx, s.UserID(), tenantID)
	return unit, nil
}

// VacateUnit removes the tenant from a unit. Existing invoices are kept.
func (l *Ledger) VacateUnit(ctx context.Context, s identity.Session, unitID uint) (*models.Unit, error) {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return nil, err
	}

	var unit *models.Unit
	var previous uint
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if unit, err = ownedUnit(tx, s, unitID); err != nil {
			return err
		}
		if unit.TenantID == nil {
			return stateError("unit %s is already vacant", unit.UnitNumber)
		}
		previous = *unit.TenantID
		if err := tx.Model(&models.Unit{}).Where("id = ?", unit.ID).Update("tenant_id", nil).Error; err != nil {
			return err
		}
		unit.TenantID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidateDashboards(ctx, s.UserID(), previous)
	return unit, nil
}

// ListTenants returns the distinct tenants occupying the landlord's units, each with those units
func (l *Ledger) ListTenants(ctx context.Context, s identity.Session) ([]models.User, error) {
	if err := identity.Require(s, identity.ManageProperties); err != nil {
		return nil, err
	}
	db := l.db.WithContext(ctx)
	ownUnits := func() *gorm.DB {
		return db.Model(&models.Unit{}).Where("property_id IN (?)", landlordPropertyIDs(db, s.UserID()))
	}

	tenants := []models.User{}
	err := db.
		Preload("Units", "property_id IN (?)", landlordPropertyIDs(db, s.UserID())).
		Where("role = ?", models.RoleTenant).
		Where("id IN (?)", ownUnits().Select("tenant_id").Where("tenant_id IS NOT NULL")).
		Order("last_name, first_name, id").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func ownedProperty(tx *gorm.DB, s identity.Session, id uint) (*models.Property, error) {
	var property models.Property
	if err := tx.First(&property, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("property", id)
		}
		return nil, err
	}
	if property.LandlordID != s.UserID() {
		return nil, ErrNotOwner
	}
	return &property, nil
}

func ownedUnit(tx *gorm.DB, s identity.Session, id uint) (*models.Unit, error) {
	var unit models.Unit
	if err := tx.Preload("Property").First(&unit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("unit", id)
		}
		return nil, err
	}
	if unit.Property == nil {
		return nil, notFound("unit", id)
	}
	if unit.Property.LandlordID != s.UserID() {
		return nil, ErrNotOwner
	}
	return &unit, nil
}
