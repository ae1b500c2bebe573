package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Unit is a rentable space inside a property. A nil TenantID means vacant.
type Unit struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PropertyID uint            `gorm:"index;not null" json:"propertyId"`
	UnitNumber string          `gorm:"type:varchar(50);not null" json:"unitNumber"`
	Rent       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rent"`
	Deposit    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"deposit"`
	Bedrooms   int             `json:"bedrooms"`
	Bathrooms  float64         `gorm:"type:decimal(3,1)" json:"bathrooms"`
	SquareFeet *int            `json:"squareFeet,omitempty"`
	TenantID   *uint           `gorm:"index" json:"tenantId,omitempty"`

	// Relationships
	Property *Property `gorm:"foreignKey:PropertyID" json:"-"`
	Tenant   *User     `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

// IsOccupied reports whether a tenant is assigned to the unit
func (u Unit) IsOccupied() bool {
	return u.TenantID != nil
}
