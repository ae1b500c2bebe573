package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// AcceptsPayments reports whether tenants may submit payments in this state
func (s InvoiceStatus) AcceptsPayments() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusOverdue
}

// Invoice is a billing obligation for one tenant and unit.
// PeriodKey ("YYYY-MM") is set for generated rent invoices and is unique per tenant and unit.
type Invoice struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID    uint            `gorm:"not null;index;uniqueIndex:idx_invoice_period,priority:1" json:"tenantId"`
	UnitID      uint            `gorm:"not null;index;uniqueIndex:idx_invoice_period,priority:2" json:"unitId"`
	PeriodKey   *string         `gorm:"type:varchar(7);uniqueIndex:idx_invoice_period,priority:3" json:"period,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	DueDate     time.Time       `gorm:"index" json:"dueDate"`
	Status      InvoiceStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Description string          `gorm:"type:text" json:"description"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	CancelledAt *time.Time      `json:"cancelledAt,omitempty"`

	// Relationships
	Tenant   *User     `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Unit     *Unit     `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Payments []Payment `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// PeriodKey formats a billing period as "YYYY-MM"
func PeriodKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
