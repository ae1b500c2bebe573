package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus is the review state of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusApproved || s == PaymentStatusRejected
}

// IsTerminal reports whether the payment has been reviewed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected
}

// Payment is one tenant-submitted attempt to settle an invoice
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	InvoiceID     uint            `gorm:"not null;index" json:"invoiceId"`
	TenantID      uint            `gorm:"not null;index" json:"tenantId"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	TransactionID string          `gorm:"type:varchar(255);not null;index" json:"transactionId"`
	ProofURL      string          `gorm:"type:varchar(1024)" json:"proofUrl,omitempty"`
	ProofKey      string          `gorm:"type:varchar(512)" json:"-"`
	Status        PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	SubmittedAt   time.Time       `gorm:"not null" json:"submittedAt"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	ReviewedByID  *uint           `json:"-"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	Invoice *Invoice `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Tenant  *User    `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}
