package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the immutable proof of an approved payment. One per payment.
type Receipt struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"-"`

	Number      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"number"`
	Token       string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"-"`
	PaymentID   uint            `gorm:"uniqueIndex;not null" json:"paymentId"`
	InvoiceID   uint            `gorm:"index;not null" json:"invoiceId"`
	TenantID    uint            `gorm:"index;not null" json:"tenantId"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IssuedAt    time.Time       `gorm:"not null" json:"issuedAt"`
	DownloadURL string          `gorm:"type:varchar(1024)" json:"downloadUrl"`

	// Relationships
	Payment *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	Invoice *Invoice `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Tenant  *User    `gorm:"foreignKey:TenantID" json:"-"`
}
