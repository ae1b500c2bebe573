package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptNumber formats the human readable number of a receipt
func ReceiptNumber(issuedAt time.Time, paymentID uint) string {
	return fmt.Sprintf("RCT-%s-%d", issuedAt.Format("200601"), paymentID)
}

// ReceiptURL is the public address of the receipt document behind token
func (l *Ledger) ReceiptURL(token string) string {
	return strings.TrimRight(l.appURL, "/") + "/r/" + token
}

// mintReceipt creates the receipt of an approved payment. A payment never gets a second receipt.
func (l *Ledger) mintReceipt(tx *gorm.DB, payment *models.Payment, now time.Time) (*models.Receipt, error) {
	if payment.Status != models.PaymentStatusApproved {
		return nil, stateError("receipts are only issued for approved payments")
	}
	token := uuid.NewString()
	receipt := models.Receipt{
		Number:      ReceiptNumber(now, payment.ID),
		Token:       token,
		PaymentID:   payment.ID,
		InvoiceID:   payment.InvoiceID,
		TenantID:    payment.TenantID,
		Amount:      payment.Amount,
		IssuedAt:    now,
		DownloadURL: l.ReceiptURL(token),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(&receipt)
	if res.Error != nil {
		return nil, fmt.Errorf("mint receipt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var existing models.Receipt
		if err := tx.Where("payment_id = ?", payment.ID).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &receipt, nil
}

// ListReceipts returns a tenant's receipts, or those issued for a landlord's units
func (l *Ledger) ListReceipts(ctx context.Context, s identity.Session) ([]models.Receipt, error) {
	if err := identity.Require(s, identity.ViewReceipts); err != nil {
		return nil, err
	}

	db := l.db.WithContext(ctx)
	q := db.Model(&models.Receipt{})
	if s.Role() == models.RoleTenant {
		q = q.Where("tenant_id = ?", s.UserID())
	} else {
		q = q.Where("invoice_id IN (?)", landlordInvoiceIDs(db, s.UserID()))
	}

	receipts := []models.Receipt{}
	if err := q.Preload("Invoice.Unit").Order("issued_at DESC, id DESC").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// ReceiptForPayment returns the receipt of a payment, or ErrNotFound if it has none
func (l *Ledger) ReceiptForPayment(ctx context.Context, s identity.Session, paymentID uint) (*models.Receipt, error) {
	if err := identity.Require(s, identity.ViewReceipts); err != nil {
		return nil, err
	}

	db := l.db.WithContext(ctx)
	var payment models.Payment
	if err := db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("payment", paymentID)
		}
		return nil, err
	}
	if err := canSeeInvoice(db, s, &models.Invoice{TenantID: payment.TenantID, UnitID: l.invoiceUnit(db, payment.InvoiceID)}); err != nil {
		return nil, err
	}

	var receipt models.Receipt
	if err := db.Where("payment_id = ?", paymentID).First(&receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: receipt for payment %d", ErrNotFound, paymentID)
		}
		return nil, err
	}
	return &receipt, nil
}

func (l *Ledger) invoiceUnit(db *gorm.DB, invoiceID uint) uint {
	var inv models.Invoice
	if err := db.Select("id", "unit_id").First(&inv, invoiceID).Error; err != nil {
		return 0
	}
	return inv.UnitID
}

// ReceiptByToken loads a receipt for public display. The token is the only credential.
func (l *Ledger) ReceiptByToken(ctx context.Context, token string) (*models.Receipt, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("%w: receipt", ErrNotFound)
	}

	var receipt models.Receipt
	err := l.db.WithContext(ctx).
		Preload("Payment").
		Preload("Invoice.Unit.Property").
		Preload("Tenant").
		Where("token = ?", token).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: receipt", ErrNotFound)
		}
		return nil, err
	}
	return &receipt, nil
}
