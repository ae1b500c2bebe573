package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"
)

var allowedProofExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

var allowedProofTypes = []string{"image/jpeg", "image/png", "application/pdf"}

// ProofFile is an uploaded payment proof held in memory
type ProofFile struct {
	Filename string
	Size     int64
	Data     []byte
}

// SubmitPaymentRequest is a tenant's payment attempt against an invoice
type SubmitPaymentRequest struct {
	InvoiceID     uint
	TransactionID string
	Proof         *ProofFile
}

// ValidateProof checks size, extension and sniffed content type, returning the detected MIME type
func (l *Ledger) ValidateProof(p *ProofFile) (string, error) {
	size := p.Size
	if int64(len(p.Data)) > size {
		size = int64(len(p.Data))
	}
	if size == 0 {
		return "", &FileValidationError{Reason: "empty", Message: "uploaded file is empty"}
	}
	if size > l.maxProofSize {
		return "", &FileValidationError{
			Reason:  "too_large",
			Message: fmt.Sprintf("file must be %d MB or smaller", l.maxProofSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(p.Filename))
	if !allowedProofExtensions[ext] {
		return "", &FileValidationError{Reason: "unsupported_type", Message: "only JPEG, PNG and PDF files are allowed"}
	}

	detected := mimetype.Detect(p.Data)
	for _, t := range allowedProofTypes {
		if detected.Is(t) {
			return t, nil
		}
	}
	return "", &FileValidationError{
		Reason:  "unsupported_type",
		Message: fmt.Sprintf("file content is %s, only JPEG, PNG and PDF files are allowed", detected.String()),
	}
}

// SubmitPayment records a PENDING payment for the full invoice amount. Resubmitting a transaction id
// that is still awaiting review returns the existing attempt.
func (l *Ledger) SubmitPayment(ctx context.Context, s identity.Session, req SubmitPaymentRequest) (*models.Payment, error) {
	if err := identity.Require(s, identity.SubmitPayments); err != nil {
		return nil, err
	}

	// 1. Validate input before touching storage
	txID := strings.TrimSpace(req.TransactionID)
	if txID == "" {
		return nil, invalid("transactionId", "transaction ID is required")
	}
	if len(txID) > 255 {
		return nil, invalid("transactionId", "transaction ID is too long")
	}
	var contentType string
	if req.Proof != nil {
		ct, err := l.ValidateProof(req.Proof)
		if err != nil {
			return nil, err
		}
		contentType = ct
	}

	// 2. Check the invoice can take a payment from this tenant
	db := l.db.WithContext(ctx)
	inv, err := l.payableInvoice(db, s, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if existing, err := findPendingAttempt(db, inv.ID, s.UserID(), txID); err != nil || existing != nil {
		return existing, err
	}

	// 3. Upload proof
	var proofURL, proofKey string
	if req.Proof != nil {
		if l.files == nil {
			return nil, errors.New("file storage is not configured")
		}
		proofKey = fmt.Sprintf("payment-proofs/%d/%s%s", inv.ID, uuid.NewString(), strings.ToLower(filepath.Ext(req.Proof.Filename)))
		proofURL, err = l.files.Put(ctx, proofKey, contentType, req.Proof.Data)
		if err != nil {
			return nil, fmt.Errorf("upload payment proof: %w", err)
		}
	}

	// 4. Persist
	var payment *models.Payment
	var landlordID uint
	err = db.Transaction(func(tx *gorm.DB) error {
		current, err := l.payableInvoice(tx, s, inv.ID)
		if err != nil {
			return err
		}
		existing, err := findPendingAttempt(tx, current.ID, s.UserID(), txID)
		if err != nil {
			return err
		}
		if existing != nil {
			payment = existing
			return nil
		}

		payment = &models.Payment{
			InvoiceID:     current.ID,
			TenantID:      s.UserID(),
			Amount:        current.Amount,
			TransactionID: txID,
			ProofURL:      proofURL,
			ProofKey:      proofKey,
			Status:        models.PaymentStatusPending,
			SubmittedAt:   l.clock(),
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

		if landlordID, err = unitLandlord(tx, current.UnitID); err != nil {
			return err
		}
		return l.notify(ctx, tx, Notification{
			UserID:  landlordID,
			Subject: "Payment submitted",
			Message: fmt.Sprintf("A payment of %s (transaction %s) was submitted for %s", payment.Amount.StringFixed(2), txID, current.Description),
		})
	})
	if err != nil || payment.ID == 0 || payment.ProofKey != proofKey {
		l.discardProof(ctx, proofKey)
	}
	if err != nil {
		return nil, err
	}

	l.publish(ctx, Event{Type: EventPaymentSubmitted, InvoiceID: payment.InvoiceID, PaymentID: payment.ID, TenantID: payment.TenantID, LandlordID: landlordID, Amount: payment.Amount})
	l.invalidateDashboards(ctx, payment.TenantID, landlordID)
	return payment, nil
}

func (l *Ledger) payableInvoice(db *gorm.DB, s identity.Session, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := db.First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("invoice", id)
		}
		return nil, err
	}
	if inv.TenantID != s.UserID() {
		return nil, ErrNotOwner
	}
	if !inv.Status.AcceptsPayments() {
		return nil, stateError("cannot submit a payment for a %s invoice", inv.Status)
	}
	return &inv, nil
}

func findPendingAttempt(db *gorm.DB, invoiceID, tenantID uint, txID string) (*models.Payment, error) {
	var existing models.Payment
	err := db.Where("invoice_id = ? AND tenant_id = ? AND transaction_id = ? AND status = ?",
		invoiceID, tenantID, txID, models.PaymentStatusPending).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (l *Ledger) discardProof(ctx context.Context, key string) {
	if key == "" || l.files == nil {
		return
	}
	if err := l.files.Delete(ctx, key); err != nil {
		log.Warnf("failed to delete orphaned proof %s: %v", key, err)
	}
}

// PaymentFilter narrows ListPayments
type PaymentFilter struct {
	Status models.PaymentStatus
}

// ListPayments returns a tenant's own attempts or every attempt against a landlord's units
func (l *Ledger) ListPayments(ctx context.Context, s identity.Session, filter PaymentFilter) ([]models.Payment, error) {
	if err := identity.Require(s, identity.ViewPayments); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown payment status %q", filter.Status))
	}

	db := l.db.WithContext(ctx)
	q := db.Model(&models.Payment{})
	if s.Role() == models.RoleTenant {
		q = q.Where("tenant_id = ?", s.UserID())
	} else {
		q = q.Where("invoice_id IN (?)", landlordInvoiceIDs(db, s.UserID()))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	payments := []models.Payment{}
	err := q.Preload("Invoice.Unit").Preload("Tenant").
		Order("submitted_at DESC, id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ReviewResult is the state after a landlord reviews a payment
type ReviewResult struct {
	Payment *models.Payment `json:"payment"`
	Invoice *models.Invoice `json:"invoice"`
	Receipt *models.Receipt `json:"receipt,omitempty"`
}

// ApprovePayment settles the invoice with a PENDING payment and mints its receipt, all in one transaction.
// A payment that is no longer PENDING fails with ErrAlreadyProcessed; an invoice that is PAID or
// CANCELLED fails with ErrInvalidState.
func (l *Ledger) ApprovePayment(ctx context.Context, s identity.Session, paymentID uint, notes string) (*ReviewResult, error) {
	if err := identity.Require(s, identity.ReviewPayments); err != nil {
		return nil, err
	}

	now := l.clock()
	result := &ReviewResult{}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, inv, err := loadForReview(tx, s, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return ErrAlreadyProcessed
		}
		if !inv.Status.AcceptsPayments() {
			return stateError("invoice is already %s", inv.Status)
		}

		// Compare-and-swap on PENDING so a concurrent reviewer loses cleanly
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusApproved,
				"processed_at":   now,
				"notes":          strings.TrimSpace(notes),
				"reviewed_by_id": s.UserID(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		res = tx.Model(&models.Invoice{}).
			Where("id = ? AND status IN ?", inv.ID, []models.InvoiceStatus{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
			Updates(map[string]interface{}{"status": models.InvoiceStatusPaid, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return stateError("invoice %d can no longer be settled", inv.ID)
		}

		if err := tx.First(payment, payment.ID).Error; err != nil {
			return err
		}
		if err := tx.First(inv, inv.ID).Error; err != nil {
			return err
		}
		receipt, err := l.mintReceipt(tx, payment, now)
		if err != nil {
			return err
		}

		result.Payment, result.Invoice, result.Receipt = payment, inv, receipt
		return l.notify(ctx, tx, Notification{
			UserID:  payment.TenantID,
			Subject: "Payment approved",
			Message: fmt.Sprintf("Your payment of %s for %s was approved. Receipt %s: %s", payment.Amount.StringFixed(2), inv.Description, receipt.Number, receipt.DownloadURL),
		})
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, Event{Type: EventPaymentApproved, InvoiceID: result.Invoice.ID, PaymentID: result.Payment.ID, TenantID: result.Payment.TenantID, LandlordID: s.UserID(), Amount: result.Payment.Amount})
	l.invalidateDashboards(ctx, result.Payment.TenantID, s.UserID())
	return result, nil
}

// RejectPayment closes a PENDING payment with a mandatory reason. The invoice keeps its status so the
// tenant can submit again.
func (l *Ledger) RejectPayment(ctx context.Context, s identity.Session, paymentID uint, notes string) (*ReviewResult, error) {
	if err := identity.Require(s, identity.ReviewPayments); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, invalid("notes", "a reason is required when rejecting a payment")
	}

	now := l.clock()
	result := &ReviewResult{}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, inv, err := loadForReview(tx, s, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return ErrAlreadyProcessed
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusRejected,
				"processed_at":   now,
				"notes":          notes,
				"reviewed_by_id": s.UserID(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		if err := tx.First(payment, payment.ID).Error; err != nil {
			return err
		}

		result.Payment, result.Invoice = payment, inv
		return l.notify(ctx, tx, Notification{
			UserID:  payment.TenantID,
			Subject: "Payment rejected",
			Message: fmt.Sprintf("Your payment of %s for %s was rejected: %s", payment.Amount.StringFixed(2), inv.Description, notes),
		})
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, Event{Type: EventPaymentRejected, InvoiceID: result.Invoice.ID, PaymentID: result.Payment.ID, TenantID: result.Payment.TenantID, LandlordID: s.UserID(), Amount: result.Payment.Amount})
	l.invalidateDashboards(ctx, result.Payment.TenantID, s.UserID())
	return result, nil
}

// loadForReview loads a payment and its invoice, checking the reviewer owns the unit
func loadForReview(tx *gorm.DB, s identity.Session, paymentID uint) (*models.Payment, *models.Invoice, error) {
	var payment models.Payment
	if err := tx.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("payment", paymentID)
		}
		return nil, nil, err
	}
	var inv models.Invoice
	if err := tx.First(&inv, payment.InvoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("invoice", payment.InvoiceID)
		}
		return nil, nil, err
	}
	landlordID, err := unitLandlord(tx, inv.UnitID)
	if err != nil {
		return nil, nil, err
	}
	if landlordID != s.UserID() {
		return nil, nil, ErrNotOwner
	}
	return &payment, &inv, nil
}
