package ledger

import (
	"context"
	"errors"
	"fmt"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"gorm.io/gorm"
)

// InvoiceFilter narrows ListInvoices. Page starts at 1.
type InvoiceFilter struct {
	Status models.InvoiceStatus
	Page   int
}

// InvoicePage is one page of invoices
type InvoicePage struct {
	Invoices []models.Invoice `json:"invoices"`
	Total    int64            `json:"total"`
	Pages    int              `json:"pages"`
}

// ListInvoices returns the caller's invoices: a tenant's own, or those of a landlord's units
func (l *Ledger) ListInvoices(ctx context.Context, s identity.Session, filter InvoiceFilter) (*InvoicePage, error) {
	if err := identity.Require(s, identity.ViewInvoices); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown invoice status %q", filter.Status))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	db := l.db.WithContext(ctx)
	query := func() *gorm.DB {
		q := scopeInvoices(db, db.Model(&models.Invoice{}), s)
		if filter.Status != "" {
			q = q.Where("invoices.status = ?", filter.Status)
		}
		return q
	}

	page := &InvoicePage{Invoices: []models.Invoice{}}
	if err := query().Count(&page.Total).Error; err != nil {
		return nil, err
	}
	page.Pages = int((page.Total + InvoicePageSize - 1) / InvoicePageSize)

	err := query().
		Preload("Unit").
		Preload("Tenant").
		Order("invoices.due_date DESC, invoices.id DESC").
		Offset((filter.Page - 1) * InvoicePageSize).
		Limit(InvoicePageSize).
		Find(&page.Invoices).Error
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetInvoice returns one invoice with its payment attempts, newest first
func (l *Ledger) GetInvoice(ctx context.Context, s identity.Session, id uint) (*models.Invoice, error) {
	if err := identity.Require(s, identity.ViewInvoices); err != nil {
		return nil, err
	}

	db := l.db.WithContext(ctx)
	var inv models.Invoice
	err := db.
		Preload("Payments", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("submitted_at DESC, id DESC")
		}).
		Preload("Unit").
		Preload("Tenant").
		First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("invoice", id)
		}
		return nil, err
	}
	if err := canSeeInvoice(db, s, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// CancelInvoice voids an unpaid invoice. Invoices with an approved payment cannot be cancelled.
func (l *Ledger) CancelInvoice(ctx context.Context, s identity.Session, id uint) (*models.Invoice, error) {
	if err := identity.Require(s, identity.ManageInvoices); err != nil {
		return nil, err
	}

	now := l.clock()
	var inv models.Invoice
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("invoice", id)
			}
			return err
		}
		if err := canSeeInvoice(tx, s, &inv); err != nil {
			return err
		}
		if !inv.Status.AcceptsPayments() {
			return stateError("cannot cancel %s invoice", inv.Status)
		}

		var approved int64
		if err := tx.Model(&models.Payment{}).
			Where("invoice_id = ? AND status = ?", inv.ID, models.PaymentStatusApproved).
			Count(&approved).Error; err != nil {
			return err
		}
		if approved > 0 {
			return stateError("invoice has an approved payment")
		}

		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status IN ?", inv.ID, []models.InvoiceStatus{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
			Updates(map[string]interface{}{"status": models.InvoiceStatusCancelled, "cancelled_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return stateError("invoice %d changed while cancelling", inv.ID)
		}
		inv.Status = models.InvoiceStatusCancelled
		inv.CancelledAt = &now

		return l.notify(ctx, tx, Notification{
			UserID:  inv.TenantID,
			Subject: "Invoice cancelled",
			Message: fmt.Sprintf("%s (%s) has been cancelled", inv.Description, inv.Amount.StringFixed(2)),
		})
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, Event{Type: EventInvoiceCancelled, InvoiceID: inv.ID, TenantID: inv.TenantID, LandlordID: s.UserID(), Amount: inv.Amount})
	l.invalidateDashboards(ctx, inv.TenantID, s.UserID())
	return &inv, nil
}

// SweepResult lists the invoices moved to OVERDUE by one sweep
type SweepResult struct {
	InvoiceIDs []uint `json:"invoiceIds"`
	Count      int    `json:"count"`
}

// SweepOverdue marks PENDING invoices past their due date with no approved payment as OVERDUE.
// A landlord sweeps only their own units; the system session sweeps everything. Running it again
// changes nothing.
func (l *Ledger) SweepOverdue(ctx context.Context, s identity.Session) (*SweepResult, error) {
	if err := identity.Require(s, identity.ManageInvoices); err != nil {
		return nil, err
	}

	now := l.clock()
	db := l.db.WithContext(ctx)
	q := db.Model(&models.Invoice{}).
		Select("id", "tenant_id", "amount").
		Where("status = ? AND due_date < ?", models.InvoiceStatusPending, now).
		Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.invoice_id = invoices.id AND payments.status = ? AND payments.deleted_at IS NULL)", models.PaymentStatusApproved)
	if !identity.IsSystem(s) {
		q = q.Where("unit_id IN (?)", landlordUnitIDs(db, s.UserID()))
	}

	var candidates []models.Invoice
	if err := q.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("find overdue candidates: %w", err)
	}
	result := &SweepResult{InvoiceIDs: []uint{}}
	if len(candidates) == 0 {
		return result, nil
	}

	for _, inv := range candidates {
		res := db.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", inv.ID, models.InvoiceStatusPending).
			Update("status", models.InvoiceStatusOverdue)
		if res.Error != nil {
			return result, fmt.Errorf("mark invoice %d overdue: %w", inv.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		result.InvoiceIDs = append(result.InvoiceIDs, inv.ID)
		l.publish(ctx, Event{Type: EventInvoiceOverdue, InvoiceID: inv.ID, TenantID: inv.TenantID, Amount: inv.Amount})
		l.invalidateDashboards(ctx, inv.TenantID)
	}
	result.Count = len(result.InvoiceIDs)
	return result, nil
}
