package ledger

import (
	"context"
	"math"
	"time"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const recentPaymentsLimit = 5

type LandlordDashboard struct {
	TotalProperties int64            `json:"totalProperties"`
	TotalUnits      int64            `json:"totalUnits"`
	TotalTenants    int64            `json:"totalTenants"`
	OccupancyRate   float64          `json:"occupancyRate"`
	MonthlyRevenue  decimal.Decimal  `json:"monthlyRevenue"`
	PendingPayments int64            `json:"pendingPayments"`
	OverdueInvoices int64            `json:"overdueInvoices"`
	RecentPayments  []models.Payment `json:"recentPayments"`
}

type TenantDashboard struct {
	PendingInvoices int64            `json:"pendingInvoices"`
	OverdueInvoices int64            `json:"overdueInvoices"`
	AmountDue       decimal.Decimal  `json:"amountDue"`
	RecentPayments  []models.Payment `json:"recentPayments"`
}

func (l *Ledger) LandlordDashboard(ctx context.Context, s identity.Session) (*LandlordDashboard, error) {
	if err := identity.Require(s, identity.ViewDashboard); err != nil {
		return nil, err
	}
	if s.Role() != models.RoleLandlord {
		return nil, ErrForbidden
	}

	db := l.db.WithContext(ctx)
	id := s.UserID()
	stats := &LandlordDashboard{MonthlyRevenue: decimal.Zero, RecentPayments: []models.Payment{}}
	units := func() *gorm.DB {
		return db.Model(&models.Unit{}).Where("property_id IN (?)", landlordPropertyIDs(db, id))
	}

	if err := landlordPropertyIDs(db, id).Count(&stats.TotalProperties).Error; err != nil {
		return nil, err
	}
	if err := units().Count(&stats.TotalUnits).Error; err != nil {
		return nil, err
	}
	var occupied int64
	if err := units().Where("tenant_id IS NOT NULL").Count(&occupied).Error; err != nil {
		return nil, err
	}
	if err := units().Where("tenant_id IS NOT NULL").Distinct("tenant_id").Count(&stats.TotalTenants).Error; err != nil {
		return nil, err
	}
	if stats.TotalUnits > 0 {
		stats.OccupancyRate = math.Round(float64(occupied)/float64(stats.TotalUnits)*1000) / 10
	}

	now := l.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var revenue []decimal.Decimal
	err := db.Model(&models.Payment{}).
		Where("invoice_id IN (?)", landlordInvoiceIDs(db, id)).
		Where("status = ? AND processed_at >= ?", models.PaymentStatusApproved, monthStart).
		Pluck("amount", &revenue).Error
	if err != nil {
		return nil, err
	}
	for _, amount := range revenue {
		stats.MonthlyRevenue = stats.MonthlyRevenue.Add(amount)
	}

	if err := db.Model(&models.Payment{}).
		Where("invoice_id IN (?) AND status = ?", landlordInvoiceIDs(db, id), models.PaymentStatusPending).
		Count(&stats.PendingPayments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Invoice{}).
		Where("unit_id IN (?) AND status = ?", landlordUnitIDs(db, id), models.InvoiceStatusOverdue).
		Count(&stats.OverdueInvoices).Error; err != nil {
		return nil, err
	}

	err = db.Where("invoice_id IN (?)", landlordInvoiceIDs(db, id)).
		Preload("Invoice.Unit").
		Preload("Tenant").
		Order("submitted_at DESC, id DESC").
		Limit(recentPaymentsLimit).
		Find(&stats.RecentPayments).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (l *Ledger) TenantDashboard(ctx context.Context, s identity.Session) (*TenantDashboard, error) {
	if err := identity.Require(s, identity.ViewDashboard); err != nil {
		return nil, err
	}
	if s.Role() != models.RoleTenant {
		return nil, ErrForbidden
	}

	db := l.db.WithContext(ctx)
	id := s.UserID()
	stats := &TenantDashboard{AmountDue: decimal.Zero, RecentPayments: []models.Payment{}}

	if err := db.Model(&models.Invoice{}).
		Where("tenant_id = ? AND status = ?", id, models.InvoiceStatusPending).
		Count(&stats.PendingInvoices).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Invoice{}).
		Where("tenant_id = ? AND status = ?", id, models.InvoiceStatusOverdue).
		Count(&stats.OverdueInvoices).Error; err != nil {
		return nil, err
	}

	var due []decimal.Decimal
	err := db.Model(&models.Invoice{}).
		Where("tenant_id = ? AND status IN ?", id, []models.InvoiceStatus{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
		Pluck("amount", &due).Error
	if err != nil {
		return nil, err
	}
	for _, amount := range due {
		stats.AmountDue = stats.AmountDue.Add(amount)
	}

	err = db.Where("tenant_id = ?", id).
		Preload("Invoice").
		Order("submitted_at DESC, id DESC").
		Limit(recentPaymentsLimit).
		Find(&stats.RecentPayments).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
