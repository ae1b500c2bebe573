package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	monthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	yearPattern  = regexp.MustCompile(`^[0-9]{4}$`)
)

// GenerateRequest asks for one invoice per occupied unit for a billing period.
// LandlordID is only read when the caller is the system session.
type GenerateRequest struct {
	Month      string `json:"month" validate:"required"`
	Year       string `json:"year" validate:"required"`
	LandlordID uint   `json:"-"`
}

type UnitOutcome string

const (
	OutcomeCreated UnitOutcome = "created"
	OutcomeSkipped UnitOutcome = "skipped"
	OutcomeFailed  UnitOutcome = "failed"
)

// UnitResult is the generation outcome for a single unit
type UnitResult struct {
	UnitID     uint        `json:"unitId"`
	UnitNumber string      `json:"unitNumber"`
	TenantID   uint        `json:"tenantId"`
	InvoiceID  uint        `json:"invoiceId,omitempty"`
	Outcome    UnitOutcome `json:"outcome"`
	Error      string      `json:"error,omitempty"`
}

// GenerationReport summarizes a generation batch
type GenerationReport struct {
	Period   string           `json:"period"`
	Created  []models.Invoice `json:"invoices"`
	Results  []UnitResult     `json:"results"`
	Skipped  int              `json:"skipped"`
	Failed   int              `json:"failed"`
	Occupied int              `json:"occupiedUnits"`
}

// Count is the number of invoices created by the batch
func (r *GenerationReport) Count() int { return len(r.Created) }

// ParsePeriod validates a zero-padded month and a four digit year
func ParsePeriod(month, year string) (int, time.Month, error) {
	month = strings.TrimSpace(month)
	year = strings.TrimSpace(year)
	if !monthPattern.MatchString(month) {
		return 0, 0, invalid("month", "month must be 01 to 12")
	}
	if !yearPattern.MatchString(year) {
		return 0, 0, invalid("year", "year must have four digits")
	}
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	if y == 0 {
		return 0, 0, invalid("year", "year must have four digits")
	}
	return y, time.Month(m), nil
}

// dueDateFor returns the configured due day of the period, clamped to the month's length
func (l *Ledger) dueDateFor(year int, month time.Month) time.Time {
	day := l.dueDay
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 23, 59, 59, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// GenerateInvoices creates the rent invoices of a period for every occupied unit of a landlord.
// Units that already have an invoice for the period are skipped; a failing unit does not undo the others.
func (l *Ledger) GenerateInvoices(ctx context.Context, s identity.Session, req GenerateRequest) (*GenerationReport, error) {
	if err := identity.Require(s, identity.GenerateInvoices); err != nil {
		return nil, err
	}
	landlordID := s.UserID()
	if identity.IsSystem(s) {
		landlordID = req.LandlordID
		if landlordID == 0 {
			return nil, invalid("landlordId", "landlord is required")
		}
	}

	year, month, err := ParsePeriod(req.Month, req.Year)
	if err != nil {
		return nil, err
	}
	period := models.PeriodKey(year, month)
	report := &GenerationReport{Period: period, Created: []models.Invoice{}, Results: []UnitResult{}}

	db := l.db.WithContext(ctx)
	var units []models.Unit
	err = db.Where("tenant_id IS NOT NULL").
		Where("property_id IN (?)", landlordPropertyIDs(db, landlordID)).
		Order("id").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("load occupied units: %w", err)
	}
	report.Occupied = len(units)
	if len(units) == 0 {
		return report, ErrEmptyBatch
	}

	dueDate := l.dueDateFor(year, month)
	tenants := make([]uint, 0, len(units))
	for _, unit := range units {
		result, inv := l.generateForUnit(ctx, unit, period, year, month, dueDate)
		switch result.Outcome {
		case OutcomeCreated:
			report.Created = append(report.Created, *inv)
			tenants = append(tenants, result.TenantID)
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
			log.Warnf("invoice generation failed for unit %d period %s: %s", unit.ID, period, result.Error)
		}
		report.Results = append(report.Results, result)
	}

	if len(report.Created) > 0 {
		total := decimal.Zero
		for _, inv := range report.Created {
			total = total.Add(inv.Amount)
		}
		l.publish(ctx, Event{Type: EventInvoiceGenerated, LandlordID: landlordID, Amount: total, Count: len(report.Created)})
		l.invalidateDashboards(ctx, append(tenants, landlordID)...)
	}
	return report, nil
}

func (l *Ledger) generateForUnit(ctx context.Context, unit models.Unit, period string, year int, month time.Month, dueDate time.Time) (UnitResult, *models.Invoice) {
	result := UnitResult{UnitID: unit.ID, UnitNumber: unit.UnitNumber, TenantID: *unit.TenantID}
	if !unit.Rent.IsPositive() {
		result.Outcome = OutcomeFailed
		result.Error = "unit rent must be positive"
		return result, nil
	}

	var inv models.Invoice
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := period
		inv = models.Invoice{
			TenantID:    *unit.TenantID,
			UnitID:      unit.ID,
			PeriodKey:   &key,
			Amount:      unit.Rent,
			DueDate:     dueDate,
			Status:      models.InvoiceStatusPending,
			Description: fmt.Sprintf("Rent for %s %d - Unit %s", month, year, unit.UnitNumber),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&inv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing models.Invoice
			if err := tx.Unscoped().Select("id").
				Where("tenant_id = ? AND unit_id = ? AND period_key = ?", inv.TenantID, unit.ID, period).
				First(&existing).Error; err == nil {
				result.InvoiceID = existing.ID
			}
			result.Outcome = OutcomeSkipped
			return nil
		}
		result.InvoiceID = inv.ID
		result.Outcome = OutcomeCreated
		return l.notify(ctx, tx, Notification{
			UserID:  inv.TenantID,
			Subject: "New invoice",
			Message: fmt.Sprintf("%s: %s due %s", inv.Description, inv.Amount.StringFixed(2), dueDate.Format("2 Jan 2006")),
		})
	})
	if err != nil {
		result.InvoiceID = 0
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result, nil
	}
	if result.Outcome == OutcomeCreated {
		return result, &inv
	}
	return result, nil
}

// CreateInvoiceRequest is a manually issued invoice. Month and Year are optional; when given the
// invoice takes that billing period and a second invoice for it is refused.
type CreateInvoiceRequest struct {
	TenantID    uint            `json:"tenantId" validate:"required"`
	UnitID      uint            `json:"unitId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"dueDate" validate:"required"`
	Description string          `json:"description"`
	Month       string          `json:"month,omitempty"`
	Year        string          `json:"year,omitempty"`
}

// CreateInvoice issues a single invoice for a tenant occupying one of the landlord's units
func (l *Ledger) CreateInvoice(ctx context.Context, s identity.Session, req CreateInvoiceRequest) (*models.Invoice, error) {
	if err := identity.Require(s, identity.ManageInvoices); err != nil {
		return nil, err
	}
	if req.TenantID == 0 {
		return nil, invalid("tenantId", "tenant is required")
	}
	if req.UnitID == 0 {
		return nil, invalid("unitId", "unit is required")
	}
	if !req.Amount.IsPositive() {
		return nil, invalid("amount", "amount must be positive")
	}
	if req.DueDate.IsZero() {
		return nil, invalid("dueDate", "due date is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Invoice"
	}

	var periodKey *string
	if req.Month != "" || req.Year != "" {
		year, month, err := ParsePeriod(req.Month, req.Year)
		if err != nil {
			return nil, err
		}
		key := models.PeriodKey(year, month)
		periodKey = &key
	}

	var inv models.Invoice
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unit models.Unit
		if err := tx.Preload("Property").First(&unit, req.UnitID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("unit", req.UnitID)
			}
			return err
		}
		if unit.Property == nil || unit.Property.LandlordID != s.UserID() {
			return ErrNotOwner
		}
		if unit.TenantID == nil || *unit.TenantID != req.TenantID {
			return stateError("unit %s is not occupied by tenant %d", unit.UnitNumber, req.TenantID)
		}

		inv = models.Invoice{
			TenantID:    req.TenantID,
			UnitID:      unit.ID,
			PeriodKey:   periodKey,
			Amount:      req.Amount,
			DueDate:     req.DueDate.UTC(),
			Status:      models.InvoiceStatusPending,
			Description: description,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&inv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 && periodKey != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateGeneration, *periodKey)
		}
		return l.notify(ctx, tx, Notification{
			UserID:  inv.TenantID,
			Subject: "New invoice",
			Message: fmt.Sprintf("%s: %s due %s", inv.Description, inv.Amount.StringFixed(2), inv.DueDate.Format("2 Jan 2006")),
		})
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, Event{Type: EventInvoiceCreated, InvoiceID: inv.ID, TenantID: inv.TenantID, LandlordID: s.UserID(), Amount: inv.Amount})
	l.invalidateDashboards(ctx, inv.TenantID, s.UserID())
	return &inv, nil
}
