package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

// MonthlyGenerationRule runs invoice generation on the first day of every month
const MonthlyGenerationRule = "FREQ=MONTHLY;BYMONTHDAY=1"

// SweepOverdueTaskDef marks past-due invoices as overdue across all landlords
type SweepOverdueTaskDef struct{}

func (t *SweepOverdueTaskDef) TaskID() string {
	return "sweep_overdue"
}

// UniqueKey identifies the single recurring sweep task
func (t *SweepOverdueTaskDef) UniqueKey() string {
	return t.TaskID()
}

// CreateTask builds the recurring sweep task
func (t *SweepOverdueTaskDef) CreateTask(rule string, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), map[string]interface{}{}, due, &rule, models.ScheduledTaskTypeRecurring, 3)
}

// Ensure creates the recurring sweep unless it already exists
func (t *SweepOverdueTaskDef) Ensure(db *gorm.DB, rule string, due time.Time) (bool, error) {
	task, err := t.CreateTask(rule, due)
	if err != nil {
		return false, err
	}
	return EnsureTask(db, t.UniqueKey(), task)
}

func (t *SweepOverdueTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger is not configured", ErrPermanent)
	}
	res, err := deps.Ledger.SweepOverdue(ctx, identity.System())
	if err != nil {
		return nil, err
	}
	log.Infof("[Task: sweep_overdue] %d invoice(s) marked overdue", res.Count)
	return map[string]interface{}{
		"count":       res.Count,
		"invoice_ids": res.InvoiceIDs,
	}, nil
}

var SweepOverdueTask = &SweepOverdueTaskDef{}

// GenerateInvoicesArgs selects whose units are billed. Month and Year default to the month of the run.
type GenerateInvoicesArgs struct {
	LandlordID uint `json:"landlord_id"`
	Month      int  `json:"month,omitempty"`
	Year       int  `json:"year,omitempty"`
}

// GenerateInvoicesTaskDef bills one landlord's occupied units for a month
type GenerateInvoicesTaskDef struct{}

func (t *GenerateInvoicesTaskDef) TaskID() string {
	return "generate_invoices"
}

func (t *GenerateInvoicesTaskDef) UniqueKey(landlordID uint) string {
	return t.TaskID() + ":" + strconv.FormatUint(uint64(landlordID), 10)
}

// CreateTask builds a monthly recurring generation task for a landlord
func (t *GenerateInvoicesTaskDef) CreateTask(args GenerateInvoicesArgs, due time.Time) (*models.ScheduledTask, error) {
	if args.LandlordID == 0 {
		return nil, errors.New("landlord_id is required")
	}
	rule := MonthlyGenerationRule
	return BuildScheduledTask(t.TaskID(), args, due, &rule, models.ScheduledTaskTypeRecurring, 3)
}

// Ensure creates the landlord's monthly generation task unless it already exists
func (t *GenerateInvoicesTaskDef) Ensure(db *gorm.DB, landlordID uint, due time.Time) (bool, error) {
	task, err := t.CreateTask(GenerateInvoicesArgs{LandlordID: landlordID}, due)
	if err != nil {
		return false, err
	}
	return EnsureTask(db, t.UniqueKey(landlordID), task)
}

func (t *GenerateInvoicesTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger is not configured", ErrPermanent)
	}
	var args GenerateInvoicesArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}
	if args.LandlordID == 0 {
		return nil, fmt.Errorf("%w: landlord_id is required", ErrPermanent)
	}

	now := deps.now()
	month, year := args.Month, args.Year
	if month == 0 || year == 0 {
		month, year = int(now.Month()), now.Year()
	}

	report, err := deps.Ledger.GenerateInvoices(ctx, identity.System(), ledger.GenerateRequest{
		Month:      fmt.Sprintf("%02d", month),
		Year:       fmt.Sprintf("%04d", year),
		LandlordID: args.LandlordID,
	})
	if errors.Is(err, ledger.ErrEmptyBatch) {
		log.Infof("[Task: generate_invoices] landlord %d has no occupied units", args.LandlordID)
		return map[string]interface{}{"period": report.Period, "created": 0, "occupied": 0}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Infof("[Task: generate_invoices] landlord %d period %s: %d created, %d skipped, %d failed",
		args.LandlordID, report.Period, report.Count(), report.Skipped, report.Failed)
	result := map[string]interface{}{
		"period":   report.Period,
		"created":  report.Count(),
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"occupied": report.Occupied,
	}
	if report.Failed > 0 {
		return result, fmt.Errorf("%d unit(s) failed to generate", report.Failed)
	}
	return result, nil
}

var GenerateInvoicesTask = &GenerateInvoicesTaskDef{}
