package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

func TestGenerateInvoices(t *testing.T) {
	app := newTestApp(t)
	token := app.token(app.landlord)

	rec := app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", token, map[string]string{"month": "07", "year": "2024"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var report ledger.GenerationReport
	env := decode(t, rec, &report)
	assert.Equal(t, "Generated 1 invoice(s) for 2024-07", env.Message)
	require.Len(t, report.Created, 1)
	assert.Equal(t, "Rent for July 2024 - Unit 101", report.Created[0].Description)

	// running the same period again creates nothing
	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", token, map[string]string{"month": "07", "year": "2024"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &report)
	assert.Empty(t, report.Created)
	assert.Equal(t, 1, report.Skipped)

	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", token, map[string]string{"month": "13", "year": "2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "month", decode(t, rec, nil).Field)

	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", token, map[string]string{"year": "2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	empty := app.user("empty-owner@rent.test", models.RoleLandlord)
	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", app.token(empty), map[string]string{"month": "07", "year": "2024"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_BATCH", decode(t, rec, nil).Code)

	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", app.token(app.tenant), map[string]string{"month": "07", "year": "2024"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAndGetInvoices(t *testing.T) {
	app := newTestApp(t)
	pending := app.invoice("1200", models.InvoiceStatusPending)
	app.invoice("80", models.InvoiceStatusPaid)

	rec := app.json(http.MethodGet, "/api/v1/tenant/invoices?status=PENDING", app.token(app.tenant), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page ledger.InvoicePage
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Pages)
	require.Len(t, page.Invoices, 1)
	assert.Equal(t, pending.ID, page.Invoices[0].ID)

	rec = app.json(http.MethodGet, "/api/v1/landlord/invoices?page=1", app.token(app.landlord), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, int64(2), page.Total)

	rec = app.json(http.MethodGet, "/api/v1/tenant/invoices?status=LOST", app.token(app.tenant), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.json(http.MethodGet, "/api/v1/tenant/invoices?page=zero", app.token(app.tenant), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.json(http.MethodGet, "/api/v1/tenant/invoices/"+itoa(pending.ID), app.token(app.tenant), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inv models.Invoice
	decode(t, rec, &inv)
	assert.True(t, inv.Amount.Equal(pending.Amount))

	stranger := app.user("stranger@rent.test", models.RoleTenant)
	rec = app.json(http.MethodGet, "/api/v1/tenant/invoices/"+itoa(pending.ID), app.token(stranger), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateCancelAndSweep(t *testing.T) {
	app := newTestApp(t)
	token := app.token(app.landlord)

	rec := app.json(http.MethodPost, "/api/v1/landlord/invoices", token, map[string]interface{}{
		"tenantId":    app.tenant.ID,
		"unitId":      app.unit.ID,
		"amount":      "75.50",
		"dueDate":     testNow.AddDate(0, 0, -1).Format(time.RFC3339),
		"description": "Water bill",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Invoice
	decode(t, rec, &created)
	assert.Equal(t, models.InvoiceStatusPending, created.Status)

	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/sweep-overdue", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sweep ledger.SweepResult
	env := decode(t, rec, &sweep)
	assert.Equal(t, []uint{created.ID}, sweep.InvoiceIDs)
	assert.Equal(t, "1 invoice(s) marked overdue", env.Message)

	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/"+itoa(created.ID)+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled models.Invoice
	decode(t, rec, &cancelled)
	assert.Equal(t, models.InvoiceStatusCancelled, cancelled.Status)

	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/"+itoa(created.ID)+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, rec, nil).Code)
}

func TestDashboardsAreCached(t *testing.T) {
	app := newTestApp(t)
	app.invoice("1200", models.InvoiceStatusPending)
	token := app.token(app.tenant)

	rec := app.json(http.MethodGet, "/api/v1/tenant/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats ledger.TenantDashboard
	decode(t, rec, &stats)
	assert.Equal(t, int64(1), stats.PendingInvoices)
	assert.True(t, app.redis.Exists(ledger.DashboardCacheKey(app.tenant.ID)))

	// a generated invoice invalidates the cached stats
	rec = app.json(http.MethodPost, "/api/v1/landlord/invoices/generate", app.token(app.landlord), map[string]string{"month": "07", "year": "2024"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, app.redis.Exists(ledger.DashboardCacheKey(app.tenant.ID)))

	rec = app.json(http.MethodGet, "/api/v1/tenant/dashboard", token, nil)
	decode(t, rec, &stats)
	assert.Equal(t, int64(2), stats.PendingInvoices)

	rec = app.json(http.MethodGet, "/api/v1/landlord/dashboard", app.token(app.landlord), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var landlordStats ledger.LandlordDashboard
	decode(t, rec, &landlordStats)
	assert.Equal(t, int64(1), landlordStats.TotalProperties)
	assert.Equal(t, int64(1), landlordStats.TotalUnits)
}
