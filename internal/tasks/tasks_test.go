package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

var testNow = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func clock() time.Time { return testNow }

func newDeps(t *testing.T) *Deps {
	t.Helper()
	db := newTestDB(t)
	return &Deps{
		DB:     db,
		Ledger: ledger.New(ledger.Options{DB: db, Now: clock, AppURL: "https://rent.test"}),
		Now:    clock,
	}
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{Email: email, FirstName: "Sam", LastName: "Okafor", Role: role, Phone: "0812-3456-789"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// occupiedUnit creates a property for landlord with one unit rented by tenant
func occupiedUnit(t *testing.T, db *gorm.DB, landlord, tenant models.User) models.Unit {
	t.Helper()
	prop := models.Property{LandlordID: landlord.ID, Name: "Maple Court", Address: "1 Maple St", City: "Springfield", State: "IL", ZipCode: "62701"}
	require.NoError(t, db.Create(&prop).Error)
	unit := models.Unit{PropertyID: prop.ID, UnitNumber: "101", Rent: decimal.NewFromInt(1200), Deposit: decimal.NewFromInt(1200), Bedrooms: 2, Bathrooms: 1, TenantID: &tenant.ID}
	require.NoError(t, db.Create(&unit).Error)
	return unit
}

func insertTask(t *testing.T, db *gorm.DB, task *models.ScheduledTask) models.ScheduledTask {
	t.Helper()
	require.NoError(t, db.Create(task).Error)
	var stored models.ScheduledTask
	require.NoError(t, db.First(&stored, task.ID).Error)
	return stored
}

type sentEmail struct {
	To      []string
	Subject string
	Body    string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	fail map[string]bool
}

func (f *fakeEmail) SendEmail(to []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, addr := range to {
		if f.fail[addr] {
			return errors.New("mailbox unavailable")
		}
	}
	f.sent = append(f.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

type sentMessage struct {
	ChatID string
	Text   string
}

type fakeWhatsapp struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeWhatsapp) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}
