package ledger

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
	pngBytes  = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
)

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func (m *memFiles) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return "", fmt.Errorf("bucket unavailable")
	}
	m.objects[key] = data
	return "https://files.test/" + key, nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, value.(Event))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	sent []Notification
}

func (n *recordingNotifier) Enqueue(_ context.Context, tx *gorm.DB, msg Notification) error {
	if tx == nil {
		return fmt.Errorf("notification enqueued outside a transaction")
	}
	n.sent = append(n.sent, msg)
	return nil
}

type recordingCache struct {
	mu      sync.Mutex
	deleted []string
}

func (c *recordingCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, keys...)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	ledger   *Ledger
	files    *memFiles
	events   *recordingPublisher
	notifier *recordingNotifier
	cache    *recordingCache
	now      time.Time

	landlord      models.User
	otherLandlord models.User
	tenant        models.User
	otherTenant   models.User
	property      models.Property
	unit          models.Unit

	landlordSession identity.Session
	tenantSession   identity.Session
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       newTestDB(t),
		files:    &memFiles{objects: map[string][]byte{}},
		events:   &recordingPublisher{},
		notifier: &recordingNotifier{},
		cache:    &recordingCache{},
		now:      time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC),
	}
	f.ledger = New(Options{
		DB:       f.db,
		Files:    f.files,
		Events:   f.events,
		Notifier: f.notifier,
		Cache:    f.cache,
		Now:      func() time.Time { return f.now },
		DueDay:   5,
		AppURL:   "https://rent.test/",
	})

	f.landlord = f.user("owner@rent.test", models.RoleLandlord)
	f.otherLandlord = f.user("other-owner@rent.test", models.RoleLandlord)
	f.tenant = f.user("tenant@rent.test", models.RoleTenant)
	f.otherTenant = f.user("neighbour@rent.test", models.RoleTenant)

	f.property = models.Property{LandlordID: f.landlord.ID, Name: "Maple Court", City: "Springfield"}
	require.NoError(t, f.db.Create(&f.property).Error)
	f.unit = f.addUnit(f.property.ID, "101", "1200", &f.tenant.ID)

	f.landlordSession = f.session(f.landlord)
	f.tenantSession = f.session(f.tenant)
	return f
}

func (f *fixture) user(email string, role models.Role) models.User {
	u := models.User{Email: email, FirstName: "Test", LastName: string(role), Role: role}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) session(u models.User) identity.Session {
	s, err := identity.ForUser(&u)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) addUnit(propertyID uint, number, rent string, tenantID *uint) models.Unit {
	u := models.Unit{PropertyID: propertyID, UnitNumber: number, Rent: decimal.RequireFromString(rent), TenantID: tenantID}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) invoice(amount string, status models.InvoiceStatus, due time.Time) models.Invoice {
	inv := models.Invoice{
		TenantID:    f.tenant.ID,
		UnitID:      f.unit.ID,
		Amount:      decimal.RequireFromString(amount),
		DueDate:     due,
		Status:      status,
		Description: "Rent",
	}
	require.NoError(f.t, f.db.Create(&inv).Error)
	return inv
}

func (f *fixture) submit(invoiceID uint, txID string) *models.Payment {
	p, err := f.ledger.SubmitPayment(f.ctx, f.tenantSession, SubmitPaymentRequest{InvoiceID: invoiceID, TransactionID: txID})
	require.NoError(f.t, err)
	return p
}

// reload zeroes dest first; gorm would otherwise add its old primary key to the query
func (f *fixture) reload(dest interface{}, id uint) {
	v := reflect.ValueOf(dest).Elem()
	v.Set(reflect.Zero(v.Type()))
	require.NoError(f.t, f.db.First(dest, id).Error)
}

func (f *fixture) count(model interface{}, query string, args ...interface{}) int64 {
	var n int64
	require.NoError(f.t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
