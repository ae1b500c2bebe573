package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FileStore persists payment proof uploads
type FileStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Publisher emits ledger events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Notification is a message for a single user
type Notification struct {
	UserID  uint
	Subject string
	Message string
}

// Notifier schedules notifications inside the caller's transaction
type Notifier interface {
	Enqueue(ctx context.Context, tx *gorm.DB, n Notification) error
}

// CacheInvalidator drops cached read models
type CacheInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// Event is published after a ledger mutation commits
type Event struct {
	Type       string          `json:"type"`
	InvoiceID  uint            `json:"invoiceId,omitempty"`
	PaymentID  uint            `json:"paymentId,omitempty"`
	TenantID   uint            `json:"tenantId,omitempty"`
	LandlordID uint            `json:"landlordId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

const (
	EventInvoiceGenerated = "invoice.generated"
	EventInvoiceCreated   = "invoice.created"
	EventInvoiceOverdue   = "invoice.overdue"
	EventInvoiceCancelled = "invoice.cancelled"
	EventPaymentSubmitted = "payment.submitted"
	EventPaymentApproved  = "payment.approved"
	EventPaymentRejected  = "payment.rejected"
)

const (
	DefaultMaxProofSize = 5 * 1024 * 1024
	DefaultDueDay       = 5
	InvoicePageSize     = 20
)

// Options configures a Ledger. Only DB is required.
type Options struct {
	DB           *gorm.DB
	Files        FileStore
	Events       Publisher
	Notifier     Notifier
	Cache        CacheInvalidator
	Now          func() time.Time
	DueDay       int
	AppURL       string
	MaxProofSize int64
}

// Ledger owns the invoice, payment and receipt lifecycle
type Ledger struct {
	db           *gorm.DB
	files        FileStore
	events       Publisher
	notifier     Notifier
	cache        CacheInvalidator
	now          func() time.Time
	dueDay       int
	appURL       string
	maxProofSize int64
}

func New(opts Options) *Ledger {
	l := &Ledger{
		db:           opts.DB,
		files:        opts.Files,
		events:       opts.Events,
		notifier:     opts.Notifier,
		cache:        opts.Cache,
		now:          opts.Now,
		dueDay:       opts.DueDay,
		appURL:       opts.AppURL,
		maxProofSize: opts.MaxProofSize,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.dueDay < 1 || l.dueDay > 31 {
		l.dueDay = DefaultDueDay
	}
	if l.maxProofSize <= 0 {
		l.maxProofSize = DefaultMaxProofSize
	}
	return l
}

// DB exposes the underlying handle for callers that share the ledger's connection
func (l *Ledger) DB() *gorm.DB { return l.db }

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

func (l *Ledger) publish(ctx context.Context, e Event) {
	if l.events == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = l.clock()
	}
	if err := l.events.Publish(ctx, e.Type, e); err != nil {
		log.Warnf("failed to publish %s event: %v", e.Type, err)
	}
}

func (l *Ledger) notify(ctx context.Context, tx *gorm.DB, n Notification) error {
	if l.notifier == nil || n.UserID == 0 {
		return nil
	}
	if err := l.notifier.Enqueue(ctx, tx, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// DashboardCacheKey is the cache key of a user's dashboard stats
func DashboardCacheKey(userID uint) string {
	return fmt.Sprintf("dashboard:%d", userID)
}

func (l *Ledger) invalidateDashboards(ctx context.Context, userIDs ...uint) {
	if l.cache == nil {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != 0 {
			keys = append(keys, DashboardCacheKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := l.cache.Delete(ctx, keys...); err != nil {
		log.Warnf("failed to invalidate dashboards: %v", err)
	}
}
