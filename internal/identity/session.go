package identity

import (
	"context"
	"errors"
	"fmt"

	"bizrent_ledger/internal/models"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Capability names one thing a caller may do against the ledger
type Capability string

const (
	ManageProperties Capability = "manage_properties"
	GenerateInvoices Capability = "generate_invoices"
	ManageInvoices   Capability = "manage_invoices"
	ReviewPayments   Capability = "review_payments"
	ViewPayments     Capability = "view_payments"
	SubmitPayments   Capability = "submit_payments"
	ViewInvoices     Capability = "view_invoices"
	ViewReceipts     Capability = "view_receipts"
	ViewDashboard    Capability = "view_dashboard"
)

// Session is the authenticated caller of a ledger operation
type Session interface {
	UserID() uint
	Role() models.Role
	Can(c Capability) bool
}

var landlordCapabilities = map[Capability]bool{
	ManageProperties: true,
	GenerateInvoices: true,
	ManageInvoices:   true,
	ReviewPayments:   true,
	ViewPayments:     true,
	ViewInvoices:     true,
	ViewReceipts:     true,
	ViewDashboard:    true,
}

var tenantCapabilities = map[Capability]bool{
	SubmitPayments: true,
	ViewPayments:   true,
	ViewInvoices:   true,
	ViewReceipts:   true,
	ViewDashboard:  true,
}

type landlordSession struct{ id uint }

func (s landlordSession) UserID() uint          { return s.id }
func (s landlordSession) Role() models.Role     { return models.RoleLandlord }
func (s landlordSession) Can(c Capability) bool { return landlordCapabilities[c] }
func (s landlordSession) String() string        { return fmt.Sprintf("landlord:%d", s.id) }

type tenantSession struct{ id uint }

func (s tenantSession) UserID() uint          { return s.id }
func (s tenantSession) Role() models.Role     { return models.RoleTenant }
func (s tenantSession) Can(c Capability) bool { return tenantCapabilities[c] }
func (s tenantSession) String() string        { return fmt.Sprintf("tenant:%d", s.id) }

// systemSession is used by the worker and CLI. It may run batch jobs across all landlords.
type systemSession struct{}

func (systemSession) UserID() uint      { return 0 }
func (systemSession) Role() models.Role { return "" }
func (systemSession) Can(c Capability) bool {
	return c == GenerateInvoices || c == ManageInvoices
}
func (systemSession) String() string { return "system" }

// New builds the session for a user of the given role
func New(userID uint, role models.Role) (Session, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	switch role {
	case models.RoleLandlord:
		return landlordSession{id: userID}, nil
	case models.RoleTenant:
		return tenantSession{id: userID}, nil
	}
	return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, role)
}

// ForUser builds the session for a loaded user
func ForUser(u *models.User) (Session, error) {
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return New(u.ID, u.Role)
}

// System returns the session background jobs run under
func System() Session { return systemSession{} }

// IsSystem reports whether s is the background job session
func IsSystem(s Session) bool {
	_, ok := s.(systemSession)
	return ok
}

// Require fails with ErrUnauthenticated for a nil session and ErrForbidden when the capability is missing
func Require(s Session, c Capability) error {
	if s == nil {
		return ErrUnauthenticated
	}
	if !s.Can(c) {
		return fmt.Errorf("%w: %s", ErrForbidden, c)
	}
	return nil
}

type ctxKey struct{}

// WithSession stores s on ctx
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s != nil
}
