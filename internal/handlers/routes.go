package handlers

import (
	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/models"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth        *AuthHandler
	Preferences *UserPreferenceHandler
	Dashboard   *DashboardHandler
	Invoices    *InvoiceHandler
	Payments    *PaymentHandler
	Properties  *PropertyHandler
	Users       *UserHandler
	Public      *PublicHandler
}

// RegisterRoutes mounts the public pages and the /api/v1 routes
func RegisterRoutes(e *echo.Echo, h Handlers, auth middleware.Authenticator) {
	// Public routes
	e.GET("/health", h.Public.Health)
	e.GET("/r/:token", h.Public.Receipt)

	api := e.Group("/api/v1")
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	// Protected routes
	protected := api.Group("", middleware.RequireAuth(auth))
	protected.GET("/auth/me", h.Auth.Me)
	protected.GET("/me/notification-preference", h.Preferences.GetUserPreference)
	protected.PUT("/me/notification-preference", h.Preferences.UpdateUserPreference)

	// Tenant routes
	tenant := protected.Group("/tenant", middleware.RequireRole(models.RoleTenant))
	tenant.GET("/dashboard", h.Dashboard.Tenant)
	tenant.GET("/invoices", h.Invoices.ListInvoices)
	tenant.GET("/invoices/:id", h.Invoices.GetInvoice)
	tenant.POST("/payments", h.Payments.SubmitPayment)
	tenant.POST("/invoices/:id/payments", h.Payments.SubmitPayment)
	tenant.GET("/payments", h.Payments.ListPayments)
	tenant.GET("/payments/:id/receipt", h.Payments.PaymentReceipt)
	tenant.GET("/receipts", h.Payments.ListReceipts)

	// Landlord routes
	landlord := protected.Group("/landlord", middleware.RequireRole(models.RoleLandlord))
	landlord.GET("/dashboard", h.Dashboard.Landlord)
	landlord.GET("/properties", h.Properties.ListProperties)
	landlord.POST("/properties", h.Properties.CreateProperty)
	landlord.DELETE("/properties/:id", h.Properties.DeleteProperty)
	landlord.POST("/units", h.Properties.CreateUnit)
	landlord.PUT("/units/:id/tenant", h.Properties.AssignTenant)
	landlord.DELETE("/units/:id/tenant", h.Properties.VacateUnit)
	landlord.GET("/tenants", h.Users.ListTenants)
	landlord.GET("/invoices", h.Invoices.ListInvoices)
	landlord.POST("/invoices", h.Invoices.CreateInvoice)
	landlord.POST("/invoices/generate", h.Invoices.GenerateInvoices)
	landlord.POST("/invoices/sweep-overdue", h.Invoices.SweepOverdue)
	landlord.GET("/invoices/:id", h.Invoices.GetInvoice)
	landlord.POST("/invoices/:id/cancel", h.Invoices.CancelInvoice)
	landlord.GET("/payments", h.Payments.ListPayments)
	landlord.GET("/payments/:id/receipt", h.Payments.PaymentReceipt)
	landlord.POST("/payments/:id/approve", h.Payments.ApprovePayment)
	landlord.POST("/payments/:id/reject", h.Payments.RejectPayment)
	landlord.GET("/receipts", h.Payments.ListReceipts)
}
