package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/crm-invoicing/pkg/jwt"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Invoices      InvoiceService
	InvoicePDF    InvoicePDFService
	Contacts      ContactService
	Organization  OrganizationService
	Confirmations ConfirmationParser // nil = webhook de Stripe deshabilitado
	Reconciler    PaymentConfirmer
	Logger        *logger.Logger
	JWTSecret     string
	JWTIssuer     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Webhooks (público, autenticado por firma)
	if deps.Confirmations != nil && deps.Reconciler != nil {
		webhookHandler := NewWebhookHandler(deps.Confirmations, deps.Reconciler, deps.Logger)
		api.Post("/webhooks/stripe", webhookHandler.Stripe)
	}

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	canBill := RequireRole(jwt.RoleAdmin, jwt.RoleBilling)
	canRead := RequireRole(jwt.RoleAdmin, jwt.RoleBilling, jwt.RoleViewer)

	// Invoices
	invoiceHandler := NewInvoiceHandler(deps.Invoices, deps.InvoicePDF)
	invoices := protected.Group("/invoices")
	invoices.Post("/", canBill, invoiceHandler.Create)
	invoices.Get("/", canRead, invoiceHandler.List)
	invoices.Get("/:id", canRead, invoiceHandler.GetByID)
	invoices.Post("/:id/items", canBill, invoiceHandler.AddItem)
	invoices.Delete("/:id/items/:itemId", canBill, invoiceHandler.RemoveItem)
	invoices.Post("/:id/finalize", canBill, invoiceHandler.Finalize)
	invoices.Post("/:id/cancel", canBill, invoiceHandler.Cancel)
	invoices.Post("/:id/payment-link", canBill, invoiceHandler.PaymentLink)
	invoices.Get("/:id/pdf", canRead, invoiceHandler.PDF)

	protected.Get("/tax-rates/:country", canRead, invoiceHandler.TaxRates)

	// Contacts
	contacts := protected.Group("/contacts")
	contactHandler := NewContactHandler(deps.Contacts)
	contacts.Post("/", canBill, contactHandler.Create)
	contacts.Get("/", canRead, contactHandler.List)
	contacts.Get("/:id", canRead, contactHandler.GetByID)

	// Organization (acreedor del tenant)
	orgHandler := NewOrganizationHandler(deps.Organization)
	protected.Get("/organization", canRead, orgHandler.Get)
	protected.Put("/organization", RequireRole(jwt.RoleAdmin), orgHandler.Put)
}
