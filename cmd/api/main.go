package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
	"github.com/jhoicas/crm-invoicing/internal/infrastructure/payments"
	infrapdf "github.com/jhoicas/crm-invoicing/internal/infrastructure/pdf"
	"github.com/jhoicas/crm-invoicing/internal/infrastructure/postgres"
	"github.com/jhoicas/crm-invoicing/internal/infrastructure/taxfile"
	httpRouter "github.com/jhoicas/crm-invoicing/internal/interfaces/http"
	"github.com/jhoicas/crm-invoicing/pkg/config"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET requerido")
	}

	rates, err := taxfile.BuildTable(cfg.Billing.TaxRatesFile, cfg.Billing.FallbackCountry)
	if err != nil {
		log.Fatal().Err(err).Msg("tabla de tasas de IVA")
	}
	log.Info().
		Strs("countries", rates.Countries()).
		Str("fallback", rates.FallbackCountry()).
		Msg("tasas de IVA cargadas")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	orgRepo := postgres.NewOrganizationRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	opts := billing.Options{
		OperationTimeout: cfg.Billing.OperationTimeout,
		Formatter: numbering.Formatter{
			Prefix:  cfg.Billing.NumberPrefix,
			Padding: cfg.Billing.NumberPadding,
		},
	}

	// Stripe es opcional: sin secret key el endpoint de enlaces responde 503
	// y el webhook no se registra.
	var (
		paymentProvider billing.PaymentLinkProvider
		confirmations   httpRouter.ConfirmationParser
	)
	if cfg.Stripe.Enabled() {
		provider, err := payments.NewStripeProvider(payments.StripeConfig{
			SecretKey:  cfg.Stripe.SecretKey,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
			Logger:     log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("proveedor de pagos")
		}
		paymentProvider = provider
		if cfg.Stripe.WebhookSecret != "" {
			confirmations = payments.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
		} else {
			log.Warn().Msg("STRIPE_WEBHOOK_SECRET vacío: los pagos no se concilian automáticamente")
		}
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY vacío: enlaces de pago deshabilitados")
	}

	invoiceUC := billing.NewInvoiceUseCase(txRunner, invoiceRepo, contactRepo, rates, paymentProvider, log, opts)
	pdfUC := billing.NewPDFUseCase(invoiceRepo, orgRepo, contactRepo, infrapdf.NewDispatcher(rates), opts)
	contactUC := billing.NewContactUseCase(contactRepo)
	orgUC := billing.NewOrganizationUseCase(orgRepo, func(country string) string {
		return string(infrapdf.FormatFor(country))
	})
	reconciler := billing.NewPaymentReconciler(txRunner, invoiceRepo, log, opts)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "CRM Invoicing API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		hctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	deps := httpRouter.RouterDeps{
		Invoices:     invoiceUC,
		InvoicePDF:   pdfUC,
		Contacts:     contactUC,
		Organization: orgUC,
		Logger:       log,
		JWTSecret:    cfg.JWT.Secret,
		JWTIssuer:    cfg.JWT.Issuer,
	}
	if confirmations != nil {
		deps.Confirmations = confirmations
		deps.Reconciler = reconciler
	}
	httpRouter.Router(app, deps)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
