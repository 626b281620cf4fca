// Command seed prepara un tenant de desarrollo.
//
//	seed demo --tenant <uuid> --country CH   organización y contactos de ejemplo
//	seed token --tenant <uuid> --role admin  JWT firmado con JWT_SECRET
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	infrapdf "github.com/jhoicas/crm-invoicing/internal/infrastructure/pdf"
	"github.com/jhoicas/crm-invoicing/internal/infrastructure/postgres"
	"github.com/jhoicas/crm-invoicing/pkg/config"
	"github.com/jhoicas/crm-invoicing/pkg/jwt"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var tenantID string

	root := &cobra.Command{
		Use:           "seed",
		Short:         "Datos y credenciales de desarrollo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant (company_id); vacío = uno nuevo")

	resolveTenant := func() string {
		if tenantID == "" {
			tenantID = uuid.New().String()
		}
		return tenantID
	}

	root.AddCommand(newDemoCmd(resolveTenant), newTokenCmd(resolveTenant))
	return root
}

func newDemoCmd(tenant func() string) *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Crea la organización acreedora y dos contactos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("cargar configuración: %w", err)
			}
			log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed"})

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			pool, err := postgres.NewPool(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenantID := tenant()
			org, ok := demoOrganizations[country]
			if !ok {
				return fmt.Errorf("país sin datos de ejemplo: %s (use CH o DE)", country)
			}
			orgUC := billing.NewOrganizationUseCase(postgres.NewOrganizationRepository(pool), func(c string) string {
				return string(infrapdf.FormatFor(c))
			})
			saved, err := orgUC.Upsert(ctx, tenantID, org)
			if err != nil {
				return fmt.Errorf("organización: %w", err)
			}
			log.Info().Str("tenant_id", tenantID).Str("format", saved.DocumentFormat).Msg("organización creada")

			contactUC := billing.NewContactUseCase(postgres.NewContactRepository(pool))
			for _, in := range demoContacts {
				c, err := contactUC.Create(ctx, tenantID, in)
				if err != nil {
					return fmt.Errorf("contacto %s: %w", in.Name, err)
				}
				log.Info().Str("contact_id", c.ID).Str("country", c.CountryCode).Msg("contacto creado")
			}
			fmt.Fprintln(cmd.OutOrStdout(), tenantID)
			return nil
		},
	}
	cmd.Flags().StringVar(&country, "country", "CH", "país del acreedor (CH o DE)")
	return cmd
}

func newTokenCmd(tenant func() string) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Imprime un JWT de desarrollo para el tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("cargar configuración: %w", err)
			}
			tok, err := jwt.Generate(cfg.JWT.Secret, jwt.Identity{
				UserID:   "seed",
				TenantID: tenant(),
				Role:     role,
			}, cfg.JWT.Issuer, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", jwt.RoleAdmin, "admin, billing o viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "vigencia del token")
	return cmd
}

var demoOrganizations = map[string]dto.OrganizationRequest{
	"CH": {
		Name:           "Muster Treuhand GmbH",
		Street:         "Bahnhofstrasse",
		BuildingNumber: "10",
		PostalCode:     "8001",
		City:           "Zürich",
		CountryCode:    "CH",
		VATNumber:      "CHE-123.456.789 MWST",
		IBAN:           "CH93 0076 2011 6238 5295 7",
		Email:          "rechnung@muster.example",
	},
	"DE": {
		Name:           "Beispiel Beratung GmbH",
		Street:         "Friedrichstraße",
		BuildingNumber: "123",
		PostalCode:     "10117",
		City:           "Berlin",
		CountryCode:    "DE",
		VATNumber:      "DE123456789",
		IBAN:           "DE89 3704 0044 0532 0130 00",
		BIC:            "COBADEFFXXX",
		Email:          "rechnung@beispiel.example",
	},
}

var demoContacts = []dto.CreateContactRequest{
	{Name: "Alpen Design AG", Street: "Marktgasse", BuildingNumber: "5", PostalCode: "3011", City: "Bern", CountryCode: "CH"},
	{Name: "Nordlicht GmbH", Street: "Hafenstraße", BuildingNumber: "7", PostalCode: "20457", City: "Hamburg", CountryCode: "DE"},
}
