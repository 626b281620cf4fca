// Command migrate aplica las migraciones SQL de db/migrations.
//
//	migrate up
//	migrate down
//	migrate steps -- -1
//	migrate version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/jhoicas/crm-invoicing/pkg/config"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var source string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Migraciones de la base de facturación",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&source, "path", "db/migrations", "directorio de migraciones")

	run := func(fn func(m *migrate.Migrate, log *logger.Logger, args []string) error) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("cargar configuración: %w", err)
			}
			log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})
			m, err := migrate.New("file://"+source, databaseURL(cfg.DB))
			if err != nil {
				return fmt.Errorf("crear instancia de migrate: %w", err)
			}
			defer m.Close()
			return fn(m, log, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Aplica todas las migraciones pendientes",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, log *logger.Logger, _ []string) error {
				if err := ignoreNoChange(m.Up()); err != nil {
					return fmt.Errorf("migration up: %w", err)
				}
				log.Info().Msg("migraciones aplicadas")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revierte todas las migraciones",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, log *logger.Logger, _ []string) error {
				if err := ignoreNoChange(m.Down()); err != nil {
					return fmt.Errorf("migration down: %w", err)
				}
				log.Info().Msg("migraciones revertidas")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Aplica N migraciones (negativo revierte)",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(m *migrate.Migrate, log *logger.Logger, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("steps inválido %q: %w", args[0], err)
				}
				if err := ignoreNoChange(m.Steps(n)); err != nil {
					return fmt.Errorf("migration steps: %w", err)
				}
				log.Info().Int("steps", n).Msg("pasos de migración aplicados")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Muestra la versión actual del esquema",
			Args:  cobra.NoArgs,
			RunE: run(func(m *migrate.Migrate, _ *logger.Logger, _ []string) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Println("version: ninguna")
					return nil
				}
				if err != nil {
					return fmt.Errorf("leer versión: %w", err)
				}
				fmt.Printf("version: %d, dirty: %v\n", version, dirty)
				return nil
			}),
		},
	)
	return root
}

// databaseURL el driver pgx/v5 de migrate se registra con el esquema pgx5://.
func databaseURL(cfg config.DBConfig) string {
	dsn := cfg.ConnectionString()
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
