package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/advance"
	"github.com/hms/hms/internal/domain/bill"
	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/selection"
	"github.com/hms/hms/internal/domain/summary"
	"github.com/hms/hms/internal/domain/tariff"
	"github.com/hms/hms/internal/domain/visit"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
)

// VisitLookupAdapter adapts the visit service to selection.VisitLookup,
// avoiding a circular import between the selection and visit packages.
type VisitLookupAdapter struct {
	visits *visit.Service
}

func (a *VisitLookupAdapter) ListByVisitID(ctx context.Context, externalID string) ([]selection.VisitRef, error) {
	rows, err := a.visits.ListByVisitID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	refs := make([]selection.VisitRef, len(rows))
	for i, v := range rows {
		refs[i] = selection.VisitRef{UUID: v.ID, CreatedAt: v.CreatedAt}
	}
	return refs, nil
}

// RateProviderAdapter resolves a unit rate for a service in the context of
// a visit: catalog entry, patient category, then the rate fallback chain.
type RateProviderAdapter struct {
	catalog  *catalog.Service
	visits   *visit.Service
	resolver *tariff.Resolver
}

func (a *RateProviderAdapter) ResolveRate(ctx context.Context, externalVisitID string, serviceID uuid.UUID) (tariff.RateSelection, error) {
	entry, err := a.catalog.Get(ctx, serviceID)
	if err != nil {
		return tariff.RateSelection{}, err
	}
	v, err := a.visits.GetByVisitID(ctx, externalVisitID)
	if err != nil {
		return tariff.RateSelection{}, err
	}
	category, err := a.visits.BillingCategory(ctx, v.ID)
	if err != nil {
		return tariff.RateSelection{}, err
	}
	return a.resolver.Resolve(entry, category), nil
}

// ChargeSourceAdapter buckets a visit's saved selections into summary
// categories by catalog family.
type ChargeSourceAdapter struct {
	selections selection.Repository
	catalog    *catalog.Service
}

var familyToCategory = map[string]summary.Category{
	catalog.FamilyClinical:      summary.CategoryClinical,
	catalog.FamilyLab:           summary.CategoryLaboratory,
	catalog.FamilyRadiology:     summary.CategoryRadiology,
	catalog.FamilyMandatory:     summary.CategoryMandatory,
	catalog.FamilyAccommodation: summary.CategoryAccommodation,
	catalog.FamilySurgery:       summary.CategorySurgery,
	catalog.FamilyOther:         summary.CategoryPrivate,
}

func (a *ChargeSourceAdapter) ChargeLines(ctx context.Context, visitUUID uuid.UUID) ([]summary.ChargeLine, error) {
	recs, err := a.selections.ListByVisit(ctx, visitUUID)
	if err != nil {
		return nil, err
	}
	lines := make([]summary.ChargeLine, 0, len(recs))
	for _, rec := range recs {
		entry, err := a.catalog.Get(ctx, rec.ServiceID)
		if err != nil {
			return nil, err
		}
		category, ok := familyToCategory[entry.Family]
		if !ok {
			category = summary.CategoryPrivate
		}
		lines = append(lines, summary.ChargeLine{Category: category, Amount: rec.Amount})
	}
	return lines, nil
}

// AdvanceSourceAdapter adapts the advance service to summary.AdvanceSource.
type AdvanceSourceAdapter struct {
	advances *advance.Service
}

func (a *AdvanceSourceAdapter) Totals(ctx context.Context, visitUUID uuid.UUID) (summary.AdvanceTotals, error) {
	paid, refunded, err := a.advances.Totals(ctx, visitUUID)
	if err != nil {
		return summary.AdvanceTotals{}, err
	}
	return summary.AdvanceTotals{Paid: paid, Refunded: refunded}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital billing API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hospitalCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the billing API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "hospital_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "hospital_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func hospitalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hospital",
		Short: "Manage hospital schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new hospital schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating hospital schema: hospital_%s\n", name)
			if err := db.CreateHospitalSchema(ctx, pool, name, ""); err != nil {
				return err
			}
			fmt.Println("Hospital created. Run migrations with: hms-server migrate up --schema hospital_" + name)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Hospital identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Hospital-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	e.Use(db.HospitalMiddleware(pool, cfg.DefaultHospital))
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// -- Domain wiring --

	rateResolver := tariff.NewResolver(tariff.NominalRates{
		Lab:      cfg.NominalRateLab,
		Clinical: cfg.NominalRateClinical,
		Default:  cfg.NominalRateDefault,
	})

	catalogRepo := catalog.NewRepoPG(pool)
	catalogSvc := catalog.NewService(catalogRepo)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)

	visitRepo := visit.NewRepoPG(pool)
	patientRepo := visit.NewPatientRepoPG(pool)
	visitSvc := visit.NewService(visitRepo, patientRepo)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)

	selectionRepo := selection.NewRepoPG(pool)
	reconciler := selection.NewReconciler(selectionRepo, &VisitLookupAdapter{visits: visitSvc}, logger).
		WithTx(func(ctx context.Context, fn func(context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		})
	rateProvider := &RateProviderAdapter{catalog: catalogSvc, visits: visitSvc, resolver: rateResolver}
	selection.NewHandler(reconciler, rateProvider).RegisterRoutes(apiV1)

	billRepo := bill.NewRepoPG(pool)
	billSvc := bill.NewService(billRepo, logger)
	bill.NewHandler(billSvc).RegisterRoutes(apiV1)

	advanceRepo := advance.NewRepoPG(pool)
	advanceSvc := advance.NewService(advanceRepo)
	advance.NewHandler(advanceSvc).RegisterRoutes(apiV1)

	summaryRepo := summary.NewRepoPG(pool)
	aggregator := summary.NewAggregator(summaryRepo,
		&ChargeSourceAdapter{selections: selectionRepo, catalog: catalogSvc},
		&AdvanceSourceAdapter{advances: advanceSvc},
		logger)
	summary.NewHandler(aggregator).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
