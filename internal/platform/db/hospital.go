package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	HospitalKey contextKey = "hospital"
	DBConnKey   contextKey = "db_conn"
)

var hospitalPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// HospitalMiddleware resolves the hospital a request belongs to and pins the
// request's database connection to that hospital's schema. Every billing
// table lives in a per-hospital schema so one hospital can never read
// another's bills.
func HospitalMiddleware(pool *pgxpool.Pool, defaultHospital string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hospital := extractHospital(c, defaultHospital)

			if !hospitalPattern.MatchString(hospital) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			schema := fmt.Sprintf("hospital_%s", hospital)
			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", schema))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "hospital resolution failed")
			}

			ctx = context.WithValue(ctx, HospitalKey, hospital)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("hospital", hospital)
			c.Set("db", conn)

			return next(c)
		}
	}
}

func extractHospital(c echo.Context, defaultHospital string) string {
	// 1. JWT claim (set by auth middleware)
	if h, ok := c.Get("jwt_hospital").(string); ok && h != "" {
		return h
	}

	// 2. X-Hospital header
	if h := c.Request().Header.Get("X-Hospital"); h != "" {
		return h
	}

	// 3. Query parameter
	if h := c.QueryParam("hospital"); h != "" {
		return h
	}

	return defaultHospital
}

// ConnFromContext retrieves the hospital-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// HospitalFromContext retrieves the hospital identifier from context.
func HospitalFromContext(ctx context.Context) string {
	h, _ := ctx.Value(HospitalKey).(string)
	return h
}

// CreateHospitalSchema creates a new schema for a hospital and runs all
// migrations against it. If migrationsDir is empty, migrations are skipped.
func CreateHospitalSchema(ctx context.Context, pool *pgxpool.Pool, hospital string, migrationsDir string) error {
	if !hospitalPattern.MatchString(hospital) {
		return fmt.Errorf("invalid hospital identifier: %s", hospital)
	}

	schema := fmt.Sprintf("hospital_%s", hospital)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
