package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, name, code, family,
	private_rate, tpa_rate, cghs_rate, non_cghs_rate, nabh_rate, non_nabh_rate,
	status, created_at, updated_at`

func scanEntry(row pgx.Row) (*ServiceCatalogEntry, error) {
	var e ServiceCatalogEntry
	err := row.Scan(&e.ID, &e.Name, &e.Code, &e.Family,
		&e.PrivateRate, &e.TPARate, &e.CGHSRate, &e.NonCGHSRate, &e.NABHRate, &e.NonNABHRate,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *ServiceCatalogEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_catalog (id, name, code, family,
			private_rate, tpa_rate, cghs_rate, non_cghs_rate, nabh_rate, non_nabh_rate, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.Name, e.Code, e.Family,
		e.PrivateRate, e.TPARate, e.CGHSRate, e.NonCGHSRate, e.NABHRate, e.NonNABHRate, e.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceCatalogEntry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM service_catalog WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, e *ServiceCatalogEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_catalog SET name=$2, code=$3, family=$4,
			private_rate=$5, tpa_rate=$6, cghs_rate=$7, non_cghs_rate=$8,
			nabh_rate=$9, non_nabh_rate=$10, status=$11, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Name, e.Code, e.Family,
		e.PrivateRate, e.TPARate, e.CGHSRate, e.NonCGHSRate,
		e.NABHRate, e.NonNABHRate, e.Status)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM service_catalog WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, family, status string, limit, offset int) ([]*ServiceCatalogEntry, int, error) {
	where := `WHERE ($1 = '' OR family = $1) AND ($2 = '' OR status = $2)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM service_catalog `+where, family, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM service_catalog `+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		family, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEntries(rows, total)
}

func (r *repoPG) SearchByName(ctx context.Context, q string, limit, offset int) ([]*ServiceCatalogEntry, int, error) {
	pattern := "%" + q + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM service_catalog WHERE name ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM service_catalog WHERE name ILIKE $1 ORDER BY name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEntries(rows, total)
}

func collectEntries(rows pgx.Rows, total int) ([]*ServiceCatalogEntry, int, error) {
	var items []*ServiceCatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
