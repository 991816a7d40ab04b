package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/domain/tariff"
	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG returns a Repository backed by the service_selections table.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const selectionCols = `id, visit_uuid, service_id, quantity, rate_used, rate_type, amount, fallback, selected_at, updated_at`

func (r *repoPG) Upsert(ctx context.Context, rec *ServiceSelectionRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_selections (id, visit_uuid, service_id, quantity, rate_used, rate_type, amount, fallback, selected_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (visit_uuid, service_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			rate_used = EXCLUDED.rate_used,
			rate_type = EXCLUDED.rate_type,
			amount = EXCLUDED.amount,
			fallback = EXCLUDED.fallback,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.VisitUUID, rec.ServiceID, rec.Quantity, rec.RateUsed,
		string(rec.RateType), rec.Amount, rec.Fallback, rec.SelectedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert selection: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, visitUUID, serviceID uuid.UUID) (*ServiceSelectionRecord, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+selectionCols+`
		FROM service_selections
		WHERE visit_uuid = $1 AND service_id = $2`, visitUUID, serviceID)
	rec, err := scanSelection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	return rec, nil
}

func (r *repoPG) ListByVisit(ctx context.Context, visitUUID uuid.UUID) ([]*ServiceSelectionRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+selectionCols+`
		FROM service_selections
		WHERE visit_uuid = $1
		ORDER BY selected_at`, visitUUID)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var recs []*ServiceSelectionRecord
	for rows.Next() {
		rec, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, visitUUID, serviceID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM service_selections
		WHERE visit_uuid = $1 AND service_id = $2`, visitUUID, serviceID)
	if err != nil {
		return fmt.Errorf("delete selection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanSelection(row pgx.Row) (*ServiceSelectionRecord, error) {
	var rec ServiceSelectionRecord
	var rateType string
	err := row.Scan(&rec.ID, &rec.VisitUUID, &rec.ServiceID, &rec.Quantity,
		&rec.RateUsed, &rateType, &rec.Amount, &rec.Fallback,
		&rec.SelectedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.RateType = tariff.RateType(rateType)
	return &rec, nil
}
