package advance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const advanceCols = `id, visit_uuid, amount, mode, reference, is_refund, paid_at, created_by, created_at`

func (r *repoPG) Create(ctx context.Context, p *AdvancePayment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO advance_payments (id, visit_uuid, amount, mode, reference, is_refund, paid_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		p.ID, p.VisitUUID, p.Amount, p.Mode, p.Reference, p.IsRefund, p.PaidAt, p.CreatedBy)
	if err != nil {
		return fmt.Errorf("create advance payment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AdvancePayment, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+advanceCols+` FROM advance_payments WHERE id = $1`, id)
	p, err := scanAdvance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("advance payment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get advance payment: %w", err)
	}
	return p, nil
}

func (r *repoPG) ListByVisit(ctx context.Context, visitUUID uuid.UUID) ([]*AdvancePayment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+advanceCols+`
		FROM advance_payments
		WHERE visit_uuid = $1
		ORDER BY paid_at`, visitUUID)
	if err != nil {
		return nil, fmt.Errorf("list advance payments: %w", err)
	}
	defer rows.Close()

	var out []*AdvancePayment
	for rows.Next() {
		p, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan advance payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM advance_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete advance payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAdvance(row pgx.Row) (*AdvancePayment, error) {
	var p AdvancePayment
	err := row.Scan(&p.ID, &p.VisitUUID, &p.Amount, &p.Mode, &p.Reference,
		&p.IsRefund, &p.PaidAt, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
