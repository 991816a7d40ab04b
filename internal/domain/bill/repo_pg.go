package bill

import (
	"context"
	"encoding/json"
	"fmt"

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

func (r *repoPG) GetByVisit(ctx context.Context, visitID uuid.UUID) (*Bill, error) {
	var (
		b        Bill
		treeJSON []byte
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, visit_id, tree, total_amount, saved_at, created_at, updated_at
		FROM bills WHERE visit_id = $1`, visitID).
		Scan(&b.ID, &b.VisitID, &treeJSON, &b.TotalAmount, &b.SavedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(treeJSON, &b.Tree); err != nil {
		return nil, fmt.Errorf("decoding bill tree: %w", err)
	}
	return &b, nil
}

func (r *repoPG) Save(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	treeJSON, err := json.Marshal(b.Tree)
	if err != nil {
		return fmt.Errorf("encoding bill tree: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO bills (id, visit_id, tree, total_amount, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (visit_id) DO UPDATE SET
			tree = EXCLUDED.tree,
			total_amount = EXCLUDED.total_amount,
			saved_at = EXCLUDED.saved_at,
			updated_at = NOW()
		WHERE bills.saved_at <= EXCLUDED.saved_at`,
		b.ID, b.VisitID, treeJSON, b.TotalAmount, b.SavedAt)
	return err
}

func (r *repoPG) Delete(ctx context.Context, visitID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM bills WHERE visit_id = $1`, visitID)
	return err
}
