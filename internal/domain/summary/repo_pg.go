package summary

import (
	"context"
	"encoding/json"
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

// NewRepoPG returns a Repository backed by the summaries table. Rows are
// stored as a JSONB document keyed by category.
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

func (r *repoPG) GetByVisit(ctx context.Context, visitUUID uuid.UUID) (*Summary, error) {
	var s Summary
	var rowsJSON []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, visit_uuid, rows, saved_at, created_at, updated_at
		FROM summaries
		WHERE visit_uuid = $1`, visitUUID).
		Scan(&s.ID, &s.VisitUUID, &rowsJSON, &s.SavedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &s.Rows); err != nil {
		return nil, fmt.Errorf("decode summary rows: %w", err)
	}
	return &s, nil
}

func (r *repoPG) Save(ctx context.Context, s *Summary) error {
	rowsJSON, err := json.Marshal(s.Rows)
	if err != nil {
		return fmt.Errorf("encode summary rows: %w", err)
	}
	// The saved_at guard makes the upsert last-writer-wins by operation
	// start time: a snapshot from an older operation cannot overwrite a
	// newer one.
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO summaries (id, visit_uuid, rows, saved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (visit_uuid) DO UPDATE SET
			rows = EXCLUDED.rows,
			saved_at = EXCLUDED.saved_at,
			updated_at = now()
		WHERE summaries.saved_at <= EXCLUDED.saved_at`,
		s.ID, s.VisitUUID, rowsJSON, s.SavedAt)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, visitUUID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM summaries WHERE visit_uuid = $1`, visitUUID)
	if err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
