package visit

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Visit Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const visitCols = `id, visit_id, patient_id, billing_category, patient_type, insurance_type,
	admission_date, discharge_date, surgery_date, package_start, package_end,
	created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.VisitID, &v.PatientID, &v.BillingCategory, &v.PatientType, &v.InsuranceType,
		&v.AdmissionDate, &v.DischargeDate, &v.SurgeryDate, &v.PackageStart, &v.PackageEnd,
		&v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO visits (id, visit_id, patient_id, billing_category, patient_type, insurance_type,
			admission_date, discharge_date, surgery_date, package_start, package_end)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		v.ID, v.VisitID, v.PatientID, v.BillingCategory, v.PatientType, v.InsuranceType,
		v.AdmissionDate, v.DischargeDate, v.SurgeryDate, v.PackageStart, v.PackageEnd)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) GetByVisitID(ctx context.Context, visitID string) (*Visit, error) {
	return scanVisit(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visits WHERE visit_id = $1 ORDER BY created_at DESC LIMIT 1`, visitID))
}

func (r *repoPG) ListByVisitID(ctx context.Context, visitID string) ([]*Visit, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE visit_id = $1 ORDER BY created_at DESC`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE visits SET billing_category=$2, patient_type=$3, insurance_type=$4,
			admission_date=$5, discharge_date=$6, surgery_date=$7,
			package_start=$8, package_end=$9, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.BillingCategory, v.PatientType, v.InsuranceType,
		v.AdmissionDate, v.DischargeDate, v.SurgeryDate, v.PackageStart, v.PackageEnd)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	return err
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `id, name, phone, billing_category, patient_type, insurance_type, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.BillingCategory, &p.PatientType, &p.InsuranceType,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patients (id, name, phone, billing_category, patient_type, insurance_type)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Name, p.Phone, p.BillingCategory, p.PatientType, p.InsuranceType)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET name=$2, phone=$3, billing_category=$4, patient_type=$5,
			insurance_type=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Phone, p.BillingCategory, p.PatientType, p.InsuranceType)
	return err
}
