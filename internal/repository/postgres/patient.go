package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/repository"
)

const patientColumns = `id, name, age, loyalty_points, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, name, age, loyalty_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := r.ext(ctx).ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Age,
		patient.LoyaltyPoints,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.get(ctx, &patient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

// Update replaces the editable columns and reloads the stored row into patient.
func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET name = $1, age = $2, loyalty_points = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + patientColumns

	err := r.get(ctx, patient, query,
		patient.Name, patient.Age, patient.LoyaltyPoints, time.Now().UTC(), patient.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, "patients", id)
}

func (r *patientRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "patients", id)
}

func (r *patientRepository) List(ctx context.Context, filter *model.PatientFilter) ([]*model.Patient, error) {
	ds := dialect.From("patients").
		Select(goqu.L(patientColumns)).
		Order(goqu.C("name").Asc(), goqu.C("created_at").Asc())

	if filter != nil {
		if filter.Name != "" {
			ds = ds.Where(goqu.C("name").ILike("%" + filter.Name + "%"))
		}
		if filter.Age != nil {
			ds = ds.Where(goqu.C("age").Eq(*filter.Age))
		}
		if filter.MinLoyalty != nil {
			ds = ds.Where(goqu.C("loyalty_points").Gte(*filter.MinLoyalty))
		}
	}

	var patients []*model.Patient
	if err := r.selectDataset(ctx, &patients, ds); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// AddLoyaltyPoints increments the balance in place. A result below zero is
// rejected by the loyalty_points check constraint.
func (r *patientRepository) AddLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) (*model.Patient, error) {
	query := `
		UPDATE patients
		SET loyalty_points = loyalty_points + $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + patientColumns

	var patient model.Patient
	if err := r.get(ctx, &patient, query, points, time.Now().UTC(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to add loyalty points: %w", err)
	}
	return &patient, nil
}
