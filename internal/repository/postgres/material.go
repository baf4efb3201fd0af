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

const materialColumns = `id, name, quantity, unit_price, reusable, created_at, updated_at`

type materialRepository struct {
	BaseRepository
}

func NewMaterialRepository(db *sqlx.DB) repository.MaterialRepository {
	return &materialRepository{NewBaseRepository(db)}
}

func (r *materialRepository) Create(ctx context.Context, material *model.Material) error {
	query := `
		INSERT INTO materials (id, name, quantity, unit_price, reusable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if material.ID == uuid.Nil {
		material.ID = uuid.New()
	}
	now := time.Now().UTC()
	material.CreatedAt = now
	material.UpdatedAt = now

	_, err := r.ext(ctx).ExecContext(ctx, query,
		material.ID,
		material.Name,
		material.Quantity,
		material.UnitPrice,
		material.Reusable,
		material.CreatedAt,
		material.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

func (r *materialRepository) Get(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`
	var material model.Material
	if err := r.get(ctx, &material, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return &material, nil
}

func (r *materialRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ds := dialect.From("materials").
		Select(goqu.L(materialColumns)).
		Where(goqu.C("id").In(uuidArgs(ids)...))

	var materials []*model.Material
	if err := r.selectDataset(ctx, &materials, ds); err != nil {
		return nil, fmt.Errorf("failed to get materials: %w", err)
	}
	return materials, nil
}

// Update replaces the editable columns and reloads the stored row into material.
func (r *materialRepository) Update(ctx context.Context, material *model.Material) error {
	query := `
		UPDATE materials
		SET name = $1, quantity = $2, unit_price = $3, reusable = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + materialColumns

	err := r.get(ctx, material, query,
		material.Name,
		material.Quantity,
		material.UnitPrice,
		material.Reusable,
		time.Now().UTC(),
		material.ID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to update material: %w", err)
	}
	return nil
}

func (r *materialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, "materials", id)
}

func (r *materialRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "materials", id)
}

func (r *materialRepository) List(ctx context.Context, filter *model.MaterialFilter) ([]*model.Material, error) {
	ds := dialect.From("materials").
		Select(goqu.L(materialColumns)).
		Order(goqu.C("name").Asc(), goqu.C("created_at").Asc())

	if filter != nil {
		if filter.Name != "" {
			ds = ds.Where(goqu.C("name").ILike("%" + filter.Name + "%"))
		}
		if filter.Reusable != nil {
			ds = ds.Where(goqu.C("reusable").Eq(*filter.Reusable))
		}
		if filter.MaxQuantity != nil {
			ds = ds.Where(goqu.C("quantity").Lte(*filter.MaxQuantity))
		}
		if filter.MinQuantity != nil {
			ds = ds.Where(goqu.C("quantity").Gt(*filter.MinQuantity))
		}
	}

	var materials []*model.Material
	if err := r.selectDataset(ctx, &materials, ds); err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return materials, nil
}

// AdjustQuantity applies delta in a single conditional UPDATE. The row is left
// untouched when the result would be negative.
func (r *materialRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*model.Material, error) {
	query := `
		UPDATE materials
		SET quantity = quantity + $1, updated_at = $2
		WHERE id = $3 AND quantity + $1 >= 0
		RETURNING ` + materialColumns

	var material model.Material
	err := r.get(ctx, &material, query, delta, time.Now().UTC(), id)
	if err == nil {
		return &material, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust material quantity: %w", err)
	}

	found, err := r.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check material: %w", err)
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrInsufficientStock
}

func uuidArgs(ids []uuid.UUID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return args
}
