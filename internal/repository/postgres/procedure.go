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

const procedureColumns = `id, name, assistant_used, duration, patient_id, labor_rate, discount_rate, final_price, created_at`

type procedureRepository struct {
	BaseRepository
}

func NewProcedureRepository(db *sqlx.DB) repository.ProcedureRepository {
	return &procedureRepository{NewBaseRepository(db)}
}

// Create inserts the procedure and its material rows inside one transaction,
// joining the caller's transaction when there is one.
func (r *procedureRepository) Create(ctx context.Context, procedure *model.Procedure) error {
	if procedure.ID == uuid.Nil {
		procedure.ID = uuid.New()
	}
	if procedure.CreatedAt.IsZero() {
		procedure.CreatedAt = time.Now().UTC()
	}

	return r.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO procedures (
				id, name, assistant_used, duration, patient_id,
				labor_rate, discount_rate, final_price, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := r.ext(ctx).ExecContext(ctx, query,
			procedure.ID,
			procedure.Name,
			procedure.AssistantUsed,
			procedure.Duration,
			procedure.PatientID,
			procedure.LaborRate,
			procedure.DiscountRate,
			procedure.FinalPrice,
			procedure.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create procedure: %w", err)
		}

		itemQuery := `
			INSERT INTO procedure_materials (procedure_id, material_id, position, name, unit_price, reusable)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for i := range procedure.Materials {
			item := &procedure.Materials[i]
			item.ProcedureID = procedure.ID
			if _, err := r.ext(ctx).ExecContext(ctx, itemQuery,
				item.ProcedureID, item.MaterialID, i, item.Name, item.UnitPrice, item.Reusable,
			); err != nil {
				return fmt.Errorf("failed to add material to procedure: %w", err)
			}
		}
		return nil
	})
}

func (r *procedureRepository) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	query := `SELECT ` + procedureColumns + ` FROM procedures WHERE id = $1`
	var procedure model.Procedure
	if err := r.get(ctx, &procedure, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get procedure: %w", err)
	}

	if err := r.loadMaterials(ctx, []*model.Procedure{&procedure}); err != nil {
		return nil, err
	}
	return &procedure, nil
}

// Delete removes the procedure; its material rows go with it via ON DELETE CASCADE.
func (r *procedureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.deleteByID(ctx, "procedures", id)
}

func (r *procedureRepository) List(ctx context.Context, filter *model.ProcedureFilter) ([]*model.Procedure, error) {
	ds := dialect.From("procedures").
		Select(goqu.L(procedureColumns)).
		Order(goqu.C("created_at").Desc())

	if filter != nil {
		if filter.Name != "" {
			ds = ds.Where(goqu.C("name").ILike("%" + filter.Name + "%"))
		}
		if filter.PatientID != nil {
			ds = ds.Where(goqu.C("patient_id").Eq(filter.PatientID.String()))
		}
		if filter.AssistantUsed != nil {
			ds = ds.Where(goqu.C("assistant_used").Eq(*filter.AssistantUsed))
		}
	}

	var procedures []*model.Procedure
	if err := r.selectDataset(ctx, &procedures, ds); err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}

	if err := r.loadMaterials(ctx, procedures); err != nil {
		return nil, err
	}
	return procedures, nil
}

func (r *procedureRepository) loadMaterials(ctx context.Context, procedures []*model.Procedure) error {
	if len(procedures) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(procedures))
	byID := make(map[uuid.UUID]*model.Procedure, len(procedures))
	for i, p := range procedures {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Materials = []model.ProcedureMaterial{}
	}

	ds := dialect.From("procedure_materials").
		Select("procedure_id", "material_id", "name", "unit_price", "reusable").
		Where(goqu.C("procedure_id").In(uuidArgs(ids)...)).
		Order(goqu.C("procedure_id").Asc(), goqu.C("position").Asc())

	var items []model.ProcedureMaterial
	if err := r.selectDataset(ctx, &items, ds); err != nil {
		return fmt.Errorf("failed to load procedure materials: %w", err)
	}

	for _, item := range items {
		if p, ok := byID[item.ProcedureID]; ok {
			p.Materials = append(p.Materials, item)
		}
	}
	return nil
}
