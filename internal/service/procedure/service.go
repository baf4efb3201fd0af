package procedure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/pricing"
	"github.com/jwalitptl/dental-api/internal/repository"
	apperrors "github.com/jwalitptl/dental-api/pkg/errors"
	"github.com/jwalitptl/dental-api/pkg/logger"
	"github.com/jwalitptl/dental-api/pkg/metrics"
)

type ProcedureService interface {
	CreateProcedure(ctx context.Context, req *model.CreateProcedureRequest) (*model.Procedure, error)
	GetProcedure(ctx context.Context, id uuid.UUID) (*model.Procedure, error)
	ListProcedures(ctx context.Context, filter *model.ProcedureFilter) ([]*model.Procedure, error)
	DeleteProcedure(ctx context.Context, id uuid.UUID) error
	GetBreakdown(ctx context.Context, id uuid.UUID) (*pricing.Breakdown, error)
}

type Repositories struct {
	Procedures repository.ProcedureRepository
	Patients   repository.PatientRepository
	Materials  repository.MaterialRepository
	Outbox     repository.OutboxRepository
	Tx         repository.TxManager
}

type Service struct {
	repos   Repositories
	engine  *pricing.Engine
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repos Repositories, engine *pricing.Engine, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repos:   repos,
		engine:  engine,
		logger:  log.WithFields(map[string]interface{}{"service": "procedure"}),
		metrics: m,
	}
}

// CreatedPayload is published when a procedure is recorded.
type CreatedPayload struct {
	ProcedureID uuid.UUID       `json:"procedure_id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	MaterialIDs []uuid.UUID     `json:"material_ids"`
	FinalPrice  decimal.Decimal `json:"final_price"`
}

// DeletedPayload is published when a procedure is removed. Stock is not restored.
type DeletedPayload struct {
	ProcedureID uuid.UUID `json:"procedure_id"`
	PatientID   uuid.UUID `json:"patient_id"`
}

// CreateProcedure prices and records a procedure. Consumable materials lose
// one unit of stock and the patient earns loyalty points; either everything
// is applied or nothing is.
func (s *Service) CreateProcedure(ctx context.Context, req *model.CreateProcedureRequest) (*model.Procedure, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	laborRate := model.DefaultLaborRate
	if req.LaborRate != nil {
		laborRate = *req.LaborRate
	}

	var created *model.Procedure
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		patient, err := s.repos.Patients.Get(ctx, req.PatientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", req.PatientID)
			}
			return fmt.Errorf("failed to load patient: %w", apperrors.Wrap(err))
		}

		materials, err := s.resolveMaterials(ctx, req.MaterialIDs)
		if err != nil {
			return err
		}

		for _, m := range materials {
			if m.Consumable() && !m.HasStock(1) {
				return apperrors.Conflictf("insufficient stock for material: %s", m.Name)
			}
		}

		proc := &model.Procedure{
			ID:            uuid.New(),
			Name:          strings.TrimSpace(req.Name),
			AssistantUsed: req.AssistantUsed,
			Duration:      req.Duration,
			PatientID:     patient.ID,
			LaborRate:     laborRate,
		}
		for _, m := range materials {
			proc.Materials = append(proc.Materials, model.NewProcedureMaterial(proc.ID, m))
		}

		calc := s.engine.Calculate(proc, patient)
		proc.DiscountRate = calc.DiscountRate
		proc.FinalPrice = calc.FinalPrice

		if err := s.repos.Procedures.Create(ctx, proc); err != nil {
			return fmt.Errorf("failed to create procedure: %w", apperrors.Wrap(err))
		}

		for _, m := range materials {
			if !m.Consumable() {
				continue
			}
			if _, err := s.repos.Materials.AdjustQuantity(ctx, m.ID, -1); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return apperrors.Conflictf("insufficient stock for material: %s", m.Name)
				}
				return fmt.Errorf("failed to deduct material %s: %w", m.ID, apperrors.Wrap(err))
			}
		}

		if _, err := s.repos.Patients.AddLoyaltyPoints(ctx, patient.ID, model.LoyaltyPointsPerProcedure); err != nil {
			return fmt.Errorf("failed to award loyalty points: %w", apperrors.Wrap(err))
		}

		event, err := model.NewOutboxEvent(model.EventProcedureCreated, "procedure", proc.ID, CreatedPayload{
			ProcedureID: proc.ID,
			PatientID:   patient.ID,
			MaterialIDs: materialIDs(materials),
			FinalPrice:  proc.FinalPrice,
		})
		if err != nil {
			return apperrors.Internal(err)
		}
		if err := s.repos.Outbox.Create(ctx, event); err != nil {
			return fmt.Errorf("failed to enqueue procedure event: %w", apperrors.Wrap(err))
		}

		created = proc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ProceduresCreated.Inc()
	s.metrics.ProcedureRevenue.Add(created.FinalPrice.InexactFloat64())
	s.metrics.LoyaltyAwarded.Add(model.LoyaltyPointsPerProcedure)
	s.logger.Info("Procedure created",
		"procedure_id", created.ID.String(),
		"patient_id", created.PatientID.String(),
		"final_price", created.FinalPrice.StringFixed(2))

	return created, nil
}

func (s *Service) GetProcedure(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	proc, err := s.repos.Procedures.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("procedure", id)
		}
		return nil, fmt.Errorf("failed to get procedure: %w", apperrors.Wrap(err))
	}
	return proc, nil
}

func (s *Service) ListProcedures(ctx context.Context, filter *model.ProcedureFilter) ([]*model.Procedure, error) {
	procs, err := s.repos.Procedures.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", apperrors.Wrap(err))
	}
	return procs, nil
}

// DeleteProcedure removes the procedure. Consumed materials are not returned
// to stock and awarded loyalty points are kept.
func (s *Service) DeleteProcedure(ctx context.Context, id uuid.UUID) error {
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		proc, err := s.GetProcedure(ctx, id)
		if err != nil {
			return err
		}

		if err := s.repos.Procedures.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("procedure", id)
			}
			return fmt.Errorf("failed to delete procedure: %w", apperrors.Wrap(err))
		}

		event, err := model.NewOutboxEvent(model.EventProcedureDeleted, "procedure", id, DeletedPayload{
			ProcedureID: id,
			PatientID:   proc.PatientID,
		})
		if err != nil {
			return apperrors.Internal(err)
		}
		if err := s.repos.Outbox.Create(ctx, event); err != nil {
			return fmt.Errorf("failed to enqueue procedure event: %w", apperrors.Wrap(err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ProceduresDeleted.Inc()
	s.logger.Info("Procedure deleted", "procedure_id", id.String())
	return nil
}

// GetBreakdown itemises the stored price of a procedure.
func (s *Service) GetBreakdown(ctx context.Context, id uuid.UUID) (*pricing.Breakdown, error) {
	proc, err := s.GetProcedure(ctx, id)
	if err != nil {
		return nil, err
	}
	breakdown := s.engine.Breakdown(proc)
	return &breakdown, nil
}

// resolveMaterials loads every requested id in request order. The request
// fails with NotFound when fewer materials resolve than ids were sent, which
// includes an id repeated in the request.
func (s *Service) resolveMaterials(ctx context.Context, ids []uuid.UUID) ([]*model.Material, error) {
	found, err := s.repos.Materials.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", apperrors.Wrap(err))
	}

	byID := make(map[uuid.UUID]*model.Material, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NotFound("material", strings.Join(missing, ", "))
	}

	if len(byID) < len(ids) {
		return nil, apperrors.NotFoundf("materials not found: requested %d, resolved %d (repeated IDs: %s)",
			len(ids), len(byID), strings.Join(repeated(ids), ", "))
	}

	materials := make([]*model.Material, 0, len(ids))
	for _, id := range ids {
		materials = append(materials, byID[id])
	}
	return materials, nil
}

func validateRequest(req *model.CreateProcedureRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return apperrors.InvalidArgument("name is required")
	case len(req.Name) > 100:
		return apperrors.InvalidArgument("name must not exceed 100 characters")
	case req.PatientID == uuid.Nil:
		return apperrors.InvalidArgument("patient_id is required")
	case len(req.MaterialIDs) == 0:
		return apperrors.InvalidArgument("at least one material is required")
	case !req.Duration.IsPositive():
		return apperrors.InvalidArgument("duration must be greater than zero")
	case !model.HasCents(req.Duration):
		return apperrors.InvalidArgument("duration must have at most 2 decimal places")
	case req.LaborRate != nil && !req.LaborRate.IsPositive():
		return apperrors.InvalidArgument("labor_rate must be greater than zero")
	case req.LaborRate != nil && !model.HasCents(*req.LaborRate):
		return apperrors.InvalidArgument("labor_rate must have at most 2 decimal places")
	}
	return nil
}

func repeated(ids []uuid.UUID) []string {
	seen := make(map[uuid.UUID]int, len(ids))
	var out []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			out = append(out, id.String())
		}
	}
	return out
}

func materialIDs(materials []*model.Material) []uuid.UUID {
	ids := make([]uuid.UUID, len(materials))
	for i, m := range materials {
		ids[i] = m.ID
	}
	return ids
}
