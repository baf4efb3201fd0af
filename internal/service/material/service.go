package material

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/repository"
	apperrors "github.com/jwalitptl/dental-api/pkg/errors"
	"github.com/jwalitptl/dental-api/pkg/logger"
	"github.com/jwalitptl/dental-api/pkg/metrics"
	"github.com/jwalitptl/dental-api/pkg/validator"
)

type MaterialService interface {
	CreateMaterial(ctx context.Context, req *model.MaterialRequest) (*model.Material, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error)
	ListMaterials(ctx context.Context, filter *model.MaterialFilter) ([]*model.Material, error)
	UpdateMaterial(ctx context.Context, id uuid.UUID, req *model.MaterialRequest) (*model.Material, error)
	DeleteMaterial(ctx context.Context, id uuid.UUID) error
	AddStock(ctx context.Context, id uuid.UUID, amount int) (*model.Material, error)
	RemoveStock(ctx context.Context, id uuid.UUID, amount int) (*model.Material, error)
	CheckStock(ctx context.Context, id uuid.UUID, amount int) (*model.StockCheck, error)
}

type Service struct {
	repo      repository.MaterialRepository
	outbox    repository.OutboxRepository
	tx        repository.TxManager
	validator validator.Validator
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	repo repository.MaterialRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	v validator.Validator,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		outbox:    outbox,
		tx:        tx,
		validator: v,
		logger:    log.WithFields(map[string]interface{}{"service": "material"}),
		metrics:   m,
	}
}

func (s *Service) CreateMaterial(ctx context.Context, req *model.MaterialRequest) (*model.Material, error) {
	material := &model.Material{
		Name:      req.Name,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Reusable:  req.Reusable,
	}
	if err := s.validate(material); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, material); err != nil {
		return nil, fmt.Errorf("failed to create material: %w", apperrors.Wrap(err))
	}

	s.logger.Info("Material registered", "material_id", material.ID.String(), "quantity", material.Quantity)
	return material, nil
}

func (s *Service) GetMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	material, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	return material, nil
}

func (s *Service) ListMaterials(ctx context.Context, filter *model.MaterialFilter) ([]*model.Material, error) {
	materials, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", apperrors.Wrap(err))
	}
	return materials, nil
}

// UpdateMaterial replaces every editable field of the material. An unknown id
// is reported before the request body is validated.
func (s *Service) UpdateMaterial(ctx context.Context, id uuid.UUID, req *model.MaterialRequest) (*model.Material, error) {
	if err := s.requireExists(ctx, id); err != nil {
		return nil, err
	}

	material := &model.Material{
		Base:      model.Base{ID: id},
		Name:      req.Name,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Reusable:  req.Reusable,
	}
	if err := s.validate(material); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, material); err != nil {
		return nil, mapError(err, id)
	}
	return material, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err, id)
	}
	s.logger.Info("Material deleted", "material_id", id.String())
	return nil
}

func (s *Service) AddStock(ctx context.Context, id uuid.UUID, amount int) (*model.Material, error) {
	return s.adjustStock(ctx, id, amount, 1)
}

// RemoveStock takes amount units out of stock. The quantity never goes below
// zero; a larger amount is rejected with the quantity currently available.
func (s *Service) RemoveStock(ctx context.Context, id uuid.UUID, amount int) (*model.Material, error) {
	return s.adjustStock(ctx, id, amount, -1)
}

func (s *Service) CheckStock(ctx context.Context, id uuid.UUID, amount int) (*model.StockCheck, error) {
	material, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return &model.StockCheck{
		MaterialID: id.String(),
		Needed:     amount,
		Available:  material.Quantity,
		Sufficient: material.HasStock(amount),
	}, nil
}

// adjustStock moves amount units in the direction of sign (+1 in, -1 out).
func (s *Service) adjustStock(ctx context.Context, id uuid.UUID, amount, sign int) (*model.Material, error) {
	delta := sign * amount

	var updated *model.Material
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return mapError(err, id)
		}
		if err := validateAmount(amount); err != nil {
			return err
		}

		material, err := s.repo.AdjustQuantity(ctx, id, delta)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return s.insufficientStock(ctx, current, amount)
			}
			return mapError(err, id)
		}

		event, err := model.NewOutboxEvent(model.EventMaterialStockChanged, "material", id, model.StockChangedPayload{
			MaterialID: id,
			Delta:      delta,
			Quantity:   material.Quantity,
		})
		if err != nil {
			return apperrors.Internal(err)
		}
		if err := s.outbox.Create(ctx, event); err != nil {
			return fmt.Errorf("failed to record stock change: %w", apperrors.Wrap(err))
		}

		updated = material
		return nil
	})
	if err != nil {
		return nil, err
	}

	direction := "in"
	if delta < 0 {
		direction = "out"
	}
	s.metrics.StockMovements.WithLabelValues(direction).Add(float64(amount))
	s.logger.Info("Material stock changed",
		"material_id", id.String(),
		"delta", delta,
		"quantity", updated.Quantity)

	return updated, nil
}

// insufficientStock reports the quantity available now, falling back to the
// value read at the start of the transaction.
func (s *Service) insufficientStock(ctx context.Context, current *model.Material, requested int) error {
	if latest, err := s.repo.Get(ctx, current.ID); err == nil {
		current = latest
	}
	return apperrors.Conflictf("insufficient stock for material %s: requested %d, available %d",
		current.Name, requested, current.Quantity)
}

func (s *Service) requireExists(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check material: %w", apperrors.Wrap(err))
	}
	if !found {
		return apperrors.NotFound("material", id)
	}
	return nil
}

func validateAmount(amount int) error {
	if amount <= 0 {
		return apperrors.InvalidArgument("amount must be greater than zero")
	}
	return nil
}

func (s *Service) validate(m *model.Material) error {
	if err := s.validator.Validate(m); err != nil {
		return err
	}
	if !m.UnitPrice.IsPositive() {
		return apperrors.InvalidArgument("unit_price must be greater than zero")
	}
	if !model.HasCents(m.UnitPrice) {
		return apperrors.InvalidArgument("unit_price must have at most 2 decimal places")
	}
	return nil
}

func mapError(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("material", id)
	case errors.Is(err, repository.ErrReferenced):
		return apperrors.Conflictf("material %s is used by existing procedures", id)
	default:
		return apperrors.Wrap(err)
	}
}
