package patient

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

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.PatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
	ListPatients(ctx context.Context, filter *model.PatientFilter) ([]*model.Patient, error)
	AddLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) (*model.Patient, error)
}

type Service struct {
	repo      repository.PatientRepository
	tx        repository.TxManager
	validator validator.Validator
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(repo repository.PatientRepository, tx repository.TxManager, v validator.Validator, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		validator: v,
		logger:    log.WithFields(map[string]interface{}{"service": "patient"}),
		metrics:   m,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		Name:          req.Name,
		Age:           req.Age,
		LoyaltyPoints: req.LoyaltyPoints,
	}
	if err := s.validator.Validate(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", apperrors.Wrap(err))
	}

	s.logger.Info("Patient registered", "patient_id", patient.ID.String())
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	return patient, nil
}

// UpdatePatient replaces name, age and loyalty balance. An unknown id is
// reported before the request body is validated.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.PatientRequest) (*model.Patient, error) {
	found, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check patient: %w", apperrors.Wrap(err))
	}
	if !found {
		return nil, apperrors.NotFound("patient", id)
	}

	patient := &model.Patient{
		Base:          model.Base{ID: id},
		Name:          req.Name,
		Age:           req.Age,
		LoyaltyPoints: req.LoyaltyPoints,
	}
	if err := s.validator.Validate(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, mapError(err, id)
	}
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err, id)
	}
	s.logger.Info("Patient deleted", "patient_id", id.String())
	return nil
}

func (s *Service) ListPatients(ctx context.Context, filter *model.PatientFilter) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", apperrors.Wrap(err))
	}
	return patients, nil
}

// AddLoyaltyPoints adds points to the patient's balance. Negative points are
// accepted as a correction as long as the balance stays at or above zero.
func (s *Service) AddLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) (*model.Patient, error) {
	var updated *model.Patient
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if points < 0 {
			current, err := s.repo.Get(ctx, id)
			if err != nil {
				return mapError(err, id)
			}
			if current.LoyaltyPoints+points < 0 {
				return apperrors.InvalidArgumentf("loyalty points cannot go below zero: balance %d, change %d",
					current.LoyaltyPoints, points)
			}
		}

		patient, err := s.repo.AddLoyaltyPoints(ctx, id, points)
		if err != nil {
			return mapError(err, id)
		}
		updated = patient
		return nil
	})
	if err != nil {
		return nil, err
	}

	if points > 0 {
		s.metrics.LoyaltyAwarded.Add(float64(points))
	}
	s.logger.Info("Loyalty points changed",
		"patient_id", id.String(),
		"points", points,
		"balance", updated.LoyaltyPoints)

	return updated, nil
}

func mapError(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("patient", id)
	case errors.Is(err, repository.ErrReferenced):
		return apperrors.Conflictf("patient %s has recorded procedures", id)
	default:
		return apperrors.Wrap(err)
	}
}
