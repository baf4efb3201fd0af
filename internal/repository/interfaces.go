package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-api/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the given id.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned when a quantity change would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReferenced is returned when a delete is blocked by a foreign key.
	ErrReferenced = errors.New("record is referenced by other records")
)

// All repository interfaces in one file
type (
	// TxManager runs fn inside a single database transaction. Repository calls
	// made with the ctx passed to fn join that transaction.
	TxManager interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	MaterialRepository interface {
		Create(ctx context.Context, material *model.Material) error
		Get(ctx context.Context, id uuid.UUID) (*model.Material, error)
		GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Material, error)
		Update(ctx context.Context, material *model.Material) error
		Delete(ctx context.Context, id uuid.UUID) error
		Exists(ctx context.Context, id uuid.UUID) (bool, error)
		List(ctx context.Context, filter *model.MaterialFilter) ([]*model.Material, error)
		// AdjustQuantity adds delta to the stored quantity unless the result
		// would be negative, and returns the updated material.
		AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*model.Material, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		Exists(ctx context.Context, id uuid.UUID) (bool, error)
		List(ctx context.Context, filter *model.PatientFilter) ([]*model.Patient, error)
		AddLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) (*model.Patient, error)
	}

	ProcedureRepository interface {
		// Create stores the procedure together with its material snapshot.
		Create(ctx context.Context, procedure *model.Procedure) error
		Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter *model.ProcedureFilter) ([]*model.Procedure, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		// GetPendingEventsWithLock must run inside WithinTx; rows stay locked
		// until the transaction ends.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
