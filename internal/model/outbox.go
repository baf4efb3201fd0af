package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain event types written to the outbox.
const (
	EventProcedureCreated     = "procedure.created"
	EventProcedureDeleted     = "procedure.deleted"
	EventMaterialStockChanged = "material.stock_changed"
)

type OutboxEvent struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EventType     string          `db:"event_type" json:"event_type"`
	AggregateType string          `db:"aggregate_type" json:"aggregate_type"`
	AggregateID   uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        string          `db:"status" json:"status"`
	ErrorMessage  *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewOutboxEvent builds a pending event with payload marshalled to JSON.
func NewOutboxEvent(eventType, aggregateType string, aggregateID uuid.UUID, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		Status:        string(OutboxStatusPending),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// StockChangedPayload is published for every explicit stock movement.
type StockChangedPayload struct {
	MaterialID uuid.UUID `json:"material_id"`
	Delta      int       `json:"delta"`
	Quantity   int       `json:"quantity"`
}
