package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultLaborRate is applied when a procedure is created without a labor rate.
var DefaultLaborRate = decimal.RequireFromString("100.00")

// LoyaltyPointsPerProcedure is awarded to the patient on every procedure.
const LoyaltyPointsPerProcedure = 10

type Procedure struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	Name          string              `db:"name" json:"name"`
	AssistantUsed bool                `db:"assistant_used" json:"assistant_used"`
	Duration      decimal.Decimal     `db:"duration" json:"duration"`
	PatientID     uuid.UUID           `db:"patient_id" json:"patient_id"`
	LaborRate     decimal.Decimal     `db:"labor_rate" json:"labor_rate"`
	DiscountRate  decimal.Decimal     `db:"discount_rate" json:"discount_rate"`
	FinalPrice    decimal.Decimal     `db:"final_price" json:"final_price"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	Materials     []ProcedureMaterial `db:"-" json:"materials"`
}

// ProcedureMaterial is a material as billed on a procedure. Price and reusable
// flag are copied at creation so later material edits do not change history.
type ProcedureMaterial struct {
	ProcedureID uuid.UUID       `db:"procedure_id" json:"-"`
	MaterialID  uuid.UUID       `db:"material_id" json:"material_id"`
	Name        string          `db:"name" json:"name"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Reusable    bool            `db:"reusable" json:"reusable"`
}

// NewProcedureMaterial snapshots m for billing.
func NewProcedureMaterial(procedureID uuid.UUID, m *Material) ProcedureMaterial {
	return ProcedureMaterial{
		ProcedureID: procedureID,
		MaterialID:  m.ID,
		Name:        m.Name,
		UnitPrice:   m.UnitPrice,
		Reusable:    m.Reusable,
	}
}

func (pm ProcedureMaterial) ProcedureValue() decimal.Decimal {
	return procedureValue(pm.UnitPrice, pm.Reusable)
}

type CreateProcedureRequest struct {
	Name          string           `json:"name" binding:"required,max=100"`
	AssistantUsed bool             `json:"assistant_used"`
	Duration      decimal.Decimal  `json:"duration"`
	PatientID     uuid.UUID        `json:"patient_id" binding:"required"`
	MaterialIDs   []uuid.UUID      `json:"material_ids" binding:"required,min=1"`
	LaborRate     *decimal.Decimal `json:"labor_rate,omitempty"`
}

type ProcedureFilter struct {
	Name          string
	PatientID     *uuid.UUID
	AssistantUsed *bool
}
