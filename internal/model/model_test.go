package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterial_ProcedureValue(t *testing.T) {
	price := decimal.RequireFromString("50.00")

	consumable := &Material{UnitPrice: price}
	reusable := &Material{UnitPrice: price, Reusable: true}

	assert.True(t, consumable.ProcedureValue().Equal(price))
	assert.True(t, reusable.ProcedureValue().Equal(decimal.RequireFromString("5.00")))
	assert.True(t, consumable.Consumable())
	assert.False(t, reusable.Consumable())
}

func TestMaterial_HasStock(t *testing.T) {
	m := &Material{Quantity: 3}
	assert.True(t, m.HasStock(3))
	assert.False(t, m.HasStock(4))
	assert.True(t, m.HasStock(0))
}

func TestHasCents(t *testing.T) {
	for _, v := range []string{"60", "0.5", "33.33", "2.500"} {
		assert.True(t, HasCents(decimal.RequireFromString(v)), v)
	}
	for _, v := range []string{"0.001", "33.333"} {
		assert.False(t, HasCents(decimal.RequireFromString(v)), v)
	}
}

func TestNewProcedureMaterial_Snapshot(t *testing.T) {
	m := &Material{
		Base:      Base{ID: uuid.New()},
		Name:      "Scaler",
		UnitPrice: decimal.RequireFromString("80.00"),
		Reusable:  true,
	}
	procID := uuid.New()

	pm := NewProcedureMaterial(procID, m)
	m.UnitPrice = decimal.RequireFromString("999.00")

	assert.Equal(t, procID, pm.ProcedureID)
	assert.Equal(t, m.ID, pm.MaterialID)
	assert.True(t, pm.ProcedureValue().Equal(decimal.RequireFromString("8.00")))
}

func TestNewOutboxEvent(t *testing.T) {
	id := uuid.New()
	evt, err := NewOutboxEvent(EventMaterialStockChanged, "material", id, StockChangedPayload{
		MaterialID: id,
		Delta:      -2,
		Quantity:   3,
	})
	require.NoError(t, err)

	assert.Equal(t, string(OutboxStatusPending), evt.Status)
	assert.Equal(t, id, evt.AggregateID)

	var payload StockChangedPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, -2, payload.Delta)
	assert.Equal(t, 3, payload.Quantity)
}

func TestNewOutboxEvent_BadPayload(t *testing.T) {
	_, err := NewOutboxEvent(EventProcedureCreated, "procedure", uuid.New(), func() {})
	assert.Error(t, err)
}
