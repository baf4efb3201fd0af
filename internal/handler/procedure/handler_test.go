package procedure

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-api/internal/handler"
	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/pricing"
	"github.com/jwalitptl/dental-api/internal/repository/memory"
	"github.com/jwalitptl/dental-api/internal/service/procedure"
	"github.com/jwalitptl/dental-api/pkg/logger"
	"github.com/jwalitptl/dental-api/pkg/metrics"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	router  *gin.Engine
	store   *memory.Store
	patient *model.Patient
	anesth  *model.Material
	forceps *model.Material
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler.ConfigureBinding()
	ctx := context.Background()
	store := memory.NewStore()
	svc := procedure.NewService(procedure.Repositories{
		Procedures: store.Procedures(),
		Patients:   store.Patients(),
		Materials:  store.Materials(),
		Outbox:     store.Outbox(),
		Tx:         store,
	}, pricing.NewEngine(), logger.Nop(), metrics.NewMetrics("test", prometheus.NewRegistry()))

	f := &fixture{
		router:  gin.New(),
		store:   store,
		patient: &model.Patient{Name: "Helena", Age: 65},
		anesth:  &model.Material{Name: "Anesthetic", Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")},
		forceps: &model.Material{Name: "Forceps", UnitPrice: decimal.RequireFromString("50.00"), Reusable: true},
	}
	require.NoError(t, store.Patients().Create(ctx, f.patient))
	require.NoError(t, store.Materials().Create(ctx, f.anesth))
	require.NoError(t, store.Materials().Create(ctx, f.forceps))

	NewHandler(svc).RegisterRoutes(f.router.Group("/api/v1"))
	return f
}

func (f *fixture) do(method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (f *fixture) create(t *testing.T) model.Procedure {
	t.Helper()
	w, env := f.do(http.MethodPost, "/api/v1/procedures", map[string]interface{}{
		"name":         "Extraction",
		"duration":     60,
		"patient_id":   f.patient.ID,
		"material_ids": []uuid.UUID{f.anesth.ID, f.forceps.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var proc model.Procedure
	require.NoError(t, json.Unmarshal(env.Data, &proc))
	return proc
}

func TestCreateProcedure(t *testing.T) {
	f := setup(t)

	proc := f.create(t)
	assert.Equal(t, "184.50", proc.FinalPrice.StringFixed(2))
	assert.Len(t, proc.Materials, 2)

	w, env := f.do(http.MethodPost, "/api/v1/procedures", map[string]interface{}{
		"name":         "Extraction",
		"duration":     60,
		"patient_id":   f.patient.ID,
		"material_ids": []uuid.UUID{f.anesth.ID},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "insufficient stock for material: Anesthetic", env.Message)
}

func TestCreateProcedure_BadRequests(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{"no materials", map[string]interface{}{
			"name": "X", "duration": 30, "patient_id": f.patient.ID, "material_ids": []string{},
		}, http.StatusBadRequest},
		{"missing patient", map[string]interface{}{
			"name": "X", "duration": 30, "material_ids": []uuid.UUID{f.forceps.ID},
		}, http.StatusBadRequest},
		{"unknown patient", map[string]interface{}{
			"name": "X", "duration": 30, "patient_id": uuid.New(), "material_ids": []uuid.UUID{f.forceps.ID},
		}, http.StatusNotFound},
		{"unknown material", map[string]interface{}{
			"name": "X", "duration": 30, "patient_id": f.patient.ID, "material_ids": []uuid.UUID{uuid.New()},
		}, http.StatusNotFound},
		{"zero duration", map[string]interface{}{
			"name": "X", "duration": 0, "patient_id": f.patient.ID, "material_ids": []uuid.UUID{f.forceps.ID},
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := f.do(http.MethodPost, "/api/v1/procedures", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "error", env.Status)
		})
	}
}

func TestListAndGetProcedure(t *testing.T) {
	f := setup(t)

	w, _ := f.do(http.MethodGet, "/api/v1/procedures", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	proc := f.create(t)

	w, env := f.do(http.MethodGet, "/api/v1/procedures?patient_id="+f.patient.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []model.Procedure
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)

	w, _ = f.do(http.MethodGet, "/api/v1/procedures?assistant=true", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = f.do(http.MethodGet, "/api/v1/procedures?patient_id=42", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodGet, "/api/v1/procedures/"+proc.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(http.MethodGet, "/api/v1/procedures/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBreakdown(t *testing.T) {
	f := setup(t)
	proc := f.create(t)
	path := "/api/v1/procedures/" + proc.ID.String() + "/breakdown"

	w, env := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var breakdown pricing.Breakdown
	require.NoError(t, json.Unmarshal(env.Data, &breakdown))
	assert.Equal(t, "205.00", breakdown.Subtotal.StringFixed(2))

	w, _ = f.do(http.MethodGet, path, nil, "Accept", "text/plain")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "=== CALCULATION BREAKDOWN ==="))
	assert.Contains(t, w.Body.String(), "Patient discount (10%): -$ 20.50")
}

func TestDeleteProcedure(t *testing.T) {
	f := setup(t)
	proc := f.create(t)
	path := "/api/v1/procedures/" + proc.ID.String()

	w, _ := f.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	m, err := f.store.Materials().Get(context.Background(), f.anesth.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Quantity)

	w, _ = f.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
