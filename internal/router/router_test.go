package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/dental-api/internal/handler/health"
	materialhandler "github.com/jwalitptl/dental-api/internal/handler/material"
	patienthandler "github.com/jwalitptl/dental-api/internal/handler/patient"
	procedurehandler "github.com/jwalitptl/dental-api/internal/handler/procedure"
	"github.com/jwalitptl/dental-api/internal/middleware"
	"github.com/jwalitptl/dental-api/internal/pricing"
	"github.com/jwalitptl/dental-api/internal/repository/memory"
	"github.com/jwalitptl/dental-api/internal/service/material"
	"github.com/jwalitptl/dental-api/internal/service/patient"
	"github.com/jwalitptl/dental-api/internal/service/procedure"
	"github.com/jwalitptl/dental-api/pkg/logger"
	"github.com/jwalitptl/dental-api/pkg/metrics"
	"github.com/jwalitptl/dental-api/pkg/validator"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	store := memory.NewStore()
	m := metrics.NewMetrics("dental", reg)
	log := logger.Nop()
	v := validator.New()

	materialSvc := material.NewService(store.Materials(), store.Outbox(), store, v, log, m)
	patientSvc := patient.NewService(store.Patients(), store, v, log, m)
	procedureSvc := procedure.NewService(procedure.Repositories{
		Procedures: store.Procedures(),
		Patients:   store.Patients(),
		Materials:  store.Materials(),
		Outbox:     store.Outbox(),
		Tx:         store,
	}, pricing.NewEngine(), log, m)

	nop := zerolog.Nop()
	r := NewRouter(Handlers{
		Health:     health.NewHandler(okPinger{}),
		Materials:  materialhandler.NewHandler(materialSvc),
		Patients:   patienthandler.NewHandler(patientSvc),
		Procedures: procedurehandler.NewHandler(procedureSvc),
	}, &nop, RouterConfig{
		RateLimit:  rate.Inf,
		CORSConfig: middleware.DefaultCORSConfig(),
		Namespace:  "dental",
		Registerer: reg,
		Gatherer:   reg,
	})
	r.Setup()
	return r.Engine()
}

func call(t *testing.T, r *gin.Engine, method, path string, body interface{}) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Less(t, w.Code, 300, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	var out struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Data
}

func TestProcedureLifecycle(t *testing.T) {
	r := setupRouter(t)

	p := call(t, r, http.MethodPost, "/api/v1/patients", map[string]interface{}{"name": "Helena", "age": 65})
	a := call(t, r, http.MethodPost, "/api/v1/materials", map[string]interface{}{
		"name": "Anesthetic", "quantity": 1, "unit_price": "100.00",
	})
	b := call(t, r, http.MethodPost, "/api/v1/materials", map[string]interface{}{
		"name": "Forceps", "unit_price": "50.00", "reusable": true,
	})

	proc := call(t, r, http.MethodPost, "/api/v1/procedures", map[string]interface{}{
		"name":         "Extraction",
		"duration":     "60",
		"patient_id":   p["id"],
		"material_ids": []interface{}{a["id"], b["id"]},
	})
	assert.Equal(t, "184.5", proc["final_price"])

	breakdown := call(t, r, http.MethodGet, "/api/v1/procedures/"+proc["id"].(string)+"/breakdown", nil)
	assert.Contains(t, breakdown["text"], "FINAL PRICE: $ 184.50")

	anesthetic := call(t, r, http.MethodGet, "/api/v1/materials/"+a["id"].(string), nil)
	assert.Equal(t, float64(0), anesthetic["quantity"])

	helena := call(t, r, http.MethodGet, "/api/v1/patients/"+p["id"].(string), nil)
	assert.Equal(t, float64(10), helena["loyalty_points"])
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dental_http_requests_total")
}

func TestNotFoundRoute(t *testing.T) {
	r := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
