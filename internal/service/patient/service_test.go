package patient

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/dental-api/pkg/errors"
	"github.com/jwalitptl/dental-api/pkg/logger"
	"github.com/jwalitptl/dental-api/pkg/metrics"
	"github.com/jwalitptl/dental-api/pkg/validator"
)

func setupService(t *testing.T) (*Service, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewService(store.Patients(), store, validator.New(), logger.Nop(), m), store, m
}

func TestCreatePatient(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	p, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Ana Souza", Age: 34})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, 0, p.LoyaltyPoints)

	got, err := svc.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", got.Name)
}

func TestCreatePatient_Invalid(t *testing.T) {
	svc, _, _ := setupService(t)

	tests := []struct {
		name string
		req  *model.PatientRequest
		msg  string
	}{
		{"blank name", &model.PatientRequest{Name: ""}, "name is required"},
		{"age too high", &model.PatientRequest{Name: "A", Age: 151}, "age must be at most 150"},
		{"negative age", &model.PatientRequest{Name: "A", Age: -1}, "age must be at least 0"},
		{"negative loyalty", &model.PatientRequest{Name: "A", LoyaltyPoints: -5}, "loyalty_points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePatient(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidArgument(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestUpdatePatient(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Ana", Age: 34})
	require.NoError(t, err)

	updated, err := svc.UpdatePatient(ctx, p.ID, &model.PatientRequest{Name: "Ana Lima", Age: 35, LoyaltyPoints: 20})
	require.NoError(t, err)
	assert.Equal(t, 35, updated.Age)

	_, err = svc.UpdatePatient(ctx, uuid.New(), &model.PatientRequest{Name: "X", Age: 1})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdatePatient_UnknownIDReportedBeforeInvalidBody(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.UpdatePatient(ctx, uuid.New(), &model.PatientRequest{Name: "", Age: 200})
	assert.True(t, apperrors.IsNotFound(err))

	p, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Ana", Age: 34})
	require.NoError(t, err)
	_, err = svc.UpdatePatient(ctx, p.ID, &model.PatientRequest{Name: "", Age: 200})
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestDeletePatient(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Ana", Age: 34})
	require.NoError(t, err)
	busy, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Bruno", Age: 50})
	require.NoError(t, err)
	require.NoError(t, store.Procedures().Create(ctx, &model.Procedure{Name: "Cleaning", PatientID: busy.ID}))

	require.NoError(t, svc.DeletePatient(ctx, p.ID))
	assert.True(t, apperrors.IsNotFound(svc.DeletePatient(ctx, p.ID)))
	assert.True(t, apperrors.IsConflict(svc.DeletePatient(ctx, busy.ID)))
}

func TestListPatients(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	for _, req := range []*model.PatientRequest{
		{Name: "Ana", Age: 65, LoyaltyPoints: 150},
		{Name: "Mariana", Age: 30},
		{Name: "Bruno", Age: 65, LoyaltyPoints: 250},
	} {
		_, err := svc.CreatePatient(ctx, req)
		require.NoError(t, err)
	}

	age, minLoyalty := 65, 200
	byName, err := svc.ListPatients(ctx, &model.PatientFilter{Name: "ana"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byAge, err := svc.ListPatients(ctx, &model.PatientFilter{Age: &age})
	require.NoError(t, err)
	assert.Len(t, byAge, 2)

	loyal, err := svc.ListPatients(ctx, &model.PatientFilter{MinLoyalty: &minLoyalty})
	require.NoError(t, err)
	require.Len(t, loyal, 1)
	assert.Equal(t, "Bruno", loyal[0].Name)

	none, err := svc.ListPatients(ctx, &model.PatientFilter{Name: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAddLoyaltyPoints(t *testing.T) {
	svc, _, m := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Ana", Age: 34, LoyaltyPoints: 5})
	require.NoError(t, err)

	updated, err := svc.AddLoyaltyPoints(ctx, p.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.LoyaltyPoints)
	assert.Equal(t, float64(15), testutil.ToFloat64(m.LoyaltyAwarded))

	updated, err = svc.AddLoyaltyPoints(ctx, p.ID, -20)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.LoyaltyPoints)
}

func TestAddLoyaltyPoints_BelowZero(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, &model.PatientRequest{Name: "Ana", Age: 34, LoyaltyPoints: 5})
	require.NoError(t, err)

	_, err = svc.AddLoyaltyPoints(ctx, p.ID, -6)
	assert.True(t, apperrors.IsInvalidArgument(err))

	got, err := svc.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.LoyaltyPoints)
}

func TestAddLoyaltyPoints_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.AddLoyaltyPoints(context.Background(), uuid.New(), 10)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.AddLoyaltyPoints(context.Background(), uuid.New(), -1)
	assert.True(t, apperrors.IsNotFound(err))
}
