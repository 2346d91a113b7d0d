package analytics_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-registration/internal/analytics"
	"ms-registration/internal/catalog"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/seating"
	"ms-registration/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) Summary(ctx context.Context, eventTitle string) (models.EventSummary, error) {
	args := m.Called(ctx, eventTitle)
	return args.Get(0).(models.EventSummary), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) ListBooked(ctx context.Context, eventTitle string) ([]seating.SeatKey, error) {
	args := m.Called(ctx, eventTitle)
	keys, _ := args.Get(0).([]seating.SeatKey)
	return keys, args.Error(1)
}

func newRouter(store *MockStore, ledger *MockLedger, logs *bytes.Buffer) http.Handler {
	h := NewHandler(analytics.NewService(catalog.Default(), store, ledger), logger.NewWriterLogger(logs))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestGetStats(t *testing.T) {
	store := new(MockStore)
	ledger := new(MockLedger)
	store.On("Summary", mock.Anything, mock.Anything).Return(models.EventSummary{Registrations: 1, AmountTotal: 230}, nil)
	ledger.On("ListBooked", mock.Anything, mock.Anything).Return([]seating.SeatKey(nil), nil)

	rec := httptest.NewRecorder()
	newRouter(store, ledger, &bytes.Buffer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                `json:"success"`
		Data    []models.EventStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data, len(catalog.Default().Events()))
}

func TestGetStatsHidesStorageErrors(t *testing.T) {
	store := new(MockStore)
	ledger := new(MockLedger)
	driverErr := errors.New(`pq: relation "registrations" does not exist at 10.0.3.7:5432`)
	store.On("Summary", mock.Anything, mock.Anything).Return(models.EventSummary{}, driverErr)
	ledger.On("ListBooked", mock.Anything, mock.Anything).Return([]seating.SeatKey(nil), nil)

	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	newRouter(store, ledger, &logs).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.NotContains(t, rec.Body.String(), "registrations")
	assert.NotContains(t, rec.Body.String(), "10.0.3.7")
	assert.Contains(t, logs.String(), "10.0.3.7")
}
