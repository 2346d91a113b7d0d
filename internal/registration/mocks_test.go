package registration_test

import (
	"context"

	"ms-registration/internal/assets"
	"ms-registration/internal/models"
	"ms-registration/internal/seating"

	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ListBooked(ctx context.Context, eventTitle string) ([]seating.SeatKey, error) {
	args := m.Called(ctx, eventTitle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]seating.SeatKey), args.Error(1)
}

func (m *MockLedger) TryClaim(ctx context.Context, key seating.SeatKey, registrationID string) error {
	args := m.Called(ctx, key, registrationID)
	return args.Error(0)
}

func (m *MockLedger) Release(ctx context.Context, key seating.SeatKey, registrationID string) error {
	args := m.Called(ctx, key, registrationID)
	return args.Error(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindDuplicate(ctx context.Context, reg *models.Registration) (string, error) {
	args := m.Called(ctx, reg)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, reg *models.Registration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, eventTitle, id string) (*models.Registration, error) {
	args := m.Called(ctx, eventTitle, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, eventTitle string, page, limit int) ([]models.Registration, int, error) {
	args := m.Called(ctx, eventTitle, page, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Registration), args.Int(1), args.Error(2)
}

func (m *MockStore) ListAll(ctx context.Context, eventTitle string) ([]models.Registration, error) {
	args := m.Called(ctx, eventTitle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Registration), args.Error(1)
}

func (m *MockStore) Summary(ctx context.Context, eventTitle string) (models.EventSummary, error) {
	args := m.Called(ctx, eventTitle)
	return args.Get(0).(models.EventSummary), args.Error(1)
}

type MockAssets struct {
	mock.Mock
}

func (m *MockAssets) Upload(ctx context.Context, data []byte, meta assets.Metadata) (assets.Asset, error) {
	args := m.Called(ctx, data, meta)
	return args.Get(0).(assets.Asset), args.Error(1)
}

func (m *MockAssets) Delete(ctx context.Context, assetID string) error {
	args := m.Called(ctx, assetID)
	return args.Error(0)
}

type MockReaper struct {
	mock.Mock
}

func (m *MockReaper) Schedule(assetID string) {
	m.Called(assetID)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRegistrationCreated(ctx context.Context, event models.RegistrationCreatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishSeatStatus(ctx context.Context, event models.SeatStatusChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
