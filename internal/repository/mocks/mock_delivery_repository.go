package mocks

import (
	"context"
	"time"

	"docsend/internal/model"
	"docsend/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) Create(ctx context.Context, d *model.Delivery) (*model.Delivery, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) FindByID(ctx context.Context, id string) (*model.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) List(ctx context.Context, q repository.DeliveryQuery) (*repository.PageResult[model.Delivery], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Delivery]), args.Error(1)
}

func (m *MockDeliveryRepository) MarkDelivered(ctx context.Context, id string, attempts, httpStatus int, deliveredAt time.Time) error {
	args := m.Called(ctx, id, attempts, httpStatus, deliveredAt)
	return args.Error(0)
}

func (m *MockDeliveryRepository) MarkFailed(ctx context.Context, id string, attempts, httpStatus int, lastError string) error {
	args := m.Called(ctx, id, attempts, httpStatus, lastError)
	return args.Error(0)
}

func (m *MockDeliveryRepository) Requeue(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
