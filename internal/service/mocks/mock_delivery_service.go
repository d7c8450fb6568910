package mocks

import (
	"context"

	"docsend/internal/model"
	"docsend/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) Create(ctx context.Context, documentID, customerID string) (*model.Delivery, error) {
	args := m.Called(ctx, documentID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryService) Get(ctx context.Context, id string) (*model.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryService) List(ctx context.Context, q service.DeliveryListQuery) (*service.DeliveryListResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeliveryListResult), args.Error(1)
}

func (m *MockDeliveryService) Retry(ctx context.Context, id string) (*model.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryService) Process(ctx context.Context, deliveryID string) error {
	args := m.Called(ctx, deliveryID)
	return args.Error(0)
}

func (m *MockDeliveryService) Abandon(ctx context.Context, deliveryID, reason string) error {
	args := m.Called(ctx, deliveryID, reason)
	return args.Error(0)
}
